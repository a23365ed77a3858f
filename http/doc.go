// Package http serves repostore repositories over HTTP so that test
// harnesses written in other languages can check and seed repositories
// through the same facade the CLI uses.
//
// Every /v1 route names its repository with the "uri" query parameter, for
// example:
//
//	GET /v1/exists?uri=s3://bucket/repo&path=metadata/experiments/e1.json
//	{"uri":"s3://bucket/repo","path":"metadata/experiments/e1.json","exists":true}
//
// # Errors
//
// Failures are JSON ErrorResponse bodies. The status follows the repostore
// sentinel the error carries:
//
//   - ErrMalformedURI, ErrUnknownScheme, ErrInvalidInput: 400
//   - ErrNotFound: 404
//   - ErrPermissionDenied: 403
//   - ErrContainerNotEmpty, ErrNameCollision: 409
//   - ErrBackendUnavailable: 502
//   - ErrConfigurationMissing: 503
//   - ErrTimeout: 504
//
// A backend that cannot be reached is never reported as exists=false.
//
// # Usage
//
//	handler := http.NewHandler(&http.HandlerConfig{Token: token}, http.NewFacadeStorage(facade))
//	server := &stdhttp.Server{Addr: "127.0.0.1:5708", Handler: handler.Router()}
//
// With a non-empty token every /v1 request must carry
// "Authorization: Bearer <token>".
package http
