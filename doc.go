// Package repostore addresses experiment repositories stored on a local
// filesystem or in a cloud object store through a single URI scheme.
//
// A repository URI has the form scheme://root[/sub/path...]. The scheme selects
// the backend:
//
//   - file: a local directory, e.g. file:///tmp/repo
//   - s3: an Amazon S3 (or S3-compatible) bucket, e.g. s3://bucket/prefix
//   - gs: a Google Cloud Storage bucket
//   - abs: an Azure Blob Storage container
//
// # Key Components
//
//   - Parse: pure URI resolver producing an Address
//   - Driver: uniform backend contract implemented by the filesystem, s3store,
//     gcsstore and absstore packages
//   - Facade: resolves URIs to a Repository bound to its driver
//   - Manager: provisions random container names for tests and tears every
//     tracked container down at the end of a session
//
// # Existence
//
// Existence checks are tri-state. A backend "not found" is Absent with a nil
// error. Every other failure is an error, so a network or permission problem
// can never be mistaken for a missing object:
//
//	ok, err := facade.Exists(ctx, "s3://bucket/repo", "metadata/experiments/e1.json")
//	if err != nil {
//	    return err
//	}
//
// # Errors
//
// All failures wrap one of the sentinel errors in this package
// (ErrNotFound, ErrPermissionDenied, ErrTimeout, ...). Bulk deletes report
// per-key failures as a *PartialFailureError and teardown reports per-container
// failures as a *TeardownError.
//
// See the backend package for building a Facade from configuration.
package repostore
