package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sagarc03/repostore"
)

// ErrorResponse represents a JSON error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Failed  []FailureResponse `json:"failed,omitempty"`
	Deleted *int              `json:"deleted,omitempty"`
}

// FailureResponse is one key that could not be deleted.
type FailureResponse struct {
	Key   string `json:"key"`
	Error string `json:"error"`
}

type ExistsResponse struct {
	URI    string `json:"uri"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

type KeysResponse struct {
	URI  string   `json:"uri"`
	Keys []string `json:"keys"`
}

type PutResponse struct {
	URI  string `json:"uri"`
	Path string `json:"path"`
	Size int    `json:"size_bytes"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	writeErrorResponse(w, code, ErrorResponse{Error: errCode, Message: message})
}

func writeErrorResponse(w http.ResponseWriter, code int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{repostore.ErrMalformedURI, http.StatusBadRequest, "malformed_uri"},
	{repostore.ErrUnknownScheme, http.StatusBadRequest, "unknown_scheme"},
	{repostore.ErrInvalidInput, http.StatusBadRequest, "invalid_path"},
	{repostore.ErrNotFound, http.StatusNotFound, "not_found"},
	{repostore.ErrPermissionDenied, http.StatusForbidden, "permission_denied"},
	{repostore.ErrContainerNotEmpty, http.StatusConflict, "container_not_empty"},
	{repostore.ErrNameCollision, http.StatusConflict, "name_collision"},
	{repostore.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
	{repostore.ErrBackendUnavailable, http.StatusBadGateway, "backend_unavailable"},
	{repostore.ErrConfigurationMissing, http.StatusServiceUnavailable, "configuration_missing"},
}

func classify(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

func statusFor(err error) int {
	status, _ := classify(err)
	return status
}

// HandleError writes the status and error code matching err. Partial delete
// failures list every key that was not deleted.
func HandleError(w http.ResponseWriter, err error) {
	var pf *repostore.PartialFailureError
	if errors.As(err, &pf) {
		slog.Warn("partial failure", "op", pf.Op, "deleted", pf.Deleted, "failed", len(pf.Failed))
		resp := ErrorResponse{
			Error:   "partial_failure",
			Message: err.Error(),
			Deleted: &pf.Deleted,
		}
		for _, kerr := range pf.Failed {
			resp.Failed = append(resp.Failed, FailureResponse{Key: kerr.Key, Error: kerr.Err.Error()})
		}
		writeErrorResponse(w, http.StatusInternalServerError, resp)
		return
	}

	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request error", "error", err)
	} else {
		slog.Debug("request error", "error", err)
	}

	message := err.Error()
	if code == "internal_error" {
		message = "Internal server error"
	}
	WriteError(w, status, code, message)
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}
