package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/sagarc03/repostore"
)

// Storage is the repository surface the gateway serves. FacadeStorage
// implements it over a repostore.Facade.
type Storage interface {
	Exists(ctx context.Context, uri, path string) (bool, error)
	Get(ctx context.Context, uri, path string) ([]byte, error)
	Put(ctx context.Context, uri, path string, data []byte) error
	Keys(ctx context.Context, uri, prefix string) ([]string, error)
	DeleteAll(ctx context.Context, uri, prefix string) error
	CreateContainer(ctx context.Context, uri string) (repostore.ContainerHandle, error)
	DeleteContainer(ctx context.Context, uri string, force bool) error
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age" validate:"min=0"`
}

type HandlerConfig struct {
	// Token, when set, must be sent as a bearer token on every /v1 request.
	Token string
	// MaxUploadSize limits PUT bodies in bytes. Zero means no limit.
	MaxUploadSize int64
	// FileRoots are the local directories file:// repositories may live
	// under. Empty disables file:// on the gateway.
	FileRoots []string
	CORS          CORSConfig
}

// Handler serves repository operations over HTTP. Every /v1 route takes the
// repository as the "uri" query parameter.
type Handler struct {
	config  HandlerConfig
	storage Storage
}

func NewHandler(config *HandlerConfig, storage Storage) *Handler {
	return &Handler{
		config:  *config,
		storage: storage,
	}
}

// Router returns the gateway routes. file:// repositories are only served
// under HandlerConfig.FileRoots.
//
//	GET    /healthz
//	GET    /v1/exists?uri=&path=
//	HEAD   /v1/objects?uri=&path=
//	GET    /v1/objects?uri=&path=
//	PUT    /v1/objects?uri=&path=
//	DELETE /v1/objects?uri=[&prefix=]
//	GET    /v1/keys?uri=[&prefix=]
//	PUT    /v1/containers?uri=
//	DELETE /v1/containers?uri=[&force=true]
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Token))
		r.Use(RepositoryMiddleware)
		r.Use(FileRootMiddleware(h.config.FileRoots))

		r.Get("/exists", h.handleExists)
		r.Head("/objects", h.handleHead)
		r.Get("/objects", h.handleGet)
		r.Put("/objects", h.handlePut)
		r.Delete("/objects", h.handleDeleteAll)
		r.Get("/keys", h.handleKeys)
		r.Put("/containers", h.handleCreateContainer)
		r.Delete("/containers", h.handleDeleteContainer)
	})

	return r
}

func (h *Handler) handleExists(w http.ResponseWriter, r *http.Request) {
	uri, path := r.URL.Query().Get("uri"), r.URL.Query().Get("path")

	ok, err := h.storage.Exists(r.Context(), uri, path)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, ExistsResponse{URI: uri, Path: path, Exists: ok})
}

func (h *Handler) handleHead(w http.ResponseWriter, r *http.Request) {
	ok, err := h.storage.Exists(r.Context(), r.URL.Query().Get("uri"), r.URL.Query().Get("path"))
	if err != nil {
		w.WriteHeader(statusFor(err))
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	data, err := h.storage.Get(r.Context(), r.URL.Query().Get("uri"), r.URL.Query().Get("path"))
	if err != nil {
		HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	uri, path := r.URL.Query().Get("uri"), r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "path is required")
		return
	}

	body := r.Body
	if h.config.MaxUploadSize > 0 {
		body = http.MaxBytesReader(w, r.Body, h.config.MaxUploadSize)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "Upload exceeds maximum size")
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid_request", "Could not read request body")
		return
	}

	if err := h.storage.Put(r.Context(), uri, path, data); err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, PutResponse{URI: uri, Path: path, Size: len(data)})
}

func (h *Handler) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.DeleteAll(r.Context(), r.URL.Query().Get("uri"), r.URL.Query().Get("prefix")); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleKeys(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")

	keys, err := h.storage.Keys(r.Context(), uri, r.URL.Query().Get("prefix"))
	if err != nil {
		HandleError(w, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}

	_ = WriteJSON(w, http.StatusOK, KeysResponse{URI: uri, Keys: keys})
}

func (h *Handler) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	handle, err := h.storage.CreateContainer(r.Context(), r.URL.Query().Get("uri"))
	if err != nil {
		HandleError(w, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, handle)
}

func (h *Handler) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	if err := h.storage.DeleteContainer(r.Context(), r.URL.Query().Get("uri"), force); err != nil {
		HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
