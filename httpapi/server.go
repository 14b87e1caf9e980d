package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/opaqued"
	"github.com/sealbox/opaqued/logging"
)

// maxBodyBytes bounds request bodies. Protocol messages plus a bundle fit
// comfortably; anything larger is abuse.
const maxBodyBytes = 1 << 20

// Engine is the subset of the handshake engine the HTTP layer needs.
type Engine interface {
	RegisterStart(ctx context.Context, identifier string, request []byte) ([]byte, error)
	RegisterFinish(ctx context.Context, identifier string, upload, bundle []byte) error
	LoginStart(ctx context.Context, identifier string, request []byte) (*opaqued.LoginStartResult, error)
	LoginFinish(ctx context.Context, identifier, token string, finalization []byte) (*opaqued.LoginFinishResult, error)
	Ready(ctx context.Context) (map[string]string, bool)
}

// Handler serves the JSON API for a single engine.
type Handler struct {
	engine Engine
	log    logging.Logger
	mux    *http.ServeMux
}

// New builds the route table. A nil logger disables request logging.
func New(engine Engine, log logging.Logger) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	h := &Handler{engine: engine, log: log, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /auth/register/start", h.registerStart)
	h.mux.HandleFunc("POST /auth/register/finish", h.registerFinish)
	h.mux.HandleFunc("POST /auth/login/start", h.loginStart)
	h.mux.HandleFunc("POST /auth/login/finish", h.loginFinish)
	h.mux.HandleFunc("GET /health/live", h.healthLive)
	h.mux.HandleFunc("GET /health/ready", h.healthReady)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w.Header())
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	requestID := uuid.NewString()
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	h.mux.ServeHTTP(rec, r)

	h.log.Info(r.Context(), "request",
		"id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration", time.Since(start))
}

func (h *Handler) registerStart(w http.ResponseWriter, r *http.Request) {
	var req registerStartRequest
	if !h.decode(w, r, &req) {
		return
	}

	response, err := h.engine.RegisterStart(r.Context(), req.ClientIdentifier, req.RegistrationRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, registerStartResponse{RegistrationResponse: response})
}

func (h *Handler) registerFinish(w http.ResponseWriter, r *http.Request) {
	var req registerFinishRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.engine.RegisterFinish(r.Context(), req.ClientIdentifier, req.RegistrationRecord, req.EncryptedBundle); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, registerFinishResponse{Success: true})
}

func (h *Handler) loginStart(w http.ResponseWriter, r *http.Request) {
	var req loginStartRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.engine.LoginStart(r.Context(), req.ClientIdentifier, req.StartLoginRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loginStartResponse{
		LoginResponse: result.Response,
		StateKey:      result.SessionToken,
	})
}

func (h *Handler) loginFinish(w http.ResponseWriter, r *http.Request) {
	var req loginFinishRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.engine.LoginFinish(r.Context(), req.ClientIdentifier, req.StateKey, req.FinishLoginRequest)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, loginFinishResponse{
		Success:         true,
		SessionKey:      result.SessionKey,
		EncryptedBundle: result.Bundle,
	})
}

func (h *Handler) healthLive(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) healthReady(w http.ResponseWriter, r *http.Request) {
	checks, ok := h.engine.Ready(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Checks: checks})
}

// decode reads and unmarshals the request body. A false return means a
// response has already been written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

// writeError collapses engine errors onto the coarse public status classes.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rateErr *opaqued.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		seconds := int(rateErr.RetryAfter / time.Second)
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		h.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests"})
	case errors.Is(err, opaqued.ErrInvalidInput):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid clientIdentifier"})
	case errors.Is(err, opaqued.ErrProtocolFailure):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid protocol message"})
	case errors.Is(err, opaqued.ErrRegistrationFailed):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Registration failed"})
	case errors.Is(err, opaqued.ErrSessionExpired):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Session expired"})
	case errors.Is(err, opaqued.ErrAuthenticationFailed):
		h.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication failed"})
	case errors.Is(err, opaqued.ErrStoreUnavailable):
		h.log.Error(r.Context(), "backend unavailable", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Service unavailable"})
	default:
		h.log.Error(r.Context(), "unhandled error", "path", r.URL.Path, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal error"})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error(context.Background(), "response encode failed", "err", err)
	}
}

func setCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
