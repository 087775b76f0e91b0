package registrationhandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/metrics"
	"github.com/ruteri/rpt-registration-mock/registration"
)

const (
	contentTypeJSON = "application/json"

	// maxBodySize is the maximum allowed request body size (1MB).
	maxBodySize = 1024 * 1024

	invalidJSONMessage   = "Invalid JSON"
	internalErrorMessage = "Internal server error"
)

// Registrar is the state the handler reads and writes. *registration.Store
// implements it.
type Registrar interface {
	Record(nodeID string, info api.NodeInfo, clientIP string, clientPort int)
	Snapshot() (map[string]api.RegistrationRecord, int)
	Len() int
}

// Handler processes registration submissions and status queries.
type Handler struct {
	store   Registrar
	metrics *metrics.Recorder
	log     *slog.Logger
}

// NewHandler creates a registration handler backed by store. recorder may be nil.
func NewHandler(store Registrar, recorder *metrics.Recorder, log *slog.Logger) *Handler {
	return &Handler{
		store:   store,
		metrics: recorder,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.ServePost)
	r.Get("/", h.ServeGet)
}

// ServePost reads the body and client address from r and answers with HandlePost.
func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		h.log.Warn("Failed to read request body", "err", err)
		h.metrics.RecordInvalidPayload()
		writeResponse(w, h.log, http.StatusBadRequest, contentTypeJSON, errorBody(invalidJSONMessage))
		return
	}

	status, contentType, resp := h.HandlePost(body, ClientIP(r))
	writeResponse(w, h.log, status, contentType, resp)
}

func (h *Handler) ServeGet(w http.ResponseWriter, r *http.Request) {
	status, contentType, resp := h.HandleGet()
	writeResponse(w, h.log, status, contentType, resp)
}

// HandlePost registers every node in body under clientIP.
//
// Response codes:
//   - 200 with api.RegistrationResponse on success
//   - 400 {"error":"Invalid JSON"} if body is not parseable JSON
//   - 500 {"error":"Internal server error"} if body is JSON of the wrong shape,
//     or on any other failure
func (h *Handler) HandlePost(body []byte, clientIP string) (status int, contentType string, resp []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("Registration handling panicked", "panic", rec, "ip", clientIP)
			h.metrics.RecordInternalError()
			status, contentType, resp = http.StatusInternalServerError, contentTypeJSON, errorBody(internalErrorMessage)
		}
	}()

	req, err := registration.ParseRequest(body)
	switch {
	case errors.Is(err, registration.ErrInvalidPayload):
		h.log.Info("Rejected registration payload", "err", err, "ip", clientIP)
		h.metrics.RecordInvalidPayload()
		return http.StatusBadRequest, contentTypeJSON, errorBody(invalidJSONMessage)
	case err != nil:
		h.log.Error("Failed to process registration payload", "err", err, "ip", clientIP)
		h.metrics.RecordInternalError()
		return http.StatusInternalServerError, contentTypeJSON, errorBody(internalErrorMessage)
	}

	clientPort := req.ClientPort()
	nodes := req.Nodes()
	for _, nodeID := range nodes.IDs() {
		info, _ := nodes.Get(nodeID)
		h.store.Record(nodeID, info, clientIP, clientPort)
		h.metrics.RecordSubmission()

		h.log.Info("Registration received",
			"node", nodeID,
			"username", info.Node,
			"ip", clientIP,
			"port", clientPort)
	}
	h.metrics.SetRegisteredNodes(h.store.Len())

	resp, err = json.Marshal(api.RegistrationResponse{
		IPAddr:  clientIP,
		Port:    clientPort,
		Refresh: api.RefreshInterval,
		Data:    api.RegisteredMessage,
	})
	if err != nil {
		h.log.Error("Failed to encode response", "err", err)
		h.metrics.RecordInternalError()
		return http.StatusInternalServerError, contentTypeJSON, errorBody(internalErrorMessage)
	}

	return http.StatusOK, contentTypeJSON, resp
}

// HandleGet reports the current registrations and submission count.
func (h *Handler) HandleGet() (status int, contentType string, resp []byte) {
	records, total := h.store.Snapshot()

	resp, err := json.Marshal(api.StatusResponse{
		Registrations: records,
		TotalCount:    total,
	})
	if err != nil {
		h.log.Error("Failed to encode status", "err", err)
		return http.StatusInternalServerError, contentTypeJSON, errorBody(internalErrorMessage)
	}
	return http.StatusOK, contentTypeJSON, resp
}

// ClientIP returns the host part of r.RemoteAddr, or RemoteAddr itself when it
// carries no port (as after middleware.RealIP).
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func errorBody(message string) []byte {
	// Marshalling a single string field cannot fail.
	body, _ := json.Marshal(api.ErrorResponse{Error: message})
	return body
}

func writeResponse(w http.ResponseWriter, log *slog.Logger, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		log.Debug("Failed to write response", "err", err)
	}
}
