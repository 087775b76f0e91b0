package registrationhandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/rpt-registration-mock/metrics"
)

// FailureEndpoint binds a fixed error response to a path.
type FailureEndpoint struct {
	Path       string
	StatusCode int
	Message    string
}

// DefaultFailureEndpoints are the negative-path endpoints registration clients are tested against.
var DefaultFailureEndpoints = []FailureEndpoint{
	{Path: "/fail", StatusCode: http.StatusInternalServerError, Message: "Internal Server Error"},
	{Path: "/unauthorized", StatusCode: http.StatusUnauthorized, Message: "Unauthorized"},
	{Path: "/notfound", StatusCode: http.StatusNotFound, Message: "Not Found"},
}

// FailureHandler always answers with the same status code and error message.
type FailureHandler struct {
	statusCode int
	message    string
}

func NewFailureHandler(statusCode int, message string) *FailureHandler {
	return &FailureHandler{
		statusCode: statusCode,
		message:    message,
	}
}

// Handle returns the configured response. It ignores the request entirely.
func (f *FailureHandler) Handle() (status int, contentType string, resp []byte) {
	return f.statusCode, contentTypeJSON, errorBody(f.message)
}

// FailureInjector serves a set of FailureEndpoints.
type FailureInjector struct {
	endpoints []FailureEndpoint
	metrics   *metrics.Recorder
	log       *slog.Logger
}

// NewFailureInjector creates an injector for endpoints. recorder may be nil.
func NewFailureInjector(endpoints []FailureEndpoint, recorder *metrics.Recorder, log *slog.Logger) *FailureInjector {
	return &FailureInjector{
		endpoints: endpoints,
		metrics:   recorder,
		log:       log,
	}
}

// RegisterRoutes binds a POST route for every endpoint.
func (fi *FailureInjector) RegisterRoutes(r chi.Router) {
	for _, endpoint := range fi.endpoints {
		r.Post(endpoint.Path, fi.serve(endpoint))
	}
}

func (fi *FailureInjector) serve(endpoint FailureEndpoint) http.HandlerFunc {
	handler := NewFailureHandler(endpoint.StatusCode, endpoint.Message)
	return func(w http.ResponseWriter, r *http.Request) {
		fi.log.Debug("Serving injected failure", "path", endpoint.Path, "status", endpoint.StatusCode)
		fi.metrics.RecordInjectedFailure(endpoint.Path, endpoint.StatusCode)

		status, contentType, resp := handler.Handle()
		writeResponse(w, fi.log, status, contentType, resp)
	}
}
