package clients

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/api/registrationhandler"
	"github.com/ruteri/rpt-registration-mock/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockServer(t *testing.T, tlsEnabled bool) (*httptest.Server, *registration.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := registration.NewStore()

	mux := chi.NewRouter()
	registrationhandler.NewHandler(store, nil, logger).RegisterRoutes(mux)
	registrationhandler.NewFailureInjector(registrationhandler.DefaultFailureEndpoints, nil, logger).RegisterRoutes(mux)

	var srv *httptest.Server
	if tlsEnabled {
		srv = httptest.NewTLSServer(mux)
	} else {
		srv = httptest.NewServer(mux)
	}
	t.Cleanup(srv.Close)
	return srv, store
}

func TestRegistrationClient_RegisterOverTLS(t *testing.T) {
	srv, store := newMockServer(t, true)
	client := NewRegistrationClient(srv.URL+"/", WithInsecureTLS())

	nodes := api.NewNodeSet()
	nodes.Add("2000", api.NodeInfo{Node: "2000", Passwd: "secret"})
	nodes.Add("2001", api.NodeInfo{Node: "2001", Passwd: "other", Remote: 1})

	resp, err := client.Register(context.Background(), nodes, 4570)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", resp.IPAddr)
	assert.Equal(t, 4570, resp.Port)
	assert.Equal(t, api.RefreshInterval, resp.Refresh)
	assert.Equal(t, api.RegisteredMessage, resp.Data)

	record, ok := store.Get("2001")
	require.True(t, ok)
	assert.Equal(t, api.RegistrationRecord{Username: "2001", Password: "other", IP: "127.0.0.1", Port: 4570, Remote: 1}, record)

	status, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, status.TotalCount)
	assert.Len(t, status.Registrations, 2)
}

func TestRegistrationClient_RejectsUntrustedCert(t *testing.T) {
	srv, _ := newMockServer(t, true)
	client := NewRegistrationClient(srv.URL)

	_, err := client.Register(context.Background(), api.NewNodeSet(), api.DefaultClientPort)
	require.Error(t, err)

	var reqErr *RequestError
	assert.False(t, errors.As(err, &reqErr))
}

func TestRegistrationClient_FailureEndpoints(t *testing.T) {
	srv, _ := newMockServer(t, false)
	client := NewRegistrationClient(srv.URL)

	for _, endpoint := range registrationhandler.DefaultFailureEndpoints {
		t.Run(endpoint.Path, func(t *testing.T) {
			_, err := client.Post(context.Background(), endpoint.Path, nil)
			require.Error(t, err)

			var reqErr *RequestError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, endpoint.StatusCode, reqErr.StatusCode)
			assert.Equal(t, endpoint.Message, reqErr.Message)
		})
	}
}

func TestRegistrationClient_InvalidJSON(t *testing.T) {
	srv, store := newMockServer(t, false)
	client := NewRegistrationClient(srv.URL)

	_, err := client.Post(context.Background(), "/", []byte("{not json"))

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.StatusCode)
	assert.Equal(t, "Invalid JSON", reqErr.Message)
	assert.Equal(t, 0, store.Len())
}

func TestRegistrationClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRegistrationClient(srv.URL).Status(context.Background())

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadGateway, reqErr.StatusCode)
	assert.Equal(t, "gateway down\n", reqErr.Message)
}
