package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/api/clients"
	"github.com/ruteri/rpt-registration-mock/api/registrationhandler"
	"github.com/ruteri/rpt-registration-mock/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := chi.NewRouter()
	registrationhandler.NewHandler(registration.NewStore(), nil, logger).RegisterRoutes(mux)
	registrationhandler.NewFailureInjector(registrationhandler.DefaultFailureEndpoints, nil, logger).RegisterRoutes(mux)

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRegisterAndStatus(t *testing.T) {
	srv := newMockServer(t)
	client := clients.NewRegistrationClient(srv.URL, clients.WithInsecureTLS())

	nodes := api.NewNodeSet()
	nodes.Add("2000", api.NodeInfo{Node: "2000", Passwd: "secret"})

	var out bytes.Buffer
	require.NoError(t, register(context.Background(), client, &out, "/", nodes, 4570))
	assert.Equal(t, "Registered: ipaddr=127.0.0.1, port=4570, refresh=60, data=successfully registered\n", out.String())

	out.Reset()
	require.NoError(t, status(context.Background(), client, &out))

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, 1, resp.TotalCount)
	assert.Equal(t, api.RegistrationRecord{Username: "2000", Password: "secret", IP: "127.0.0.1", Port: 4570}, resp.Registrations["2000"])
}

func TestRegister_FailureEndpoint(t *testing.T) {
	srv := newMockServer(t)
	client := clients.NewRegistrationClient(srv.URL, clients.WithInsecureTLS())

	nodes := api.NewNodeSet()
	nodes.Add("2000", api.NodeInfo{Node: "2000"})

	var out bytes.Buffer
	err := register(context.Background(), client, &out, "/unauthorized", nodes, api.DefaultClientPort)
	require.Error(t, err)
	assert.Equal(t, "Not registered: 401 Unauthorized\n", out.String())
}
