package registrationhandler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ruteri/rpt-registration-mock/api"
	"github.com/ruteri/rpt-registration-mock/metrics"
	"github.com/ruteri/rpt-registration-mock/registration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRegistrar lets tests make the store misbehave.
type MockRegistrar struct {
	mock.Mock
}

func (m *MockRegistrar) Record(nodeID string, info api.NodeInfo, clientIP string, clientPort int) {
	m.Called(nodeID, info, clientIP, clientPort)
}

func (m *MockRegistrar) Snapshot() (map[string]api.RegistrationRecord, int) {
	args := m.Called()
	return args.Get(0).(map[string]api.RegistrationRecord), args.Int(1)
}

func (m *MockRegistrar) Len() int {
	return m.Called().Int(0)
}

func newTestRouter(t *testing.T, store Registrar) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := chi.NewRouter()
	NewHandler(store, nil, logger).RegisterRoutes(mux)
	NewFailureInjector(DefaultFailureEndpoints, nil, logger).RegisterRoutes(mux)
	return mux
}

func doRequest(t *testing.T, router http.Handler, method, path, remoteAddr, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	t.Cleanup(func() { resp.Body.Close() })
	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, respBody
}

func TestRegistration_EndToEnd(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	resp, body := doRequest(t, router, http.MethodPost, "/", "10.0.0.5:40000",
		`{"port":4570,"data":{"nodes":{"node1":{"node":"alice","passwd":"secret","remote":0}}}}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"ipaddr":"10.0.0.5","port":4570,"refresh":60,"data":"successfully registered"}`, string(body))

	resp, body = doRequest(t, router, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"registrations":{"node1":{"username":"alice","password":"secret","ip":"10.0.0.5","port":4570,"remote":0}},"total_count":1}`, string(body))
}

func TestHandleGet_Empty(t *testing.T) {
	router := newTestRouter(t, registration.NewStore())

	resp, body := doRequest(t, router, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"registrations":{},"total_count":0}`, string(body))
}

func TestHandlePost_DefaultPort(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	resp, body := doRequest(t, router, http.MethodPost, "/", "192.0.2.10:1234", `{"data":{"nodes":{"2000":{}}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result api.RegistrationResponse
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, api.RegistrationResponse{
		IPAddr:  "192.0.2.10",
		Port:    4569,
		Refresh: 60,
		Data:    "successfully registered",
	}, result)

	record, ok := store.Get("2000")
	require.True(t, ok)
	assert.Equal(t, api.RegistrationRecord{IP: "192.0.2.10", Port: 4569}, record)
}

func TestHandlePost_NoNodes(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	resp, _ := doRequest(t, router, http.MethodPost, "/", "192.0.2.10:1234", `{}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	_, total := store.Snapshot()
	assert.Equal(t, 0, total)
}

func TestHandlePost_CountsSubmissions(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	resp, _ := doRequest(t, router, http.MethodPost, "/", "10.0.0.1:1",
		`{"data":{"nodes":{"a":{"node":"a"},"b":{"node":"b"},"c":{"node":"c"}}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	records, total := store.Snapshot()
	assert.Equal(t, 3, total)
	assert.Len(t, records, 3)

	// The same node submitted again overwrites its record and still counts.
	resp, _ = doRequest(t, router, http.MethodPost, "/", "10.0.0.2:1",
		`{"port":5000,"data":{"nodes":{"a":{"node":"a2","passwd":"p","remote":1}}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	records, total = store.Snapshot()
	assert.Equal(t, 4, total)
	assert.Len(t, records, 3)
	assert.Equal(t, api.RegistrationRecord{
		Username: "a2",
		Password: "p",
		IP:       "10.0.0.2",
		Port:     5000,
		Remote:   1,
	}, records["a"])
}

func TestHandlePost_DuplicateWithinPayload(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	resp, _ := doRequest(t, router, http.MethodPost, "/", "10.0.0.1:1",
		`{"data":{"nodes":{"a":{"node":"first"},"a":{"node":"last"}}}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	records, total := store.Snapshot()
	assert.Equal(t, 1, total)
	assert.Equal(t, "last", records["a"].Username)
}

func assertStoreUnchanged(t *testing.T, store *registration.Store) {
	t.Helper()
	records, total := store.Snapshot()
	assert.Equal(t, 1, total)
	assert.Len(t, records, 1)
	assert.Equal(t, "keep", records["existing"].Username)
}

func TestHandlePost_InvalidJSON(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "empty", body: ``},
		{name: "open brace", body: `{`},
		{name: "garbage", body: `not json`},
		{name: "truncated", body: `{"data":{"nodes":{"a":{"node":"al`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := registration.NewStore()
			store.Record("existing", api.NodeInfo{Node: "keep"}, "127.0.0.1", 4569)
			router := newTestRouter(t, store)

			resp, respBody := doRequest(t, router, http.MethodPost, "/", "10.0.0.1:1", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, `{"error":"Invalid JSON"}`, string(respBody))
			assertStoreUnchanged(t, store)
		})
	}
}

func TestHandlePost_MalformedStructure(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{name: "null", body: `null`},
		{name: "array", body: `[1,2,3]`},
		{name: "port string", body: `{"port":"x"}`},
		{name: "data string", body: `{"data":"nodes"}`},
		{name: "nodes array", body: `{"data":{"nodes":["a"]}}`},
		{name: "one bad node", body: `{"data":{"nodes":{"a":{"node":"ok"},"b":7}}}`},
		{name: "null node", body: `{"data":{"nodes":{"a":null}}}`},
		{name: "invalid utf-8", body: "{\"data\":{\"nodes\":{\"a\":{\"node\":\"\xc3\x28\"}}}}"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store := registration.NewStore()
			store.Record("existing", api.NodeInfo{Node: "keep"}, "127.0.0.1", 4569)
			router := newTestRouter(t, store)

			resp, respBody := doRequest(t, router, http.MethodPost, "/", "10.0.0.1:1", tc.body)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			assert.JSONEq(t, `{"error":"Internal server error"}`, string(respBody))
			assertStoreUnchanged(t, store)
		})
	}
}

func TestHandlePost_BodyTooLarge(t *testing.T) {
	store := registration.NewStore()
	router := newTestRouter(t, store)

	body := `{"data":{"nodes":{"a":{"node":"` + strings.Repeat("x", maxBodySize) + `"}}}}`
	resp, respBody := doRequest(t, router, http.MethodPost, "/", "10.0.0.1:1", body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Invalid JSON"}`, string(respBody))
	assert.Equal(t, 0, store.Len())
}

func TestHandlePost_InternalError(t *testing.T) {
	store := new(MockRegistrar)
	store.On("Record", "boom", mock.Anything, "10.0.0.1", 4569).Panic("store exploded")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	handler := NewHandler(store, metrics.NewRecorder("test", reg), logger)

	status, contentType, body := handler.HandlePost([]byte(`{"data":{"nodes":{"boom":{}}}}`), "10.0.0.1")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "application/json", contentType)
	assert.JSONEq(t, `{"error":"Internal server error"}`, string(body))
	assert.NotContains(t, string(body), "exploded")
	store.AssertExpectations(t)
}

func TestHandlePost_ProcessesInSubmissionOrder(t *testing.T) {
	store := new(MockRegistrar)
	var order []string
	store.On("Record", mock.Anything, mock.Anything, "10.0.0.1", 4569).Run(func(args mock.Arguments) {
		order = append(order, args.String(0))
	})
	store.On("Len").Return(3)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(store, nil, logger)

	status, _, _ := handler.HandlePost([]byte(`{"data":{"nodes":{"z":{},"a":{},"m":{}}}}`), "10.0.0.1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"z", "a", "m"}, order)
}

func TestHandlePost_LogsEveryNode(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	handler := NewHandler(registration.NewStore(), nil, logger)

	status, _, _ := handler.HandlePost([]byte(`{"port":4570,"data":{"nodes":{"node1":{"node":"alice"},"node2":{"node":"bob"}}}}`), "10.0.0.5")
	require.Equal(t, http.StatusOK, status)

	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry["msg"] == "Registration received" {
			lines = append(lines, entry)
		}
	}

	require.Len(t, lines, 2)
	assert.Equal(t, "node1", lines[0]["node"])
	assert.Equal(t, "alice", lines[0]["username"])
	assert.Equal(t, "10.0.0.5", lines[0]["ip"])
	assert.Equal(t, float64(4570), lines[0]["port"])
	assert.Equal(t, "node2", lines[1]["node"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)

	req.RemoteAddr = "10.0.0.5:4321"
	assert.Equal(t, "10.0.0.5", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:4321"
	assert.Equal(t, "2001:db8::1", ClientIP(req))

	req.RemoteAddr = "203.0.113.7"
	assert.Equal(t, "203.0.113.7", ClientIP(req))
}
