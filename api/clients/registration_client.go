package clients

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ruteri/rpt-registration-mock/api"
)

const (
	// Timeouts used by a registering node.
	dialTimeout    = time.Second
	requestTimeout = 5 * time.Second
)

// RequestError is returned when the server answers with a non-200 status.
type RequestError struct {
	StatusCode int

	// Message is the "error" field of the response, or the raw body if it
	// was not an error response.
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("registration endpoint returned error %d: %s", e.StatusCode, e.Message)
}

// RegistrationClient talks to a registration server.
type RegistrationClient struct {
	// ServerAddr is the base URL of the registration server.
	ServerAddr string

	HTTPClient *http.Client
}

type ClientOption func(*http.Transport)

// WithInsecureTLS accepts any server certificate. The mock server uses a
// self-signed one.
func WithInsecureTLS() ClientOption {
	return func(t *http.Transport) {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
}

func NewRegistrationClient(serverAddr string, opts ...ClientOption) *RegistrationClient {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
	}
	for _, opt := range opts {
		opt(transport)
	}

	return &RegistrationClient{
		ServerAddr: strings.TrimSuffix(serverAddr, "/"),
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
	}
}

// Register submits nodes with the node's port.
func (c *RegistrationClient) Register(ctx context.Context, nodes *api.NodeSet, port int) (*api.RegistrationResponse, error) {
	body, err := json.Marshal(api.RegistrationRequest{
		Port: &port,
		Data: &api.RegistrationData{Nodes: nodes},
	})
	if err != nil {
		return nil, fmt.Errorf("could not encode registration: %w", err)
	}

	return c.Post(ctx, "/", body)
}

// Post sends a raw body to path and parses a registration response. It is
// also how the failure endpoints are exercised.
func (c *RegistrationClient) Post(ctx context.Context, path string, body []byte) (*api.RegistrationResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.ServerAddr+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var parsedResponse api.RegistrationResponse
	if err := json.Unmarshal(respBody, &parsedResponse); err != nil {
		return nil, fmt.Errorf("could not parse registration response: %w", err)
	}
	return &parsedResponse, nil
}

// Status fetches the server's registration table.
func (c *RegistrationClient) Status(ctx context.Context) (*api.StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ServerAddr+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("could not initialize request: %w", err)
	}

	respBody, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var status api.StatusResponse
	if err := json.Unmarshal(respBody, &status); err != nil {
		return nil, fmt.Errorf("could not parse status response: %w", err)
	}
	return &status, nil
}

func (c *RegistrationClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not request registration endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
			return nil, &RequestError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return nil, &RequestError{StatusCode: resp.StatusCode, Message: string(body)}
	}
	return body, nil
}
