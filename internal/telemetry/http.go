package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
)

// Client talks to the upstream owner API over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an upstream API client with a bounded per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Open validates the credential by listing the account's vehicles and returns
// a session bound to it.
func (c *Client) Open(ctx context.Context, token string) (Session, error) {
	s := &httpSession{client: c, token: token}
	if _, err := s.Vehicles(ctx); err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	return s, nil
}

type httpSession struct {
	client *Client
	token  string
}

func (s *httpSession) Vehicles(ctx context.Context) ([]VehicleInfo, error) {
	var out struct {
		Response []VehicleInfo `json:"response"`
	}
	if err := s.get(ctx, "/api/1/vehicles", &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}

func (s *httpSession) Wake(ctx context.Context, vehicleID string) error {
	path := fmt.Sprintf("/api/1/vehicles/%s/wake_up", vehicleID)
	return s.do(ctx, http.MethodPost, path, nil)
}

func (s *httpSession) Fetch(ctx context.Context, vehicleID string, kind snapshot.Kind) (map[string]interface{}, error) {
	path := fmt.Sprintf("/api/1/vehicles/%s/data_request/%s", vehicleID, kind.FetchCommand())
	var out struct {
		Response map[string]interface{} `json:"response"`
	}
	if err := s.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Response, nil
}

func (s *httpSession) get(ctx context.Context, path string, out interface{}) error {
	return s.do(ctx, http.MethodGet, path, out)
}

func (s *httpSession) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, s.client.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrCredentialRejected
	case resp.StatusCode == http.StatusNotFound:
		return ErrUnknownVehicle
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusRequestTimeout:
		return fmt.Errorf("%w: upstream returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	return nil
}
