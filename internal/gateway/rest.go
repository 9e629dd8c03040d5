package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/savegress/vitalink/pkg/models"
)

// ErrBadStatus marks a non-200 reply from the gateway REST surface
var ErrBadStatus = errors.New("gateway returned bad status")

// VitalsFetcher asks the source of truth for the live vitals
type VitalsFetcher interface {
	FetchCurrentVitals(ctx context.Context) (models.VitalsSnapshot, error)
}

// RESTClient calls the gateway's REST surface. The live-vitals query
// path deliberately bypasses the cached store and asks the device
// fresh.
type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTClient creates a client for the gateway REST surface
func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RESTClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// FetchCurrentVitals performs GET /get_current_vitals and unwraps the
// current_vitals envelope.
func (c *RESTClient) FetchCurrentVitals(ctx context.Context) (models.VitalsSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/get_current_vitals", nil)
	if err != nil {
		return models.VitalsSnapshot{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return models.VitalsSnapshot{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.VitalsSnapshot{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var envelope struct {
		CurrentVitals models.VitalsSnapshot `json:"current_vitals"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return models.VitalsSnapshot{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return envelope.CurrentVitals, nil
}
