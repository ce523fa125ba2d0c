// Package geocode resolves coordinates to human-readable addresses through
// an external reverse-geocoding provider. Provider failures degrade to a
// coordinate-string fallback; they are never fatal to the caller.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/fieldserve/workflow-service/internal/config"
	apperrors "github.com/fieldserve/workflow-service/pkg/util/errorutil"
)

// Resolver turns a coordinate pair into a display address.
type Resolver interface {
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error)
}

// Client calls a nominatim-compatible reverse endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient builds a resolver. An empty base URL yields a client that always
// falls back to coordinate strings.
func NewClient(cfg config.GeocodeConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout()},
		logger:  logger,
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode resolves an address, or returns a GeocodingError the caller
// should absorb via FallbackAddress.
func (c *Client) ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error) {
	if c.baseURL == "" {
		return "", apperrors.NewGeocodingError(fmt.Errorf("no provider configured"))
	}

	endpoint := fmt.Sprintf("%s/reverse?%s", c.baseURL, url.Values{
		"lat":    {fmt.Sprintf("%.7f", latitude)},
		"lon":    {fmt.Sprintf("%.7f", longitude)},
		"format": {"jsonv2"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", apperrors.NewGeocodingError(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NewGeocodingError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.NewGeocodingError(fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var parsed reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.NewGeocodingError(err)
	}
	if parsed.DisplayName == "" {
		return "", apperrors.NewGeocodingError(fmt.Errorf("empty display name"))
	}
	return parsed.DisplayName, nil
}

// FallbackAddress is the degraded address used when the provider fails.
func FallbackAddress(latitude, longitude float64) string {
	return fmt.Sprintf("%.7f,%.7f", latitude, longitude)
}
