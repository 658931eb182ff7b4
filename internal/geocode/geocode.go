package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/cairnhealth/cairn/internal/model"
)

var (
	// ErrNotConfigured is returned when no API license key is set.
	ErrNotConfigured = errors.New("geocoding not configured")

	// ErrNoMatch is returned when the address could not be resolved to
	// coordinates.
	ErrNoMatch = errors.New("no geocoding match for address")
)

// Config holds geocoding service configuration from environment variables.
type Config struct {
	LicenseKey string
	Country    string // ISO country code used when the address omits one
}

// Result is a resolved address.
type Result struct {
	Coordinate       model.Coordinate
	FormattedAddress string
}

// Service resolves free-form addresses to coordinates through the Melissa
// Global Address API. Transient failures are retried with backoff; a missing
// license key makes every call fail fast with ErrNotConfigured.
type Service struct {
	config  Config
	client  *http.Client
	baseURL string
}

// NewService creates a new geocoding service with the given configuration.
func NewService(cfg Config) *Service {
	if cfg.Country == "" {
		cfg.Country = "US"
	}
	return &Service{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: "https://address.melissadata.net/v3/WEB/GlobalAddress/doGlobalAddress",
	}
}

// Configured reports whether a license key is present.
func (s *Service) Configured() bool {
	return s.config.LicenseKey != ""
}

type apiResponse struct {
	Records []struct {
		Results          string `json:"Results"`
		FormattedAddress string `json:"FormattedAddress"`
		Latitude         string `json:"Latitude"`
		Longitude        string `json:"Longitude"`
	} `json:"Records"`
}

// Resolve geocodes a single free-form address. Server errors and network
// failures are retried up to three times before giving up.
func (s *Service) Resolve(ctx context.Context, address string) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	var resp apiResponse
	backoff := retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		return s.fetch(ctx, address, &resp)
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Records) == 0 {
		return nil, ErrNoMatch
	}
	rec := resp.Records[0]

	lat, latErr := strconv.ParseFloat(rec.Latitude, 64)
	lon, lonErr := strconv.ParseFloat(rec.Longitude, 64)
	if latErr != nil || lonErr != nil {
		return nil, ErrNoMatch
	}

	return &Result{
		Coordinate:       model.Coordinate{Lat: lat, Lon: lon},
		FormattedAddress: rec.FormattedAddress,
	}, nil
}

func (s *Service) fetch(ctx context.Context, address string, out *apiResponse) error {
	q := url.Values{}
	q.Set("id", s.config.LicenseKey)
	q.Set("a1", address)
	q.Set("ctry", s.config.Country)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return retry.RetryableError(fmt.Errorf("geocode API request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return retry.RetryableError(fmt.Errorf("geocode API returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("geocode API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode geocode response: %w", err)
	}
	return nil
}
