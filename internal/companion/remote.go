// Package companion implements the patient-device client of the hub:
// remote-first reads with a local mirror fallback, an operation log for
// offline mutations, and a local geofence check when the hub is out of
// reach.
package companion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cairnhealth/cairn/internal/geofence"
	"github.com/cairnhealth/cairn/internal/model"
)

// ErrUnavailable marks network failures and hub-side errors. Callers fall
// back to the local mirror when they see it; any other error is a definitive
// hub answer (validation failure, not found) and must not be masked by
// cached data.
var ErrUnavailable = errors.New("hub unavailable")

// Client is the REST client for the hub API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Health checks hub reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// ZoneRequest is the wire shape for creating or updating a safe zone.
// Coordinates use GeoJSON order ([longitude, latitude]).
type ZoneRequest struct {
	PatientID   int64     `json:"patient_id,omitempty"`
	Name        string    `json:"name,omitempty"`
	Address     string    `json:"address,omitempty"`
	Coordinates []float64 `json:"coordinates,omitempty"`
	Radius      float64   `json:"radius,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
}

func (c *Client) ListSafeZones(ctx context.Context, patientID int64) ([]model.SafeZone, error) {
	var zones []model.SafeZone
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/patients/%d/safe-zones", patientID), nil, &zones)
	return zones, err
}

func (c *Client) CreateSafeZone(ctx context.Context, req ZoneRequest) (*model.SafeZone, error) {
	var zone model.SafeZone
	if err := c.do(ctx, http.MethodPost, "/api/safe-zones", req, &zone); err != nil {
		return nil, err
	}
	return &zone, nil
}

func (c *Client) UpdateSafeZone(ctx context.Context, id int64, req ZoneRequest) (*model.SafeZone, error) {
	var zone model.SafeZone
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/safe-zones/%d", id), req, &zone); err != nil {
		return nil, err
	}
	return &zone, nil
}

func (c *Client) DeleteSafeZone(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/safe-zones/%d", id), nil, nil)
}

// AlertRequest is the wire shape for creating an alert.
type AlertRequest struct {
	PatientID   int64           `json:"patient_id"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Priority    string          `json:"priority,omitempty"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

// AlertPage is one page of a patient's alert history.
type AlertPage struct {
	Alerts     []model.Alert `json:"alerts"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

func (c *Client) ListAlerts(ctx context.Context, patientID int64) (*AlertPage, error) {
	var page AlertPage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/patients/%d/alerts", patientID), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) CreateAlert(ctx context.Context, req AlertRequest) (*model.Alert, error) {
	var a model.Alert
	if err := c.do(ctx, http.MethodPost, "/api/alerts", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (c *Client) UpdateAlertStatus(ctx context.Context, id int64, status, notes string) (*model.Alert, error) {
	body := map[string]string{"status": status, "resolution_notes": notes}
	var a model.Alert
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/alerts/%d/status", id), body, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// PersonRequest is the wire shape for creating a user.
type PersonRequest struct {
	UID       string `json:"uid"`
	Type      string `json:"type"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (c *Client) CreatePerson(ctx context.Context, req PersonRequest) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodPost, "/api/users", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetPerson(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d", id), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) GetDirectory(ctx context.Context, patientID int64) (*model.DirectoryRecord, error) {
	var rec model.DirectoryRecord
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/patients/%d/directory", patientID), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CheckLocation reports a position to the hub for evaluation. Coordinates
// use GeoJSON order.
func (c *Client) CheckLocation(ctx context.Context, patientID int64, location model.Coordinate) (*geofence.Evaluation, error) {
	body := map[string]any{
		"patient_id":  patientID,
		"coordinates": []float64{location.Lon, location.Lat},
	}
	var eval geofence.Evaluation
	if err := c.do(ctx, http.MethodPost, "/api/agent/check-location", body, &eval); err != nil {
		return nil, err
	}
	return &eval, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: hub returned %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("hub returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("hub returned %d", resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
