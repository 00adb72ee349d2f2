// Package client provides an HTTP client for the ShowingHive REST API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/evcraddock/showinghive/internal/block"
	"github.com/evcraddock/showinghive/internal/dashboard"
	"github.com/evcraddock/showinghive/internal/feedback"
	"github.com/evcraddock/showinghive/internal/property"
	"github.com/evcraddock/showinghive/internal/showing"
	"github.com/evcraddock/showinghive/internal/tour"
)

// Client is an HTTP client for the ShowingHive API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Error is a non-2xx response from the server.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// Properties

// ListProperties returns all properties, or only the caller's when mine is set.
func (c *Client) ListProperties(mine bool) ([]*property.Property, error) {
	path := "/api/properties"
	if mine {
		path += "?mine=true"
	}
	var props []*property.Property
	if err := c.get(path, &props); err != nil {
		return nil, err
	}
	return props, nil
}

// GetProperty returns one property.
func (c *Client) GetProperty(id string) (*property.Property, error) {
	var p property.Property
	if err := c.get("/api/properties/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AddProperty creates a property owned by the caller.
func (c *Client) AddProperty(name, address string) (*property.Property, error) {
	body := map[string]string{"name": name, "address": address}
	var p property.Property
	if err := c.send("POST", "/api/properties", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProperty removes a property and everything booked on it.
func (c *Client) DeleteProperty(id string) error {
	return c.send("DELETE", "/api/properties/"+url.PathEscape(id), nil, nil)
}

// Blocked times

// BlockRequest describes a blocked time to add. Times use the server's
// accepted formats.
type BlockRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
	RRule string `json:"rrule,omitempty"`
	Note  string `json:"note,omitempty"`
}

// ListBlocks returns the blocked times of a property.
func (c *Client) ListBlocks(propertyID string) ([]*block.Block, error) {
	var blocks []*block.Block
	if err := c.get("/api/properties/"+url.PathEscape(propertyID)+"/blocks", &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// AddBlock blocks time on a property.
func (c *Client) AddBlock(propertyID string, req BlockRequest) (*block.Block, error) {
	var b block.Block
	if err := c.send("POST", "/api/properties/"+url.PathEscape(propertyID)+"/blocks", req, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// DeleteBlock removes a blocked time.
func (c *Client) DeleteBlock(propertyID, blockID string) error {
	return c.send("DELETE", "/api/properties/"+url.PathEscape(propertyID)+"/blocks/"+url.PathEscape(blockID), nil, nil)
}

// Dashboard returns the seller dashboard for a property.
func (c *Client) Dashboard(propertyID string) (*dashboard.Dashboard, error) {
	var d dashboard.Dashboard
	if err := c.get("/api/properties/"+url.PathEscape(propertyID)+"/dashboard", &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Showings

// ShowingFilter narrows ListShowings.
type ShowingFilter struct {
	PropertyID string
	Status     string
}

// ListShowings returns showings, optionally filtered.
func (c *Client) ListShowings(f ShowingFilter) ([]*showing.Showing, error) {
	q := url.Values{}
	if f.PropertyID != "" {
		q.Set("property_id", f.PropertyID)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	path := "/api/showings"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var list []*showing.Showing
	if err := c.get(path, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetShowing returns a showing with its feedback.
func (c *Client) GetShowing(id string) (*dashboard.ShowingWithFeedback, error) {
	var sh dashboard.ShowingWithFeedback
	if err := c.get("/api/showings/"+url.PathEscape(id), &sh); err != nil {
		return nil, err
	}
	return &sh, nil
}

// RequestShowing books a pending showing.
func (c *Client) RequestShowing(in showing.RequestInput) (*showing.Showing, error) {
	var sh showing.Showing
	if err := c.send("POST", "/api/showings", in, &sh); err != nil {
		return nil, err
	}
	return &sh, nil
}

// Approve approves a pending showing and returns it with its lockbox code.
func (c *Client) Approve(id string) (*showing.Showing, error) {
	return c.transition(id, "approve", nil)
}

// Decline declines a pending showing.
func (c *Client) Decline(id string) (*showing.Showing, error) {
	return c.transition(id, "decline", nil)
}

// Reschedule moves a showing to a new start time.
func (c *Client) Reschedule(id, scheduledAt string) (*showing.Showing, error) {
	return c.transition(id, "reschedule", map[string]string{"scheduled_at": scheduledAt})
}

func (c *Client) transition(id, action string, body interface{}) (*showing.Showing, error) {
	var sh showing.Showing
	if err := c.send("POST", "/api/showings/"+url.PathEscape(id)+"/"+action, body, &sh); err != nil {
		return nil, err
	}
	return &sh, nil
}

// Code returns the lockbox code of an approved showing.
func (c *Client) Code(id string) (*showing.Code, error) {
	var code showing.Code
	if err := c.get("/api/showings/"+url.PathEscape(id)+"/code", &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// Feedback

// AddFeedback submits feedback for a showing.
func (c *Client) AddFeedback(showingID string, rating int, comment string) (*feedback.Feedback, error) {
	body := map[string]interface{}{"rating": rating, "comment": comment}
	var f feedback.Feedback
	if err := c.send("POST", "/api/showings/"+url.PathEscape(showingID)+"/feedback", body, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFeedback returns the feedback left for a showing.
func (c *Client) ListFeedback(showingID string) ([]*feedback.Feedback, error) {
	var list []*feedback.Feedback
	if err := c.get("/api/showings/"+url.PathEscape(showingID)+"/feedback", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Tours

// CreateTour builds an itinerary from approved showings.
func (c *Client) CreateTour(buyerName string, showingIDs []string) (*tour.Tour, error) {
	body := map[string]interface{}{"buyer_name": buyerName, "showing_ids": showingIDs}
	var t tour.Tour
	if err := c.send("POST", "/api/tours", body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTours returns all tours.
func (c *Client) ListTours() ([]*tour.Tour, error) {
	var list []*tour.Tour
	if err := c.get("/api/tours", &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetTour returns one tour.
func (c *Client) GetTour(id string) (*tour.Tour, error) {
	var t tour.Tour
	if err := c.get("/api/tours/"+url.PathEscape(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// TourCalendar returns the tour as an iCalendar document.
func (c *Client) TourCalendar(id string) ([]byte, error) {
	req, err := http.NewRequest("GET", c.baseURL+"/api/tours/"+url.PathEscape(id)+"/calendar.ics", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(req)
}

// get performs a GET request and decodes the response.
func (c *Client) get(path string, result interface{}) error {
	req, err := http.NewRequest("GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return c.decode(req, result)
}

// send performs a request with an optional JSON body and decodes the response.
func (c *Client) send(method, path string, body interface{}, result interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.decode(req, result)
}

func (c *Client) decode(req *http.Request, result interface{}) error {
	respBody, err := c.do(req)
	if err != nil {
		return err
	}
	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// do executes an HTTP request with the auth header and returns the body of
// a successful response.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Warn("closing response body", "err", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := fmt.Sprintf("server error: %s", http.StatusText(resp.StatusCode))
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	return respBody, nil
}
