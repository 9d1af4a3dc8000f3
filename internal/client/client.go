package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"rider-order-sync/internal/dto"
	"rider-order-sync/internal/model"
)

var (
	// ErrTransientFetch covers network failures, timeouts, 5xx replies and an open breaker.
	ErrTransientFetch = errors.New("transient backend failure")
	// ErrStatusUpdateRejected is returned when the backend refuses a status change.
	ErrStatusUpdateRejected = errors.New("status update rejected")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrNotFound             = errors.New("not found")
)

// StatusError is a non-2xx reply the backend explained.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Message)
}

// Paths are the backend endpoints, relative to the base URL.
type Paths struct {
	RiderOrders string
	UpdateOrder string
	Profile     string
	OrderScan   string
	Login       string
}

// Client talks to the delivery backend REST API.
type Client struct {
	baseURL string
	paths   Paths
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func New(baseURL string, paths Paths, timeout time.Duration) *Client {
	st := gobreaker.Settings{
		Name:     "backend",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Only transport trouble counts against the backend; a refused
		// request is a healthy reply.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransientFetch)
		},
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		paths:   paths,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// WithToken returns a client that authenticates as the session holder.
// The breaker is shared with c.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// RiderOrders fetches every order currently assigned to the session's rider.
func (c *Client) RiderOrders(ctx context.Context) ([]model.Order, error) {
	var env dto.Envelope[[]model.Order]
	if err := c.do(ctx, http.MethodGet, c.paths.RiderOrders, nil, &env); err != nil {
		return nil, fmt.Errorf("fetch rider orders: %w", err)
	}
	if !env.Success {
		return nil, fmt.Errorf("fetch rider orders: %w: %s", ErrTransientFetch, env.Message)
	}
	if env.Data == nil {
		return []model.Order{}, nil
	}
	return env.Data, nil
}

// UpdateOrder submits a status change. The returned order is nil when the
// backend does not echo the record.
func (c *Client) UpdateOrder(ctx context.Context, id string, req dto.UpdateStatusRequest) (*model.Order, error) {
	var env dto.Envelope[*model.Order]
	err := c.do(ctx, http.MethodPut, c.paths.UpdateOrder+url.PathEscape(id), req, &env)
	if err != nil {
		if errors.Is(err, ErrTransientFetch) {
			return nil, fmt.Errorf("update order %s: %w", id, err)
		}
		return nil, fmt.Errorf("update order %s: %w: %w", id, ErrStatusUpdateRejected, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("update order %s: %w: %s", id, ErrStatusUpdateRejected, env.Message)
	}
	if env.Data != nil && env.Data.ID == "" {
		return nil, nil
	}
	return env.Data, nil
}

func (c *Client) RiderProfile(ctx context.Context, riderID string) (*model.Rider, error) {
	var env dto.Envelope[*model.Rider]
	if err := c.do(ctx, http.MethodGet, c.paths.Profile+url.PathEscape(riderID), nil, &env); err != nil {
		return nil, fmt.Errorf("fetch rider profile: %w", err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("fetch rider profile: %w", ErrNotFound)
	}
	return env.Data, nil
}

// ScanOrder looks an order up by the tracking id read from its label.
func (c *Client) ScanOrder(ctx context.Context, trackingID string) (*model.Order, error) {
	var env dto.Envelope[*model.Order]
	if err := c.do(ctx, http.MethodPost, c.paths.OrderScan, dto.ScanRequest{TrackingID: trackingID}, &env); err != nil {
		return nil, fmt.Errorf("scan order %s: %w", trackingID, err)
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, fmt.Errorf("scan order %s: %w", trackingID, ErrNotFound)
	}
	return env.Data, nil
}

// Login exchanges rider credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Session, error) {
	var env dto.Envelope[struct {
		ID string `json:"_id"`
	}]
	if err := c.do(ctx, http.MethodPost, c.paths.Login, dto.LoginRequest{Email: email, Password: password}, &env); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if env.Token == "" || env.Data.ID == "" {
		msg := env.Message
		if msg == "" {
			msg = "missing token or rider id"
		}
		return nil, fmt.Errorf("login: %w: %s", ErrUnauthorized, msg)
	}
	return &model.Session{RiderID: env.Data.ID, Token: env.Token}, nil
}

type reply struct {
	code int
	body []byte
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransientFetch, err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrTransientFetch, err)
		}
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: %v", ErrTransientFetch, statusError(resp.StatusCode, b))
		}
		return reply{code: resp.StatusCode, body: b}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", ErrTransientFetch, err)
		}
		return err
	}

	r := res.(reply)
	switch {
	case r.code == http.StatusUnauthorized || r.code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, statusError(r.code, r.body))
	case r.code == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, statusError(r.code, r.body))
	case r.code >= 400:
		return statusError(r.code, r.body)
	}

	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

const maxErrorBody = 200

func statusError(code int, body []byte) *StatusError {
	var env dto.Envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil || env.Message == "" {
		msg := strings.TrimSpace(string(body))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return &StatusError{Code: code, Message: msg}
	}
	return &StatusError{Code: code, Message: env.Message}
}
