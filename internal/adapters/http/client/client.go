// Package client talks to the oarbit HTTP API. Client implements the remote
// session operations the orchestrator drives.
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
	"strconv"
	"strings"
	"time"

	"github.com/okian/oarbit/internal/adapters/http/api"
	"github.com/okian/oarbit/internal/adapters/repository"
	"github.com/okian/oarbit/internal/domain/model"
	"github.com/okian/oarbit/internal/domain/projection"
	"github.com/okian/oarbit/internal/domain/types"
	"github.com/okian/oarbit/internal/domain/validate"
	"github.com/okian/oarbit/pkg/logger"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// Client is an HTTP client for one oarbit server.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// New returns a client for the server at baseURL. A bare host:port is
// treated as http.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBaseURL)
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidBaseURL, baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	c := &Client{
		base:    base,
		http:    &http.Client{},
		timeout: 30 * time.Second,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type idResponse struct {
	ID string `json:"id"`
}

// CreateSession creates a session header.
func (c *Client) CreateSession(ctx context.Context, in model.SessionInput) (string, error) {
	var out idResponse
	if err := c.do(ctx, http.MethodPost, "/sessions", nil, in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AddPiece creates a piece under in.SessionID.
func (c *Client) AddPiece(ctx context.Context, in model.PieceInput) (string, error) {
	var out idResponse
	path := "/sessions/" + url.PathEscape(in.SessionID) + "/pieces"
	if err := c.do(ctx, http.MethodPost, path, nil, in, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// AddBoat creates a boat under in.PieceID.
func (c *Client) AddBoat(ctx context.Context, in model.BoatInput) (string, error) {
	var out idResponse
	path := "/sessions/" + url.PathEscape(in.SessionID) + "/pieces/" + url.PathEscape(in.PieceID) + "/boats"
	if err := c.do(ctx, http.MethodPost, path, nil, api.BoatRequest{BoatInput: in}, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// SetAssignments replaces the crew of a boat.
func (c *Client) SetAssignments(ctx context.Context, boatID, sessionID string, assignments []model.Assignment) error {
	path := "/sessions/" + url.PathEscape(sessionID) + "/boats/" + url.PathEscape(boatID) + "/assignments"
	return c.do(ctx, http.MethodPut, path, nil, api.AssignmentsRequest{Assignments: assignments}, nil)
}

// ProcessSession rates a stored session.
func (c *Client) ProcessSession(ctx context.Context, sessionID string) (model.ProcessResult, error) {
	var out model.ProcessResult
	path := "/sessions/" + url.PathEscape(sessionID) + "/process"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return model.ProcessResult{}, err
	}
	return out, nil
}

// RecalculateAllRatings rebuilds every rating from the stored sessions.
func (c *Client) RecalculateAllRatings(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/ratings/recalculate", nil, nil, nil)
}

// Session reads a stored session graph.
func (c *Client) Session(ctx context.Context, id string) (repository.StoredSession, error) {
	var out repository.StoredSession
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return repository.StoredSession{}, err
	}
	return out, nil
}

// Leaderboard returns the top limit entries.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]types.Entry, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []types.Entry
	if err := c.do(ctx, http.MethodGet, "/ratings", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Rating returns one athlete's entry.
func (c *Client) Rating(ctx context.Context, athleteID string) (types.Entry, error) {
	var out types.Entry
	if err := c.do(ctx, http.MethodGet, "/ratings/"+url.PathEscape(athleteID), nil, nil, &out); err != nil {
		return types.Entry{}, err
	}
	return out, nil
}

// Preview projects the rating effect of draft. It returns
// projection.ErrUnavailable together with the projection when the server
// found nothing to compare.
func (c *Client) Preview(ctx context.Context, draft model.Session) (projection.Projection, error) {
	var out projection.Projection
	if err := c.do(ctx, http.MethodPost, "/preview", nil, api.DraftRequest{Session: draft}, &out); err != nil {
		return projection.Projection{}, err
	}
	if !out.Available {
		return out, projection.ErrUnavailable
	}
	return out, nil
}

// Validate runs the server-side draft checks.
func (c *Client) Validate(ctx context.Context, draft model.Session, athletes []model.Athlete) (validate.DraftReport, error) {
	var out validate.DraftReport
	req := api.DraftRequest{Session: draft, Athletes: athletes}
	if err := c.do(ctx, http.MethodPost, "/validate", nil, req, &out); err != nil {
		return validate.DraftReport{}, err
	}
	return out, nil
}

// Stats returns the server statistics.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := *c.base
	endpoint.Path = c.base.Path + path
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "api call",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp, method, path)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response, method, path string) error {
	se := &StatusError{Method: method, Path: path, Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body api.ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		se.Code = body.Code
		se.Message = body.Message
		return se
	}
	se.Message = strings.TrimSpace(string(data))
	return se
}

// IsRetryable reports whether a failed call may succeed when repeated
// unchanged.
func IsRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= http.StatusInternalServerError
	}
	return errors.Is(err, ErrTransport)
}
