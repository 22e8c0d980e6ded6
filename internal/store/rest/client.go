package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/propertyos/internal/config"
	"github.com/wolfeidau/propertyos/internal/models"
	"github.com/wolfeidau/propertyos/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	restPath = "/rest/v1/"
	userPath = "/auth/v1/user"

	defaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 64 << 10
)

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		s.httpClient = c
	}
}

// Store implements store.Store against the hosted backend's data and auth HTTP APIs.
//
// The caller's access token is forwarded as the bearer credential so the backend's row policies
// apply; anonymous calls carry the public access key instead.
type Store struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// New creates a client for the backend described by cfg. It fails with a
// *config.ConfigurationError when the endpoint or access key is unset or blank.
func New(cfg config.Backend, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		baseURL: cfg.BaseURL(),
		anonKey: strings.TrimSpace(cfg.AnonKey),
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// User resolves the identity behind cred using the auth API.
func (s *Store) User(ctx context.Context, cred store.Credential) (*models.Identity, error) {
	if cred.IsAnonymous() {
		return nil, store.ErrNoUser
	}

	req, err := s.newRequest(ctx, http.MethodGet, s.baseURL+userPath, cred, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &store.Error{Op: "user", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		log.Ctx(ctx).Debug().Int("status", resp.StatusCode).Msg("Auth API rejected access token")
		return nil, store.ErrNoUser
	case resp.StatusCode != http.StatusOK:
		return nil, responseError("user", "", resp)
	}

	var identity models.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, &store.Error{Op: "user", Status: resp.StatusCode, Err: fmt.Errorf("failed to decode user: %w", err)}
	}
	if identity.ID == "" {
		return nil, store.ErrNoUser
	}

	return &identity, nil
}

// Select reads visible rows from the data API.
func (s *Store) Select(ctx context.Context, cred store.Credential, q store.Query) ([]store.Row, error) {
	target, err := s.tableURL(q)
	if err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, http.MethodGet, target, cred, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &store.Error{Op: "select", Table: q.Table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, responseError("select", q.Table, resp)
	}

	rows := []store.Row{}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &store.Error{Op: "select", Table: q.Table, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode rows: %w", err)}
	}

	return rows, nil
}

// Count asks the data API for an exact count without fetching rows.
func (s *Store) Count(ctx context.Context, cred store.Credential, q store.Query) (*int64, error) {
	q.Order = nil
	q.Limit = 0

	target, err := s.tableURL(q)
	if err != nil {
		return nil, err
	}

	req, err := s.newRequest(ctx, http.MethodHead, target, cred, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &store.Error{Op: "count", Table: q.Table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, responseError("count", q.Table, resp)
	}

	return parseContentRange(resp.Header.Get("Content-Range"))
}

// Insert creates one row and returns the stored representation.
func (s *Store) Insert(ctx context.Context, cred store.Credential, table store.Table, row store.Row) (store.Row, error) {
	if err := store.ValidateRow(table, row); err != nil {
		return nil, err
	}

	body, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, s.baseURL+restPath+string(table), cred, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &store.Error{Op: "insert", Table: table, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, responseError("insert", table, resp)
	}

	var rows []store.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, &store.Error{Op: "insert", Table: table, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode inserted row: %w", err)}
	}
	if len(rows) != 1 {
		return nil, &store.Error{Op: "insert", Table: table, Status: resp.StatusCode, Err: fmt.Errorf("expected 1 inserted row, got %d", len(rows))}
	}

	return rows[0], nil
}

func (s *Store) newRequest(ctx context.Context, method, target string, cred store.Credential, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token := cred.AccessToken
	if cred.IsAnonymous() {
		token = s.anonKey
	}

	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (s *Store) tableURL(q store.Query) (string, error) {
	if err := q.Validate(); err != nil {
		return "", err
	}

	params := encodeQuery(q)
	return s.baseURL + restPath + string(q.Table) + "?" + params, nil
}

// errorBody covers the error shapes of both the data API and the auth API.
type errorBody struct {
	Code             any    `json:"code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func responseError(op string, table store.Table, resp *http.Response) error {
	storeErr := &store.Error{Op: op, Table: table, Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body errorBody
	if len(data) > 0 && json.Unmarshal(data, &body) == nil {
		if body.Code != nil {
			storeErr.Code = fmt.Sprint(body.Code)
		}
		storeErr.Message = firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error)
	}

	if storeErr.Message == "" {
		storeErr.Message = fmt.Sprintf("%s %s failed: %s", op, table, http.StatusText(resp.StatusCode))
		if table == "" {
			storeErr.Message = fmt.Sprintf("%s failed: %s", op, http.StatusText(resp.StatusCode))
		}
	}

	return storeErr
}

// parseContentRange reads the total from a header such as "0-24/3573" or "*/0".
// A missing or unknown total ("*") yields nil.
func parseContentRange(header string) (*int64, error) {
	if header == "" {
		return nil, nil
	}

	_, total, ok := strings.Cut(header, "/")
	if !ok {
		return nil, &store.Error{Op: "count", Err: fmt.Errorf("malformed Content-Range %q", header)}
	}
	if total == "*" {
		return nil, nil
	}

	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return nil, &store.Error{Op: "count", Err: errors.Join(fmt.Errorf("malformed Content-Range %q", header), err)}
	}

	return &n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
