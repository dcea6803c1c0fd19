// Package client talks to the student fee API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"student-fee-service/internal/export"
	"student-fee-service/internal/student"

	"github.com/google/uuid"
)

// APIError is a non-2xx answer of the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends token as a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 300 {
			return &APIError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Response, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

// Login exchanges admin credentials for a token and uses it from then on.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", nil, body, &resp); err != nil {
		return "", err
	}
	c.token = resp.Token
	return resp.Token, nil
}

func (c *Client) ListStudents(ctx context.Context, filter student.ListFilter) ([]*student.Student, error) {
	var students []*student.Student
	err := c.do(ctx, http.MethodGet, "/api/students", filterQuery(filter), nil, &students)
	return students, err
}

func (c *Client) GetStudent(ctx context.Context, id uuid.UUID) (*student.Student, error) {
	var st student.Student
	if err := c.do(ctx, http.MethodGet, "/api/students/"+id.String(), nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) CreateStudent(ctx context.Context, req student.CreateStudentRequest) (*student.Student, error) {
	var st student.Student
	if err := c.do(ctx, http.MethodPost, "/api/students", nil, req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) UpdateStudent(ctx context.Context, id uuid.UUID, req student.UpdateStudentRequest) (*student.Student, error) {
	var st student.Student
	if err := c.do(ctx, http.MethodPut, "/api/students/"+id.String(), nil, req, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	return c.do(ctx, http.MethodDelete, "/api/students/"+id.String(), nil, nil, nil)
}

func (c *Client) RecordFee(ctx context.Context, studentID uuid.UUID, req student.FeeRequest) (*student.FeeRecord, error) {
	var rec student.FeeRecord
	if err := c.do(ctx, http.MethodPost, "/api/students/"+studentID.String()+"/fee", nil, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) FeeHistory(ctx context.Context, studentID uuid.UUID) (*student.FeeHistory, error) {
	var history student.FeeHistory
	if err := c.do(ctx, http.MethodGet, "/api/students/"+studentID.String()+"/fee-history", nil, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// Export downloads a csv or xlsx report and returns its body and the file
// name suggested by the server.
func (c *Client) Export(ctx context.Context, format string, filter student.ExportFilter) ([]byte, string, error) {
	query := filterQuery(filter.ListFilter())
	query.Set("format", format)

	resp, err := c.send(ctx, http.MethodGet, "/api/students/export/csv", query, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(data, &env)
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	filename := export.Filename(format)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return data, filename, nil
}

// ExportRows fetches the report as JSON rows.
func (c *Client) ExportRows(ctx context.Context, filter student.ExportFilter) ([]export.Row, error) {
	query := filterQuery(filter.ListFilter())
	query.Set("format", export.FormatJSON)

	var rows []export.Row
	err := c.do(ctx, http.MethodGet, "/api/students/export/csv", query, nil, &rows)
	return rows, err
}

func filterQuery(f student.ListFilter) url.Values {
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("class", f.Class)
	set("feeStatus", string(f.FeeStatus))
	set("month", f.Month)
	if f.Year > 0 {
		q.Set("year", strconv.Itoa(f.Year))
	}
	set("sortBy", f.SortBy)
	set("sortOrder", f.SortOrder)
	return q
}
