package contentstore

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
	"time"

	"go.uber.org/zap"
)

const enrollmentPageSize = 100

// Client talks to the remote content store REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a content store client. timeout bounds each HTTP round trip.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetCourse fetches a course record with its slots populated.
func (c *Client) GetCourse(ctx context.Context, courseID string) (Record, error) {
	query := url.Values{"populate": []string{fieldTurmas}}
	var envelope recordEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID), query, nil, &envelope); err != nil {
		return nil, err
	}
	if envelope.Data == nil {
		return nil, fmt.Errorf("%w: course %s has no data", ErrInvalidResponse, courseID)
	}
	return envelope.Data, nil
}

// UpdateCourse writes the full record. Callers must pass a cleaned record.
func (c *Client) UpdateCourse(ctx context.Context, courseID string, record Record) (Record, error) {
	var envelope recordEnvelope
	body := recordEnvelope{Data: record}
	if err := c.do(ctx, http.MethodPut, "/api/courses/"+url.PathEscape(courseID), nil, body, &envelope); err != nil {
		return nil, err
	}
	return envelope.Data, nil
}

// ListEnabledEnrollments returns every enabled enrollment of a course, following pagination.
func (c *Client) ListEnabledEnrollments(ctx context.Context, courseID string) ([]Enrollment, error) {
	var all []Enrollment
	for page := 1; ; page++ {
		query := url.Values{
			"filters[habilitado]":  []string{"true"},
			"fields[0]":            []string{"aluno"},
			"fields[1]":            []string{"turma"},
			"fields[2]":            []string{"habilitado"},
			"pagination[page]":     []string{strconv.Itoa(page)},
			"pagination[pageSize]": []string{strconv.Itoa(enrollmentPageSize)},
		}
		var envelope enrollmentsEnvelope
		if err := c.do(ctx, http.MethodGet, "/api/courses/"+url.PathEscape(courseID)+"/enrollments", query, nil, &envelope); err != nil {
			return nil, err
		}
		all = append(all, envelope.Data...)
		if page >= envelope.Meta.Pagination.PageCount {
			return all, nil
		}
	}
}

// ListScheduleTimes returns the start-time labels configured for a course.
func (c *Client) ListScheduleTimes(ctx context.Context, courseID string) ([]string, error) {
	query := url.Values{"filters[course]": []string{courseID}}
	var envelope scheduleOptionsEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/schedule-options", query, nil, &envelope); err != nil {
		return nil, err
	}
	labels := make([]string, 0, len(envelope.Data))
	for _, option := range envelope.Data {
		if option.Horario != "" {
			labels = append(labels, option.Horario)
		}
	}
	return labels, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", ErrInvalidResponse, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create content store request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("content store call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		return fmt.Errorf("%w: %s", ErrConflict, path)
	case resp.StatusCode >= 500:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(raw))
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrInvalidResponse, resp.StatusCode, string(raw))
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrInvalidResponse, path, err)
	}
	return nil
}
