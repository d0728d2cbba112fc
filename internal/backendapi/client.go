package backendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/signalong/signalong-core/internal/circuitbreaker"
	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/httpx"
	"github.com/signalong/signalong-core/internal/logger"
)

// envelope is the wire format of every learning-API response. Exactly one of
// Data or Error carries meaning depending on Success. It is decoded here, at
// the client boundary, and never escapes this package: callers see a plain
// (value, error) pair.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client talks to the SignAlong learning API.
type Client struct {
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	baseURL    string
	token      string
	userAgent  string
}

// NewClient builds a Client from the process config.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		breaker: circuitbreaker.New(circuitbreaker.Config{
			Name:             "learning-api",
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Cooldown:         30 * time.Second,
		}),
		baseURL:   cfg.APIBaseURL,
		token:     cfg.APIToken,
		userAgent: cfg.UserAgent,
	}
}

// BreakerState exposes the upstream circuit state for health reporting.
func (c *Client) BreakerState() string {
	return c.breaker.GetState().String()
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
	}

	var raw json.RawMessage
	err := c.breaker.Call(func() error {
		resp, err := httpx.DoWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
			var reader io.Reader
			if payload != nil {
				reader = bytes.NewReader(payload)
			}
			req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
			if err != nil {
				return nil, err
			}
			if c.token != "" {
				req.Header.Set("Authorization", "Bearer "+c.token)
			}
			req.Header.Set("User-Agent", c.userAgent)
			req.Header.Set("Accept", "application/json")
			if payload != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			return req, nil
		}, nil)
		if err != nil {
			return &APIError{Type: ErrorNetwork, Message: err.Error(), Retryable: true}
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return classifyStatus(resp)
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
		if err != nil {
			return &APIError{Type: ErrorNetwork, Message: err.Error(), Retryable: true}
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return &APIError{Type: ErrorEnvelope, StatusCode: resp.StatusCode,
				Message: fmt.Sprintf("malformed response envelope: %v", err)}
		}
		if !env.Success {
			msg := env.Error
			if msg == "" {
				msg = "request failed without error detail"
			}
			return &APIError{Type: ErrorServer, StatusCode: resp.StatusCode, Message: msg}
		}
		raw = env.Data
		return nil
	})
	if err != nil {
		logger.DebugContext(ctx, "learning api call failed",
			"method", method, "path", path, "error", err)
		return nil, err
	}
	return raw, nil
}

// decodeInto is the single place envelope payloads become typed values.
func decodeInto[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, &APIError{Type: ErrorEnvelope, Message: "success envelope carried no data"}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &APIError{Type: ErrorEnvelope,
			Message: fmt.Sprintf("decoding payload: %v", err)}
	}
	return out, nil
}

// GetAllLessons fetches the full lesson catalog.
func (c *Client) GetAllLessons(ctx context.Context) ([]Lesson, error) {
	raw, err := c.do(ctx, http.MethodGet, "/lessons", nil)
	if err != nil {
		return nil, err
	}
	return decodeInto[[]Lesson](raw)
}

// GetLesson fetches a single lesson by ID.
func (c *Client) GetLesson(ctx context.Context, id string) (*Lesson, error) {
	raw, err := c.do(ctx, http.MethodGet, "/lessons/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	lesson, err := decodeInto[Lesson](raw)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// GetProgress fetches the current user's learning progress.
func (c *Client) GetProgress(ctx context.Context) (*Progress, error) {
	raw, err := c.do(ctx, http.MethodGet, "/users/me/progress", nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeInto[Progress](raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetStreak fetches the current user's practice streak.
func (c *Client) GetStreak(ctx context.Context) (*Streak, error) {
	raw, err := c.do(ctx, http.MethodGet, "/users/me/streak", nil)
	if err != nil {
		return nil, err
	}
	s, err := decodeInto[Streak](raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetProfile fetches the current user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	raw, err := c.do(ctx, http.MethodGet, "/users/me/profile", nil)
	if err != nil {
		return nil, err
	}
	p, err := decodeInto[Profile](raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CompleteLesson marks a lesson as finished and returns the updated progress.
func (c *Client) CompleteLesson(ctx context.Context, req CompleteLessonRequest) (*Progress, error) {
	raw, err := c.do(ctx, http.MethodPost, "/lessons/"+url.PathEscape(req.LessonID)+"/complete", req)
	if err != nil {
		return nil, err
	}
	p, err := decodeInto[Progress](raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStreak records a practice session and returns the updated streak.
func (c *Client) UpdateStreak(ctx context.Context, req UpdateStreakRequest) (*Streak, error) {
	raw, err := c.do(ctx, http.MethodPost, "/users/me/streak", req)
	if err != nil {
		return nil, err
	}
	s, err := decodeInto[Streak](raw)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateProgress overwrites the last-visited lesson pointer.
func (c *Client) UpdateProgress(ctx context.Context, lastLessonID string) (*Progress, error) {
	body := map[string]string{"last_lesson_id": lastLessonID}
	raw, err := c.do(ctx, http.MethodPut, "/users/me/progress", body)
	if err != nil {
		return nil, err
	}
	p, err := decodeInto[Progress](raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
