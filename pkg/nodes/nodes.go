// Package nodes holds what the built-in node executors share: config decoding and retried HTTP calls.
package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/monitor"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Dependencies are the collaborators handed to every built-in executor.
type Dependencies struct {
	Logger      *slog.Logger
	HTTPClient  *http.Client
	RetryPolicy monitor.RetryPolicy
	Monitor     *monitor.ErrorMonitor
}

// WithDefaults fills a nil client, a zero retry policy and a nil logger.
func (d Dependencies) WithDefaults() Dependencies {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	if d.RetryPolicy.MaxAttempts == 0 {
		d.RetryPolicy = monitor.DefaultRetryPolicy()
	}

	return d
}

// DecodeConfig copies a node config into out and checks its validate tags.
func DecodeConfig(node *models.WorkflowNode, out any) error {
	raw, err := json.Marshal(node.Config)
	if err != nil {
		return fmt.Errorf("node %s: invalid config: %w", node.ID, err)
	}

	err = json.Unmarshal(raw, out)
	if err != nil {
		return fmt.Errorf("node %s: invalid config: %w", node.ID, err)
	}

	err = validate.Struct(out)
	if err != nil {
		return fmt.Errorf("node %s: invalid config: %w", node.ID, err)
	}

	return nil
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// SendJSON performs an HTTP call under the retry policy. 4xx responses are not retried.
// Every failed attempt is reported to the monitor under taskType.
func (d Dependencies) SendJSON(ctx context.Context, taskType string, method, url string, headers map[string]string, payload any) (map[string]any, error) {
	var body []byte

	if payload != nil {
		var err error

		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var result map[string]any

	err := d.RetryPolicy.Do(ctx, func(ctx context.Context) error {
		var err error

		result, err = d.send(ctx, method, url, headers, body)

		return err
	}, func(attempt int, err error) {
		d.Logger.WarnContext(ctx, "http call failed", "task_type", taskType, "url", url, "attempt", attempt, "error", err)

		if d.Monitor != nil {
			d.Monitor.Record(taskType, "http_error", err.Error(), map[string]any{
				"url":     url,
				"method":  method,
				"attempt": attempt,
			})
		}
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (d Dependencies) send(ctx context.Context, method, url string, headers map[string]string, body []byte) (map[string]any, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, monitor.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode < 500 {
			return nil, monitor.Permanent(httpErr)
		}

		return nil, httpErr
	}

	result := map[string]any{
		"status_code": resp.StatusCode,
		"body":        string(respBody),
	}

	var jsonBody any
	if err := json.Unmarshal(respBody, &jsonBody); err == nil {
		result["json"] = jsonBody
	}

	return result, nil
}
