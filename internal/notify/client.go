package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/orbitlabs/provision/internal/model"
)

// StepNotification is the payload sent to the workflow service after each
// completed stage.
type StepNotification struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"process_id"`
	Step      string    `json:"step"`
	StepOrder int       `json:"step_order"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletionReport carries the entire accumulated request state back to the
// workflow service once every stage has finished.
type CompletionReport struct {
	Status    string         `json:"status"`
	Process   *model.Request `json:"process"`
	Timestamp time.Time      `json:"timestamp"`
}

// Client talks to the workflow service that owns the multi-step process this
// run may be one step of.
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewClient creates a workflow service client. The auth token, when set, is
// attached as a bearer token to every report.
func NewClient(baseURL, authToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		authToken:  authToken,
	}
}

// NotifyStep delivers a single stage progress report.
func (c *Client) NotifyStep(ctx context.Context, n StepNotification) error {
	u := fmt.Sprintf("%s/api/v1/process-notifications", c.baseURL)
	if err := c.post(ctx, u, n); err != nil {
		return fmt.Errorf("notify step %s: %w", n.Step, err)
	}
	return nil
}

// NotifyCompletion delivers the final completion report for a process.
func (c *Client) NotifyCompletion(ctx context.Context, r CompletionReport) error {
	u := fmt.Sprintf("%s/api/v1/processes/%s/complete", c.baseURL, r.Process.ProcessID)
	if err := c.post(ctx, u, r); err != nil {
		return fmt.Errorf("notify completion: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
