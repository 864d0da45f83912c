package kai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ConnectionAlias is the well-known alias the customer database is registered
// under in the KAI service.
const ConnectionAlias = "orbit"

// llmConfig is the fixed model selection used for schema synchronization.
var llmConfig = LLMConfig{
	ModelFamily: "google",
	ModelName:   "gemini-2.0-flash",
}

// LLMConfig selects the model used by KAI when describing schemas.
type LLMConfig struct {
	ModelFamily string `json:"model-family"`
	ModelName   string `json:"model-name"`
}

// TableDescription is one described table returned by a refresh.
type TableDescription struct {
	ID        string `json:"id"`
	TableName string `json:"table_name"`
	Status    string `json:"status,omitempty"`
}

// Client talks to the KAI schema-configuration HTTP API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a KAI client. Schema synchronization drives an LLM on the
// server side, so the client allows long request times.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
	}
}

// WaitReady polls the KAI heartbeat until the service answers or the timeout
// elapses. A freshly deployed stack needs a moment before it accepts
// configuration calls.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/heartbeat", nil)
		if err != nil {
			return fmt.Errorf("heartbeat request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("heartbeat: status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("kai not ready after %s: %w", timeout, lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

// RegisterConnection registers the database connection under the given alias
// and returns the connection identifier assigned by KAI.
func (c *Client) RegisterConnection(ctx context.Context, alias, connectionURI string) (string, error) {
	payload := map[string]any{
		"alias":          alias,
		"connection_uri": connectionURI,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal register connection: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/database-connections", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("register connection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("register connection: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("register connection %s: status %d: %s", alias, resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode register connection: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("register connection %s: empty connection id in response", alias)
	}
	return result.ID, nil
}

// RefreshTables asks KAI to rescan the registered connection and returns the
// full set of described tables.
func (c *Client) RefreshTables(ctx context.Context, connectionID string) ([]TableDescription, error) {
	q := url.Values{"database_connection_id": {connectionID}}
	u := fmt.Sprintf("%s/api/v1/table-descriptions/refresh?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, fmt.Errorf("refresh tables request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh tables: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("refresh tables %s: status %d: %s", connectionID, resp.StatusCode, string(respBody))
	}

	var tables []TableDescription
	if err := json.NewDecoder(resp.Body).Decode(&tables); err != nil {
		return nil, fmt.Errorf("decode table descriptions: %w", err)
	}
	return tables, nil
}

// SyncSchemas triggers a schema sync over the given table description IDs
// with no extra instruction and the fixed model selection.
func (c *Client) SyncSchemas(ctx context.Context, tableIDs []string) error {
	payload := map[string]any{
		"table_description_ids": tableIDs,
		"instruction":           "",
		"llm_config":            llmConfig,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal sync schemas: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/table-descriptions/sync-schemas", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("sync schemas request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sync schemas: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("sync schemas: status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
