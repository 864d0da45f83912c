package kai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- RegisterConnection ----------

func TestClient_RegisterConnection_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/database-connections", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		err := json.NewDecoder(r.Body).Decode(&payload)
		require.NoError(t, err)
		assert.Equal(t, "orbit", payload["alias"])
		assert.Equal(t, "postgresql://u:p@db:5432/sales", payload["connection_uri"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"conn-42","alias":"orbit"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	id, err := client.RegisterConnection(context.Background(), ConnectionAlias, "postgresql://u:p@db:5432/sales")
	require.NoError(t, err)
	assert.Equal(t, "conn-42", id)
}

func TestClient_RegisterConnection_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("invalid connection uri"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.RegisterConnection(context.Background(), ConnectionAlias, "not-a-uri")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "invalid connection uri")
}

func TestClient_RegisterConnection_EmptyID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.RegisterConnection(context.Background(), ConnectionAlias, "postgresql://u:p@db/sales")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty connection id")
}

// ---------- RefreshTables ----------

func TestClient_RefreshTables_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/table-descriptions/refresh", r.URL.Path)
		assert.Equal(t, "conn-42", r.URL.Query().Get("database_connection_id"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"t1","table_name":"sales_fact"},{"id":"t2","table_name":"customers"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	tables, err := client.RefreshTables(context.Background(), "conn-42")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "t1", tables[0].ID)
	assert.Equal(t, "sales_fact", tables[0].TableName)
	assert.Equal(t, "t2", tables[1].ID)
}

func TestClient_RefreshTables_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("connection not found"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.RefreshTables(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "connection not found")
}

// ---------- SyncSchemas ----------

func TestClient_SyncSchemas_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/table-descriptions/sync-schemas", r.URL.Path)

		var payload struct {
			TableDescriptionIDs []string       `json:"table_description_ids"`
			Instruction         string         `json:"instruction"`
			LLMConfig           map[string]any `json:"llm_config"`
		}
		err := json.NewDecoder(r.Body).Decode(&payload)
		require.NoError(t, err)
		assert.Equal(t, []string{"t1", "t2"}, payload.TableDescriptionIDs)
		assert.Equal(t, "", payload.Instruction)
		assert.Equal(t, "google", payload.LLMConfig["model-family"])
		assert.Equal(t, "gemini-2.0-flash", payload.LLMConfig["model-name"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.SyncSchemas(context.Background(), []string{"t1", "t2"})
	require.NoError(t, err)
}

func TestClient_SyncSchemas_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("llm unavailable"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.SyncSchemas(context.Background(), []string{"t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "llm unavailable")
}

// ---------- WaitReady ----------

func TestClient_WaitReady_RetriesUntilHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/heartbeat", r.URL.Path)
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.WaitReady(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestClient_WaitReady_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	err := client.WaitReady(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")
}
