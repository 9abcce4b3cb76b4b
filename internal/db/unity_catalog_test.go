package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/commentsync/internal/schema"
)

// fakeWorkspace emulates the two Databricks endpoints the catalog uses
type fakeWorkspace struct {
	mu         sync.Mutex
	statements []string
	polls      int
	pending    int
	failWith   string
	failCode   string
}

func (f *fakeWorkspace) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/2.1/unity-catalog/tables/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error_code":"UNAUTHENTICATED","message":"invalid token"}`))
			return
		}
		if r.URL.Path != "/api/2.1/unity-catalog/tables/main.sales.orders" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":"TABLE_DOES_NOT_EXIST","message":"Table does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`{
			"name": "orders", "catalog_name": "main", "schema_name": "sales",
			"columns": [
				{"name": "region", "type_text": "string", "position": 2},
				{"name": "id", "type_text": "bigint", "position": 0, "comment": "primary key"},
				{"name": "amount", "type_text": "int", "position": 1, "comment": ""}
			]
		}`))
	})

	mux.HandleFunc("/api/2.0/sql/statements", func(w http.ResponseWriter, r *http.Request) {
		var req statementRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "wh-1", req.WarehouseID)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.statements = append(f.statements, req.Statement)

		switch {
		case f.failWith != "":
			code := f.failCode
			if code == "" {
				code = "BAD_REQUEST"
			}
			_, _ = w.Write([]byte(`{"statement_id":"s1","status":{"state":"FAILED","error":{"error_code":"` + code + `","message":"` + f.failWith + `"}}}`))
		case f.pending > 0:
			_, _ = w.Write([]byte(`{"statement_id":"s1","status":{"state":"PENDING"}}`))
		default:
			_, _ = w.Write([]byte(`{"statement_id":"s1","status":{"state":"SUCCEEDED"}}`))
		}
	})

	mux.HandleFunc("/api/2.0/sql/statements/s1", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.polls++
		if f.polls < f.pending {
			_, _ = w.Write([]byte(`{"statement_id":"s1","status":{"state":"RUNNING"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"statement_id":"s1","status":{"state":"SUCCEEDED"}}`))
	})

	return mux
}

func newTestUnityCatalog(t *testing.T, ws *fakeWorkspace, token string) *UnityCatalog {
	t.Helper()

	srv := httptest.NewServer(ws.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewUnityClient(srv.URL, UnityOptions{Token: token, WarehouseID: "wh-1"})
	require.NoError(t, err)
	client.pollInterval = time.Millisecond

	return NewUnityCatalog(client)
}

func TestUnityCatalogGetTable(t *testing.T) {
	catalog := newTestUnityCatalog(t, &fakeWorkspace{}, "secret")

	table, err := catalog.GetTable(context.Background(), "main.sales", "orders")
	require.NoError(t, err)

	assert.Equal(t, "main.sales", table.Database)
	assert.Equal(t, []schema.Column{
		{Name: "id", Type: "bigint", Comment: "primary key"},
		{Name: "amount", Type: "int", Comment: ""},
		{Name: "region", Type: "string", Comment: ""},
	}, table.Columns)
}

func TestUnityCatalogErrors(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		database string
		table    string
		wantIs   error
	}{
		{name: "bad token", token: "wrong", database: "main.sales", table: "orders", wantIs: ErrAuth},
		{name: "missing table", token: "secret", database: "main.sales", table: "customers", wantIs: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newTestUnityCatalog(t, &fakeWorkspace{}, tt.token)

			_, err := catalog.GetTable(context.Background(), tt.database, tt.table)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantIs), "got %v", err)
		})
	}
}

func TestUnityCatalogRejectsBadDatabase(t *testing.T) {
	catalog := newTestUnityCatalog(t, &fakeWorkspace{}, "secret")

	_, err := catalog.GetTable(context.Background(), "sales", "orders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog.schema")
}

func TestUnityCatalogUpdateColumnComment(t *testing.T) {
	ws := &fakeWorkspace{pending: 2}
	catalog := newTestUnityCatalog(t, ws, "secret")

	err := catalog.UpdateColumnComment(context.Background(), "main.sales", "orders", "region", "sales region's code")
	require.NoError(t, err)

	require.Len(t, ws.statements, 1)
	assert.Equal(t, "ALTER TABLE `main`.`sales`.`orders` ALTER COLUMN `region` COMMENT 'sales region\\'s code'", ws.statements[0])
	assert.Equal(t, 2, ws.polls)
}

func TestUnityCatalogStatementFailure(t *testing.T) {
	ws := &fakeWorkspace{failWith: "column not found"}
	catalog := newTestUnityCatalog(t, ws, "secret")

	err := catalog.UpdateColumnComment(context.Background(), "main.sales", "orders", "customer", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column not found")
	assert.False(t, errors.Is(err, ErrAuth))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestUnityCatalogStatementErrorClasses(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		wantIs     error
		wantColumn string
	}{
		{
			name:    "insufficient permissions",
			message: "[INSUFFICIENT_PERMISSIONS] Insufficient privileges: User does not have MODIFY on Table main.sales.orders.",
			wantIs:  ErrAuth,
		},
		{
			name:    "permission denied code",
			code:    "PERMISSION_DENIED",
			message: "User does not have USE SCHEMA on Schema main.sales.",
			wantIs:  ErrAuth,
		},
		{
			name:    "missing table",
			message: "[TABLE_OR_VIEW_NOT_FOUND] The table or view main.sales.orders cannot be found.",
			wantIs:  ErrNotFound,
		},
		{
			name:       "missing column",
			message:    "[UNRESOLVED_COLUMN.WITH_SUGGESTION] A column with name customer cannot be resolved.",
			wantIs:     ErrNotFound,
			wantColumn: "customer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := &fakeWorkspace{failWith: tt.message, failCode: tt.code}
			catalog := newTestUnityCatalog(t, ws, "secret")

			err := catalog.UpdateColumnComment(context.Background(), "main.sales", "orders", "customer", "x")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantIs), "got %v", err)

			var notFound *NotFoundError
			if errors.As(err, &notFound) {
				assert.Equal(t, "orders", notFound.Table)
				assert.Equal(t, tt.wantColumn, notFound.Column)
			}
		})
	}
}

func TestUnityCatalogUpdateDottedTableName(t *testing.T) {
	ws := &fakeWorkspace{}
	catalog := newTestUnityCatalog(t, ws, "secret")

	err := catalog.UpdateColumnComment(context.Background(), "main.sales", "orders.v2", "region", "code")
	require.NoError(t, err)

	require.Len(t, ws.statements, 1)
	assert.Equal(t, "ALTER TABLE `main`.`sales`.`orders.v2` ALTER COLUMN `region` COMMENT 'code'", ws.statements[0])
}

func TestNewUnityClientRequiresToken(t *testing.T) {
	_, err := NewUnityClient("example.cloud.databricks.com", UnityOptions{})
	assert.True(t, errors.Is(err, ErrAuth))

	client, err := NewUnityClient("example.cloud.databricks.com/", UnityOptions{Token: "t"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.cloud.databricks.com", client.workspaceURL)
}

func TestUnityCatalogUpdateRequiresWarehouse(t *testing.T) {
	client, err := NewUnityClient("http://127.0.0.1:1", UnityOptions{Token: "t"})
	require.NoError(t, err)

	err = NewUnityCatalog(client).UpdateColumnComment(context.Background(), "main.sales", "orders", "id", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warehouse")
}
