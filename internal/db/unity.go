package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UnityClient handles communication with the Databricks Unity Catalog and
// SQL Statement APIs
type UnityClient struct {
	workspaceURL string
	token        string
	warehouseID  string
	httpClient   *http.Client
	pollInterval time.Duration
	pollAttempts int
}

// NewUnityClient creates a new Unity Catalog client. workspaceURL may omit
// the scheme, in which case https is assumed.
func NewUnityClient(workspaceURL string, opts UnityOptions) (*UnityClient, error) {
	if opts.Token == "" {
		return nil, &AuthError{Backend: "unity", Err: fmt.Errorf("no access token configured")}
	}
	if workspaceURL == "" {
		return nil, fmt.Errorf("workspace URL is required")
	}
	if !strings.Contains(workspaceURL, "://") {
		workspaceURL = "https://" + workspaceURL
	}

	return &UnityClient{
		workspaceURL: strings.TrimSuffix(workspaceURL, "/"),
		token:        opts.Token,
		warehouseID:  opts.WarehouseID,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pollInterval: time.Second,
		pollAttempts: 60,
	}, nil
}

// unityAPIError is a non-2xx response from the workspace
type unityAPIError struct {
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *unityAPIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// doRequest performs an authenticated HTTP request and decodes the JSON
// response into out when out is non-nil
func (c *UnityClient) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.workspaceURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &unityAPIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(respBody)
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// unityColumn is a column as returned by the tables API
type unityColumn struct {
	Name     string `json:"name"`
	TypeText string `json:"type_text"`
	Position int    `json:"position"`
	Comment  string `json:"comment,omitempty"`
}

// unityTable is the subset of table details used here
type unityTable struct {
	Name        string        `json:"name"`
	CatalogName string        `json:"catalog_name"`
	SchemaName  string        `json:"schema_name"`
	Columns     []unityColumn `json:"columns"`
}

// getTable retrieves a table by its catalog.schema.table name
func (c *UnityClient) getTable(ctx context.Context, fullName string) (*unityTable, error) {
	var table unityTable
	path := "/api/2.1/unity-catalog/tables/" + url.PathEscape(fullName)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &table); err != nil {
		return nil, err
	}
	return &table, nil
}

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Statement   string `json:"statement"`
	WaitTimeout string `json:"wait_timeout,omitempty"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error *struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"status"`
}

func (r *statementResponse) err() error {
	if r.Status.Error != nil {
		return &unityStatementError{ErrorCode: r.Status.Error.ErrorCode, Message: r.Status.Error.Message}
	}
	switch r.Status.State {
	case "FAILED", "CANCELED", "CLOSED":
		return fmt.Errorf("SQL statement %s", r.Status.State)
	}
	return nil
}

// unityStatementError is a statement the warehouse accepted but failed to run
type unityStatementError struct {
	ErrorCode string
	Message   string
}

func (e *unityStatementError) Error() string {
	return fmt.Sprintf("SQL execution error (%s): %s", e.ErrorCode, e.Message)
}

// executeStatement runs a DDL statement on the configured warehouse and
// waits for it to finish
func (c *UnityClient) executeStatement(ctx context.Context, statement string) error {
	if c.warehouseID == "" {
		return fmt.Errorf("a SQL warehouse ID is required to update comments")
	}

	var resp statementResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/2.0/sql/statements", statementRequest{
		WarehouseID: c.warehouseID,
		Statement:   statement,
		WaitTimeout: "30s",
	}, &resp)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := resp.err(); err != nil {
			return err
		}
		if resp.Status.State == "SUCCEEDED" {
			return nil
		}
		if attempt >= c.pollAttempts {
			return fmt.Errorf("statement %s timed out in state %s", resp.StatementID, resp.Status.State)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if err := c.doRequest(ctx, http.MethodGet, "/api/2.0/sql/statements/"+resp.StatementID, nil, &resp); err != nil {
			return err
		}
	}
}

// Close releases idle HTTP connections
func (c *UnityClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
