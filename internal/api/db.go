package api

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// readOnlyPrefixes are the statements the query endpoint accepts.
var readOnlyPrefixes = []string{"select", "with", "show", "describe", "summarize", "explain"}

// DBHandler exposes the track store for ad-hoc analysis.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/db/tables", h.ListTables, huma.OperationTags("db"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("db"))
}

// TableList is the body of the table listing.
type TableList struct {
	Tables []string `json:"tables" doc:"List of table names"`
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body TableList
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, huma.Error500InternalServerError("Failed to read table name", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}

	return &TablesOutput{Body: TableList{Tables: tables}}, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" minLength:"1" doc:"Read-only SQL statement" example:"SELECT session, count(*) FROM positions GROUP BY session"`
	}
}

// QueryResult is the body of a query response.
type QueryResult struct {
	Columns []string         `json:"columns" doc:"Column names"`
	Rows    []map[string]any `json:"rows" doc:"Query results"`
	Count   int              `json:"count" doc:"Number of rows returned"`
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body QueryResult
}

// Query executes a read-only SQL statement against DuckDB.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}
	if !isReadOnly(input.Body.Query) {
		return nil, huma.Error422UnprocessableEntity("Only read-only statements are allowed")
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	results, err := scanRows(rows, columns)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read query results", err)
	}

	return &QueryOutput{Body: QueryResult{
		Columns: columns,
		Rows:    results,
		Count:   len(results),
	}}, nil
}

// rowScanner is the part of *sql.Rows that scanRows reads.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// scanRows reads every row into a column-keyed map. A scan error or an
// error that ended iteration early fails the whole result.
func scanRows(rows rowScanner, columns []string) ([]map[string]any, error) {
	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("row %d: %w", len(results)+1, err)
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("after %d rows: %w", len(results), err)
	}
	return results, nil
}

func isReadOnly(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if strings.Contains(strings.TrimSuffix(q, ";"), ";") {
		return false
	}
	for _, p := range readOnlyPrefixes {
		if strings.HasPrefix(q, p) {
			return true
		}
	}
	return false
}
