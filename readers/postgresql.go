//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Copyright (C) 2025 Aaron Mathis aaron.mathis@gmail.com
//
// This file is part of FeatureKit.
//
// FeatureKit is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// FeatureKit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with FeatureKit. If not, see https://www.gnu.org/licenses/.

package readers

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/aaronlmathis/featurekit/core"
)

// Package readers provides core.DataSource implementations for the transaction table.
//
// This file implements a PostgreSQL query reader. The result set is streamed
// row by row; column order is the query's select list.

// PostgresReaderError provides structured error information for Postgres reader operations
type PostgresReaderError struct {
	Op  string // Operation that failed (e.g., "connect", "query", "scan", "read")
	Err error  // Underlying error
}

func (e *PostgresReaderError) Error() string {
	return fmt.Sprintf("postgres reader %s: %v", e.Op, e.Err)
}

func (e *PostgresReaderError) Unwrap() error {
	return e.Err
}

// PostgresReaderStats holds statistics about the Postgres reader's performance
type PostgresReaderStats struct {
	RecordsRead     int64
	QueryDuration   time.Duration
	ReadDuration    time.Duration
	ConnectionTime  time.Duration
	NullValueCounts map[string]int64
}

// PostgresReaderOptions configures the Postgres reader
type PostgresReaderOptions struct {
	DSN          string        // Database connection string
	Query        string        // SQL query to execute
	Params       []interface{} // Optional query parameters
	QueryTimeout time.Duration // Connect and query start timeout
}

// PostgresReaderOption represents a configuration function for PostgresReaderOptions
type PostgresReaderOption func(*PostgresReaderOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.DSN = dsn
	}
}

// WithPostgresQuery sets the SQL query and optional parameters.
func WithPostgresQuery(query string, params ...interface{}) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.Query = query
		opts.Params = append([]interface{}(nil), params...)
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresReaderOption {
	return func(opts *PostgresReaderOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresReader implements core.DataSource for PostgreSQL queries.
type PostgresReader struct {
	db      *sql.DB
	rows    *sql.Rows
	columns []string
	values  []interface{}
	scan    []interface{}
	stats   PostgresReaderStats
	done    bool
}

// NewPostgresReader connects and runs the query.
func NewPostgresReader(ctx context.Context, options ...PostgresReaderOption) (*PostgresReader, error) {
	opts := &PostgresReaderOptions{QueryTimeout: 30 * time.Second}
	for _, option := range options {
		option(opts)
	}
	if opts.DSN == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if opts.Query == "" {
		return nil, &PostgresReaderError{Op: "validate", Err: fmt.Errorf("query is required")}
	}

	start := time.Now()
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, &PostgresReaderError{Op: "connect", Err: err}
	}
	pingCtx, cancel := context.WithTimeout(ctx, opts.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &PostgresReaderError{Op: "ping", Err: err}
	}
	reader := &PostgresReader{
		db:    db,
		stats: PostgresReaderStats{ConnectionTime: time.Since(start), NullValueCounts: make(map[string]int64)},
	}

	queryStart := time.Now()
	rows, err := db.QueryContext(ctx, opts.Query, opts.Params...)
	if err != nil {
		db.Close()
		return nil, &PostgresReaderError{Op: "query", Err: err}
	}
	reader.stats.QueryDuration = time.Since(queryStart)
	reader.rows = rows

	columns, err := rows.Columns()
	if err != nil {
		reader.Close()
		return nil, &PostgresReaderError{Op: "columns", Err: err}
	}
	reader.columns = columns
	reader.values = make([]interface{}, len(columns))
	reader.scan = make([]interface{}, len(columns))
	for i := range reader.values {
		reader.scan[i] = &reader.values[i]
	}
	return reader, nil
}

// Columns returns the result set's column order.
func (p *PostgresReader) Columns() []string {
	return append([]string(nil), p.columns...)
}

// Read implements the core.DataSource interface.
func (p *PostgresReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() { p.stats.ReadDuration += time.Since(start) }()

	if err := ctx.Err(); err != nil {
		return nil, &PostgresReaderError{Op: "read", Err: err}
	}
	if p.done || p.rows == nil {
		return nil, io.EOF
	}
	if !p.rows.Next() {
		if err := p.rows.Err(); err != nil {
			return nil, &PostgresReaderError{Op: "read", Err: err}
		}
		p.done = true
		return nil, io.EOF
	}
	if err := p.rows.Scan(p.scan...); err != nil {
		return nil, &PostgresReaderError{Op: "scan", Err: err}
	}

	record := make(core.Record, len(p.columns))
	for i, name := range p.columns {
		v := convertSQLValue(p.values[i])
		if v == nil {
			p.stats.NullValueCounts[name]++
		}
		record[name] = v
	}
	p.stats.RecordsRead++
	return record, nil
}

// Close releases the result set and the connection pool.
func (p *PostgresReader) Close() error {
	var firstErr error
	if p.rows != nil {
		if err := p.rows.Close(); err != nil {
			firstErr = &PostgresReaderError{Op: "close_rows", Err: err}
		}
		p.rows = nil
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil && firstErr == nil {
			firstErr = &PostgresReaderError{Op: "close", Err: err}
		}
		p.db = nil
	}
	return firstErr
}

// Stats returns reader statistics.
func (p *PostgresReader) Stats() PostgresReaderStats {
	return p.stats
}

// convertSQLValue maps driver values onto record values. Text arrives as
// []byte from lib/pq; timestamps are rendered so the temporal stage can parse them.
func convertSQLValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(timestampLayout)
	case int64, float64, bool, string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
