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

package writers

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aaronlmathis/featurekit/core"
)

// This file implements a PostgreSQL sink. The whole matrix is loaded with
// COPY inside one transaction that commits on Close, so a failed run leaves
// the table as it was.

// PostgresWriterError wraps PostgreSQL-specific write errors with context about the operation.
type PostgresWriterError struct {
	Op  string // The operation being performed (e.g., "connect", "copy", "commit")
	Err error  // The underlying error
}

// Error returns the error string for PostgresWriterError.
func (e *PostgresWriterError) Error() string {
	return fmt.Sprintf("postgres writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for PostgresWriterError.
func (e *PostgresWriterError) Unwrap() error {
	return e.Err
}

// PostgresWriterStats holds PostgreSQL write performance statistics.
type PostgresWriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	WriteDuration  time.Duration
	ConnectionTime time.Duration
}

// PostgresWriterOptions configures the PostgreSQL writer.
type PostgresWriterOptions struct {
	DSN           string        // PostgreSQL connection string
	TableName     string        // Target table name
	BatchSize     int           // Rows buffered before a COPY round trip
	CreateTable   bool          // Create table if not exists
	TruncateTable bool          // Truncate table before writing
	QueryTimeout  time.Duration // Timeout for connect and DDL
}

// PostgresWriterOption represents a configuration function for PostgresWriterOptions.
type PostgresWriterOption func(*PostgresWriterOptions)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.DSN = dsn
	}
}

// WithTableName sets the target table name.
func WithTableName(tableName string) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TableName = tableName
	}
}

// WithPostgresBatchSize sets the batch size for writes.
func WithPostgresBatchSize(size int) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCreateTable enables or disables table creation.
func WithCreateTable(create bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.CreateTable = create
	}
}

// WithTruncateTable enables or disables table truncation before writing.
func WithTruncateTable(truncate bool) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.TruncateTable = truncate
	}
}

// WithPostgresQueryTimeout sets the query timeout.
func WithPostgresQueryTimeout(timeout time.Duration) PostgresWriterOption {
	return func(opts *PostgresWriterOptions) {
		opts.QueryTimeout = timeout
	}
}

// PostgresWriter implements core.ColumnarSink for PostgreSQL output.
type PostgresWriter struct {
	db      *sql.DB
	tx      *sql.Tx
	stmt    *sql.Stmt
	options PostgresWriterOptions
	columns []string
	buffer  [][]interface{}
	stats   PostgresWriterStats
	failed  bool
	closed  bool
	mu      sync.Mutex
}

// NewPostgresWriter connects to the database. No statement runs until the
// first Write or Close.
func NewPostgresWriter(opts ...PostgresWriterOption) (*PostgresWriter, error) {
	options := PostgresWriterOptions{BatchSize: 1000, CreateTable: true, QueryTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(&options)
	}
	if options.DSN == "" {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("dsn is required")}
	}
	if options.TableName == "" {
		return nil, &PostgresWriterError{Op: "validate", Err: fmt.Errorf("table name is required")}
	}
	if options.BatchSize <= 0 {
		options.BatchSize = 1000
	}

	start := time.Now()
	db, err := sql.Open("postgres", options.DSN)
	if err != nil {
		return nil, &PostgresWriterError{Op: "connect", Err: err}
	}
	ctx, cancel := context.WithTimeout(context.Background(), options.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &PostgresWriterError{Op: "ping", Err: err}
	}

	return &PostgresWriter{
		db:      db,
		options: options,
		stats:   PostgresWriterStats{ConnectionTime: time.Since(start)},
	}, nil
}

// SetColumns implements core.ColumnarSink.
func (w *PostgresWriter) SetColumns(columns []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil {
		w.columns = append([]string(nil), columns...)
	}
}

// Stats returns write statistics.
func (w *PostgresWriter) Stats() PostgresWriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Write implements the core.DataSink interface.
func (w *PostgresWriter) Write(ctx context.Context, record core.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.failed {
		return &PostgresWriterError{Op: "write", Err: fmt.Errorf("writer is closed or in error state")}
	}
	if err := ctx.Err(); err != nil {
		w.failed = true
		return &PostgresWriterError{Op: "write", Err: err}
	}
	if w.tx == nil {
		if len(w.columns) == 0 {
			for k := range record {
				w.columns = append(w.columns, k)
			}
			sort.Strings(w.columns)
		}
		if err := w.beginUnsafe(ctx); err != nil {
			w.failed = true
			return err
		}
	}

	row := make([]interface{}, len(w.columns))
	for i, c := range w.columns {
		f, ok := core.ToFloat(record[c])
		if !ok {
			w.failed = true
			return &PostgresWriterError{Op: "write", Err: fmt.Errorf("column %s: %v is not numeric", c, record[c])}
		}
		row[i] = f
	}
	w.buffer = append(w.buffer, row)
	if len(w.buffer) >= w.options.BatchSize {
		return w.copyUnsafe(ctx)
	}
	return nil
}

// Flush implements the core.DataSink interface. Buffered rows are sent to the
// server but not committed.
func (w *PostgresWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tx == nil || w.failed {
		return nil
	}
	return w.copyUnsafe(context.Background())
}

// Close implements the core.DataSink interface. It commits unless a previous
// call failed, in which case the transaction is rolled back.
func (w *PostgresWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.db.Close()

	ctx := context.Background()
	if w.tx == nil && !w.failed && len(w.columns) > 0 {
		if err := w.beginUnsafe(ctx); err != nil {
			return err
		}
	}
	if w.tx == nil {
		return nil
	}
	if w.failed {
		w.tx.Rollback()
		return nil
	}
	if err := w.copyUnsafe(ctx); err != nil {
		w.tx.Rollback()
		return err
	}
	if _, err := w.stmt.ExecContext(ctx); err != nil {
		w.tx.Rollback()
		return &PostgresWriterError{Op: "copy_end", Err: err}
	}
	if err := w.stmt.Close(); err != nil {
		w.tx.Rollback()
		return &PostgresWriterError{Op: "copy_close", Err: err}
	}
	if err := w.tx.Commit(); err != nil {
		return &PostgresWriterError{Op: "commit", Err: err}
	}
	return nil
}

// Abort implements core.Aborter by rolling back whatever was copied.
func (w *PostgresWriter) Abort() error {
	w.mu.Lock()
	w.failed = true
	w.mu.Unlock()
	return w.Close()
}

// beginUnsafe opens the transaction, prepares the table and starts COPY.
func (w *PostgresWriter) beginUnsafe(ctx context.Context) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return &PostgresWriterError{Op: "begin", Err: err}
	}
	table := quoteTable(w.options.TableName)
	if w.options.CreateTable {
		defs := make([]string, len(w.columns))
		for i, c := range w.columns {
			defs[i] = pq.QuoteIdentifier(c) + " DOUBLE PRECISION NOT NULL"
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			tx.Rollback()
			return &PostgresWriterError{Op: "create_table", Err: err}
		}
	}
	if w.options.TruncateTable {
		if _, err := tx.ExecContext(ctx, "TRUNCATE TABLE "+table); err != nil {
			tx.Rollback()
			return &PostgresWriterError{Op: "truncate_table", Err: err}
		}
	}

	var copyStmt string
	if schema, name, ok := strings.Cut(w.options.TableName, "."); ok {
		copyStmt = pq.CopyInSchema(schema, name, w.columns...)
	} else {
		copyStmt = pq.CopyIn(w.options.TableName, w.columns...)
	}
	stmt, err := tx.PrepareContext(ctx, copyStmt)
	if err != nil {
		tx.Rollback()
		return &PostgresWriterError{Op: "copy_prepare", Err: err}
	}
	w.tx = tx
	w.stmt = stmt
	return nil
}

// copyUnsafe streams buffered rows into the open COPY.
func (w *PostgresWriter) copyUnsafe(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}
	start := time.Now()
	for _, row := range w.buffer {
		if _, err := w.stmt.ExecContext(ctx, row...); err != nil {
			w.failed = true
			return &PostgresWriterError{Op: "copy", Err: err}
		}
	}
	w.stats.RecordsWritten += int64(len(w.buffer))
	w.stats.BatchesWritten++
	w.stats.WriteDuration += time.Since(start)
	w.buffer = w.buffer[:0]
	return nil
}

func quoteTable(name string) string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
	}
	return pq.QuoteIdentifier(name)
}
