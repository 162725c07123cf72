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
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/apache/arrow/go/v12/arrow"
	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"

	"github.com/aaronlmathis/featurekit/core"
)

// This file implements a Parquet sink for the feature matrix. Every column is
// a non-nullable DOUBLE, in the order given to SetColumns.

// ParquetWriterError wraps Parquet-specific write errors with context about the operation.
type ParquetWriterError struct {
	Op  string // Operation that failed (e.g., "schema", "write_batch", "close_writer")
	Err error  // Underlying error
}

// Error returns the error string for ParquetWriterError.
func (e *ParquetWriterError) Error() string {
	return fmt.Sprintf("parquet writer %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for ParquetWriterError.
func (e *ParquetWriterError) Unwrap() error {
	return e.Err
}

// WriterStats holds statistics about the Parquet writer's performance.
type WriterStats struct {
	RecordsWritten int64
	BatchesWritten int64
	FlushDuration  time.Duration
	LastFlushTime  time.Time
}

// ParquetWriterOptions configures the Parquet writer.
type ParquetWriterOptions struct {
	BatchSize    int64                // Number of records to buffer before writing
	Compression  compress.Compression // Compression algorithm
	RowGroupSize int64                // Maximum rows per row group
	Metadata     map[string]string    // File key/value metadata
}

// WriterOption represents a configuration function for ParquetWriterOptions.
type WriterOption func(*ParquetWriterOptions)

// WithBatchSize sets the number of records to buffer before writing a batch.
func WithBatchSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.BatchSize = size
	}
}

// WithCompression sets the Parquet compression algorithm.
func WithCompression(compression compress.Compression) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.Compression = compression
	}
}

// WithRowGroupSize sets the row group size for the Parquet file.
func WithRowGroupSize(size int64) WriterOption {
	return func(opts *ParquetWriterOptions) {
		opts.RowGroupSize = size
	}
}

// WithMetadata sets key/value metadata stored in the file footer.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(opts *ParquetWriterOptions) {
		if opts.Metadata == nil {
			opts.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			opts.Metadata[k] = v
		}
	}
}

// ParquetWriter implements core.ColumnarSink for Parquet output.
type ParquetWriter struct {
	sink      io.WriteCloser
	writer    *pqarrow.FileWriter
	schema    *arrow.Schema
	columns   []string
	builder   *array.RecordBuilder
	buffered  int64
	allocator memory.Allocator
	opts      *ParquetWriterOptions
	stats     WriterStats
	closed    bool
	failed    bool
}

// NewParquetWriter creates a Parquet writer on top of w. w is closed by Close.
func NewParquetWriter(w io.WriteCloser, options ...WriterOption) (*ParquetWriter, error) {
	opts := (&ParquetWriterOptions{}).withDefaults()
	for _, option := range options {
		option(opts)
	}
	return &ParquetWriter{
		sink:      w,
		allocator: memory.NewGoAllocator(),
		opts:      opts,
	}, nil
}

// NewParquetFileWriter creates the file (and its parent directories) and
// returns a Parquet writer for it. The file is removed on Abort.
func NewParquetFileWriter(filename string, options ...WriterOption) (*ParquetWriter, error) {
	file, err := createOutputFile(filename)
	if err != nil {
		return nil, &ParquetWriterError{Op: "open_file", Err: err}
	}
	return NewParquetWriter(file, options...)
}

// withDefaults applies default values to ParquetWriterOptions.
func (opts *ParquetWriterOptions) withDefaults() *ParquetWriterOptions {
	result := &ParquetWriterOptions{}
	if opts != nil {
		*result = *opts
	}
	if result.BatchSize <= 0 {
		result.BatchSize = 1000
	}
	if result.RowGroupSize <= 0 {
		result.RowGroupSize = 10000
	}
	if result.Compression == 0 {
		result.Compression = compress.Codecs.Snappy
	}
	return result
}

// SetColumns implements core.ColumnarSink. It has no effect once the schema
// is fixed.
func (p *ParquetWriter) SetColumns(columns []string) {
	if p.schema == nil {
		p.columns = append([]string(nil), columns...)
	}
}

// Stats returns the current statistics of the Parquet writer.
func (p *ParquetWriter) Stats() WriterStats {
	return p.stats
}

// Write implements the core.DataSink interface. Every column value must be numeric.
func (p *ParquetWriter) Write(ctx context.Context, record core.Record) error {
	if p.closed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("parquet writer is closed")}
	}
	if p.failed {
		return &ParquetWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if err := ctx.Err(); err != nil {
		p.failed = true
		return &ParquetWriterError{Op: "write", Err: err}
	}
	if p.schema == nil {
		if len(p.columns) == 0 {
			for name := range record {
				p.columns = append(p.columns, name)
			}
			sort.Strings(p.columns)
		}
		if err := p.initialize(); err != nil {
			p.failed = true
			return err
		}
	}

	values := make([]float64, len(p.columns))
	for i, name := range p.columns {
		f, ok := core.ToFloat(record[name])
		if !ok {
			p.failed = true
			return &ParquetWriterError{
				Op:  "append_value",
				Err: fmt.Errorf("field %s: %v (%T) is not numeric", name, record[name], record[name]),
			}
		}
		values[i] = f
	}
	for i, v := range values {
		p.builder.Field(i).(*array.Float64Builder).Append(v)
	}
	p.buffered++
	p.stats.RecordsWritten++

	if p.buffered >= p.opts.BatchSize {
		return p.flushBatch()
	}
	return nil
}

// Flush implements the core.DataSink interface.
func (p *ParquetWriter) Flush() error {
	if p.closed || p.failed {
		return nil
	}
	return p.flushBatch()
}

// Close implements the core.DataSink interface. A writer that never received
// a record still produces a valid file when columns are known. A failed
// writer aborts instead.
func (p *ParquetWriter) Close() error {
	if p.closed {
		return nil
	}
	if p.failed {
		return p.Abort()
	}
	p.closed = true

	var firstErr error
	if p.schema == nil && len(p.columns) > 0 {
		firstErr = p.initialize()
	}
	if firstErr == nil {
		firstErr = p.flushBatch()
	}
	if p.builder != nil {
		p.builder.Release()
		p.builder = nil
	}
	if p.writer != nil {
		if err := p.writer.Close(); err != nil && firstErr == nil {
			firstErr = &ParquetWriterError{Op: "close_writer", Err: err}
		}
		p.writer = nil
	}
	if p.sink != nil {
		if err := p.sink.Close(); err != nil && firstErr == nil {
			firstErr = &ParquetWriterError{Op: "close_file", Err: err}
		}
	}
	return firstErr
}

// Abort implements core.Aborter. No footer is written and the sink is
// discarded, so the output never becomes a readable file.
func (p *ParquetWriter) Abort() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.failed = true
	if p.builder != nil {
		p.builder.Release()
		p.builder = nil
	}
	p.writer = nil
	if p.sink == nil {
		return nil
	}
	if err := core.Discard(p.sink); err != nil {
		return &ParquetWriterError{Op: "abort", Err: err}
	}
	return nil
}

// initialize builds the all-DOUBLE schema and opens the file writer.
func (p *ParquetWriter) initialize() error {
	fields := make([]arrow.Field, len(p.columns))
	for i, name := range p.columns {
		fields[i] = arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Float64}
	}
	var md *arrow.Metadata
	if len(p.opts.Metadata) > 0 {
		keys := make([]string, 0, len(p.opts.Metadata))
		for k := range p.opts.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		vals := make([]string, len(keys))
		for i, k := range keys {
			vals[i] = p.opts.Metadata[k]
		}
		m := arrow.NewMetadata(keys, vals)
		md = &m
	}
	p.schema = arrow.NewSchema(fields, md)

	props := parquet.NewWriterProperties(
		parquet.WithCompression(p.opts.Compression),
		parquet.WithMaxRowGroupLength(p.opts.RowGroupSize),
	)
	// The sink is closed by Close, not by the file writer.
	writer, err := pqarrow.NewFileWriter(p.schema, struct{ io.Writer }{p.sink}, props, pqarrow.DefaultWriterProps())
	if err != nil {
		return &ParquetWriterError{
			Op:  "create_writer",
			Err: fmt.Errorf("failed to create parquet file writer: %w", err),
		}
	}
	p.writer = writer
	p.builder = array.NewRecordBuilder(p.allocator, p.schema)
	return nil
}

// flushBatch writes the buffered rows as one record batch.
func (p *ParquetWriter) flushBatch() error {
	if p.buffered == 0 || p.builder == nil {
		return nil
	}
	start := time.Now()

	rec := p.builder.NewRecord()
	defer rec.Release()
	if err := p.writer.Write(rec); err != nil {
		p.failed = true
		return &ParquetWriterError{
			Op:  "write_batch",
			Err: fmt.Errorf("failed to write record batch: %w", err),
		}
	}
	p.buffered = 0
	p.stats.BatchesWritten++
	p.stats.FlushDuration += time.Since(start)
	p.stats.LastFlushTime = time.Now()
	return nil
}
