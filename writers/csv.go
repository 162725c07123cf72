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
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aaronlmathis/featurekit/core"
)

// Package writers provides core.DataSink implementations for the feature matrix.

// CSVWriterError wraps CSV-specific write errors with context.
type CSVWriterError struct {
	Op  string
	Err error
}

func (e *CSVWriterError) Error() string {
	return fmt.Sprintf("csv writer %s: %v", e.Op, e.Err)
}

func (e *CSVWriterError) Unwrap() error {
	return e.Err
}

// CSVWriterStats holds CSV write performance statistics.
type CSVWriterStats struct {
	RecordsWritten  int64
	FlushCount      int64
	FlushDuration   time.Duration
	LastFlushTime   time.Time
	NullValueCounts map[string]int64
}

// CSVWriterOptions configures CSV output.
type CSVWriterOptions struct {
	Comma       rune
	UseCRLF     bool
	WriteHeader bool
	Headers     []string
}

// WriterOptionCSV is a functional option.
type WriterOptionCSV func(*CSVWriterOptions)

func WithHeaders(headers []string) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Headers = append([]string(nil), headers...)
	}
}

func WithComma(delim rune) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.Comma = delim
	}
}

func WithWriteHeader(write bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.WriteHeader = write
	}
}

func WithUseCRLF(useCRLF bool) WriterOptionCSV {
	return func(opts *CSVWriterOptions) {
		opts.UseCRLF = useCRLF
	}
}

// CSVWriter implements core.ColumnarSink for CSV output. Cells are rendered
// with core.FormatValue so identical matrices produce identical bytes.
type CSVWriter struct {
	writer      *csv.Writer
	closer      io.Closer
	options     CSVWriterOptions
	headers     []string
	stats       CSVWriterStats
	wroteHeader bool
	errorState  bool
	closed      bool
	mu          sync.Mutex
}

// NewCSVWriter creates a new CSV writer.
func NewCSVWriter(w io.WriteCloser, opts ...WriterOptionCSV) (*CSVWriter, error) {
	options := CSVWriterOptions{
		Comma:       ',',
		WriteHeader: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	cw := csv.NewWriter(w)
	cw.Comma = options.Comma
	cw.UseCRLF = options.UseCRLF

	return &CSVWriter{
		writer:  cw,
		closer:  w,
		options: options,
		headers: append([]string(nil), options.Headers...),
		stats:   CSVWriterStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// SetColumns implements core.ColumnarSink. It has no effect once a record
// has been written.
func (c *CSVWriter) SetColumns(columns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stats.RecordsWritten == 0 {
		c.headers = append([]string(nil), columns...)
	}
}

// Write implements the core.DataSink interface.
func (c *CSVWriter) Write(ctx context.Context, record core.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.errorState {
		return &CSVWriterError{Op: "write", Err: fmt.Errorf("writer is in error state")}
	}
	if err := ctx.Err(); err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "write", Err: err}
	}

	// Sorted keys of the first record when no column order was given.
	if len(c.headers) == 0 {
		for key := range record {
			c.headers = append(c.headers, key)
		}
		sort.Strings(c.headers)
	}

	if !c.wroteHeader && c.options.WriteHeader {
		if err := c.writer.Write(c.headers); err != nil {
			c.errorState = true
			return &CSVWriterError{Op: "write_header", Err: err}
		}
		c.wroteHeader = true
	}

	row := make([]string, len(c.headers))
	for i, key := range c.headers {
		val, ok := record[key]
		if !ok || val == nil {
			c.stats.NullValueCounts[key]++
			continue
		}
		row[i] = core.FormatValue(val)
	}
	if err := c.writer.Write(row); err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "write_row", Err: err}
	}
	c.stats.RecordsWritten++
	return nil
}

// Flush implements the core.DataSink interface.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushUnsafe()
}

func (c *CSVWriter) flushUnsafe() error {
	start := time.Now()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		c.errorState = true
		return &CSVWriterError{Op: "flush", Err: err}
	}
	c.stats.FlushCount++
	c.stats.LastFlushTime = time.Now()
	c.stats.FlushDuration += time.Since(start)
	return nil
}

// Close implements the core.DataSink interface. A header-only file is
// written when no record arrived but columns are known. A writer in error
// state aborts instead.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.errorState {
		return c.abortUnsafe()
	}
	c.closed = true

	if !c.wroteHeader && c.options.WriteHeader && len(c.headers) > 0 {
		if err := c.writer.Write(c.headers); err != nil {
			return &CSVWriterError{Op: "write_header", Err: err}
		}
		c.wroteHeader = true
	}
	if err := c.flushUnsafe(); err != nil {
		return err
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return &CSVWriterError{Op: "close", Err: err}
		}
	}
	return nil
}

// Abort implements core.Aborter. Buffered rows are dropped and the
// underlying writer is discarded rather than closed.
func (c *CSVWriter) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.abortUnsafe()
}

func (c *CSVWriter) abortUnsafe() error {
	c.closed = true
	c.errorState = true
	if c.closer == nil {
		return nil
	}
	if err := core.Discard(c.closer); err != nil {
		return &CSVWriterError{Op: "abort", Err: err}
	}
	return nil
}

// Stats returns write statistics.
func (c *CSVWriter) Stats() CSVWriterStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	statsCopy := c.stats
	statsCopy.NullValueCounts = make(map[string]int64, len(c.stats.NullValueCounts))
	for k, v := range c.stats.NullValueCounts {
		statsCopy.NullValueCounts[k] = v
	}
	return statsCopy
}
