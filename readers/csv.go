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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aaronlmathis/featurekit/core"
)

// CSVReaderError wraps structured error information for the CSV reader.
type CSVReaderError struct {
	Op  string
	Err error
}

func (e *CSVReaderError) Error() string {
	return fmt.Sprintf("csv reader %s: %v", e.Op, e.Err)
}

func (e *CSVReaderError) Unwrap() error {
	return e.Err
}

// CSVReaderStats holds statistics about the CSV reader's performance.
type CSVReaderStats struct {
	RecordsRead     int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// CSVReaderOptions configures the CSV reader.
type CSVReaderOptions struct {
	Comma            rune
	Comment          rune
	LazyQuotes       bool
	TrimLeadingSpace bool
	HasHeaders       bool
}

// ReaderOptionCSV allows functional customization of CSVReader.
type ReaderOptionCSV func(*CSVReaderOptions)

func WithCSVComma(r rune) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.Comma = r }
}

func WithCSVHasHeaders(hasHeaders bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.HasHeaders = hasHeaders }
}

func WithCSVTrimSpace(trim bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.TrimLeadingSpace = trim }
}

func WithCSVLazyQuotes(lazy bool) ReaderOptionCSV {
	return func(o *CSVReaderOptions) { o.LazyQuotes = lazy }
}

// CSVReader implements core.DataSource for delimited text. Cells are returned
// as raw strings; blank cells are nil. Typing happens after load against the
// schema. Every record must have as many fields as the header.
type CSVReader struct {
	reader  *csv.Reader
	headers []string
	closer  io.Closer
	stats   CSVReaderStats
	opts    CSVReaderOptions
}

// NewCSVReader creates a CSVReader with default or overridden options.
func NewCSVReader(r io.ReadCloser, options ...ReaderOptionCSV) (*CSVReader, error) {
	opts := CSVReaderOptions{
		Comma:            ',',
		HasHeaders:       true,
		TrimLeadingSpace: true,
	}

	for _, opt := range options {
		opt(&opts)
	}

	csvReader := csv.NewReader(r)
	csvReader.Comma = opts.Comma
	csvReader.Comment = opts.Comment
	csvReader.LazyQuotes = opts.LazyQuotes
	csvReader.TrimLeadingSpace = opts.TrimLeadingSpace
	csvReader.ReuseRecord = true

	reader := &CSVReader{
		reader: csvReader,
		closer: r,
		opts:   opts,
		stats:  CSVReaderStats{NullValueCounts: make(map[string]int64)},
	}

	if opts.HasHeaders {
		headers, err := csvReader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("empty input: no header row")
			}
			return nil, &CSVReaderError{Op: "read_headers", Err: err}
		}
		reader.headers = make([]string, len(headers))
		seen := make(map[string]bool, len(headers))
		for i, h := range headers {
			h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			if seen[h] {
				return nil, &CSVReaderError{Op: "read_headers", Err: fmt.Errorf("duplicate column %q", h)}
			}
			seen[h] = true
			reader.headers[i] = h
		}
		csvReader.FieldsPerRecord = len(headers)
	}

	return reader, nil
}

// Columns returns the header in file order. Without a header row it is
// col_0..col_n, known after the first Read.
func (c *CSVReader) Columns() []string {
	return append([]string(nil), c.headers...)
}

// Read implements the core.DataSource interface.
func (c *CSVReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()

	select {
	case <-ctx.Done():
		return nil, &CSVReaderError{Op: "read", Err: ctx.Err()}
	default:
	}

	fields, err := c.reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &CSVReaderError{Op: "read_record", Err: err}
	}

	if c.headers == nil {
		c.headers = make([]string, len(fields))
		for i := range fields {
			c.headers[i] = "col_" + strconv.Itoa(i)
		}
		c.reader.FieldsPerRecord = len(fields)
	}

	res := make(core.Record, len(fields))
	for i, val := range fields {
		key := c.headers[i]
		if strings.TrimSpace(val) == "" {
			c.stats.NullValueCounts[key]++
			res[key] = nil
		} else {
			res[key] = val
		}
	}

	c.stats.RecordsRead++
	c.stats.LastReadTime = time.Now()
	c.stats.ReadDuration += time.Since(start)

	return res, nil
}

// Close implements the core.DataSource interface.
func (c *CSVReader) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// Stats returns CSV reader performance stats.
func (c *CSVReader) Stats() CSVReaderStats {
	return c.stats
}
