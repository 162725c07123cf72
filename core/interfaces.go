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

package core

import (
	"context"
	"io"
)

// Package core defines the core interfaces for the FeatureKit library.
//
// This file contains the primary interfaces for data sources, sinks, record
// transformers and dataset stages.

// DataSource defines the interface for data extraction.
// Implementations stream records from a source (e.g., CSV, S3, PostgreSQL).
type DataSource interface {
	// Read returns the next record or io.EOF when no more records are available.
	Read(ctx context.Context) (Record, error)
	// Close releases any resources held by the data source.
	Close() error
}

// DataSink defines the interface for data loading.
// Implementations write records to a destination (e.g., CSV, Parquet, PostgreSQL).
type DataSink interface {
	// Write outputs a single record to the sink.
	Write(ctx context.Context, record Record) error
	// Flush ensures all buffered data is written to the sink.
	Flush() error
	// Close releases any resources held by the data sink.
	Close() error
}

// Transformer defines the interface for record-level transformation at load time.
type Transformer interface {
	// Transform applies the transformation to a record and returns the result.
	Transform(ctx context.Context, record Record) (Record, error)
}

// Stage is one batch step of the feature pipeline. A stage sees the whole
// dataset, validates its preconditions before mutating anything and either
// succeeds for every row or returns an error leaving the dataset unchanged.
type Stage interface {
	// Name identifies the stage in errors, logs and metrics.
	Name() string
	// Apply fits the stage on the dataset and transforms it in place.
	Apply(ctx context.Context, ds *Dataset) error
}

// ColumnarSink is implemented by sinks that need the output column order
// before the first record arrives (CSV header, Parquet schema, SQL table).
type ColumnarSink interface {
	DataSink
	// SetColumns fixes the output column order.
	SetColumns(columns []string)
}

// ColumnarSource is implemented by sources that know their column order
// (CSV header, SQL select list). Sources without it get their columns sorted.
type ColumnarSource interface {
	DataSource
	// Columns returns the source's column order.
	Columns() []string
}

// Aborter is implemented by sinks and writers that can discard what they
// have received instead of committing it.
type Aborter interface {
	// Abort releases resources without persisting any output.
	Abort() error
}

// Discard aborts c when it is an Aborter and closes it otherwise.
func Discard(c io.Closer) error {
	if a, ok := c.(Aborter); ok {
		return a.Abort()
	}
	return c.Close()
}
