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
	"errors"
	"fmt"
	"strings"
)

// Package core defines the error handling types for the FeatureKit library.
//
// This file contains the error taxonomy shared by every stage. Stages fail fast:
// the first error halts the pipeline and nothing is written.

// Error kinds. Match them with errors.Is.
var (
	ErrLoad            = errors.New("LoadError")
	ErrImputation      = errors.New("ImputationError")
	ErrUnknownCategory = errors.New("UnknownCategoryError")
	ErrTemporalParse   = errors.New("TemporalParseError")
	ErrScaling         = errors.New("ScalingError")
	ErrAggregationJoin = errors.New("AggregationJoinError")
	ErrSchema          = errors.New("SchemaError")
)

// NoRow marks a PipelineError that is not tied to a single row.
const NoRow = -1

// PipelineError wraps a stage failure with the column and row it concerns.
type PipelineError struct {
	Stage  string      // Stage that failed (e.g., "impute", "scale")
	Kind   error       // One of the Err* kinds above
	Column string      // Offending column, if known
	Row    int         // Offending row index, NoRow if not row-specific
	Value  interface{} // Offending raw value, if any
	Err    error       // Underlying cause
}

// Error returns the error string for PipelineError.
func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	b.WriteString(": ")
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %q", e.Column)
	}
	if e.Row != NoRow {
		fmt.Fprintf(&b, " row %d", e.Row)
	}
	if e.Value != nil {
		fmt.Fprintf(&b, " value %q", FormatValue(e.Value))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches the error kind so errors.Is(err, core.ErrScaling) works.
func (e *PipelineError) Is(target error) bool {
	return e.Kind != nil && e.Kind == target
}

// NewColumnError builds a PipelineError for a whole column.
func NewColumnError(stage string, kind error, column string, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Column: column, Row: NoRow, Err: err}
}

// NewRowError builds a PipelineError for one cell.
func NewRowError(stage string, kind error, column string, row int, value interface{}, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Column: column, Row: row, Value: value, Err: err}
}

// MissingColumnError reports an expected column absent from the dataset.
func MissingColumnError(stage, column string) *PipelineError {
	return NewColumnError(stage, ErrSchema, column, errors.New("expected column absent"))
}
