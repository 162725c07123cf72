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
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Package core defines the core types for the FeatureKit library.
//
// FeatureKit turns a raw retail transaction table into a numeric feature matrix.
// Records stream in from a DataSource, are collected into a Dataset, pass through
// a fixed sequence of batch stages and leave as a FeatureMatrix through a DataSink.
//
// This file contains the record, schema and function adapter types.

// Record represents a single transaction row.
// Values are nil (missing), float64 (numeric) or string (everything else) once loaded.
type Record map[string]interface{}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Kind is the semantic type of a column, declared once in the Schema.
type Kind int

const (
	// KindNumeric columns are parsed to float64 at load time.
	KindNumeric Kind = iota
	// KindCategorical columns hold discrete string values.
	KindCategorical
	// KindText columns hold free text.
	KindText
	// KindDate columns hold calendar dates.
	KindDate
	// KindTime columns hold times of day.
	KindTime
	// KindIdentifier columns hold personal or join-only identifiers.
	KindIdentifier
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNumeric:
		return "numeric"
	case KindCategorical:
		return "categorical"
	case KindText:
		return "text"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindIdentifier:
		return "identifier"
	default:
		return "unknown"
	}
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "numeric":
		return KindNumeric, true
	case "categorical":
		return KindCategorical, true
	case "text":
		return KindText, true
	case "date":
		return KindDate, true
	case "time":
		return KindTime, true
	case "identifier":
		return KindIdentifier, true
	}
	return 0, false
}

// Schema maps column names to their semantic kind.
// Every column in the schema must be present in the input.
type Schema map[string]Kind

// Columns returns the schema's column names of the given kind, in no particular order.
func (s Schema) Columns(kind Kind) []string {
	var out []string
	for name, k := range s {
		if k == kind {
			out = append(out, name)
		}
	}
	return out
}

// IsMissing reports whether a value counts as missing.
func IsMissing(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(t)
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// FormatValue renders a value the same way everywhere it becomes a category
// label, a group key or an output cell.
func FormatValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ToFloat converts a loaded value to float64.
func ToFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t)
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// TransformFunc is a function adapter for the Transformer interface.
// Allows ordinary functions to be used as Transformers.
type TransformFunc func(ctx context.Context, record Record) (Record, error)

// Transform implements the Transformer interface for TransformFunc.
func (f TransformFunc) Transform(ctx context.Context, record Record) (Record, error) {
	return f(ctx, record)
}

// StageFunc is a function adapter for the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, ds *Dataset) error
}

// Name implements Stage.
func (s StageFunc) Name() string { return s.StageName }

// Apply implements Stage.
func (s StageFunc) Apply(ctx context.Context, ds *Dataset) error { return s.Fn(ctx, ds) }
