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

// Package encode converts categorical columns to numbers: nominal label codes,
// ordinal ranks and one-hot indicator columns.
//
// Every encoder is batch: the category vocabulary comes from the data being
// encoded, so Fit sees the whole dataset before Transform rewrites it.
package encode

import (
	"context"
	"errors"

	"github.com/aaronlmathis/featurekit/core"
)

// Stage names used in errors and logs.
const (
	LabelStage   = "encode_label"
	OrdinalStage = "encode_ordinal"
	OneHotStage  = "encode_onehot"
	CodesStage   = "target_codes"
)

var errMissingValue = errors.New("missing value reached the encoder; impute the column first")

// LabelEncoder assigns nominal integer codes in first-observed order.
// Codes carry no rank; consumers must not treat them as distances.
type LabelEncoder struct {
	columns []string
}

// NewLabelEncoder creates a LabelEncoder for the given columns.
func NewLabelEncoder(columns ...string) *LabelEncoder {
	return &LabelEncoder{columns: append([]string(nil), columns...)}
}

// Name implements core.Stage.
func (e *LabelEncoder) Name() string { return LabelStage }

// Apply implements core.Stage.
func (e *LabelEncoder) Apply(ctx context.Context, ds *core.Dataset) error {
	codes, err := e.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return codes.Transform(ctx, ds)
}

// LabelCodes is the fitted vocabulary of a LabelEncoder.
type LabelCodes struct {
	columns []string
	classes map[string][]string
	codes   map[string]map[string]int
}

// Fit records each column's distinct values in the order they first appear.
func (e *LabelEncoder) Fit(ctx context.Context, ds *core.Dataset) (*LabelCodes, error) {
	if err := ds.Require(LabelStage, e.columns...); err != nil {
		return nil, err
	}
	lc := &LabelCodes{
		columns: e.columns,
		classes: make(map[string][]string, len(e.columns)),
		codes:   make(map[string]map[string]int, len(e.columns)),
	}
	for _, col := range e.columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seen := make(map[string]int)
		var classes []string
		for i := 0; i < ds.Len(); i++ {
			v := ds.Row(i)[col]
			if core.IsMissing(v) {
				return nil, core.NewRowError(LabelStage, core.ErrImputation, col, i, nil, errMissingValue)
			}
			s := core.FormatValue(v)
			if _, ok := seen[s]; !ok {
				seen[s] = len(classes)
				classes = append(classes, s)
			}
		}
		lc.classes[col] = classes
		lc.codes[col] = seen
	}
	return lc, nil
}

// Classes returns a column's categories in code order.
func (lc *LabelCodes) Classes(column string) []string {
	return append([]string(nil), lc.classes[column]...)
}

// Code returns the code of one category.
func (lc *LabelCodes) Code(column, value string) (int, bool) {
	c, ok := lc.codes[column][value]
	return c, ok
}

// Transform replaces each category with its code. A value never seen by Fit
// is an UnknownCategoryError.
func (lc *LabelCodes) Transform(ctx context.Context, ds *core.Dataset) error {
	if err := ds.Require(LabelStage, lc.columns...); err != nil {
		return err
	}
	encoded := make(map[string][]float64, len(lc.columns))
	for _, col := range lc.columns {
		out := make([]float64, ds.Len())
		for i := 0; i < ds.Len(); i++ {
			v := ds.Row(i)[col]
			code, ok := lc.codes[col][core.FormatValue(v)]
			if !ok || core.IsMissing(v) {
				return core.NewRowError(LabelStage, core.ErrUnknownCategory, col, i, v, errors.New("category not seen during fit"))
			}
			out[i] = float64(code)
		}
		encoded[col] = out
	}
	for _, col := range lc.columns {
		if err := ds.SetFloats(col, encoded[col]); err != nil {
			return core.NewColumnError(LabelStage, core.ErrSchema, col, err)
		}
	}
	return ctx.Err()
}
