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

// validators.go - Load-time schema checks and the final feature matrix check
package validators

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/aaronlmathis/featurekit/core"
)

// LoadStage and MatrixStage name the checks in errors.
const (
	LoadStage   = "load"
	MatrixStage = "feature_matrix"
)

// SchemaValidator checks and types loaded records against a Schema.
// Numeric columns become float64, missing cells become nil and every other
// non-missing cell is kept as its string form.
type SchemaValidator struct {
	Schema     core.Schema
	MinRecords int // Minimum number of records required (0 = none)
}

// NewSchemaValidator creates a SchemaValidator requiring at least one record.
func NewSchemaValidator(schema core.Schema) *SchemaValidator {
	return &SchemaValidator{Schema: schema, MinRecords: 1}
}

// Columns returns the schema columns in sorted order.
func (v *SchemaValidator) Columns() []string {
	cols := make([]string, 0, len(v.Schema))
	for c := range v.Schema {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Validate builds a typed Dataset from raw records. columns is the source's
// column order; schema columns absent from it are a SchemaError. Columns not
// in the schema pass through as strings.
func (v *SchemaValidator) Validate(ctx context.Context, columns []string, records []core.Record) (*core.Dataset, error) {
	if len(records) < v.MinRecords {
		return nil, core.NewColumnError(LoadStage, core.ErrLoad, "",
			fmt.Errorf("insufficient records: got %d, need at least %d", len(records), v.MinRecords))
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range v.Columns() {
		if !present[c] {
			return nil, core.MissingColumnError(LoadStage, c)
		}
	}

	numeric := make(map[string]bool)
	for _, c := range v.Schema.Columns(core.KindNumeric) {
		numeric[c] = true
	}

	rows := make([]core.Record, len(records))
	for i, rec := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := make(core.Record, len(columns))
		for _, c := range columns {
			value := rec[c]
			if core.IsMissing(value) {
				row[c] = nil
				continue
			}
			if numeric[c] {
				f, ok := core.ToFloat(value)
				if !ok {
					return nil, core.NewRowError(LoadStage, core.ErrSchema, c, i, value, errors.New("expected a numeric value"))
				}
				row[c] = f
				continue
			}
			row[c] = core.FormatValue(value)
		}
		rows[i] = row
	}
	return core.NewDataset(columns, rows), nil
}

// FeatureMatrix converts the final dataset into a FeatureMatrix. Every cell
// must be a finite number; a missing or non-numeric cell is a SchemaError
// naming the column and row.
func FeatureMatrix(ctx context.Context, ds *core.Dataset) (*core.FeatureMatrix, error) {
	columns := ds.Columns()
	matrix := &core.FeatureMatrix{Columns: columns, Rows: make([][]float64, ds.Len())}
	for i := 0; i < ds.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		src := ds.Row(i)
		row := make([]float64, len(columns))
		for j, c := range columns {
			value := src[c]
			f, ok := value.(float64)
			if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, core.NewRowError(MatrixStage, core.ErrSchema, c, i, value,
					fmt.Errorf("feature matrix cell must be numeric, got %T", value))
			}
			row[j] = f
		}
		matrix.Rows[i] = row
	}
	return matrix, nil
}
