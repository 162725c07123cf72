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

package encode

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aaronlmathis/featurekit/core"
)

// IndicatorName is the output column for one category: <column>_<category>.
func IndicatorName(column, category string) string {
	return column + "_" + category
}

// OneHotEncoder replaces each column with one indicator column per category.
// The source column is dropped.
type OneHotEncoder struct {
	columns []string
	fixed   map[string][]string
}

// NewOneHotEncoder creates a OneHotEncoder for the given columns.
func NewOneHotEncoder(columns ...string) *OneHotEncoder {
	return &OneHotEncoder{
		columns: append([]string(nil), columns...),
		fixed:   make(map[string][]string),
	}
}

// WithCategories fixes a column's categories and their order. Every listed
// category gets an indicator even if no row has it; a value outside the list
// is an UnknownCategoryError.
func (e *OneHotEncoder) WithCategories(column string, categories ...string) *OneHotEncoder {
	e.fixed[column] = append([]string(nil), categories...)
	return e
}

// Name implements core.Stage.
func (e *OneHotEncoder) Name() string { return OneHotStage }

// Apply implements core.Stage.
func (e *OneHotEncoder) Apply(ctx context.Context, ds *core.Dataset) error {
	cats, err := e.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return cats.Transform(ctx, ds)
}

// OneHotCategories is the fitted category set of a OneHotEncoder.
type OneHotCategories struct {
	columns    []string
	categories map[string][]string
	index      map[string]map[string]int
}

// Fit collects the categories of each column. Observed categories are sorted
// numerically when every category is a number and lexicographically otherwise.
func (e *OneHotEncoder) Fit(ctx context.Context, ds *core.Dataset) (*OneHotCategories, error) {
	if err := ds.Require(OneHotStage, e.columns...); err != nil {
		return nil, err
	}
	oc := &OneHotCategories{
		columns:    e.columns,
		categories: make(map[string][]string, len(e.columns)),
		index:      make(map[string]map[string]int, len(e.columns)),
	}
	for _, col := range e.columns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cats []string
		if fixed, ok := e.fixed[col]; ok {
			cats = fixed
		} else {
			seen := make(map[string]bool)
			for i := 0; i < ds.Len(); i++ {
				v := ds.Row(i)[col]
				if core.IsMissing(v) {
					return nil, core.NewRowError(OneHotStage, core.ErrImputation, col, i, nil, errMissingValue)
				}
				seen[core.FormatValue(v)] = true
			}
			cats = make([]string, 0, len(seen))
			for c := range seen {
				cats = append(cats, c)
			}
			SortCategories(cats)
		}
		idx := make(map[string]int, len(cats))
		for i, c := range cats {
			idx[c] = i
		}
		oc.categories[col] = cats
		oc.index[col] = idx
	}
	return oc, nil
}

// Categories returns a column's categories in indicator order.
func (oc *OneHotCategories) Categories(column string) []string {
	return append([]string(nil), oc.categories[column]...)
}

// OutputColumns lists every indicator column in output order.
func (oc *OneHotCategories) OutputColumns() []string {
	var out []string
	for _, col := range oc.columns {
		for _, c := range oc.categories[col] {
			out = append(out, IndicatorName(col, c))
		}
	}
	return out
}

// Transform writes the indicator columns and drops the sources. Exactly one
// indicator per source column is 1 on every row.
func (oc *OneHotCategories) Transform(ctx context.Context, ds *core.Dataset) error {
	if err := ds.Require(OneHotStage, oc.columns...); err != nil {
		return err
	}
	sources := make(map[string]bool, len(oc.columns))
	for _, col := range oc.columns {
		sources[col] = true
	}
	produced := make(map[string]bool)
	for _, name := range oc.OutputColumns() {
		if produced[name] {
			return core.NewColumnError(OneHotStage, core.ErrSchema, name, errors.New("indicator column produced twice"))
		}
		produced[name] = true
		if ds.HasColumn(name) && !sources[name] {
			return core.NewColumnError(OneHotStage, core.ErrSchema, name, errors.New("indicator column collides with an existing column"))
		}
	}

	hot := make(map[string][]int, len(oc.columns))
	for _, col := range oc.columns {
		positions := make([]int, ds.Len())
		for i := 0; i < ds.Len(); i++ {
			v := ds.Row(i)[col]
			if core.IsMissing(v) {
				return core.NewRowError(OneHotStage, core.ErrImputation, col, i, nil, errMissingValue)
			}
			p, ok := oc.index[col][core.FormatValue(v)]
			if !ok {
				return core.NewRowError(OneHotStage, core.ErrUnknownCategory, col, i, v,
					fmt.Errorf("category not in %v", oc.categories[col]))
			}
			positions[i] = p
		}
		hot[col] = positions
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ds.DropColumns(oc.columns...)
	for _, col := range oc.columns {
		for k, c := range oc.categories[col] {
			values := make([]float64, ds.Len())
			for i, p := range hot[col] {
				if p == k {
					values[i] = 1
				}
			}
			if err := ds.SetFloats(IndicatorName(col, c), values); err != nil {
				return core.NewColumnError(OneHotStage, core.ErrSchema, col, err)
			}
		}
	}
	return nil
}

// SortCategories orders category labels numerically when all of them parse as
// numbers, lexicographically otherwise.
func SortCategories(cats []string) {
	numeric := true
	nums := make(map[string]float64, len(cats))
	for _, c := range cats {
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[c] = f
	}
	if numeric {
		sort.SliceStable(cats, func(i, j int) bool {
			if nums[cats[i]] != nums[cats[j]] {
				return nums[cats[i]] < nums[cats[j]]
			}
			return cats[i] < cats[j]
		})
		return
	}
	sort.Strings(cats)
}
