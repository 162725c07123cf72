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

	"github.com/aaronlmathis/featurekit/core"
)

// MissingCode is the code given to a missing value by CategoryCodes.
const MissingCode = -1

// CategoryCodes derives a target column holding the index of each value among
// the sorted distinct values of a source column. The source is kept.
type CategoryCodes struct {
	source string
	output string
}

// NewCategoryCodes creates a CategoryCodes stage writing to output.
func NewCategoryCodes(source, output string) *CategoryCodes {
	return &CategoryCodes{source: source, output: output}
}

// Name implements core.Stage.
func (c *CategoryCodes) Name() string { return CodesStage }

// Apply implements core.Stage.
func (c *CategoryCodes) Apply(ctx context.Context, ds *core.Dataset) error {
	if err := ds.Require(CodesStage, c.source); err != nil {
		return err
	}
	if c.output != c.source && ds.HasColumn(c.output) {
		return core.NewColumnError(CodesStage, core.ErrSchema, c.output, errors.New("target column already exists"))
	}
	seen := make(map[string]bool)
	for i := 0; i < ds.Len(); i++ {
		v := ds.Row(i)[c.source]
		if !core.IsMissing(v) {
			seen[core.FormatValue(v)] = true
		}
	}
	cats := make([]string, 0, len(seen))
	for k := range seen {
		cats = append(cats, k)
	}
	SortCategories(cats)
	index := make(map[string]int, len(cats))
	for i, k := range cats {
		index[k] = i
	}

	out := make([]float64, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		v := ds.Row(i)[c.source]
		if core.IsMissing(v) {
			out[i] = MissingCode
			continue
		}
		out[i] = float64(index[core.FormatValue(v)])
	}
	if err := ds.SetFloats(c.output, out); err != nil {
		return core.NewColumnError(CodesStage, core.ErrSchema, c.output, err)
	}
	return ctx.Err()
}
