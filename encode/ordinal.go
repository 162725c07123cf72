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
	"fmt"

	"github.com/aaronlmathis/featurekit/core"
)

// OrdinalSpec is a column with an externally fixed category order.
type OrdinalSpec struct {
	Column     string
	Categories []string // lowest rank first
}

// OrdinalEncoder maps each category to its rank 0..k-1 in a fixed order.
// The ranks are fixed up front, so the encoder has nothing to learn.
type OrdinalEncoder struct {
	specs []OrdinalSpec
	ranks map[string]map[string]int
}

// NewOrdinalEncoder creates an encoder from one or more ordinal specs.
// A duplicated category within a spec is a configuration error.
func NewOrdinalEncoder(specs ...OrdinalSpec) (*OrdinalEncoder, error) {
	e := &OrdinalEncoder{
		specs: make([]OrdinalSpec, 0, len(specs)),
		ranks: make(map[string]map[string]int, len(specs)),
	}
	for _, s := range specs {
		if s.Column == "" || len(s.Categories) == 0 {
			return nil, fmt.Errorf("ordinal spec needs a column and at least one category")
		}
		ranks := make(map[string]int, len(s.Categories))
		for i, c := range s.Categories {
			if _, dup := ranks[c]; dup {
				return nil, fmt.Errorf("ordinal spec %s: duplicate category %q", s.Column, c)
			}
			ranks[c] = i
		}
		e.ranks[s.Column] = ranks
		e.specs = append(e.specs, OrdinalSpec{Column: s.Column, Categories: append([]string(nil), s.Categories...)})
	}
	return e, nil
}

// Name implements core.Stage.
func (e *OrdinalEncoder) Name() string { return OrdinalStage }

// Rank returns the configured rank of a category.
func (e *OrdinalEncoder) Rank(column, category string) (int, bool) {
	r, ok := e.ranks[column][category]
	return r, ok
}

// Apply implements core.Stage. Every value is checked before any is replaced;
// a value outside the configured set is an UnknownCategoryError.
func (e *OrdinalEncoder) Apply(ctx context.Context, ds *core.Dataset) error {
	encoded := make([][]float64, len(e.specs))
	for k, s := range e.specs {
		if err := ds.Require(OrdinalStage, s.Column); err != nil {
			return err
		}
		out := make([]float64, ds.Len())
		for i := 0; i < ds.Len(); i++ {
			v := ds.Row(i)[s.Column]
			if core.IsMissing(v) {
				return core.NewRowError(OrdinalStage, core.ErrImputation, s.Column, i, nil, errMissingValue)
			}
			rank, ok := e.ranks[s.Column][core.FormatValue(v)]
			if !ok {
				return core.NewRowError(OrdinalStage, core.ErrUnknownCategory, s.Column, i, v,
					fmt.Errorf("value outside configured categories %v", s.Categories))
			}
			out[i] = float64(rank)
		}
		encoded[k] = out
	}
	for k, s := range e.specs {
		if err := ds.SetFloats(s.Column, encoded[k]); err != nil {
			return core.NewColumnError(OrdinalStage, core.ErrSchema, s.Column, err)
		}
	}
	return ctx.Err()
}
