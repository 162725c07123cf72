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

// Package impute fills missing numeric values with the column median and
// missing categorical values with the column mode.
package impute

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aaronlmathis/featurekit/core"
)

// StageName identifies the imputer in errors and logs.
const StageName = "impute"

var errAllMissing = errors.New("no non-missing values in column")

// Imputer learns per-column fill values from a dataset.
type Imputer struct {
	numeric     []string
	categorical []string
	parallelism int
}

// Option configures an Imputer.
type Option func(*Imputer)

// WithParallelism fits up to n columns concurrently. Values below 2 fit sequentially.
func WithParallelism(n int) Option {
	return func(im *Imputer) { im.parallelism = n }
}

// New creates an Imputer for two disjoint column sets.
func New(numeric, categorical []string, opts ...Option) *Imputer {
	im := &Imputer{
		numeric:     append([]string(nil), numeric...),
		categorical: append([]string(nil), categorical...),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Name implements core.Stage.
func (im *Imputer) Name() string { return StageName }

// Apply implements core.Stage: Fit followed by Transform on the same dataset.
func (im *Imputer) Apply(ctx context.Context, ds *core.Dataset) error {
	stats, err := im.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return stats.Transform(ctx, ds)
}

// Statistics holds learned fill values. It is immutable once returned by Fit.
type Statistics struct {
	numeric     []string
	categorical []string
	medians     map[string]float64
	modes       map[string]string
}

// Median returns the fill value learned for a numeric column.
func (s *Statistics) Median(column string) (float64, bool) {
	v, ok := s.medians[column]
	return v, ok
}

// Mode returns the fill value learned for a categorical column.
func (s *Statistics) Mode(column string) (string, bool) {
	v, ok := s.modes[column]
	return v, ok
}

// Fit computes the median of each numeric column and the mode of each
// categorical column, ignoring missing entries.
func (im *Imputer) Fit(ctx context.Context, ds *core.Dataset) (*Statistics, error) {
	if err := im.validate(ds); err != nil {
		return nil, err
	}

	medians := make([]float64, len(im.numeric))
	modes := make([]string, len(im.categorical))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(im.parallelism, 1))
	for i, col := range im.numeric {
		i, col := i, col // per-iteration copy; go.mod targets go1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := columnMedian(ds, col)
			if err != nil {
				return err
			}
			medians[i] = m
			return nil
		})
	}
	for i, col := range im.categorical {
		i, col := i, col // per-iteration copy; go.mod targets go1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := columnMode(ds, col)
			if err != nil {
				return err
			}
			modes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &Statistics{
		numeric:     im.numeric,
		categorical: im.categorical,
		medians:     make(map[string]float64, len(medians)),
		modes:       make(map[string]string, len(modes)),
	}
	for i, col := range im.numeric {
		stats.medians[col] = medians[i]
	}
	for i, col := range im.categorical {
		stats.modes[col] = modes[i]
	}
	return stats, nil
}

// Transform replaces every missing value in the fitted columns.
func (s *Statistics) Transform(ctx context.Context, ds *core.Dataset) error {
	for _, col := range append(append([]string(nil), s.numeric...), s.categorical...) {
		if err := ds.Require(StageName, col); err != nil {
			return err
		}
	}
	for i := 0; i < ds.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row := ds.Row(i)
		for _, col := range s.numeric {
			if core.IsMissing(row[col]) {
				row[col] = s.medians[col]
			}
		}
		for _, col := range s.categorical {
			if core.IsMissing(row[col]) {
				row[col] = s.modes[col]
			}
		}
	}
	return nil
}

func (im *Imputer) validate(ds *core.Dataset) error {
	seen := make(map[string]bool, len(im.numeric))
	for _, col := range im.numeric {
		seen[col] = true
	}
	for _, col := range im.categorical {
		if seen[col] {
			return core.NewColumnError(StageName, core.ErrSchema, col, errors.New("column is both numeric and categorical"))
		}
	}
	if err := ds.Require(StageName, im.numeric...); err != nil {
		return err
	}
	return ds.Require(StageName, im.categorical...)
}

// columnMedian is the median of the non-missing values; an even count averages
// the two middle values.
func columnMedian(ds *core.Dataset, column string) (float64, error) {
	values := make([]float64, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		v := ds.Row(i)[column]
		if core.IsMissing(v) {
			continue
		}
		f, ok := core.ToFloat(v)
		if !ok {
			return 0, core.NewRowError(StageName, core.ErrSchema, column, i, v, errors.New("expected a numeric value"))
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return 0, core.NewColumnError(StageName, core.ErrImputation, column, errAllMissing)
	}
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2], nil
	}
	return (values[n/2-1] + values[n/2]) / 2, nil
}

// columnMode is the most frequent non-missing value; ties go to the
// lexicographically smallest value.
func columnMode(ds *core.Dataset, column string) (string, error) {
	counts := make(map[string]int)
	for i := 0; i < ds.Len(); i++ {
		v := ds.Row(i)[column]
		if core.IsMissing(v) {
			continue
		}
		counts[core.FormatValue(v)]++
	}
	if len(counts) == 0 {
		return "", core.NewColumnError(StageName, core.ErrImputation, column, errAllMissing)
	}
	var (
		best  string
		count int
	)
	for v, c := range counts {
		if c > count || (c == count && v < best) {
			best, count = v, c
		}
	}
	return best, nil
}
