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

// Package scale standardizes numeric columns to zero mean and unit variance.
package scale

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/aaronlmathis/featurekit/core"
)

// StageName identifies the scaler in errors and logs.
const StageName = "scale"

// relTolerance is the smallest standard deviation, relative to the column's
// magnitude, that is not treated as zero.
const relTolerance = 1e-12

// Scaler standardizes a fixed set of numeric columns in place.
type Scaler struct {
	columns     []string
	parallelism int
}

// Option configures a Scaler.
type Option func(*Scaler)

// WithParallelism fits up to n columns concurrently.
func WithParallelism(n int) Option {
	return func(s *Scaler) { s.parallelism = n }
}

// New creates a Scaler over the given columns.
func New(columns []string, opts ...Option) *Scaler {
	s := &Scaler{columns: append([]string(nil), columns...), parallelism: 1}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements core.Stage.
func (s *Scaler) Name() string { return StageName }

// Apply implements core.Stage.
func (s *Scaler) Apply(ctx context.Context, ds *core.Dataset) error {
	st, err := s.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return st.Transform(ctx, ds)
}

// Standardization holds the learned mean and population standard deviation of
// each column.
type Standardization struct {
	columns []string
	mean    map[string]float64
	std     map[string]float64
}

// Mean returns the learned mean of a column.
func (st *Standardization) Mean(column string) (float64, bool) {
	m, ok := st.mean[column]
	return m, ok
}

// StdDev returns the learned population standard deviation of a column.
func (st *Standardization) StdDev(column string) (float64, bool) {
	sd, ok := st.std[column]
	return sd, ok
}

// Fit computes the mean and population standard deviation of every column.
// A column with (numerically) zero variance is a ScalingError.
func (s *Scaler) Fit(ctx context.Context, ds *core.Dataset) (*Standardization, error) {
	if err := ds.Require(StageName, s.columns...); err != nil {
		return nil, err
	}
	means := make([]float64, len(s.columns))
	stds := make([]float64, len(s.columns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.parallelism, 1))
	for i, col := range s.columns {
		i, col := i, col // per-iteration copy; go.mod targets go1.21 (pre-1.22 loopvar semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values, err := ds.Floats(StageName, col)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return core.NewColumnError(StageName, core.ErrScaling, col, fmt.Errorf("no rows"))
			}
			mean, variance := stat.PopMeanVariance(values, nil)
			sd := math.Sqrt(variance)
			if math.IsNaN(sd) || sd <= relTolerance*math.Max(1, math.Abs(mean)) {
				return core.NewColumnError(StageName, core.ErrScaling, col, fmt.Errorf("zero variance (mean %g)", mean))
			}
			means[i], stds[i] = mean, sd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &Standardization{
		columns: s.columns,
		mean:    make(map[string]float64, len(s.columns)),
		std:     make(map[string]float64, len(s.columns)),
	}
	for i, col := range s.columns {
		st.mean[col] = means[i]
		st.std[col] = stds[i]
	}
	return st, nil
}

// Transform replaces each value v with (v - mean) / std.
func (st *Standardization) Transform(ctx context.Context, ds *core.Dataset) error {
	scaled := make([][]float64, len(st.columns))
	for j, col := range st.columns {
		values, err := ds.Floats(StageName, col)
		if err != nil {
			return err
		}
		mean, sd := st.mean[col], st.std[col]
		for i := range values {
			values[i] = (values[i] - mean) / sd
		}
		scaled[j] = values
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for j, col := range st.columns {
		if err := ds.SetFloats(col, scaled[j]); err != nil {
			return core.NewColumnError(StageName, core.ErrSchema, col, err)
		}
	}
	return nil
}
