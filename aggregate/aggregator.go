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

// Package aggregate computes per-group statistics and joins them back onto
// every member row.
package aggregate

import (
	"context"
	"fmt"

	"github.com/aaronlmathis/featurekit/core"
)

// Aggregator reduces the records of one group to a scalar.
type Aggregator interface {
	// Add folds one record into the aggregate.
	Add(ctx context.Context, record core.Record) error
	// Result returns the aggregate of every record added so far.
	Result() float64
	// Reset clears the aggregator state for reuse.
	Reset()
	// Clone returns an empty aggregator of the same configuration.
	Clone() Aggregator
}

// CountAggregator counts records.
type CountAggregator struct {
	count int
}

func (c *CountAggregator) Add(ctx context.Context, record core.Record) error {
	c.count++
	return nil
}

func (c *CountAggregator) Result() float64 { return float64(c.count) }

func (c *CountAggregator) Reset() { c.count = 0 }

func (c *CountAggregator) Clone() Aggregator { return &CountAggregator{} }

// SumAggregator sums a numeric field. A missing or non-numeric value is an error.
type SumAggregator struct {
	Field string
	sum   float64
}

func (s *SumAggregator) Add(ctx context.Context, record core.Record) error {
	v := record[s.Field]
	num, ok := core.ToFloat(v)
	if !ok {
		return fmt.Errorf("field %s: cannot sum %v (%T)", s.Field, v, v)
	}
	s.sum += num
	return nil
}

func (s *SumAggregator) Result() float64 { return s.sum }

func (s *SumAggregator) Reset() { s.sum = 0 }

func (s *SumAggregator) Clone() Aggregator { return &SumAggregator{Field: s.Field} }

// AvgAggregator averages a numeric field.
type AvgAggregator struct {
	Field string
	sum   float64
	count int
}

func (a *AvgAggregator) Add(ctx context.Context, record core.Record) error {
	v := record[a.Field]
	num, ok := core.ToFloat(v)
	if !ok {
		return fmt.Errorf("field %s: cannot average %v (%T)", a.Field, v, v)
	}
	a.sum += num
	a.count++
	return nil
}

func (a *AvgAggregator) Result() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

func (a *AvgAggregator) Reset() {
	a.sum = 0
	a.count = 0
}

func (a *AvgAggregator) Clone() Aggregator { return &AvgAggregator{Field: a.Field} }
