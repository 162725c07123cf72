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

package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaronlmathis/featurekit/core"
)

// StageName identifies the aggregate builder in errors and logs.
const StageName = "aggregate"

// Output columns of the default features.
const (
	CLVColumn               = "CLV"
	PurchaseFrequencyColumn = "PurchaseFrequency"
	PopularityScoreColumn   = "PopularityScore"
)

// Op selects the reduction of a Feature.
type Op int

const (
	OpCount Op = iota
	OpSum
	OpAvg
)

// Feature is one grouped aggregate joined back as column Name.
type Feature struct {
	Name  string
	Key   string
	Op    Op
	Field string
}

// DefaultFeatures returns customer lifetime value (sum of monetary per
// customer), purchase frequency (rows per customer) and product popularity
// (rows per product).
func DefaultFeatures(customer, monetary, product string) []Feature {
	return []Feature{
		{Name: CLVColumn, Key: customer, Op: OpSum, Field: monetary},
		{Name: PurchaseFrequencyColumn, Key: customer, Op: OpCount},
		{Name: PopularityScoreColumn, Key: product, Op: OpCount},
	}
}

// Builder computes grouped aggregates and joins them back onto every row.
type Builder struct {
	features []Feature
}

// NewBuilder creates a Builder for the given features.
func NewBuilder(features ...Feature) *Builder {
	return &Builder{features: append([]Feature(nil), features...)}
}

// Name implements core.Stage.
func (b *Builder) Name() string { return StageName }

// Apply implements core.Stage.
func (b *Builder) Apply(ctx context.Context, ds *core.Dataset) error {
	agg, err := b.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return agg.Transform(ctx, ds)
}

// Aggregates is a fitted Builder. It remembers the group key of every row it
// was fitted on, so the join can run after later stages rewrite the key and
// monetary columns.
type Aggregates struct {
	features []Feature
	rowKeys  map[string][]string
	tables   map[string][]core.Record
}

// Fit runs one GroupBy per distinct key column and records each row's key.
func (b *Builder) Fit(ctx context.Context, ds *core.Dataset) (*Aggregates, error) {
	seenNames := make(map[string]bool, len(b.features))
	var keys []string
	byKey := make(map[string]*GroupBy)
	for _, f := range b.features {
		if seenNames[f.Name] {
			return nil, core.NewColumnError(StageName, core.ErrSchema, f.Name, errors.New("duplicate aggregate column"))
		}
		seenNames[f.Name] = true
		if err := ds.Require(StageName, f.Key); err != nil {
			return nil, err
		}
		g, ok := byKey[f.Key]
		if !ok {
			g = NewGroupBy(f.Key)
			byKey[f.Key] = g
			keys = append(keys, f.Key)
		}
		switch f.Op {
		case OpCount:
			g.Count(f.Name)
		case OpSum:
			if err := ds.Require(StageName, f.Field); err != nil {
				return nil, err
			}
			g.Sum(f.Field, f.Name)
		case OpAvg:
			if err := ds.Require(StageName, f.Field); err != nil {
				return nil, err
			}
			g.Avg(f.Field, f.Name)
		default:
			return nil, core.NewColumnError(StageName, core.ErrSchema, f.Name, fmt.Errorf("unknown aggregate op %d", f.Op))
		}
	}

	records := make([]core.Record, ds.Len())
	for i := range records {
		records[i] = ds.Row(i)
	}

	agg := &Aggregates{
		features: b.features,
		rowKeys:  make(map[string][]string, len(keys)),
		tables:   make(map[string][]core.Record, len(keys)),
	}
	for _, key := range keys {
		table, err := byKey[key].Process(ctx, records)
		if err != nil {
			return nil, core.NewColumnError(StageName, core.ErrAggregationJoin, key, err)
		}
		rowKeys := make([]string, len(records))
		for i, r := range records {
			rowKeys[i] = Key(r[key])
		}
		agg.tables[key] = table
		agg.rowKeys[key] = rowKeys
	}
	return agg, nil
}

// OutputColumns lists the aggregate columns in feature order.
func (a *Aggregates) OutputColumns() []string {
	out := make([]string, len(a.features))
	for i, f := range a.features {
		out[i] = f.Name
	}
	return out
}

// Lookup returns the aggregate of one feature for one group key.
func (a *Aggregates) Lookup(feature, key string) (float64, bool) {
	for _, f := range a.features {
		if f.Name != feature {
			continue
		}
		for _, r := range a.tables[f.Key] {
			if r[f.Key] == key {
				v, ok := r[f.Name].(float64)
				return v, ok
			}
		}
	}
	return 0, false
}

// Transform joins every aggregate back onto the rows it was fitted on. The
// join must match exactly one group per row; a different row count, a row
// whose group is absent or a group key appearing twice is an
// AggregationJoinError.
func (a *Aggregates) Transform(ctx context.Context, ds *core.Dataset) error {
	for _, f := range a.features {
		if ds.HasColumn(f.Name) {
			return core.NewColumnError(StageName, core.ErrSchema, f.Name, errors.New("aggregate column already exists"))
		}
	}

	columns := make([][]float64, len(a.features))
	for j, f := range a.features {
		if err := ctx.Err(); err != nil {
			return err
		}
		rowKeys := a.rowKeys[f.Key]
		if len(rowKeys) != ds.Len() {
			return core.NewColumnError(StageName, core.ErrAggregationJoin, f.Name,
				fmt.Errorf("fitted on %d rows, joining onto %d", len(rowKeys), ds.Len()))
		}
		index := make(map[string]float64, len(a.tables[f.Key]))
		for _, r := range a.tables[f.Key] {
			k, _ := r[f.Key].(string)
			if _, dup := index[k]; dup {
				return core.NewRowError(StageName, core.ErrAggregationJoin, f.Key, core.NoRow, k,
					errors.New("group key matches more than one aggregate"))
			}
			index[k] = r[f.Name].(float64)
		}
		values := make([]float64, len(rowKeys))
		for i, k := range rowKeys {
			v, ok := index[k]
			if !ok {
				return core.NewRowError(StageName, core.ErrAggregationJoin, f.Key, i, k, errors.New("no aggregate for group"))
			}
			values[i] = v
		}
		columns[j] = values
	}

	for j, f := range a.features {
		if err := ds.SetFloats(f.Name, columns[j]); err != nil {
			return core.NewColumnError(StageName, core.ErrAggregationJoin, f.Name, err)
		}
	}
	return nil
}
