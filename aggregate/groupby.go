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
	"fmt"
	"sort"

	"github.com/aaronlmathis/featurekit/core"
)

// GroupBy groups records by one key field and runs a set of aggregators per group.
type GroupBy struct {
	keyField    string
	outputs     []string
	aggregators map[string]Aggregator
}

// NewGroupBy creates a GroupBy over keyField.
func NewGroupBy(keyField string) *GroupBy {
	return &GroupBy{
		keyField:    keyField,
		aggregators: make(map[string]Aggregator),
	}
}

// Count adds a count aggregator for the specified output field.
func (g *GroupBy) Count(outputField string) *GroupBy {
	return g.add(outputField, &CountAggregator{})
}

// Sum adds a sum aggregator for the specified field.
func (g *GroupBy) Sum(field, outputField string) *GroupBy {
	return g.add(outputField, &SumAggregator{Field: field})
}

// Avg adds an average aggregator for the specified field.
func (g *GroupBy) Avg(field, outputField string) *GroupBy {
	return g.add(outputField, &AvgAggregator{Field: field})
}

func (g *GroupBy) add(outputField string, agg Aggregator) *GroupBy {
	if _, exists := g.aggregators[outputField]; !exists {
		g.outputs = append(g.outputs, outputField)
	}
	g.aggregators[outputField] = agg
	return g
}

// Key renders the group key of a value. Missing values share the "" group.
func Key(value interface{}) string {
	if core.IsMissing(value) {
		return ""
	}
	return core.FormatValue(value)
}

// Process aggregates records and returns one result record per group, sorted
// by key. Each result holds the key field and every output field.
func (g *GroupBy) Process(ctx context.Context, records []core.Record) ([]core.Record, error) {
	groups := make(map[string]map[string]Aggregator)

	for i, record := range records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		key := Key(record[g.keyField])

		aggs, exists := groups[key]
		if !exists {
			aggs = make(map[string]Aggregator, len(g.aggregators))
			for outputField, agg := range g.aggregators {
				aggs[outputField] = agg.Clone()
			}
			groups[key] = aggs
		}

		for _, outputField := range g.outputs {
			if err := aggs[outputField].Add(ctx, record); err != nil {
				return nil, fmt.Errorf("aggregation error for field %s at row %d: %w", outputField, i, err)
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]core.Record, 0, len(keys))
	for _, key := range keys {
		result := core.Record{g.keyField: key}
		for _, outputField := range g.outputs {
			result[outputField] = groups[key][outputField].Result()
		}
		results = append(results, result)
	}
	return results, nil
}
