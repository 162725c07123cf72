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

package transform

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aaronlmathis/featurekit/core"
)

// Package transform provides record-level load transforms and the column
// drop stage for FeatureKit pipelines.
//
// Record transforms run once per record as it is read; they return
// core.Transformer implementations and never mutate their input record.

// DefaultNullTokens are the raw cell values treated as missing at load time.
var DefaultNullTokens = []string{"", "NA", "N/A", "NaN", "nan", "null", "NULL", "None"}

// Chain applies transformers in order.
func Chain(transformers ...core.Transformer) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		var err error
		for _, t := range transformers {
			if record, err = t.Transform(ctx, record); err != nil {
				return nil, err
			}
		}
		return record, nil
	})
}

// Rename creates a transformer that renames fields according to the provided mapping.
// Keys are original field names, values are new field names.
func Rename(mapping map[string]string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := make(core.Record, len(record))
		for key, value := range record {
			if newKey, exists := mapping[key]; exists {
				result[newKey] = value
			} else {
				result[key] = value
			}
		}
		return result, nil
	})
}

// TrimSpace trims whitespace from the given string fields, or from every
// string field when none are given.
func TrimSpace(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		if len(fields) == 0 {
			for k, v := range record {
				if str, ok := v.(string); ok {
					result[k] = strings.TrimSpace(str)
				}
			}
			return result, nil
		}
		for _, field := range fields {
			if str, ok := record[field].(string); ok {
				result[field] = strings.TrimSpace(str)
			}
		}
		return result, nil
	})
}

// NullTokens replaces string values equal to one of the tokens with nil.
func NullTokens(tokens ...string) core.Transformer {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		for k, v := range record {
			if str, ok := v.(string); ok && set[strings.TrimSpace(str)] {
				result[k] = nil
			}
		}
		return result, nil
	})
}

// ToFloat converts the given fields to float64. Missing values become nil;
// anything else that does not parse is an error.
func ToFloat(fields ...string) core.Transformer {
	return core.TransformFunc(func(ctx context.Context, record core.Record) (core.Record, error) {
		result := record.Clone()
		for _, field := range fields {
			value, exists := record[field]
			if !exists {
				continue
			}
			if core.IsMissing(value) {
				result[field] = nil
				continue
			}
			f, ok := core.ToFloat(value)
			if !ok {
				return nil, fmt.Errorf("failed to convert field %s: %q is not numeric", field, core.FormatValue(value))
			}
			result[field] = f
		}
		return result, nil
	})
}

// DropStage is the name of the column drop stage.
const DropStage = "drop"

// Drop returns a stage removing the listed columns. Every listed column must
// be present; an absent one is a SchemaError and nothing is removed.
func Drop(columns ...string) core.Stage {
	cols := append([]string(nil), columns...)
	return core.StageFunc{
		StageName: DropStage,
		Fn: func(ctx context.Context, ds *core.Dataset) error {
			seen := make(map[string]bool, len(cols))
			for _, c := range cols {
				if seen[c] {
					return core.NewColumnError(DropStage, core.ErrSchema, c, errors.New("column listed twice"))
				}
				seen[c] = true
			}
			if err := ds.Require(DropStage, cols...); err != nil {
				return err
			}
			ds.DropColumns(cols...)
			return ctx.Err()
		},
	}
}
