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

package validators

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/featurekit/core"
)

func retailSchema() core.Schema {
	return core.Schema{
		"Age":    core.KindNumeric,
		"Income": core.KindCategorical,
		"Date":   core.KindDate,
	}
}

func TestSchemaValidator_Validate(t *testing.T) {
	v := NewSchemaValidator(retailSchema())
	assert.Equal(t, []string{"Age", "Date", "Income"}, v.Columns())

	columns := []string{"Age", "Income", "Date", "Notes"}
	records := []core.Record{
		{"Age": "31", "Income": "High", "Date": "2024-01-02", "Notes": 5},
		{"Age": nil, "Income": "  ", "Date": "2024-01-03"},
	}

	ds, err := v.Validate(context.Background(), columns, records)
	require.NoError(t, err)
	assert.Equal(t, columns, ds.Columns())
	assert.Equal(t, core.Record{"Age": 31.0, "Income": "High", "Date": "2024-01-02", "Notes": "5"}, ds.Row(0))
	assert.Equal(t, core.Record{"Age": nil, "Income": nil, "Date": "2024-01-03", "Notes": nil}, ds.Row(1))
}

func TestSchemaValidator_Errors(t *testing.T) {
	ctx := context.Background()
	columns := []string{"Age", "Income", "Date"}

	t.Run("no records", func(t *testing.T) {
		_, err := NewSchemaValidator(retailSchema()).Validate(ctx, columns, nil)
		require.ErrorIs(t, err, core.ErrLoad)
	})

	t.Run("min records disabled", func(t *testing.T) {
		v := &SchemaValidator{Schema: retailSchema()}
		ds, err := v.Validate(ctx, columns, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, ds.Len())
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := NewSchemaValidator(retailSchema()).Validate(ctx, []string{"Age", "Date"}, []core.Record{{"Age": 1.0}})
		require.ErrorIs(t, err, core.ErrSchema)
		var pe *core.PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Income", pe.Column)
		assert.Equal(t, LoadStage, pe.Stage)
	})

	t.Run("non-numeric", func(t *testing.T) {
		records := []core.Record{
			{"Age": "31", "Income": "Low", "Date": "2024-01-02"},
			{"Age": "old", "Income": "Low", "Date": "2024-01-02"},
		}
		_, err := NewSchemaValidator(retailSchema()).Validate(ctx, columns, records)
		require.ErrorIs(t, err, core.ErrSchema)
		var pe *core.PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 1, pe.Row)
		assert.Equal(t, "old", pe.Value)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewSchemaValidator(retailSchema()).Validate(cctx, columns, []core.Record{{"Age": 1.0}})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestFeatureMatrix(t *testing.T) {
	ds := core.NewDataset([]string{"Age", "CLV"}, []core.Record{
		{"Age": -1.0, "CLV": 150.0},
		{"Age": 1.0, "CLV": 30.0},
	})
	m, err := FeatureMatrix(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "CLV"}, m.Columns)
	assert.Equal(t, [][]float64{{-1, 150}, {1, 30}}, m.Rows)

	for name, bad := range map[string]interface{}{
		"nan":    math.NaN(),
		"inf":    math.Inf(1),
		"string": "Low",
		"nil":    nil,
	} {
		t.Run(name, func(t *testing.T) {
			ds := core.NewDataset([]string{"Age", "Income"}, []core.Record{
				{"Age": 1.0, "Income": 0.0},
				{"Age": 2.0, "Income": bad},
			})
			_, err := FeatureMatrix(context.Background(), ds)
			require.ErrorIs(t, err, core.ErrSchema)
			var pe *core.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, MatrixStage, pe.Stage)
			assert.Equal(t, "Income", pe.Column)
			assert.Equal(t, 1, pe.Row)
		})
	}
}
