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

package impute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/featurekit/core"
)

func fixture() *core.Dataset {
	return core.NewDataset([]string{"Age", "Amount", "Gender", "City"}, []core.Record{
		{"Age": 30.0, "Amount": 10.0, "Gender": "Female", "City": "Berlin"},
		{"Age": nil, "Amount": 20.0, "Gender": "Male", "City": nil},
		{"Age": 50.0, "Amount": nil, "Gender": nil, "City": "Berlin"},
		{"Age": 20.0, "Amount": 40.0, "Gender": "Female", "City": "Paris"},
	})
}

func TestImputer_FillsMedianAndMode(t *testing.T) {
	ds := fixture()
	stats, err := New([]string{"Age", "Amount"}, []string{"Gender", "City"}).Fit(context.Background(), ds)
	require.NoError(t, err)

	age, ok := stats.Median("Age")
	require.True(t, ok)
	assert.Equal(t, 30.0, age) // 20, 30, 50
	amount, _ := stats.Median("Amount")
	assert.Equal(t, 20.0, amount) // 10, 20, 40
	gender, _ := stats.Mode("Gender")
	assert.Equal(t, "Female", gender)

	// Fit does not mutate
	assert.Nil(t, ds.Row(1)["Age"])

	require.NoError(t, stats.Transform(context.Background(), ds))
	assert.Equal(t, 30.0, ds.Row(1)["Age"])
	assert.Equal(t, 20.0, ds.Row(2)["Amount"])
	assert.Equal(t, "Female", ds.Row(2)["Gender"])
	assert.Equal(t, "Berlin", ds.Row(1)["City"])

	for i := 0; i < ds.Len(); i++ {
		for _, col := range ds.Columns() {
			assert.False(t, core.IsMissing(ds.Row(i)[col]), "row %d column %s", i, col)
		}
	}
}

func TestImputer_MedianProperty(t *testing.T) {
	tests := []struct {
		name   string
		values []interface{}
		want   float64
	}{
		{"odd count", []interface{}{5.0, nil, 1.0, 3.0}, 3},
		{"even count averages middle values", []interface{}{4.0, 1.0, nil, 3.0, 2.0}, 2.5},
		{"single value", []interface{}{nil, 7.0}, 7},
		{"negative values", []interface{}{-1.0, -3.0, nil}, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]core.Record, len(tt.values))
			for i, v := range tt.values {
				rows[i] = core.Record{"x": v}
			}
			ds := core.NewDataset([]string{"x"}, rows)
			require.NoError(t, New([]string{"x"}, nil).Apply(context.Background(), ds))
			for i, v := range tt.values {
				if v == nil {
					assert.Equal(t, tt.want, ds.Row(i)["x"])
				} else {
					assert.Equal(t, v, ds.Row(i)["x"])
				}
			}
		})
	}
}

func TestImputer_ModeTieBreak(t *testing.T) {
	ds := core.NewDataset([]string{"c"}, []core.Record{
		{"c": "b"}, {"c": "a"}, {"c": nil}, {"c": "b"}, {"c": "a"},
	})
	require.NoError(t, New(nil, []string{"c"}).Apply(context.Background(), ds))
	assert.Equal(t, "a", ds.Row(2)["c"])
}

func TestImputer_Errors(t *testing.T) {
	t.Run("all missing", func(t *testing.T) {
		ds := core.NewDataset([]string{"x", "y"}, []core.Record{{"x": nil, "y": 1.0}, {"x": "  ", "y": nil}})
		err := New([]string{"y"}, []string{"x"}).Apply(context.Background(), ds)
		require.ErrorIs(t, err, core.ErrImputation)
		assert.Contains(t, err.Error(), "no non-missing values in column")

		var pe *core.PipelineError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "x", pe.Column)
		// Nothing was filled
		assert.Nil(t, ds.Row(1)["y"])
	})

	t.Run("absent column", func(t *testing.T) {
		err := New([]string{"Age", "Salary"}, nil).Apply(context.Background(), fixture())
		require.ErrorIs(t, err, core.ErrSchema)
	})

	t.Run("overlapping column sets", func(t *testing.T) {
		err := New([]string{"Age"}, []string{"Age"}).Apply(context.Background(), fixture())
		require.ErrorIs(t, err, core.ErrSchema)
	})

	t.Run("non-numeric value in numeric column", func(t *testing.T) {
		err := New([]string{"Gender"}, nil).Apply(context.Background(), fixture())
		require.ErrorIs(t, err, core.ErrSchema)
	})
}

func TestImputer_ParallelMatchesSequential(t *testing.T) {
	numeric := []string{"Age", "Amount"}
	categorical := []string{"Gender", "City"}

	seq := fixture()
	require.NoError(t, New(numeric, categorical).Apply(context.Background(), seq))
	par := fixture()
	require.NoError(t, New(numeric, categorical, WithParallelism(4)).Apply(context.Background(), par))

	for i := 0; i < seq.Len(); i++ {
		assert.Equal(t, seq.Row(i), par.Row(i))
	}
}
