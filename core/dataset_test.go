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

package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDataset() *Dataset {
	return NewDataset([]string{"id", "name", "amount"}, []Record{
		{"id": 1.0, "name": "a", "amount": 10.0},
		{"id": 2.0, "name": "b", "amount": nil},
	})
}

func TestDataset_Basics(t *testing.T) {
	ds := newTestDataset()
	assert.Equal(t, 2, ds.Len())
	assert.Equal(t, []string{"id", "name", "amount"}, ds.Columns())
	assert.True(t, ds.HasColumn("name"))
	assert.False(t, ds.HasColumn("missing"))

	cols := ds.Columns()
	cols[0] = "changed"
	assert.Equal(t, "id", ds.Columns()[0])

	// Duplicate columns collapse
	assert.Equal(t, []string{"a"}, NewDataset([]string{"a", "a"}, nil).Columns())
	assert.Equal(t, 0, NewDataset(nil, nil).Len())
}

func TestDataset_Require(t *testing.T) {
	ds := newTestDataset()
	require.NoError(t, ds.Require("test", "id", "name"))

	err := ds.Require("test", "id", "Email")
	require.ErrorIs(t, err, ErrSchema)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Email", pe.Column)
	assert.Equal(t, NoRow, pe.Row)
	assert.Equal(t, "test", pe.Stage)
}

func TestDataset_Floats(t *testing.T) {
	ds := newTestDataset()

	ids, err := ds.Floats("test", "id")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, ids)

	_, err = ds.Floats("test", "amount")
	require.ErrorIs(t, err, ErrImputation)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Row)

	_, err = ds.Floats("test", "name")
	require.ErrorIs(t, err, ErrSchema)
}

func TestDataset_SetAndDrop(t *testing.T) {
	ds := newTestDataset()

	require.NoError(t, ds.SetFloats("score", []float64{0.5, 1.5}))
	assert.Equal(t, []string{"id", "name", "amount", "score"}, ds.Columns())
	assert.Equal(t, 1.5, ds.Row(1)["score"])

	require.Error(t, ds.SetFloats("short", []float64{1}))
	require.Error(t, ds.SetColumn("short", []interface{}{1}))
	assert.False(t, ds.HasColumn("short"))

	ds.DropColumns("name", "not-there")
	assert.Equal(t, []string{"id", "amount", "score"}, ds.Columns())
	_, present := ds.Row(0)["name"]
	assert.False(t, present)

	names, err := ds.Strings("amount")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", ""}, names)
}

func TestDataset_Clone(t *testing.T) {
	ds := newTestDataset()
	clone := ds.Clone()
	clone.Row(0)["id"] = 99.0
	clone.DropColumns("name")

	assert.Equal(t, 1.0, ds.Row(0)["id"])
	assert.True(t, ds.HasColumn("name"))
}

func TestFeatureMatrix(t *testing.T) {
	m := &FeatureMatrix{Columns: []string{"a", "b"}, Rows: [][]float64{{1, 2}, {3, 4}, {5, 6}}}
	rows, cols := m.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols)
	assert.Equal(t, Record{"a": 3.0, "b": 4.0}, m.Record(1))

	b, ok := m.Column("b")
	require.True(t, ok)
	assert.Equal(t, []float64{2, 4, 6}, b)
	_, ok = m.Column("c")
	assert.False(t, ok)
}

func TestPipelineError(t *testing.T) {
	cause := errors.New("zero variance")
	err := NewRowError("scale", ErrScaling, "Age", 3, "x", cause)

	assert.True(t, errors.Is(err, ErrScaling))
	assert.False(t, errors.Is(err, ErrSchema))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, `scale: ScalingError column "Age" row 3 value "x": zero variance`, err.Error())

	colErr := NewColumnError("impute", ErrImputation, "Income", cause)
	assert.Equal(t, `impute: ImputationError column "Income": zero variance`, colErr.Error())
}

func TestValueHelpers(t *testing.T) {
	assert.True(t, IsMissing(nil))
	assert.True(t, IsMissing("  "))
	assert.False(t, IsMissing("0"))
	assert.False(t, IsMissing(0.0))

	assert.Equal(t, "150", FormatValue(150.0))
	assert.Equal(t, "0.25", FormatValue(0.25))
	assert.Equal(t, "5", FormatValue(int64(5)))
	assert.Equal(t, "", FormatValue(nil))

	f, ok := ToFloat(" 42.5 ")
	assert.True(t, ok)
	assert.Equal(t, 42.5, f)
	_, ok = ToFloat("abc")
	assert.False(t, ok)
	_, ok = ToFloat(nil)
	assert.False(t, ok)
}

func TestKind(t *testing.T) {
	for _, k := range []Kind{KindNumeric, KindCategorical, KindText, KindDate, KindTime, KindIdentifier} {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok, k.String())
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("blob")
	assert.False(t, ok)

	s := Schema{"Age": KindNumeric, "Gender": KindCategorical}
	assert.Equal(t, []string{"Age"}, s.Columns(KindNumeric))
}
