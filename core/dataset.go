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
	"fmt"
)

// Dataset is an ordered collection of records sharing one column order.
// Stages mutate it in place; rows are never added or removed after load.
type Dataset struct {
	columns []string
	index   map[string]int
	rows    []Record
}

// NewDataset builds a dataset from a column order and rows. Columns missing
// from a row read as nil.
func NewDataset(columns []string, rows []Record) *Dataset {
	ds := &Dataset{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		rows:    rows,
	}
	for _, c := range columns {
		if _, ok := ds.index[c]; ok {
			continue
		}
		ds.index[c] = len(ds.columns)
		ds.columns = append(ds.columns, c)
	}
	if ds.rows == nil {
		ds.rows = []Record{}
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column order.
func (d *Dataset) Columns() []string {
	return append([]string(nil), d.columns...)
}

// HasColumn reports whether the column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Row returns the i-th record. The record is live; writes go into the dataset.
func (d *Dataset) Row(i int) Record { return d.rows[i] }

// Require returns a SchemaError for the first absent column.
func (d *Dataset) Require(stage string, columns ...string) error {
	for _, c := range columns {
		if !d.HasColumn(c) {
			return MissingColumnError(stage, c)
		}
	}
	return nil
}

// Values returns a copy of one column.
func (d *Dataset) Values(column string) ([]interface{}, error) {
	if !d.HasColumn(column) {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]interface{}, len(d.rows))
	for i, r := range d.rows {
		out[i] = r[column]
	}
	return out, nil
}

// Floats returns a numeric column. A missing cell is reported as ErrImputation
// and a non-numeric cell as ErrSchema, both attributed to the given stage.
func (d *Dataset) Floats(stage, column string) ([]float64, error) {
	if err := d.Require(stage, column); err != nil {
		return nil, err
	}
	out := make([]float64, len(d.rows))
	for i, r := range d.rows {
		v := r[column]
		f, ok := ToFloat(v)
		if !ok {
			kind := ErrSchema
			if IsMissing(v) {
				kind = ErrImputation
			}
			return nil, NewRowError(stage, kind, column, i, v, fmt.Errorf("expected a numeric value"))
		}
		out[i] = f
	}
	return out, nil
}

// Strings returns a column rendered with FormatValue; missing cells become "".
func (d *Dataset) Strings(column string) ([]string, error) {
	if !d.HasColumn(column) {
		return nil, fmt.Errorf("column %q not found", column)
	}
	out := make([]string, len(d.rows))
	for i, r := range d.rows {
		out[i] = FormatValue(r[column])
	}
	return out, nil
}

// SetColumn writes a full column, appending it to the column order if new.
func (d *Dataset) SetColumn(column string, values []interface{}) error {
	if len(values) != len(d.rows) {
		return fmt.Errorf("column %q: got %d values for %d rows", column, len(values), len(d.rows))
	}
	d.addColumn(column)
	for i, r := range d.rows {
		r[column] = values[i]
	}
	return nil
}

// SetFloats writes a full numeric column, appending it to the column order if new.
func (d *Dataset) SetFloats(column string, values []float64) error {
	if len(values) != len(d.rows) {
		return fmt.Errorf("column %q: got %d values for %d rows", column, len(values), len(d.rows))
	}
	d.addColumn(column)
	for i, r := range d.rows {
		r[column] = values[i]
	}
	return nil
}

// DropColumns removes columns from the order and from every row.
// Unknown columns are ignored.
func (d *Dataset) DropColumns(columns ...string) {
	drop := make(map[string]bool, len(columns))
	for _, c := range columns {
		if d.HasColumn(c) {
			drop[c] = true
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := d.columns[:0]
	for _, c := range d.columns {
		if !drop[c] {
			kept = append(kept, c)
		}
	}
	d.columns = kept
	d.reindex()
	for _, r := range d.rows {
		for c := range drop {
			delete(r, c)
		}
	}
}

// Clone returns a deep copy of the column order and every row.
func (d *Dataset) Clone() *Dataset {
	rows := make([]Record, len(d.rows))
	for i, r := range d.rows {
		rows[i] = r.Clone()
	}
	return NewDataset(d.columns, rows)
}

func (d *Dataset) addColumn(column string) {
	if _, ok := d.index[column]; ok {
		return
	}
	d.index[column] = len(d.columns)
	d.columns = append(d.columns, column)
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.columns))
	for i, c := range d.columns {
		d.index[c] = i
	}
}

// FeatureMatrix is the numeric pipeline output: one row per input transaction.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

// Shape returns rows × columns.
func (m *FeatureMatrix) Shape() (int, int) {
	return len(m.Rows), len(m.Columns)
}

// Record returns the i-th row keyed by column name.
func (m *FeatureMatrix) Record(i int) Record {
	r := make(Record, len(m.Columns))
	for j, c := range m.Columns {
		r[c] = m.Rows[i][j]
	}
	return r
}

// Column returns a copy of one output column.
func (m *FeatureMatrix) Column(name string) ([]float64, bool) {
	for j, c := range m.Columns {
		if c == name {
			out := make([]float64, len(m.Rows))
			for i := range m.Rows {
				out[i] = m.Rows[i][j]
			}
			return out, true
		}
	}
	return nil, false
}
