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

// Package temporal derives calendar and time-of-day features from a date
// column and a time column.
package temporal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/encode"
)

// StageName identifies the extractor in errors and logs.
const StageName = "temporal"

// Derived column names.
const (
	DayOfWeekColumn = "DayOfWeek"
	IsWeekendColumn = "IsWeekend"
	MonthColumn     = "Month"
	SeasonColumn    = "Season"
	HourColumn      = "Hour"
	TimeOfDayColumn = "TimeOfDay"
)

// Bucket labels in bucket order.
var (
	Seasons    = []string{"Winter", "Spring", "Summer", "Fall"}
	TimesOfDay = []string{"Night", "Morning", "Afternoon", "Evening"}
)

// DefaultDateLayouts are tried in order when parsing the date column.
var DefaultDateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"1/2/06",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	time.RFC3339,
}

// DefaultTimeLayouts are tried in order when parsing the time column.
var DefaultTimeLayouts = []string{
	"15:04:05",
	"15:04",
	"3:04:05 PM",
	"3:04 PM",
	"2006-01-02 15:04:05",
}

// DefaultOneHot lists the derived columns one-hot encoded by default.
var DefaultOneHot = []string{DayOfWeekColumn, MonthColumn, SeasonColumn, TimeOfDayColumn}

// DayOfWeek returns 0 for Monday through 6 for Sunday.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekend reports whether a DayOfWeek value is Saturday or Sunday.
func IsWeekend(dow int) bool {
	return dow == 5 || dow == 6
}

// Season buckets a month into (0,3] Winter, (3,6] Spring, (6,9] Summer, (9,12] Fall.
func Season(month int) string {
	switch {
	case month <= 3:
		return Seasons[0]
	case month <= 6:
		return Seasons[1]
	case month <= 9:
		return Seasons[2]
	default:
		return Seasons[3]
	}
}

// TimeOfDay buckets an hour into (0,6] Night, (6,12] Morning, (12,18] Afternoon,
// (18,24] Evening. Hour 0 belongs to Night.
func TimeOfDay(hour int) string {
	switch {
	case hour <= 6:
		return TimesOfDay[0]
	case hour <= 12:
		return TimesOfDay[1]
	case hour <= 18:
		return TimesOfDay[2]
	default:
		return TimesOfDay[3]
	}
}

// Extractor derives DayOfWeek, IsWeekend, Month, Season, Hour and TimeOfDay,
// then one-hot encodes the configured derived columns.
type Extractor struct {
	dateColumn  string
	timeColumn  string
	dateLayouts []string
	timeLayouts []string
	oneHot      []string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithDateLayouts replaces the date layouts.
func WithDateLayouts(layouts ...string) Option {
	return func(e *Extractor) { e.dateLayouts = append([]string(nil), layouts...) }
}

// WithTimeLayouts replaces the time layouts.
func WithTimeLayouts(layouts ...string) Option {
	return func(e *Extractor) { e.timeLayouts = append([]string(nil), layouts...) }
}

// WithOneHot replaces the set of derived columns to one-hot encode.
func WithOneHot(columns ...string) Option {
	return func(e *Extractor) { e.oneHot = append([]string(nil), columns...) }
}

// New creates an Extractor over a date column and a time column.
func New(dateColumn, timeColumn string, opts ...Option) *Extractor {
	e := &Extractor{
		dateColumn:  dateColumn,
		timeColumn:  timeColumn,
		dateLayouts: DefaultDateLayouts,
		timeLayouts: DefaultTimeLayouts,
		oneHot:      DefaultOneHot,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements core.Stage.
func (e *Extractor) Name() string { return StageName }

// Apply implements core.Stage.
func (e *Extractor) Apply(ctx context.Context, ds *core.Dataset) error {
	cal, err := e.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return cal.Transform(ctx, ds)
}

// Calendar is a fitted Extractor: the one-hot categories of the derived columns.
type Calendar struct {
	extractor *Extractor
	oneHot    *encode.OneHotCategories
}

// Fit parses every date and time and learns the categories of the one-hot
// encoded derived columns. Season and TimeOfDay always get all four buckets.
func (e *Extractor) Fit(ctx context.Context, ds *core.Dataset) (*Calendar, error) {
	for _, c := range e.oneHot {
		if !isDerived(c) {
			return nil, core.NewColumnError(StageName, core.ErrSchema, c, fmt.Errorf("not a derived temporal column"))
		}
	}
	derived, err := e.derive(ctx, ds)
	if err != nil {
		return nil, err
	}
	cats, err := e.encoder().Fit(ctx, derived)
	if err != nil {
		return nil, err
	}
	return &Calendar{extractor: e, oneHot: cats}, nil
}

// OutputColumns lists the columns Transform adds, in order.
func (c *Calendar) OutputColumns() []string {
	var out []string
	encoded := make(map[string]bool, len(c.extractor.oneHot))
	for _, col := range c.extractor.oneHot {
		encoded[col] = true
	}
	for _, col := range derivedColumns {
		if !encoded[col] {
			out = append(out, col)
		}
	}
	return append(out, c.oneHot.OutputColumns()...)
}

// Transform derives the features for every row and merges them into the
// dataset. A derived name already in the input (e.g. a textual Month) is
// superseded; any other output column already present is an error. Nothing
// is written unless every row parses and encodes.
func (c *Calendar) Transform(ctx context.Context, ds *core.Dataset) error {
	for _, col := range c.OutputColumns() {
		if ds.HasColumn(col) && !isDerived(col) {
			return core.NewColumnError(StageName, core.ErrSchema, col, errors.New("derived column collides with an existing column"))
		}
	}
	derived, err := c.extractor.derive(ctx, ds)
	if err != nil {
		return err
	}
	if err := c.oneHot.Transform(ctx, derived); err != nil {
		return err
	}

	var superseded []string
	for _, col := range derivedColumns {
		if ds.HasColumn(col) {
			superseded = append(superseded, col)
		}
	}
	ds.DropColumns(superseded...)

	for _, col := range derived.Columns() {
		values, _ := derived.Values(col)
		if err := ds.SetColumn(col, values); err != nil {
			return core.NewColumnError(StageName, core.ErrSchema, col, err)
		}
	}
	return nil
}

var derivedColumns = []string{DayOfWeekColumn, IsWeekendColumn, MonthColumn, SeasonColumn, HourColumn, TimeOfDayColumn}

func isDerived(column string) bool {
	for _, c := range derivedColumns {
		if c == column {
			return true
		}
	}
	return false
}

func (e *Extractor) encoder() *encode.OneHotEncoder {
	enc := encode.NewOneHotEncoder(e.oneHot...)
	for _, col := range e.oneHot {
		switch col {
		case SeasonColumn:
			enc.WithCategories(col, Seasons...)
		case TimeOfDayColumn:
			enc.WithCategories(col, TimesOfDay...)
		}
	}
	return enc
}

// derive parses the date and time columns into a standalone dataset holding
// only the derived columns, row-aligned with ds.
func (e *Extractor) derive(ctx context.Context, ds *core.Dataset) (*core.Dataset, error) {
	if err := ds.Require(StageName, e.dateColumn, e.timeColumn); err != nil {
		return nil, err
	}
	rows := make([]core.Record, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		row := ds.Row(i)
		date, err := parseAny(row[e.dateColumn], e.dateLayouts)
		if err != nil {
			return nil, core.NewRowError(StageName, core.ErrTemporalParse, e.dateColumn, i, row[e.dateColumn], err)
		}
		clock, err := parseAny(row[e.timeColumn], e.timeLayouts)
		if err != nil {
			return nil, core.NewRowError(StageName, core.ErrTemporalParse, e.timeColumn, i, row[e.timeColumn], err)
		}
		dow := DayOfWeek(date)
		weekend := 0.0
		if IsWeekend(dow) {
			weekend = 1
		}
		month := int(date.Month())
		hour := clock.Hour()
		rows[i] = core.Record{
			DayOfWeekColumn: float64(dow),
			IsWeekendColumn: weekend,
			MonthColumn:     float64(month),
			SeasonColumn:    Season(month),
			HourColumn:      float64(hour),
			TimeOfDayColumn: TimeOfDay(hour),
		}
	}
	return core.NewDataset(derivedColumns, rows), nil
}

func parseAny(v interface{}, layouts []string) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	if core.IsMissing(v) {
		return time.Time{}, fmt.Errorf("missing value")
	}
	s := strings.TrimSpace(core.FormatValue(v))
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matches %q", s)
}
