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

package featurekit

import (
	"fmt"

	"github.com/aaronlmathis/featurekit/aggregate"
	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/encode"
	"github.com/aaronlmathis/featurekit/temporal"
	"github.com/aaronlmathis/featurekit/textvec"
)

// Package featurekit turns a raw retail transaction table into a numeric
// feature matrix.
//
// This file re-exports the core types and holds the feature configuration
// that decides which columns each stage touches.

// Record is a single transaction keyed by column name.
type Record = core.Record

// Dataset is the in-memory table threaded through every stage.
type Dataset = core.Dataset

// FeatureMatrix is the numeric pipeline output.
type FeatureMatrix = core.FeatureMatrix

// DataSource streams raw records into the pipeline.
type DataSource = core.DataSource

// DataSink receives the rows of the feature matrix.
type DataSink = core.DataSink

// Transformer rewrites records at load time.
type Transformer = core.Transformer

// Stage is one batch step over the dataset.
type Stage = core.Stage

// OrdinalSpec ranks the categories of one ordinal column, lowest first.
type OrdinalSpec = encode.OrdinalSpec

// Features selects the columns each stage operates on.
type Features struct {
	Numeric     []string // Imputed by median, then standardized
	Categorical []string // Imputed by mode

	Label   []string             // Label encoded in first-observed order
	Ordinal []encode.OrdinalSpec // Ranked by a fixed category order
	OneHot  []string             // One indicator column per category

	DateColumn     string
	TimeColumn     string
	DateLayouts    []string // Empty keeps the temporal defaults
	TimeLayouts    []string
	TemporalOneHot []string // Derived columns to one-hot encode

	TextColumn  string
	MaxFeatures int // TF-IDF vocabulary size

	CustomerColumn string // Group key of CLV and PurchaseFrequency
	MonetaryColumn string // Summed into CLV
	ProductColumn  string // Group key of PopularityScore and source of TargetColumn
	TargetColumn   string // Product category code; empty disables it

	Drop []string // Removed before the matrix is built

	// Extra declares further input columns required at load. Numeric ones
	// are typed to float64 and pass through to the matrix unchanged.
	Extra core.Schema

	Parallelism int // Column-parallel fits; 0 or 1 runs sequentially
}

// DefaultFeatures returns the retail transaction layout.
func DefaultFeatures() Features {
	return Features{
		Numeric: []string{"Transaction_ID", "Customer_ID", "Age", "Total_Purchases", "Amount", "Total_Amount", "Ratings"},
		Categorical: []string{"Gender", "Customer_Segment", "Income", "City", "State", "Country",
			"Product_Category", "Product_Brand", "Product_Type", "Shipping_Method", "Payment_Method", "Order_Status"},
		Label:   []string{"Gender", "Customer_Segment"},
		Ordinal: []encode.OrdinalSpec{{Column: "Income", Categories: []string{"Low", "Medium", "High"}}},
		OneHot: []string{"City", "State", "Country", "Product_Category", "Product_Brand", "Product_Type",
			"Shipping_Method", "Payment_Method", "Order_Status"},
		DateColumn:     "Date",
		TimeColumn:     "Time",
		TemporalOneHot: append([]string(nil), temporal.DefaultOneHot...),
		TextColumn:     "Feedback",
		MaxFeatures:    textvec.DefaultMaxFeatures,
		CustomerColumn: "Customer_ID",
		MonetaryColumn: "Total_Amount",
		ProductColumn:  "products",
		TargetColumn:   "ProductID",
		Drop:           []string{"Name", "Email", "Phone", "Address", "Zipcode", "Date", "Year", "Time", "Feedback", "products"},
		Parallelism:    1,
	}
}

// Validate checks that the column sets are consistent with each other.
func (f Features) Validate() error {
	numeric := toSet(f.Numeric)
	categorical := toSet(f.Categorical)
	for c := range numeric {
		if categorical[c] {
			return fmt.Errorf("column %q is both numeric and categorical", c)
		}
	}

	encoded := make(map[string]string)
	claim := func(column, encoder string) error {
		if !categorical[column] {
			return fmt.Errorf("%s column %q is not declared categorical", encoder, column)
		}
		if prev, ok := encoded[column]; ok {
			return fmt.Errorf("column %q is encoded by both %s and %s", column, prev, encoder)
		}
		encoded[column] = encoder
		return nil
	}
	for _, c := range f.Label {
		if err := claim(c, "label"); err != nil {
			return err
		}
	}
	for _, s := range f.Ordinal {
		if err := claim(s.Column, "ordinal"); err != nil {
			return err
		}
	}
	for _, c := range f.OneHot {
		if err := claim(c, "one-hot"); err != nil {
			return err
		}
	}

	if (f.DateColumn == "") != (f.TimeColumn == "") {
		return fmt.Errorf("date and time columns must be set together")
	}
	if f.TextColumn != "" && f.MaxFeatures < 1 {
		return fmt.Errorf("max features must be at least 1, got %d", f.MaxFeatures)
	}
	agg := []string{f.CustomerColumn, f.MonetaryColumn, f.ProductColumn}
	set := 0
	for _, c := range agg {
		if c != "" {
			set++
		}
	}
	if set != 0 && set != len(agg) {
		return fmt.Errorf("customer, monetary and product columns must be set together")
	}
	if f.TargetColumn != "" && f.ProductColumn == "" {
		return fmt.Errorf("target column %q needs a product column", f.TargetColumn)
	}
	if f.Parallelism < 0 {
		return fmt.Errorf("parallelism must not be negative")
	}
	return nil
}

// Schema declares every column the input must carry. Drop columns not used
// by any stage are declared as identifiers so their absence fails the load
// instead of the final drop.
func (f Features) Schema() core.Schema {
	s := make(core.Schema)
	declare := func(kind core.Kind, columns ...string) {
		for _, c := range columns {
			if c == "" {
				continue
			}
			if _, ok := s[c]; !ok {
				s[c] = kind
			}
		}
	}
	declare(core.KindNumeric, f.Numeric...)
	declare(core.KindNumeric, f.MonetaryColumn)
	declare(core.KindCategorical, f.Categorical...)
	declare(core.KindDate, f.DateColumn)
	declare(core.KindTime, f.TimeColumn)
	declare(core.KindText, f.TextColumn)
	declare(core.KindIdentifier, f.CustomerColumn, f.ProductColumn)
	declare(core.KindIdentifier, f.Drop...)
	for _, kind := range []core.Kind{core.KindNumeric, core.KindCategorical, core.KindText, core.KindDate, core.KindTime, core.KindIdentifier} {
		declare(kind, f.Extra.Columns(kind)...)
	}
	return s
}

func (f Features) aggregates() []aggregate.Feature {
	if f.CustomerColumn == "" {
		return nil
	}
	return aggregate.DefaultFeatures(f.CustomerColumn, f.MonetaryColumn, f.ProductColumn)
}

func toSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}
