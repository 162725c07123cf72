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
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/aaronlmathis/featurekit/aggregate"
	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/encode"
	"github.com/aaronlmathis/featurekit/impute"
	"github.com/aaronlmathis/featurekit/metrics"
	"github.com/aaronlmathis/featurekit/readers"
	"github.com/aaronlmathis/featurekit/scale"
	"github.com/aaronlmathis/featurekit/temporal"
	"github.com/aaronlmathis/featurekit/textvec"
	"github.com/aaronlmathis/featurekit/transform"
	"github.com/aaronlmathis/featurekit/types"
	"github.com/aaronlmathis/featurekit/writers"
)

const retailHeader = "Transaction_ID,Customer_ID,Name,Email,Phone,Address,City,State,Zipcode,Country,Age,Gender,Income,Customer_Segment,Date,Year,Month,Time,Total_Purchases,Amount,Total_Amount,Product_Category,Product_Brand,Product_Type,Feedback,Shipping_Method,Payment_Method,Order_Status,Ratings,products"

var retailRows = []string{
	"1,5,Ann,a@x.com,555,1 Main,Chicago,IL,60601,USA,30,Female,Low,Regular,2024-07-15,2024,July,20:30,2,50,100,Electronics,Sony,TV,Great product,Express,Card,Delivered,5,Bravia",
	"2,5,Ann,a@x.com,555,1 Main,Chicago,IL,60601,USA,30,Female,Medium,Regular,2024-07-20,2024,July,06:00:00,1,50,50,Electronics,Sony,TV,good value,Standard,Cash,Shipped,4,Bravia",
	"3,7,Bob,b@x.com,556,2 Oak,Boston,MA,02101,USA,45,Male,High,Premium,2024-01-03,2024,January,00:15,5,20,100,Books,Penguin,Novel,bad packaging,Express,Card,Delivered,2,Dune",
	"4,8,Cy,c@x.com,557,3 Elm,Toronto,ON,M5H,Canada,,Male,NA,New,1/5/2024,2024,January,13:45,3,10,30,Books,Penguin,Novel,,Same-Day,PayPal,Pending,3,Dune",
	"5,9,Di,d@x.com,558,4 Pine,Boston,MA,02101,USA,52,Female,Low,Premium,2024-10-02,2024,October,09:10,4,75,300,Clothing,Zara,Shirt,Great fit great price,Standard,Card,Delivered,5,Oxford",
}

func retailCSV(rows ...string) string {
	return retailHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func newRetailReader(t *testing.T, data string) *readers.CSVReader {
	t.Helper()
	r, err := readers.NewCSVReader(io.NopCloser(strings.NewReader(data)))
	require.NoError(t, err)
	return r
}

// replaceField rewrites one comma-separated field of a fixture row.
func replaceField(row, column, value string) string {
	header := strings.Split(retailHeader, ",")
	fields := strings.Split(row, ",")
	for i, h := range header {
		if h == column {
			fields[i] = value
		}
	}
	return strings.Join(fields, ",")
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// recordingSink remembers whether it was closed.
type recordingSink struct {
	records []Record
	closed  bool
}

func (s *recordingSink) Write(ctx context.Context, r Record) error {
	s.records = append(s.records, r)
	return nil
}
func (s *recordingSink) Flush() error { return nil }
func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type failingSource struct {
	n int
}

func (s *failingSource) Read(ctx context.Context) (Record, error) {
	s.n++
	if s.n > 1 {
		return nil, errors.New("connection reset")
	}
	return Record{"Age": "1"}, nil
}
func (s *failingSource) Close() error { return nil }

func runToCSV(t *testing.T, data string, opts ...func(*PipelineBuilder)) (*Result, string) {
	t.Helper()
	var buf bytes.Buffer
	sink, err := writers.NewCSVWriter(nopWriteCloser{&buf})
	require.NoError(t, err)

	b := NewPipeline().From(newRetailReader(t, data)).To(sink)
	for _, opt := range opts {
		opt(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	result, err := p.Execute(context.Background())
	require.NoError(t, err)
	return result, buf.String()
}

func TestPipeline_EndToEnd(t *testing.T) {
	result, out := runToCSV(t, retailCSV(retailRows...))

	rows, cols := result.Matrix.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, 65, cols)
	assert.NotEmpty(t, result.RunID)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, strings.Join(result.Matrix.Columns, ","), lines[0])

	// Imputation
	median, ok := result.Imputation.Median("Age")
	require.True(t, ok)
	assert.Equal(t, 37.5, median)
	mode, ok := result.Imputation.Mode("Income")
	require.True(t, ok)
	assert.Equal(t, "Low", mode)

	// Encoding
	assert.Equal(t, []string{"Female", "Male"}, result.Labels.Classes("Gender"))
	gender, ok := result.Matrix.Column("Gender")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1, 1, 0}, gender)
	income, ok := result.Matrix.Column("Income")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 2, 0, 0}, income)
	boston, ok := result.Matrix.Column("City_Boston")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1, 0, 1}, boston)

	// Temporal
	weekend, ok := result.Matrix.Column(temporal.IsWeekendColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0, 0, 0}, weekend)
	hour, ok := result.Matrix.Column(temporal.HourColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{20, 6, 0, 13, 9}, hour)
	for _, c := range []string{"Season_Winter", "Season_Spring", "Season_Summer", "Season_Fall", "Month_1", "Month_7", "Month_10", "DayOfWeek_5"} {
		_, ok := result.Matrix.Column(c)
		assert.True(t, ok, c)
	}

	// Text
	assert.Equal(t, []string{"bad", "fit", "good", "great", "packaging", "price", "product", "value"}, result.Vocabulary.Terms())
	empty, ok := result.Matrix.Column("Feedback_tfidf_great")
	require.True(t, ok)
	assert.Equal(t, 0.0, empty[3])

	// Scaling
	mean, ok := result.Standardization.Mean("Age")
	require.True(t, ok)
	assert.InDelta(t, 38.9, mean, 1e-9)

	// Aggregates use raw amounts
	clv, ok := result.Matrix.Column(aggregate.CLVColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{150, 150, 100, 30, 300}, clv)
	freq, ok := result.Matrix.Column(aggregate.PurchaseFrequencyColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 2, 1, 1, 1}, freq)
	pop, ok := result.Matrix.Column(aggregate.PopularityScoreColumn)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 2, 2, 2, 1}, pop)
	product, ok := result.Matrix.Column("ProductID")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 0, 1, 1, 2}, product)

	// Dropped columns
	for _, c := range DefaultFeatures().Drop {
		_, ok := result.Matrix.Column(c)
		assert.False(t, ok, c)
	}

	var stages []string
	for _, s := range result.Stages {
		stages = append(stages, s.Stage)
		assert.Equal(t, 5, s.Rows, s.Stage)
	}
	assert.Equal(t, []string{
		impute.StageName, encode.LabelStage, encode.OrdinalStage, encode.OneHotStage,
		temporal.StageName, textvec.StageName, aggregateFitStage, scale.StageName,
		encode.CodesStage, aggregate.StageName, transform.DropStage,
	}, stages)
}

func TestPipeline_Deterministic(t *testing.T) {
	_, first := runToCSV(t, retailCSV(retailRows...))
	_, second := runToCSV(t, retailCSV(retailRows...))
	assert.Equal(t, first, second)

	_, parallel := runToCSV(t, retailCSV(retailRows...), func(b *PipelineBuilder) { b.WithParallelism(4) })
	assert.Equal(t, first, parallel)
}

func TestPipeline_LoggingAndMetrics(t *testing.T) {
	observed, logs := observer.New(zapcore.InfoLevel)
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	result, _ := runToCSV(t, retailCSV(retailRows...), func(b *PipelineBuilder) {
		b.WithLogger(zap.New(observed)).WithMetrics(rec)
	})

	complete := logs.FilterMessage("stage complete")
	assert.Equal(t, len(result.Stages), complete.Len())
	for _, entry := range complete.All() {
		assert.Equal(t, result.RunID, entry.ContextMap()["run_id"])
	}
	assert.Equal(t, 1, logs.FilterMessage("feature matrix ready").Len())
	assert.Equal(t, 1, logs.FilterMessage("feature matrix written").Len())

	assert.Equal(t, 5.0, testutil.ToFloat64(rec.OutputRows))
	assert.Equal(t, 65.0, testutil.ToFloat64(rec.OutputColumns))
}

func TestPipeline_StageErrors(t *testing.T) {
	tests := []struct {
		name    string
		rows    []string
		wantErr error
		stage   string
	}{
		{
			name: "all ratings missing",
			rows: func() []string {
				out := make([]string, len(retailRows))
				for i, r := range retailRows {
					out[i] = replaceField(r, "Ratings", "")
				}
				return out
			}(),
			wantErr: core.ErrImputation,
			stage:   impute.StageName,
		},
		{
			name: "constant ratings",
			rows: func() []string {
				out := make([]string, len(retailRows))
				for i, r := range retailRows {
					out[i] = replaceField(r, "Ratings", "3")
				}
				return out
			}(),
			wantErr: core.ErrScaling,
			stage:   scale.StageName,
		},
		{
			name:    "unknown income",
			rows:    append([]string{replaceField(retailRows[0], "Income", "Very High")}, retailRows[1:]...),
			wantErr: core.ErrUnknownCategory,
			stage:   encode.OrdinalStage,
		},
		{
			name:    "unparseable date",
			rows:    append([]string{replaceField(retailRows[0], "Date", "soon")}, retailRows[1:]...),
			wantErr: core.ErrTemporalParse,
			stage:   temporal.StageName,
		},
		{
			name:    "non-numeric amount",
			rows:    append([]string{replaceField(retailRows[0], "Amount", "fifty")}, retailRows[1:]...),
			wantErr: core.ErrSchema,
			stage:   "load",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "features.csv")
			p, err := NewPipeline().
				From(newRetailReader(t, retailCSV(tt.rows...))).
				ToLocation(types.FileLocation{Path: out}, types.FormatCSV).
				Build()
			require.NoError(t, err)

			_, err = p.Execute(context.Background())
			require.ErrorIs(t, err, tt.wantErr)
			var pe *core.PipelineError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.stage, pe.Stage)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "no output on failure")
		})
	}
}

func TestPipeline_MissingDropColumn(t *testing.T) {
	header := strings.Replace(retailHeader, "Email", "Mail", 1)
	data := header + "\n" + strings.Join(retailRows, "\n") + "\n"

	sink := &recordingSink{}
	p, err := NewPipeline().From(newRetailReader(t, data)).To(sink).Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.ErrorIs(t, err, core.ErrSchema)
	assert.Contains(t, err.Error(), `"Email"`)
	assert.True(t, sink.closed)
	assert.Empty(t, sink.records)
}

func TestPipeline_SourceError(t *testing.T) {
	sink := &recordingSink{}
	p, err := NewPipeline().From(&failingSource{}).To(sink).Build()
	require.NoError(t, err)

	_, err = p.Execute(context.Background())
	require.ErrorIs(t, err, core.ErrLoad)
	assert.Contains(t, err.Error(), "connection reset")
	var pe *core.PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 1, pe.Row)
}

func TestPipeline_LoadTransformers(t *testing.T) {
	// A Map transformer runs after null normalization and may fix raw cells.
	rows := append([]string{replaceField(retailRows[0], "Income", "low")}, retailRows[1:]...)
	result, _ := runToCSV(t, retailCSV(rows...), func(b *PipelineBuilder) {
		b.Map(func(ctx context.Context, r Record) (Record, error) {
			if s, ok := r["Income"].(string); ok {
				r = r.Clone()
				r["Income"] = strings.ToUpper(s[:1]) + s[1:]
			}
			return r, nil
		})
	})
	income, ok := result.Matrix.Column("Income")
	require.True(t, ok)
	assert.Equal(t, 0.0, income[0])
}

func TestPipeline_Run(t *testing.T) {
	ds := core.NewDataset([]string{"Age", "Spend", "Segment"}, []core.Record{
		{"Age": 20.0, "Spend": 10.0, "Segment": "A"},
		{"Age": nil, "Spend": 30.0, "Segment": "B"},
		{"Age": 40.0, "Spend": 20.0, "Segment": nil},
	})
	p, err := NewPipeline().WithFeatures(Features{
		Numeric:     []string{"Age", "Spend"},
		Categorical: []string{"Segment"},
		Label:       []string{"Segment"},
	}).Build()
	require.NoError(t, err)

	result, err := p.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, []string{"Age", "Spend", "Segment"}, result.Matrix.Columns)
	segment, ok := result.Matrix.Column("Segment")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 1, 0}, segment)
	assert.Nil(t, result.Calendar)
	assert.Nil(t, result.Aggregates)
}

func TestPipeline_RunRejectsUnencodedColumns(t *testing.T) {
	ds := core.NewDataset([]string{"Age", "City"}, []core.Record{
		{"Age": 20.0, "City": "Boston"},
		{"Age": 30.0, "City": "Chicago"},
	})
	p, err := NewPipeline().WithFeatures(Features{Numeric: []string{"Age"}}).Build()
	require.NoError(t, err)

	_, err = p.Run(context.Background(), ds)
	require.ErrorIs(t, err, core.ErrSchema)
	assert.Contains(t, err.Error(), "feature_matrix")
}

func TestPipelineBuilder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Features)
	}{
		{"numeric and categorical overlap", func(f *Features) { f.Categorical = append(f.Categorical, "Age") }},
		{"label column not categorical", func(f *Features) { f.Label = append(f.Label, "Feedback") }},
		{"column encoded twice", func(f *Features) { f.OneHot = append(f.OneHot, "Gender") }},
		{"date without time", func(f *Features) { f.TimeColumn = "" }},
		{"max features", func(f *Features) { f.MaxFeatures = 0 }},
		{"partial aggregates", func(f *Features) { f.ProductColumn = ""; f.TargetColumn = "" }},
		{"target without product", func(f *Features) {
			f.CustomerColumn, f.MonetaryColumn, f.ProductColumn = "", "", ""
		}},
		{"negative parallelism", func(f *Features) { f.Parallelism = -1 }},
		{"empty ordinal categories", func(f *Features) { f.Ordinal[0].Categories = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFeatures()
			tt.mutate(&f)
			_, err := NewPipeline().WithFeatures(f).Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid feature configuration")
		})
	}

	_, err := NewPipeline().
		To(&recordingSink{}).
		ToLocation(types.FileLocation{Path: "out.csv"}, types.FormatCSV).
		Build()
	require.Error(t, err)

	p, err := NewPipeline().Build()
	require.NoError(t, err)
	_, err = p.Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data source")
}

func TestRowCountKind(t *testing.T) {
	assert.Equal(t, core.ErrAggregationJoin, rowCountKind(aggregate.StageName))
	assert.Equal(t, core.ErrAggregationJoin, rowCountKind(aggregateFitStage))
	assert.Equal(t, core.ErrSchema, rowCountKind(transform.DropStage))
}

func TestFeatures_Schema(t *testing.T) {
	s := DefaultFeatures().Schema()
	assert.Equal(t, core.KindNumeric, s["Customer_ID"])
	assert.Equal(t, core.KindNumeric, s["Total_Amount"])
	assert.Equal(t, core.KindCategorical, s["Income"])
	assert.Equal(t, core.KindDate, s["Date"])
	assert.Equal(t, core.KindTime, s["Time"])
	assert.Equal(t, core.KindText, s["Feedback"])
	assert.Equal(t, core.KindIdentifier, s["products"])
	assert.Equal(t, core.KindIdentifier, s["Email"])
	_, ok := s["ProductID"]
	assert.False(t, ok)

	f := DefaultFeatures()
	f.Extra = core.Schema{"Loyalty_Points": core.KindNumeric, "Age": core.KindText}
	s = f.Schema()
	assert.Equal(t, core.KindNumeric, s["Loyalty_Points"])
	assert.Equal(t, core.KindNumeric, s["Age"], "built-in declarations win")
}

func TestPipeline_CancelledWriteLeavesNoOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "features.csv")
	p, err := NewPipeline().
		From(newRetailReader(t, retailCSV(retailRows...))).
		ToLocation(types.FileLocation{Path: out}, types.FormatCSV).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	matrix := &FeatureMatrix{Columns: []string{"Age"}, Rows: [][]float64{{0.5}, {1.5}}}
	err = p.write(ctx, matrix)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "write row 0")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no output on failure")
}
