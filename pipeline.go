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

// Package featurekit turns a raw retail transaction table into a numeric
// feature matrix: imputation, categorical encoding, temporal features, TF-IDF
// text features, standardization and per-customer/per-product aggregates.
//
// Example usage:
//
//	pipeline, err := featurekit.NewPipeline().
//		From(csvReader).
//		To(csvWriter).
//		WithFeatures(featurekit.DefaultFeatures()).
//		WithLogger(logger).
//		Build()
//	if err != nil { log.Fatal(err) }
//	result, err := pipeline.Execute(context.Background())
//
// A run is a single batch pass over one in-memory dataset. Every stage fits
// its statistics first and mutates the dataset only when fitting succeeded;
// the first failure halts the run and nothing reaches the sink.
package featurekit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aaronlmathis/featurekit/aggregate"
	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/encode"
	"github.com/aaronlmathis/featurekit/impute"
	"github.com/aaronlmathis/featurekit/metrics"
	"github.com/aaronlmathis/featurekit/scale"
	"github.com/aaronlmathis/featurekit/temporal"
	"github.com/aaronlmathis/featurekit/textvec"
	"github.com/aaronlmathis/featurekit/transform"
	"github.com/aaronlmathis/featurekit/types"
	"github.com/aaronlmathis/featurekit/validators"
)

// aggregateFitStage captures group keys and raw monetary values. It runs
// before scaling; the join runs after it under aggregate.StageName.
const aggregateFitStage = "aggregate_fit"

// PipelineBuilder provides a fluent API for constructing feature pipelines.
// Use NewPipeline() to create a new builder, then chain From, To and the
// configuration methods.
type PipelineBuilder struct {
	pipeline *Pipeline
}

// NewPipeline creates a builder with the default feature layout, a no-op
// logger and no metrics.
func NewPipeline() *PipelineBuilder {
	return &PipelineBuilder{
		pipeline: &Pipeline{
			features:     DefaultFeatures(),
			transformers: make([]Transformer, 0),
			logger:       zap.NewNop(),
			metrics:      metrics.Nop{},
		},
	}
}

// From sets the DataSource for the pipeline.
func (pb *PipelineBuilder) From(source DataSource) *PipelineBuilder {
	pb.pipeline.source = source
	return pb
}

// To sets an already opened DataSink. It is closed even when the run fails.
func (pb *PipelineBuilder) To(sink DataSink) *PipelineBuilder {
	pb.pipeline.sink = sink
	return pb
}

// ToLocation sets an output location that is opened only after the feature
// matrix has been built, so a failed run creates no output at all.
func (pb *PipelineBuilder) ToLocation(location types.OutputLocation, format types.OutputFormat) *PipelineBuilder {
	pb.pipeline.location = location
	pb.pipeline.format = format
	return pb
}

// Transform adds a load-time record transformer. Transformers run after
// whitespace trimming and null token normalization.
func (pb *PipelineBuilder) Transform(transformer Transformer) *PipelineBuilder {
	pb.pipeline.transformers = append(pb.pipeline.transformers, transformer)
	return pb
}

// Map adds a load-time transformation using a function.
func (pb *PipelineBuilder) Map(fn func(ctx context.Context, record Record) (Record, error)) *PipelineBuilder {
	return pb.Transform(core.TransformFunc(fn))
}

// WithFeatures replaces the feature configuration.
func (pb *PipelineBuilder) WithFeatures(features Features) *PipelineBuilder {
	pb.pipeline.features = features
	return pb
}

// WithParallelism sets how many columns a stage may fit concurrently.
func (pb *PipelineBuilder) WithParallelism(n int) *PipelineBuilder {
	pb.pipeline.features.Parallelism = n
	return pb
}

// WithLogger sets the structured logger.
func (pb *PipelineBuilder) WithLogger(logger *zap.Logger) *PipelineBuilder {
	if logger != nil {
		pb.pipeline.logger = logger
	}
	return pb
}

// WithMetrics sets the metrics recorder.
func (pb *PipelineBuilder) WithMetrics(recorder metrics.Recorder) *PipelineBuilder {
	if recorder != nil {
		pb.pipeline.metrics = recorder
	}
	return pb
}

// Build validates the configuration and constructs the Pipeline. A source
// and a sink are only needed by Execute; Run works without them.
func (pb *PipelineBuilder) Build() (*Pipeline, error) {
	p := pb.pipeline
	if err := p.features.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feature configuration: %w", err)
	}
	if p.sink != nil && p.location != nil {
		return nil, fmt.Errorf("pipeline accepts either a sink or an output location, not both")
	}
	if len(p.features.Ordinal) > 0 {
		enc, err := encode.NewOrdinalEncoder(p.features.Ordinal...)
		if err != nil {
			return nil, fmt.Errorf("invalid feature configuration: %w", err)
		}
		p.ordinal = enc
	}
	return p, nil
}

// Pipeline runs the feature stages in their fixed order over one dataset.
type Pipeline struct {
	features     Features
	source       DataSource
	sink         DataSink
	location     types.OutputLocation
	format       types.OutputFormat
	transformers []Transformer
	logger       *zap.Logger
	metrics      metrics.Recorder
	ordinal      *encode.OrdinalEncoder
}

// StageReport describes one completed stage.
type StageReport struct {
	Stage    string
	Rows     int
	Columns  int
	Duration time.Duration
}

// Result is the output of a run: the feature matrix and the statistics each
// stage fitted. Statistics of disabled stages are nil.
type Result struct {
	RunID           string
	Matrix          *FeatureMatrix
	Imputation      *impute.Statistics
	Labels          *encode.LabelCodes
	OneHot          *encode.OneHotCategories
	Calendar        *temporal.Calendar
	Vocabulary      *textvec.Vocabulary
	Standardization *scale.Standardization
	Aggregates      *aggregate.Aggregates
	Stages          []StageReport
	Duration        time.Duration
}

// Execute loads every record from the source, runs the stages and writes the
// feature matrix to the sink.
func (p *Pipeline) Execute(ctx context.Context) (*Result, error) {
	if p.source == nil {
		return nil, fmt.Errorf("pipeline requires a data source")
	}
	if p.sink == nil && p.location == nil {
		return nil, fmt.Errorf("pipeline requires a data sink")
	}

	ds, err := p.load(ctx)
	if err == nil {
		var result *Result
		if result, err = p.Run(ctx, ds); err == nil {
			if err = p.write(ctx, result.Matrix); err == nil {
				return result, nil
			}
			return nil, err
		}
	}
	if p.sink != nil {
		core.Discard(p.sink)
	}
	return nil, err
}

// Run applies every stage to ds in place and builds the feature matrix.
// The row count is checked after each stage.
func (p *Pipeline) Run(ctx context.Context, ds *Dataset) (*Result, error) {
	result := &Result{RunID: uuid.NewString()}
	log := p.logger.With(zap.String("run_id", result.RunID))
	start := time.Now()
	rows := ds.Len()

	log.Info("starting feature pipeline", zap.Int("rows", rows), zap.Int("columns", len(ds.Columns())))

	for _, stage := range p.stages(result) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stageStart := time.Now()
		err := stage.Apply(ctx, ds)
		elapsed := time.Since(stageStart)
		p.metrics.ObserveStage(stage.Name(), elapsed)
		if err == nil && ds.Len() != rows {
			err = core.NewColumnError(stage.Name(), rowCountKind(stage.Name()), "",
				fmt.Errorf("row count changed from %d to %d", rows, ds.Len()))
		}
		if err != nil {
			p.metrics.StageFailed(stage.Name(), err)
			log.Error("stage failed", zap.String("stage", stage.Name()), zap.Error(err))
			return nil, err
		}

		report := StageReport{Stage: stage.Name(), Rows: ds.Len(), Columns: len(ds.Columns()), Duration: elapsed}
		result.Stages = append(result.Stages, report)
		log.Info("stage complete",
			zap.String("stage", report.Stage),
			zap.Int("rows", report.Rows),
			zap.Int("columns", report.Columns),
			zap.Duration("duration", report.Duration))
	}

	matrix, err := validators.FeatureMatrix(ctx, ds)
	if err != nil {
		p.metrics.StageFailed(validators.MatrixStage, err)
		log.Error("feature matrix rejected", zap.Error(err))
		return nil, err
	}
	result.Matrix = matrix
	result.Duration = time.Since(start)

	n, m := matrix.Shape()
	p.metrics.SetOutputShape(n, m)
	log.Info("feature matrix ready", zap.Int("rows", n), zap.Int("columns", m), zap.Duration("duration", result.Duration))
	return result, nil
}

// stages lists the enabled stages in execution order. Fitted statistics are
// stored on result as each stage runs.
func (p *Pipeline) stages(result *Result) []core.Stage {
	f := p.features
	var stages []core.Stage

	stages = append(stages, core.StageFunc{StageName: impute.StageName, Fn: func(ctx context.Context, ds *core.Dataset) error {
		stats, err := impute.New(f.Numeric, f.Categorical, impute.WithParallelism(f.Parallelism)).Fit(ctx, ds)
		if err != nil {
			return err
		}
		result.Imputation = stats
		return stats.Transform(ctx, ds)
	}})

	if len(f.Label) > 0 {
		stages = append(stages, core.StageFunc{StageName: encode.LabelStage, Fn: func(ctx context.Context, ds *core.Dataset) error {
			codes, err := encode.NewLabelEncoder(f.Label...).Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.Labels = codes
			return codes.Transform(ctx, ds)
		}})
	}
	if p.ordinal != nil {
		stages = append(stages, p.ordinal)
	}
	if len(f.OneHot) > 0 {
		stages = append(stages, core.StageFunc{StageName: encode.OneHotStage, Fn: func(ctx context.Context, ds *core.Dataset) error {
			cats, err := encode.NewOneHotEncoder(f.OneHot...).Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.OneHot = cats
			return cats.Transform(ctx, ds)
		}})
	}

	if f.DateColumn != "" {
		var opts []temporal.Option
		if len(f.DateLayouts) > 0 {
			opts = append(opts, temporal.WithDateLayouts(f.DateLayouts...))
		}
		if len(f.TimeLayouts) > 0 {
			opts = append(opts, temporal.WithTimeLayouts(f.TimeLayouts...))
		}
		opts = append(opts, temporal.WithOneHot(f.TemporalOneHot...))
		extractor := temporal.New(f.DateColumn, f.TimeColumn, opts...)
		stages = append(stages, core.StageFunc{StageName: temporal.StageName, Fn: func(ctx context.Context, ds *core.Dataset) error {
			cal, err := extractor.Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.Calendar = cal
			return cal.Transform(ctx, ds)
		}})
	}

	if f.TextColumn != "" {
		vectorizer := textvec.New(f.TextColumn, textvec.WithMaxFeatures(f.MaxFeatures))
		stages = append(stages, core.StageFunc{StageName: textvec.StageName, Fn: func(ctx context.Context, ds *core.Dataset) error {
			vocab, err := vectorizer.Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.Vocabulary = vocab
			return vocab.Transform(ctx, ds)
		}})
	}

	features := f.aggregates()
	if len(features) > 0 {
		builder := aggregate.NewBuilder(features...)
		stages = append(stages, core.StageFunc{StageName: aggregateFitStage, Fn: func(ctx context.Context, ds *core.Dataset) error {
			agg, err := builder.Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.Aggregates = agg
			return nil
		}})
	}

	if len(f.Numeric) > 0 {
		scaler := scale.New(f.Numeric, scale.WithParallelism(f.Parallelism))
		stages = append(stages, core.StageFunc{StageName: scale.StageName, Fn: func(ctx context.Context, ds *core.Dataset) error {
			st, err := scaler.Fit(ctx, ds)
			if err != nil {
				return err
			}
			result.Standardization = st
			return st.Transform(ctx, ds)
		}})
	}

	if f.TargetColumn != "" {
		stages = append(stages, encode.NewCategoryCodes(f.ProductColumn, f.TargetColumn))
	}

	if len(features) > 0 {
		stages = append(stages, core.StageFunc{StageName: aggregate.StageName, Fn: func(ctx context.Context, ds *core.Dataset) error {
			return result.Aggregates.Transform(ctx, ds)
		}})
	}

	if len(f.Drop) > 0 {
		stages = append(stages, transform.Drop(f.Drop...))
	}
	return stages
}

// load reads the whole source, normalizes raw cells and types the columns
// against the feature schema. Source failures are reported as LoadErrors.
func (p *Pipeline) load(ctx context.Context) (*Dataset, error) {
	defer p.source.Close()
	start := time.Now()

	normalize := transform.Chain(append([]Transformer{
		transform.TrimSpace(),
		transform.NullTokens(transform.DefaultNullTokens...),
	}, p.transformers...)...)

	var records []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := p.source.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			err = core.NewRowError(validators.LoadStage, core.ErrLoad, "", len(records), nil, err)
			p.metrics.StageFailed(validators.LoadStage, err)
			return nil, err
		}
		if record, err = normalize.Transform(ctx, record); err != nil {
			err = core.NewRowError(validators.LoadStage, core.ErrLoad, "", len(records), nil, err)
			p.metrics.StageFailed(validators.LoadStage, err)
			return nil, err
		}
		records = append(records, record)
	}

	ds, err := validators.NewSchemaValidator(p.features.Schema()).Validate(ctx, sourceColumns(p.source, records), records)
	elapsed := time.Since(start)
	p.metrics.ObserveStage(validators.LoadStage, elapsed)
	if err != nil {
		p.metrics.StageFailed(validators.LoadStage, err)
		p.logger.Error("load failed", zap.Error(err))
		return nil, err
	}
	p.logger.Info("dataset loaded", zap.Int("rows", ds.Len()), zap.Int("columns", len(ds.Columns())), zap.Duration("duration", elapsed))
	return ds, nil
}

// write opens the output location if needed and streams the matrix rows.
func (p *Pipeline) write(ctx context.Context, matrix *FeatureMatrix) error {
	sink := p.sink
	if sink == nil {
		s, err := p.location.NewSink(ctx, p.format)
		if err != nil {
			return fmt.Errorf("open %s output: %w", p.format, err)
		}
		sink = s
	}
	if cs, ok := sink.(core.ColumnarSink); ok {
		cs.SetColumns(matrix.Columns)
	}

	for i := range matrix.Rows {
		if err := sink.Write(ctx, matrix.Record(i)); err != nil {
			core.Discard(sink)
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := sink.Flush(); err != nil {
		core.Discard(sink)
		return fmt.Errorf("flush output: %w", err)
	}
	if err := sink.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	p.logger.Info("feature matrix written", zap.Int("rows", len(matrix.Rows)), zap.Int("columns", len(matrix.Columns)))
	return nil
}

// sourceColumns returns the source's own column order, or the sorted union
// of the record keys when the source does not know it.
func sourceColumns(source DataSource, records []Record) []string {
	if cs, ok := source.(core.ColumnarSource); ok {
		if cols := cs.Columns(); len(cols) > 0 {
			return cols
		}
	}
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

func rowCountKind(stage string) error {
	if strings.HasPrefix(stage, aggregate.StageName) {
		return core.ErrAggregationJoin
	}
	return core.ErrSchema
}
