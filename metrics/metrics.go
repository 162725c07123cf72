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

// Package metrics records stage timings, failures and the output shape of
// pipeline runs.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aaronlmathis/featurekit/core"
)

// Recorder receives pipeline measurements.
type Recorder interface {
	// ObserveStage records how long a stage took.
	ObserveStage(stage string, d time.Duration)
	// StageFailed counts a stage failure by error kind.
	StageFailed(stage string, err error)
	// SetOutputShape records the rows and columns of the final matrix.
	SetOutputShape(rows, columns int)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) ObserveStage(string, time.Duration) {}
func (Nop) StageFailed(string, error)          {}
func (Nop) SetOutputShape(int, int)            {}

// Prometheus is a Recorder backed by Prometheus collectors.
type Prometheus struct {
	StageDuration *prometheus.HistogramVec
	StageErrors   *prometheus.CounterVec
	OutputRows    prometheus.Gauge
	OutputColumns prometheus.Gauge
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "featurekit",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "featurekit",
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures by error kind.",
		}, []string{"stage", "kind"}),
		OutputRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "featurekit",
			Name:      "output_rows",
			Help:      "Rows in the last feature matrix.",
		}),
		OutputColumns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "featurekit",
			Name:      "output_columns",
			Help:      "Columns in the last feature matrix.",
		}),
	}
	for _, c := range []prometheus.Collector{p.StageDuration, p.StageErrors, p.OutputRows, p.OutputColumns} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) ObserveStage(stage string, d time.Duration) {
	p.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *Prometheus) StageFailed(stage string, err error) {
	p.StageErrors.WithLabelValues(stage, KindLabel(err)).Inc()
}

func (p *Prometheus) SetOutputShape(rows, columns int) {
	p.OutputRows.Set(float64(rows))
	p.OutputColumns.Set(float64(columns))
}

// KindLabel returns the error kind name of a pipeline error ("ScalingError",
// "SchemaError", ...) or "error" for anything else.
func KindLabel(err error) string {
	var pe *core.PipelineError
	if errors.As(err, &pe) && pe.Kind != nil {
		return pe.Kind.Error()
	}
	return "error"
}

// WriteTextfile writes the gathered metrics to path in the text exposition
// format, for the node exporter's textfile collector.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
