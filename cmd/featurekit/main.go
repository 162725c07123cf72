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

// Command featurekit builds the retail feature matrix from a transaction
// table and writes it to the configured output.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/aaronlmathis/featurekit"
	"github.com/aaronlmathis/featurekit/config"
	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/metrics"
	"github.com/aaronlmathis/featurekit/readers"
	"github.com/aaronlmathis/featurekit/types"
	"github.com/aaronlmathis/featurekit/validators"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	metricsPath := flag.String("metrics", "", "write Prometheus metrics to this textfile (overrides metrics.textfile)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *metricsPath != "" {
		cfg.Metrics.Textfile = *metricsPath
	}
	if *printConfig {
		out, err := cfg.Render()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("feature pipeline failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.Metrics.Textfile != "" {
		reg := prometheus.NewRegistry()
		prom, err := metrics.NewPrometheus(reg)
		if err != nil {
			return err
		}
		recorder = prom
		defer func() {
			if err := metrics.WriteTextfile(reg, cfg.Metrics.Textfile); err != nil {
				logger.Warn("failed to write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
			}
		}()
	}

	source, err := openSource(ctx, cfg)
	if err != nil {
		return core.NewColumnError(validators.LoadStage, core.ErrLoad, "", err)
	}

	format, err := types.ParseOutputFormat(cfg.Output.Format)
	if err != nil {
		source.Close()
		return err
	}
	location, err := types.ResolveOutput(ctx, cfg.Output.Path, format,
		types.PostgresLocation{DSN: cfg.Output.PostgresDSN, Table: cfg.Output.PostgresTable},
		cfg.S3Options())
	if err != nil {
		source.Close()
		return err
	}

	pipeline, err := featurekit.NewPipeline().
		From(source).
		ToLocation(location, format).
		WithFeatures(cfg.FeatureSet()).
		WithLogger(logger).
		WithMetrics(recorder).
		Build()
	if err != nil {
		source.Close()
		return err
	}

	result, err := pipeline.Execute(ctx)
	if err != nil {
		return err
	}
	printSummary(result)
	return nil
}

// openSource builds the reader for the configured input.
func openSource(ctx context.Context, cfg *config.Config) (featurekit.DataSource, error) {
	in := cfg.Input
	switch in.Format {
	case "postgres":
		return readers.NewPostgresReader(ctx,
			readers.WithPostgresDSN(in.PostgresDSN),
			readers.WithPostgresQuery(in.PostgresQuery))
	case "mongo":
		return readers.NewMongoReader(
			readers.WithMongoURI(in.MongoURI),
			readers.WithMongoDB(in.MongoDatabase),
			readers.WithMongoCollection(in.MongoCollection))
	}

	comma := []rune(in.Delimiter)[0]
	if bucket, key, ok := types.ParseS3URL(in.Path); ok {
		return readers.NewS3Reader(ctx,
			readers.WithS3Object(bucket, key),
			readers.WithS3AWSOptions(cfg.S3Options()),
			readers.WithS3CSVOptions(readers.WithCSVComma(comma)))
	}
	file, err := os.Open(in.Path)
	if err != nil {
		return nil, err
	}
	reader, err := readers.NewCSVReader(file, readers.WithCSVComma(comma))
	if err != nil {
		file.Close()
		return nil, err
	}
	return reader, nil
}

func printSummary(result *featurekit.Result) {
	rows, cols := result.Matrix.Shape()
	fmt.Printf("Feature matrix: %d rows x %d columns (run %s, %s)\n", rows, cols, result.RunID, result.Duration)
	fmt.Printf("Columns: %s\n", strings.Join(result.Matrix.Columns, ", "))
}
