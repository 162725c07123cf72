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

// Package config loads the featurekit configuration from defaults, an
// optional YAML file and FEATUREKIT_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/aaronlmathis/featurekit"
	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/encode"
	"github.com/aaronlmathis/featurekit/types"
)

// EnvPrefix prefixes every environment override, e.g. FEATUREKIT_INPUT_PATH.
const EnvPrefix = "FEATUREKIT"

// Config is the complete run configuration.
type Config struct {
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Features FeaturesConfig `mapstructure:"features" yaml:"features"`
	AWS      AWSConfig      `mapstructure:"aws" yaml:"aws"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// InputConfig selects the transaction source. Path may be a local file or an
// s3://bucket/key URL for the csv format.
type InputConfig struct {
	Format          string `mapstructure:"format" yaml:"format" validate:"oneof=csv postgres mongo"`
	Path            string `mapstructure:"path" yaml:"path" validate:"required_if=Format csv"`
	Delimiter       string `mapstructure:"delimiter" yaml:"delimiter" validate:"len=1"`
	PostgresDSN     string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Format postgres"`
	PostgresQuery   string `mapstructure:"postgres_query" yaml:"postgres_query" validate:"required_if=Format postgres"`
	MongoURI        string `mapstructure:"mongo_uri" yaml:"mongo_uri" validate:"required_if=Format mongo"`
	MongoDatabase   string `mapstructure:"mongo_database" yaml:"mongo_database" validate:"required_if=Format mongo"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection" validate:"required_if=Format mongo"`
}

// OutputConfig selects where the feature matrix goes.
type OutputConfig struct {
	Format        string `mapstructure:"format" yaml:"format" validate:"oneof=csv parquet postgres"`
	Path          string `mapstructure:"path" yaml:"path" validate:"required_unless=Format postgres"`
	PostgresDSN   string `mapstructure:"postgres_dsn" yaml:"postgres_dsn" validate:"required_if=Format postgres"`
	PostgresTable string `mapstructure:"postgres_table" yaml:"postgres_table" validate:"required_if=Format postgres"`
}

// OrdinalConfig is one ordinal column and its categories, lowest rank first.
type OrdinalConfig struct {
	Column     string   `mapstructure:"column" yaml:"column" validate:"required"`
	Categories []string `mapstructure:"categories" yaml:"categories" validate:"min=1,unique,dive,required"`
}

// ColumnConfig declares one extra input column and its kind: numeric,
// categorical, text, date, time or identifier.
type ColumnConfig struct {
	Name string `mapstructure:"name" yaml:"name" validate:"required"`
	Kind string `mapstructure:"kind" yaml:"kind" validate:"required"`
}

// FeaturesConfig mirrors featurekit.Features.
type FeaturesConfig struct {
	Numeric        []string        `mapstructure:"numeric" yaml:"numeric" validate:"dive,required"`
	Categorical    []string        `mapstructure:"categorical" yaml:"categorical" validate:"dive,required"`
	Label          []string        `mapstructure:"label" yaml:"label" validate:"dive,required"`
	Ordinal        []OrdinalConfig `mapstructure:"ordinal" yaml:"ordinal" validate:"dive"`
	OneHot         []string        `mapstructure:"one_hot" yaml:"one_hot" validate:"dive,required"`
	DateColumn     string          `mapstructure:"date_column" yaml:"date_column"`
	TimeColumn     string          `mapstructure:"time_column" yaml:"time_column"`
	DateLayouts    []string        `mapstructure:"date_layouts" yaml:"date_layouts"`
	TimeLayouts    []string        `mapstructure:"time_layouts" yaml:"time_layouts"`
	TemporalOneHot []string        `mapstructure:"temporal_one_hot" yaml:"temporal_one_hot"`
	TextColumn     string          `mapstructure:"text_column" yaml:"text_column"`
	MaxFeatures    int             `mapstructure:"max_features" yaml:"max_features" validate:"min=1"`
	CustomerColumn string          `mapstructure:"customer_column" yaml:"customer_column"`
	MonetaryColumn string          `mapstructure:"monetary_column" yaml:"monetary_column"`
	ProductColumn  string          `mapstructure:"product_column" yaml:"product_column"`
	TargetColumn   string          `mapstructure:"target_column" yaml:"target_column"`
	Drop           []string        `mapstructure:"drop" yaml:"drop" validate:"unique"`
	Parallelism    int             `mapstructure:"parallelism" yaml:"parallelism" validate:"min=0"`
	Columns        []ColumnConfig  `mapstructure:"columns" yaml:"columns,omitempty" validate:"dive"`
}

// AWSConfig configures the S3 client used for s3:// paths.
type AWSConfig struct {
	Region         string `mapstructure:"region" yaml:"region"`
	Profile        string `mapstructure:"profile" yaml:"profile"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,url"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MetricsConfig configures the Prometheus textfile dump. An empty path
// disables metrics.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	f := featurekit.DefaultFeatures()
	ordinal := make([]OrdinalConfig, len(f.Ordinal))
	for i, s := range f.Ordinal {
		ordinal[i] = OrdinalConfig{Column: s.Column, Categories: s.Categories}
	}
	return &Config{
		Input: InputConfig{
			Format:    "csv",
			Path:      "retail_data_crunched.csv",
			Delimiter: ",",
		},
		Output: OutputConfig{
			Format: "csv",
			Path:   "preprocessed_data.csv",
		},
		Features: FeaturesConfig{
			Numeric:        f.Numeric,
			Categorical:    f.Categorical,
			Label:          f.Label,
			Ordinal:        ordinal,
			OneHot:         f.OneHot,
			DateColumn:     f.DateColumn,
			TimeColumn:     f.TimeColumn,
			TemporalOneHot: f.TemporalOneHot,
			TextColumn:     f.TextColumn,
			MaxFeatures:    f.MaxFeatures,
			CustomerColumn: f.CustomerColumn,
			MonetaryColumn: f.MonetaryColumn,
			ProductColumn:  f.ProductColumn,
			TargetColumn:   f.TargetColumn,
			Drop:           f.Drop,
			Parallelism:    f.Parallelism,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the configuration. path may be empty, in which case only the
// defaults and the environment apply. List values given through the
// environment are separated by commas.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks field constraints and the consistency of the feature columns.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := types.ParseOutputFormat(c.Output.Format); err != nil {
		return err
	}
	for _, col := range c.Features.Columns {
		if _, ok := core.ParseKind(col.Kind); !ok {
			return fmt.Errorf("column %q has unknown kind %q", col.Name, col.Kind)
		}
	}
	return c.FeatureSet().Validate()
}

// FeatureSet converts the features section into pipeline features.
func (c *Config) FeatureSet() featurekit.Features {
	f := c.Features
	ordinal := make([]encode.OrdinalSpec, len(f.Ordinal))
	for i, o := range f.Ordinal {
		ordinal[i] = encode.OrdinalSpec{Column: o.Column, Categories: append([]string(nil), o.Categories...)}
	}
	var extra core.Schema
	if len(f.Columns) > 0 {
		extra = make(core.Schema, len(f.Columns))
		for _, col := range f.Columns {
			if kind, ok := core.ParseKind(col.Kind); ok {
				extra[col.Name] = kind
			}
		}
	}
	return featurekit.Features{
		Numeric:        f.Numeric,
		Categorical:    f.Categorical,
		Label:          f.Label,
		Ordinal:        ordinal,
		OneHot:         f.OneHot,
		DateColumn:     f.DateColumn,
		TimeColumn:     f.TimeColumn,
		DateLayouts:    f.DateLayouts,
		TimeLayouts:    f.TimeLayouts,
		TemporalOneHot: f.TemporalOneHot,
		TextColumn:     f.TextColumn,
		MaxFeatures:    f.MaxFeatures,
		CustomerColumn: f.CustomerColumn,
		MonetaryColumn: f.MonetaryColumn,
		ProductColumn:  f.ProductColumn,
		TargetColumn:   f.TargetColumn,
		Drop:           f.Drop,
		Parallelism:    f.Parallelism,
		Extra:          extra,
	}
}

// S3Options returns the client settings for s3:// inputs and outputs.
func (c *Config) S3Options() types.S3Options {
	return types.S3Options{
		Region:         c.AWS.Region,
		Profile:        c.AWS.Profile,
		Endpoint:       c.AWS.Endpoint,
		ForcePathStyle: c.AWS.ForcePathStyle,
	}
}

// Render returns the configuration as YAML.
func (c *Config) Render() ([]byte, error) {
	return yaml.Marshal(c)
}

// Logger builds a production or development zap logger at the configured level.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	var zc zap.Config
	if l.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("input.format", d.Input.Format)
	v.SetDefault("input.path", d.Input.Path)
	v.SetDefault("input.delimiter", d.Input.Delimiter)
	v.SetDefault("input.postgres_dsn", d.Input.PostgresDSN)
	v.SetDefault("input.postgres_query", d.Input.PostgresQuery)
	v.SetDefault("input.mongo_uri", d.Input.MongoURI)
	v.SetDefault("input.mongo_database", d.Input.MongoDatabase)
	v.SetDefault("input.mongo_collection", d.Input.MongoCollection)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.postgres_dsn", d.Output.PostgresDSN)
	v.SetDefault("output.postgres_table", d.Output.PostgresTable)

	ordinal := make([]map[string]interface{}, len(d.Features.Ordinal))
	for i, o := range d.Features.Ordinal {
		ordinal[i] = map[string]interface{}{"column": o.Column, "categories": o.Categories}
	}
	v.SetDefault("features.numeric", d.Features.Numeric)
	v.SetDefault("features.categorical", d.Features.Categorical)
	v.SetDefault("features.label", d.Features.Label)
	v.SetDefault("features.ordinal", ordinal)
	v.SetDefault("features.one_hot", d.Features.OneHot)
	v.SetDefault("features.date_column", d.Features.DateColumn)
	v.SetDefault("features.time_column", d.Features.TimeColumn)
	v.SetDefault("features.date_layouts", d.Features.DateLayouts)
	v.SetDefault("features.time_layouts", d.Features.TimeLayouts)
	v.SetDefault("features.temporal_one_hot", d.Features.TemporalOneHot)
	v.SetDefault("features.text_column", d.Features.TextColumn)
	v.SetDefault("features.max_features", d.Features.MaxFeatures)
	v.SetDefault("features.customer_column", d.Features.CustomerColumn)
	v.SetDefault("features.monetary_column", d.Features.MonetaryColumn)
	v.SetDefault("features.product_column", d.Features.ProductColumn)
	v.SetDefault("features.target_column", d.Features.TargetColumn)
	v.SetDefault("features.drop", d.Features.Drop)
	v.SetDefault("features.parallelism", d.Features.Parallelism)

	v.SetDefault("aws.region", d.AWS.Region)
	v.SetDefault("aws.profile", d.AWS.Profile)
	v.SetDefault("aws.endpoint", d.AWS.Endpoint)
	v.SetDefault("aws.force_path_style", d.AWS.ForcePathStyle)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.development", d.Log.Development)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}
