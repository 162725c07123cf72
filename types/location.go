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

package types

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/writers"
)

// OutputFormat represents a supported sink format.
type OutputFormat int

const (
	FormatCSV OutputFormat = iota
	FormatParquet
	FormatPostgres
)

// String returns the configuration name of the format.
func (f OutputFormat) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatParquet:
		return "parquet"
	case FormatPostgres:
		return "postgres"
	}
	return "unknown"
}

// ParseOutputFormat maps a configuration name to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	case "postgres", "postgresql":
		return FormatPostgres, nil
	}
	return 0, fmt.Errorf("unsupported output format %q", s)
}

// OutputLocation creates a sink for a given format.
type OutputLocation interface {
	NewSink(ctx context.Context, format OutputFormat) (core.ColumnarSink, error)
}

// FileLocation writes output to a local filesystem path. An aborted sink
// removes the file.
type FileLocation struct {
	Path string
}

// NewSink instantiates a writer for the file location.
func (f FileLocation) NewSink(ctx context.Context, format OutputFormat) (core.ColumnarSink, error) {
	switch format {
	case FormatCSV:
		return writers.NewCSVFileWriter(f.Path)
	case FormatParquet:
		return writers.NewParquetFileWriter(f.Path)
	default:
		return nil, fmt.Errorf("unsupported format %s for a file location", format)
	}
}

// PutObjectAPI is the part of the S3 client used for uploads.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Location writes one object to an S3 bucket. The body is buffered in
// memory and uploaded when the sink is closed; an aborted sink uploads nothing.
type S3Location struct {
	Bucket string
	Key    string
	Client PutObjectAPI
}

type s3WriteCloser struct {
	ctx    context.Context
	buf    bytes.Buffer
	client PutObjectAPI
	bucket string
	key    string
}

func (s *s3WriteCloser) Write(p []byte) (int, error) { return s.buf.Write(p) }

func (s *s3WriteCloser) Close() error {
	_, err := s.client.PutObject(s.ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("upload s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}

// Abort implements core.Aborter: the buffered body is dropped unsent.
func (s *s3WriteCloser) Abort() error {
	s.buf.Reset()
	return nil
}

// NewSink creates a writer uploading to S3.
func (s S3Location) NewSink(ctx context.Context, format OutputFormat) (core.ColumnarSink, error) {
	if s.Client == nil {
		client, err := NewS3Client(ctx, S3Options{})
		if err != nil {
			return nil, err
		}
		s.Client = client
	}
	body := &s3WriteCloser{ctx: ctx, client: s.Client, bucket: s.Bucket, key: s.Key}

	switch format {
	case FormatCSV:
		return writers.NewCSVWriter(body)
	case FormatParquet:
		return writers.NewParquetWriter(body)
	default:
		return nil, fmt.Errorf("unsupported format %s for an S3 location", format)
	}
}

// PostgresLocation directs output to a PostgreSQL table.
type PostgresLocation struct {
	DSN   string
	Table string
}

// NewSink instantiates a PostgreSQL writer.
func (p PostgresLocation) NewSink(ctx context.Context, format OutputFormat) (core.ColumnarSink, error) {
	if format != FormatPostgres {
		return nil, fmt.Errorf("unsupported format %s for a postgres location", format)
	}
	return writers.NewPostgresWriter(
		writers.WithPostgresDSN(p.DSN),
		writers.WithTableName(p.Table),
		writers.WithTruncateTable(true),
	)
}

// ParseS3URL splits s3://bucket/key. ok is false for anything else.
func ParseS3URL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", false
	}
	return bucket, key, true
}

// ResolveOutput picks the output location for a target: a PostgreSQL table
// for the postgres format, an S3 object for s3:// URLs and a file otherwise.
func ResolveOutput(ctx context.Context, target string, format OutputFormat, pg PostgresLocation, s3opts S3Options) (OutputLocation, error) {
	if format == FormatPostgres {
		return pg, nil
	}
	if bucket, key, ok := ParseS3URL(target); ok {
		if key == "" {
			return nil, fmt.Errorf("s3 output %q has no object key", target)
		}
		client, err := NewS3Client(ctx, s3opts)
		if err != nil {
			return nil, err
		}
		return S3Location{Bucket: bucket, Key: key, Client: client}, nil
	}
	if target == "" {
		return nil, fmt.Errorf("output path is required")
	}
	return FileLocation{Path: target}, nil
}
