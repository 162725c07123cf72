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

package readers

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/aaronlmathis/featurekit/core"
	"github.com/aaronlmathis/featurekit/types"
)

// S3ReaderError provides structured error information for S3 reader operations
type S3ReaderError struct {
	Op  string // Operation that failed (e.g., "get_object", "read")
	Err error  // Underlying error
}

func (e *S3ReaderError) Error() string {
	return fmt.Sprintf("s3 reader %s: %v", e.Op, e.Err)
}

func (e *S3ReaderError) Unwrap() error {
	return e.Err
}

// S3ReaderStats holds statistics about the S3 reader's performance
type S3ReaderStats struct {
	RecordsRead   int64
	ContentLength int64
	ReadDuration  time.Duration
	LastModified  time.Time
}

// GetObjectAPI is the part of the S3 client used for downloads.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ReaderOptions configures the S3 reader behavior
type S3ReaderOptions struct {
	Bucket string            // S3 bucket name
	Key    string            // Object key of the delimited file
	Client GetObjectAPI      // Preconfigured client; built from AWS when nil
	AWS    types.S3Options   // Client settings when Client is nil
	CSV    []ReaderOptionCSV // Options for parsing the object body
}

// ReaderOptionS3 represents a configuration function for S3Reader
type ReaderOptionS3 func(*S3ReaderOptions)

func WithS3Object(bucket, key string) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) {
		opts.Bucket = bucket
		opts.Key = key
	}
}

func WithS3Client(client GetObjectAPI) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.Client = client }
}

func WithS3AWSOptions(s3opts types.S3Options) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.AWS = s3opts }
}

func WithS3CSVOptions(csvOpts ...ReaderOptionCSV) ReaderOptionS3 {
	return func(opts *S3ReaderOptions) { opts.CSV = append(opts.CSV, csvOpts...) }
}

// S3Reader implements core.DataSource for one delimited object in S3.
type S3Reader struct {
	csv   *CSVReader
	stats S3ReaderStats
}

// NewS3Reader fetches the object and parses its header.
func NewS3Reader(ctx context.Context, options ...ReaderOptionS3) (*S3Reader, error) {
	var opts S3ReaderOptions
	for _, option := range options {
		option(&opts)
	}
	if opts.Bucket == "" || opts.Key == "" {
		return nil, &S3ReaderError{Op: "validate_options", Err: fmt.Errorf("bucket and key are required")}
	}

	client := opts.Client
	if client == nil {
		c, err := types.NewS3Client(ctx, opts.AWS)
		if err != nil {
			return nil, &S3ReaderError{Op: "create_aws_config", Err: err}
		}
		client = c
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(opts.Bucket),
		Key:    aws.String(opts.Key),
	})
	if err != nil {
		return nil, &S3ReaderError{Op: "get_object", Err: fmt.Errorf("s3://%s/%s: %w", opts.Bucket, opts.Key, err)}
	}

	csvReader, err := NewCSVReader(out.Body, opts.CSV...)
	if err != nil {
		out.Body.Close()
		return nil, &S3ReaderError{Op: "read_headers", Err: err}
	}

	r := &S3Reader{csv: csvReader}
	r.stats.ContentLength = aws.ToInt64(out.ContentLength)
	r.stats.LastModified = aws.ToTime(out.LastModified)
	return r, nil
}

// Columns returns the object's header.
func (s *S3Reader) Columns() []string {
	return s.csv.Columns()
}

// Read implements the core.DataSource interface
func (s *S3Reader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() { s.stats.ReadDuration += time.Since(start) }()

	record, err := s.csv.Read(ctx)
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, &S3ReaderError{Op: "read_record", Err: err}
	}
	s.stats.RecordsRead++
	return record, nil
}

// Close implements the core.DataSource interface
func (s *S3Reader) Close() error {
	return s.csv.Close()
}

// Stats returns S3 reader performance statistics
func (s *S3Reader) Stats() S3ReaderStats {
	return s.stats
}
