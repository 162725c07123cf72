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

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aaronlmathis/featurekit/core"
)

// This file implements a MongoDB collection reader. Documents are flattened
// to one record each; the field order of the first document is the column order.

// timestampLayout renders database dates in a layout the temporal stage parses as
// both a date and a time.
const timestampLayout = "2006-01-02 15:04:05"

// MongoReaderError provides structured error information for MongoDB reader operations
type MongoReaderError struct {
	Op         string // Operation that failed (e.g., "connect", "find", "decode")
	Collection string // Collection being accessed when error occurred
	Err        error  // Underlying error
}

func (e *MongoReaderError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("mongo reader %s [%s]: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("mongo reader %s: %v", e.Op, e.Err)
}

func (e *MongoReaderError) Unwrap() error {
	return e.Err
}

// MongoReaderStats holds statistics about the MongoDB reader's performance
type MongoReaderStats struct {
	RecordsRead     int64
	ReadDuration    time.Duration
	LastReadTime    time.Time
	NullValueCounts map[string]int64
}

// MongoReaderOptions configures the MongoDB reader
type MongoReaderOptions struct {
	URI        string        // MongoDB connection URI
	Database   string        // Database name
	Collection string        // Collection name
	Filter     bson.M        // Query filter
	Projection bson.M        // Field projection; _id is excluded when unset
	Sort       bson.D        // Sort specification
	BatchSize  int32         // Cursor batch size
	Limit      int64         // Maximum number of documents to read
	Timeout    time.Duration // Connect timeout
}

// ReaderOptionMongo is a functional option for MongoReaderOptions
type ReaderOptionMongo func(*MongoReaderOptions)

func WithMongoURI(uri string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.URI = uri }
}

func WithMongoDB(database string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Database = database }
}

func WithMongoCollection(collection string) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Collection = collection }
}

func WithMongoFilter(filter bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Filter = filter }
}

func WithMongoProjection(projection bson.M) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Projection = projection }
}

func WithMongoSort(sort bson.D) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Sort = sort }
}

func WithMongoBatchSize(batchSize int32) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.BatchSize = batchSize }
}

func WithMongoLimit(limit int64) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Limit = limit }
}

func WithMongoTimeout(timeout time.Duration) ReaderOptionMongo {
	return func(opts *MongoReaderOptions) { opts.Timeout = timeout }
}

// MongoReader implements core.DataSource for MongoDB collections
type MongoReader struct {
	client  *mongo.Client
	cursor  *mongo.Cursor
	opts    *MongoReaderOptions
	columns []string
	stats   MongoReaderStats
}

// NewMongoReader creates a MongoDB reader. The connection is opened on the first Read.
func NewMongoReader(options ...ReaderOptionMongo) (*MongoReader, error) {
	opts := &MongoReaderOptions{
		URI:       "mongodb://localhost:27017",
		BatchSize: 1000,
		Timeout:   30 * time.Second,
	}
	for _, option := range options {
		option(opts)
	}
	if opts.Database == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("database name is required")}
	}
	if opts.Collection == "" {
		return nil, &MongoReaderError{Op: "validate", Err: fmt.Errorf("collection name is required")}
	}
	return &MongoReader{
		opts:  opts,
		stats: MongoReaderStats{NullValueCounts: make(map[string]int64)},
	}, nil
}

// Columns returns the field order of the first document read.
func (mr *MongoReader) Columns() []string {
	return append([]string(nil), mr.columns...)
}

// Read implements the core.DataSource interface
func (mr *MongoReader) Read(ctx context.Context) (core.Record, error) {
	start := time.Now()
	defer func() {
		mr.stats.ReadDuration += time.Since(start)
		mr.stats.LastReadTime = time.Now()
	}()

	if mr.cursor == nil {
		if err := mr.open(ctx); err != nil {
			return nil, err
		}
	}

	if !mr.cursor.Next(ctx) {
		if err := mr.cursor.Err(); err != nil {
			return nil, &MongoReaderError{Op: "cursor_next", Collection: mr.opts.Collection, Err: err}
		}
		return nil, io.EOF
	}

	var doc bson.D
	if err := mr.cursor.Decode(&doc); err != nil {
		return nil, &MongoReaderError{Op: "decode", Collection: mr.opts.Collection, Err: err}
	}

	record := make(core.Record, len(doc))
	first := mr.columns == nil
	for _, e := range doc {
		v := convertBSONValue(e.Value)
		record[e.Key] = v
		if v == nil {
			mr.stats.NullValueCounts[e.Key]++
		}
		if first {
			mr.columns = append(mr.columns, e.Key)
		}
	}
	mr.stats.RecordsRead++
	return record, nil
}

// Close implements the core.DataSource interface
func (mr *MongoReader) Close() error {
	ctx := context.Background()
	var firstErr error
	if mr.cursor != nil {
		if err := mr.cursor.Close(ctx); err != nil {
			firstErr = &MongoReaderError{Op: "cursor_close", Collection: mr.opts.Collection, Err: err}
		}
		mr.cursor = nil
	}
	if mr.client != nil {
		if err := mr.client.Disconnect(ctx); err != nil && firstErr == nil {
			firstErr = &MongoReaderError{Op: "disconnect", Err: err}
		}
		mr.client = nil
	}
	return firstErr
}

// Stats returns reader statistics.
func (mr *MongoReader) Stats() MongoReaderStats {
	return mr.stats
}

func (mr *MongoReader) open(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, mr.opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(mr.opts.URI))
	if err != nil {
		return &MongoReaderError{Op: "connect", Err: err}
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(ctx)
		return &MongoReaderError{Op: "ping", Err: err}
	}
	mr.client = client

	findOpts := options.Find().SetBatchSize(mr.opts.BatchSize)
	if mr.opts.Limit > 0 {
		findOpts.SetLimit(mr.opts.Limit)
	}
	projection := mr.opts.Projection
	if projection == nil {
		projection = bson.M{"_id": 0}
	}
	findOpts.SetProjection(projection)
	if mr.opts.Sort != nil {
		findOpts.SetSort(mr.opts.Sort)
	}
	filter := mr.opts.Filter
	if filter == nil {
		filter = bson.M{}
	}

	cursor, err := client.Database(mr.opts.Database).Collection(mr.opts.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		return &MongoReaderError{Op: "find", Collection: mr.opts.Collection, Err: err}
	}
	mr.cursor = cursor
	return nil
}

// convertBSONValue converts BSON values to record values: numbers stay
// numbers, dates become "2006-01-02 15:04:05" strings, nulls become nil and
// everything else is rendered as a string.
func convertBSONValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil, primitive.Null, primitive.Undefined:
		return nil
	case float64, int32, int64, bool, string:
		return v
	case primitive.ObjectID:
		return v.Hex()
	case primitive.DateTime:
		return v.Time().UTC().Format(timestampLayout)
	case time.Time:
		return v.UTC().Format(timestampLayout)
	case primitive.Decimal128:
		return v.String()
	case primitive.Timestamp:
		return time.Unix(int64(v.T), 0).UTC().Format(timestampLayout)
	default:
		return fmt.Sprintf("%v", v)
	}
}
