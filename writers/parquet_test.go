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

package writers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v12/arrow/array"
	"github.com/apache/arrow/go/v12/arrow/memory"
	"github.com/apache/arrow/go/v12/parquet"
	"github.com/apache/arrow/go/v12/parquet/compress"
	"github.com/apache/arrow/go/v12/parquet/pqarrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronlmathis/featurekit/core"
)

// readParquet returns the column names and the float64 columns of a file.
func readParquet(t *testing.T, filename string) ([]string, [][]float64) {
	t.Helper()
	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()

	table, err := pqarrow.ReadTable(context.Background(), f,
		parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	defer table.Release()

	names := make([]string, table.NumCols())
	columns := make([][]float64, table.NumCols())
	for i := 0; i < int(table.NumCols()); i++ {
		col := table.Column(i)
		names[i] = col.Name()
		for _, chunk := range col.Data().Chunks() {
			columns[i] = append(columns[i], chunk.(*array.Float64).Float64Values()...)
		}
	}
	return names, columns
}

// TestParquetWriter_BasicFunctionality tests core write operations
func TestParquetWriter_BasicFunctionality(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "features.parquet")

	writer, err := NewParquetFileWriter(filename,
		WithBatchSize(2),
		WithCompression(compress.Codecs.Snappy),
	)
	require.NoError(t, err)
	writer.SetColumns([]string{"CLV", "Age"})

	ctx := context.Background()
	records := []core.Record{
		{"CLV": 150.0, "Age": -1.0},
		{"CLV": 150.0, "Age": 0.0},
		{"CLV": 80.0, "Age": 1.0},
	}
	for _, record := range records {
		require.NoError(t, writer.Write(ctx, record))
	}

	stats := writer.Stats()
	assert.Equal(t, int64(3), stats.RecordsWritten)
	assert.Equal(t, int64(1), stats.BatchesWritten)

	require.NoError(t, writer.Close())
	assert.Equal(t, int64(2), writer.Stats().BatchesWritten)

	names, columns := readParquet(t, filename)
	assert.Equal(t, []string{"CLV", "Age"}, names)
	assert.Equal(t, []float64{150, 150, 80}, columns[0])
	assert.Equal(t, []float64{-1, 0, 1}, columns[1])
}

// TestParquetWriter_FunctionalOptions tests all functional options
func TestParquetWriter_FunctionalOptions(t *testing.T) {
	writer, err := NewParquetWriter(newMockCSVWriteCloser(),
		WithBatchSize(10),
		WithCompression(compress.Codecs.Gzip),
		WithRowGroupSize(1000),
		WithMetadata(map[string]string{"created_by": "test"}),
	)
	require.NoError(t, err)

	assert.Equal(t, int64(10), writer.opts.BatchSize)
	assert.Equal(t, compress.Codecs.Gzip, writer.opts.Compression)
	assert.Equal(t, int64(1000), writer.opts.RowGroupSize)
	assert.Equal(t, "test", writer.opts.Metadata["created_by"])
	require.NoError(t, writer.Close())
}

// TestParquetWriter_DefaultOptions tests default option values
func TestParquetWriter_DefaultOptions(t *testing.T) {
	writer, err := NewParquetWriter(newMockCSVWriteCloser())
	require.NoError(t, err)

	assert.Equal(t, int64(1000), writer.opts.BatchSize)
	assert.Equal(t, int64(10000), writer.opts.RowGroupSize)
	assert.Equal(t, compress.Codecs.Snappy, writer.opts.Compression)
	require.NoError(t, writer.Close())
}

// TestParquetWriter_StreamSink tests writing to an arbitrary WriteCloser
func TestParquetWriter_StreamSink(t *testing.T) {
	mock := newMockCSVWriteCloser()
	writer, err := NewParquetWriter(mock)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), core.Record{"x": 1.0}))
	require.NoError(t, writer.Close())

	out := mock.String()
	assert.True(t, strings.HasPrefix(out, "PAR1"))
	assert.True(t, strings.HasSuffix(out, "PAR1"))
	assert.True(t, mock.IsClosed())
}

// TestParquetWriter_HeaderOnly tests an empty matrix with known columns
func TestParquetWriter_HeaderOnly(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "empty.parquet")
	writer, err := NewParquetFileWriter(filename)
	require.NoError(t, err)

	writer.SetColumns([]string{"a", "b"})
	require.NoError(t, writer.Close())

	names, columns := readParquet(t, filename)
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Empty(t, columns[0])
}

// TestParquetWriter_ErrorHandling tests error conditions
func TestParquetWriter_ErrorHandling(t *testing.T) {
	t.Run("non-numeric value", func(t *testing.T) {
		writer, err := NewParquetWriter(newMockCSVWriteCloser())
		require.NoError(t, err)
		writer.SetColumns([]string{"a"})

		err = writer.Write(context.Background(), core.Record{"a": "not a number"})
		var pqErr *ParquetWriterError
		require.ErrorAs(t, err, &pqErr)
		assert.Equal(t, "append_value", pqErr.Op)

		err = writer.Write(context.Background(), core.Record{"a": 1.0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error state")
		writer.Close()
	})

	t.Run("missing value", func(t *testing.T) {
		writer, err := NewParquetWriter(newMockCSVWriteCloser())
		require.NoError(t, err)
		writer.SetColumns([]string{"a", "b"})

		err = writer.Write(context.Background(), core.Record{"a": 1.0})
		require.Error(t, err)
		writer.Close()
	})

	t.Run("write after close", func(t *testing.T) {
		writer, err := NewParquetWriter(newMockCSVWriteCloser())
		require.NoError(t, err)
		require.NoError(t, writer.Close())

		err = writer.Write(context.Background(), core.Record{"a": 1.0})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "closed")
	})

	t.Run("invalid directory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

		_, err := NewParquetFileWriter(filepath.Join(blocker, "sub", "out.parquet"))
		var pqErr *ParquetWriterError
		require.ErrorAs(t, err, &pqErr)
		assert.Equal(t, "open_file", pqErr.Op)
		assert.Contains(t, err.Error(), "failed to create directory")
	})
}

// TestParquetWriter_ContextCancellation tests context cancellation handling
func TestParquetWriter_ContextCancellation(t *testing.T) {
	writer, err := NewParquetWriter(newMockCSVWriteCloser())
	require.NoError(t, err)
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = writer.Write(ctx, core.Record{"a": 1.0})
	require.ErrorIs(t, err, context.Canceled)
}

// TestParquetWriter_FlushBehavior tests explicit flushes
func TestParquetWriter_FlushBehavior(t *testing.T) {
	writer, err := NewParquetWriter(newMockCSVWriteCloser(), WithBatchSize(100))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, writer.Write(ctx, core.Record{"a": 1.0}))
	assert.Equal(t, int64(0), writer.Stats().BatchesWritten)

	require.NoError(t, writer.Flush())
	assert.Equal(t, int64(1), writer.Stats().BatchesWritten)

	// Nothing buffered
	require.NoError(t, writer.Flush())
	assert.Equal(t, int64(1), writer.Stats().BatchesWritten)
	require.NoError(t, writer.Close())
}

func BenchmarkParquetWriter_Write(b *testing.B) {
	writer, _ := NewParquetWriter(newMockCSVWriteCloser(), WithBatchSize(1000))
	writer.SetColumns([]string{"a", "b", "c"})
	record := core.Record{"a": 1.5, "b": -0.25, "c": 42.0}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := writer.Write(ctx, record); err != nil {
			b.Fatal(err)
		}
	}
	writer.Close()
}
