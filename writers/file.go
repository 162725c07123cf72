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
	"fmt"
	"os"
	"path/filepath"
)

// outputFile is a local output file that is deleted instead of kept when
// the write is aborted.
type outputFile struct {
	*os.File
}

// createOutputFile creates filename and its parent directories.
func createOutputFile(filename string) (*outputFile, error) {
	if dir := filepath.Dir(filename); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filename, err)
	}
	return &outputFile{File: file}, nil
}

// Abort implements core.Aborter.
func (f *outputFile) Abort() error {
	f.File.Close()
	if err := os.Remove(f.Name()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// NewCSVFileWriter creates the file (and its parent directories) and returns
// a CSV writer for it. The file is removed on Abort.
func NewCSVFileWriter(filename string, opts ...WriterOptionCSV) (*CSVWriter, error) {
	file, err := createOutputFile(filename)
	if err != nil {
		return nil, &CSVWriterError{Op: "open_file", Err: err}
	}
	return NewCSVWriter(file, opts...)
}
