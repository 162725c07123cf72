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

package textvec

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenizer splits text into lowercase word tokens.
type Tokenizer struct {
	minLength int
}

// NewTokenizer returns the default tokenizer: NFKC normalisation, Unicode case
// folding and runs of at least two letters, digits or underscores.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{minLength: 2}
}

// WithMinLength returns a copy of the tokenizer keeping shorter or longer tokens.
func (t *Tokenizer) WithMinLength(n int) *Tokenizer {
	return &Tokenizer{minLength: n}
}

// Tokens returns the tokens of one document in order of appearance.
func (t *Tokenizer) Tokens(text string) []string {
	if text == "" {
		return nil
	}
	// A cases.Caser is stateful and not safe to share.
	folded := cases.Fold().String(norm.NFKC.String(text))
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= t.minLength {
			out = append(out, f)
		}
	}
	return out
}
