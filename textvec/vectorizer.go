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

// Package textvec turns a free-text column into fixed-width TF-IDF columns over
// a bounded vocabulary.
package textvec

import (
	"context"
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/aaronlmathis/featurekit/core"
)

// StageName identifies the vectorizer in errors and logs.
const StageName = "text"

// DefaultMaxFeatures bounds the vocabulary when no size is configured.
const DefaultMaxFeatures = 100

// Vectorizer builds a vocabulary of at most maxFeatures terms ranked by their
// global TF-IDF weight and emits one weight column per retained term.
type Vectorizer struct {
	column      string
	maxFeatures int
	normalize   bool
	tokenizer   *Tokenizer
}

// Option configures a Vectorizer.
type Option func(*Vectorizer)

// WithMaxFeatures sets the vocabulary bound.
func WithMaxFeatures(n int) Option {
	return func(v *Vectorizer) { v.maxFeatures = n }
}

// WithNormalize toggles L2 normalisation of each row's weights. On by default.
func WithNormalize(on bool) Option {
	return func(v *Vectorizer) { v.normalize = on }
}

// WithTokenizer replaces the default tokenizer.
func WithTokenizer(t *Tokenizer) Option {
	return func(v *Vectorizer) { v.tokenizer = t }
}

// New creates a Vectorizer over one text column.
func New(column string, opts ...Option) *Vectorizer {
	v := &Vectorizer{
		column:      column,
		maxFeatures: DefaultMaxFeatures,
		normalize:   true,
		tokenizer:   NewTokenizer(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Name implements core.Stage.
func (v *Vectorizer) Name() string { return StageName }

// Apply implements core.Stage.
func (v *Vectorizer) Apply(ctx context.Context, ds *core.Dataset) error {
	vocab, err := v.Fit(ctx, ds)
	if err != nil {
		return err
	}
	return vocab.Transform(ctx, ds)
}

// Vocabulary is a fitted Vectorizer: retained terms in lexicographic order and
// their inverse document frequencies.
type Vocabulary struct {
	column    string
	terms     []string
	idf       map[string]float64
	normalize bool
	tokenizer *Tokenizer
}

// Fit tokenizes every row (missing text counts as empty), computes smoothed
// idf(t) = ln((1+n)/(1+df(t))) + 1 and keeps the maxFeatures terms with the
// highest summed tf·idf over the corpus. Ties break lexicographically.
func (v *Vectorizer) Fit(ctx context.Context, ds *core.Dataset) (*Vocabulary, error) {
	if v.maxFeatures <= 0 {
		return nil, core.NewColumnError(StageName, core.ErrSchema, v.column, errors.New("max features must be positive"))
	}
	docs, err := v.documents(ctx, ds)
	if err != nil {
		return nil, err
	}

	df := make(map[string]int)
	tf := make(map[string]int)
	for _, doc := range docs {
		for term, n := range doc {
			df[term]++
			tf[term] += n
		}
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	type scored struct {
		term   string
		weight float64
	}
	ranked := make([]scored, 0, len(df))
	for term, d := range df {
		w := math.Log((1+n)/(1+float64(d))) + 1
		idf[term] = w
		ranked = append(ranked, scored{term: term, weight: float64(tf[term]) * w})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].weight != ranked[j].weight {
			return ranked[i].weight > ranked[j].weight
		}
		return ranked[i].term < ranked[j].term
	})
	if len(ranked) > v.maxFeatures {
		ranked = ranked[:v.maxFeatures]
	}

	vocab := &Vocabulary{
		column:    v.column,
		terms:     make([]string, len(ranked)),
		idf:       make(map[string]float64, len(ranked)),
		normalize: v.normalize,
		tokenizer: v.tokenizer,
	}
	for i, s := range ranked {
		vocab.terms[i] = s.term
		vocab.idf[s.term] = idf[s.term]
	}
	sort.Strings(vocab.terms)
	return vocab, nil
}

// Terms returns the retained vocabulary in output order.
func (vb *Vocabulary) Terms() []string {
	return append([]string(nil), vb.terms...)
}

// IDF returns the inverse document frequency of a retained term.
func (vb *Vocabulary) IDF(term string) (float64, bool) {
	w, ok := vb.idf[term]
	return w, ok
}

// ColumnName is the output column of one term: <column>_tfidf_<term>.
func (vb *Vocabulary) ColumnName(term string) string {
	return vb.column + "_tfidf_" + term
}

// OutputColumns lists the weight columns in output order.
func (vb *Vocabulary) OutputColumns() []string {
	out := make([]string, len(vb.terms))
	for i, t := range vb.terms {
		out[i] = vb.ColumnName(t)
	}
	return out
}

// Transform appends one weight column per retained term. Terms outside the
// vocabulary contribute nothing; an empty document yields a zero row.
func (vb *Vocabulary) Transform(ctx context.Context, ds *core.Dataset) error {
	for _, name := range vb.OutputColumns() {
		if ds.HasColumn(name) {
			return core.NewColumnError(StageName, core.ErrSchema, name, errors.New("weight column collides with an existing column"))
		}
	}
	v := &Vectorizer{column: vb.column, tokenizer: vb.tokenizer}
	docs, err := v.documents(ctx, ds)
	if err != nil {
		return err
	}

	weights := make([][]float64, len(vb.terms))
	for j := range weights {
		weights[j] = make([]float64, len(docs))
	}
	row := make([]float64, len(vb.terms))
	for i, doc := range docs {
		for j, term := range vb.terms {
			row[j] = float64(doc[term]) * vb.idf[term]
		}
		if vb.normalize {
			if norm := floats.Norm(row, 2); norm > 0 {
				floats.Scale(1/norm, row)
			}
		}
		for j := range vb.terms {
			weights[j][i] = row[j]
		}
	}
	for j, term := range vb.terms {
		if err := ds.SetFloats(vb.ColumnName(term), weights[j]); err != nil {
			return core.NewColumnError(StageName, core.ErrSchema, vb.ColumnName(term), err)
		}
	}
	return nil
}

// documents returns per-row term counts.
func (v *Vectorizer) documents(ctx context.Context, ds *core.Dataset) ([]map[string]int, error) {
	if err := ds.Require(StageName, v.column); err != nil {
		return nil, err
	}
	docs := make([]map[string]int, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		text := ""
		if val := ds.Row(i)[v.column]; !core.IsMissing(val) {
			text = core.FormatValue(val)
		}
		counts := make(map[string]int)
		for _, tok := range v.tokenizer.Tokens(text) {
			counts[tok]++
		}
		docs[i] = counts
	}
	return docs, nil
}
