// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package evidence holds retrieved passages and the merge logic that
// accumulates them across evidence snapshots of one research turn.
//
// # Identity
//
// Two records are the same passage when their source id, page locator and
// the first 32 characters of their excerpt match. Merging keeps the first
// occurrence of each identity and preserves first-seen order, so re-merging
// an identical batch never grows the list.
package evidence

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	// UnknownSource is used when an evidence event carries no metadata
	// for a document.
	UnknownSource = "Unknown"

	// UnknownPage is used when the metadata has no page locator.
	UnknownPage = "N/A"

	// keyExcerptRunes is how much of the excerpt takes part in identity.
	keyExcerptRunes = 32

	keySeparator = "-"
)

// Page is a page locator. The backend sends either a JSON string or a
// JSON number; both are kept in their textual form.
type Page string

// UnmarshalJSON accepts `"3"`, `3`, `3.5` and `null`.
func (p *Page) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Page(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = Page(n.String())
	return nil
}

// Int returns the page as an integer when it is numeric.
func (p Page) Int() (int, bool) {
	n, err := strconv.Atoi(string(p))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Record is one retrieved passage with its provenance.
//
// Records are values; nothing mutates a record after it is built.
type Record struct {
	SourceID string `json:"source"`
	Page     Page   `json:"page,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Meta is the per-document metadata carried by an evidence event.
// Nil fields mean the backend omitted them.
type Meta struct {
	Source *string `json:"source,omitempty"`
	Page   *Page   `json:"page,omitempty"`
}

// Key returns the identity of the record used for deduplication.
func (r Record) Key() string {
	var b strings.Builder
	b.WriteString(r.SourceID)
	b.WriteString(keySeparator)
	b.WriteString(string(r.Page))
	b.WriteString(keySeparator)
	b.WriteString(excerptPrefix(r.Text, keyExcerptRunes))
	return b.String()
}

func excerptPrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// FromEvent builds one record per document of an evidence event.
//
// docs and metas are parallel: metas[i] describes docs[i]. A missing meta,
// or a meta without a source or page, falls back to UnknownSource and
// UnknownPage.
func FromEvent(docs []string, metas []Meta) []Record {
	records := make([]Record, 0, len(docs))
	for i, doc := range docs {
		rec := Record{
			SourceID: UnknownSource,
			Page:     UnknownPage,
			Text:     doc,
		}
		if i < len(metas) {
			if metas[i].Source != nil {
				rec.SourceID = *metas[i].Source
			}
			if metas[i].Page != nil {
				rec.Page = *metas[i].Page
			}
		}
		records = append(records, rec)
	}
	return records
}

// Merge returns existing followed by incoming with duplicate identities
// removed. The first occurrence of each identity wins.
//
// Merge never modifies its inputs and always returns a fresh slice, so the
// result can be published as a snapshot.
func Merge(existing, incoming []Record) []Record {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]Record, 0, len(existing)+len(incoming))

	for _, batch := range [][]Record{existing, incoming} {
		for _, rec := range batch {
			key := rec.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, rec)
		}
	}
	return merged
}
