// Package search implements text normalization and hybrid ranking over the
// item catalog.
package search

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"itemsearch/internal/domain"
)

// Shape markers that mean a query is already in indexed form and must be
// passed through unchanged (apart from trimming).
var shapeMarkers = []string{"item name:", "description:"}

// BuildSearchableText derives the canonical string embedded for an item.
// Deterministic: the same fields always produce the same string, and
// missing optional fields are omitted rather than rendered as placeholders.
func BuildSearchableText(name, examine string, members bool) string {
	var parts []string

	if name != "" {
		parts = append(parts, "Item Name: "+name)
	}
	if examine != "" {
		parts = append(parts, "Description: "+examine)
	}
	if members {
		parts = append(parts, "Members only item")
	}

	return strings.Join(parts, " | ")
}

// SearchableTextForEntry is BuildSearchableText over a feed mapping entry.
func SearchableTextForEntry(e domain.MappingEntry) string {
	return BuildSearchableText(e.Name, e.Examine, e.Members)
}

// FormatQuery maps a free-form user query into the same textual shape the
// indexed items use. A bare phrase defaults to name-style phrasing; a query
// that already carries a shape marker passes through trimmed. Empty queries
// are the caller's validation problem, not handled here.
func FormatQuery(raw string) string {
	trimmed := strings.TrimSpace(raw)
	lower := strings.ToLower(trimmed)

	for _, marker := range shapeMarkers {
		if strings.HasPrefix(lower, marker) {
			return trimmed
		}
	}

	return "Item Name: " + trimmed
}

// TextHash returns the hash stored alongside an item to detect when its
// searchable text changed and re-embedding is required.
func TextHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
