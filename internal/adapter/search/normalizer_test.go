package search

import (
	"strings"
	"testing"
)

func TestBuildSearchableText(t *testing.T) {
	got := BuildSearchableText("Dragon longsword", "A very powerful sword.", true)
	want := "Item Name: Dragon longsword | Description: A very powerful sword. | Members only item"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildSearchableTextOmitsMissingFields(t *testing.T) {
	got := BuildSearchableText("Bronze dagger", "", false)
	if got != "Item Name: Bronze dagger" {
		t.Errorf("got %q", got)
	}
	if strings.Contains(got, "null") || strings.Contains(got, "None") || strings.Contains(got, "<nil>") {
		t.Errorf("placeholder leaked into searchable text: %q", got)
	}

	if got := BuildSearchableText("", "", false); got != "" {
		t.Errorf("expected empty string for empty fields, got %q", got)
	}
}

func TestBuildSearchableTextDeterministic(t *testing.T) {
	a := BuildSearchableText("Abyssal whip", "A weapon from the abyss.", true)
	b := BuildSearchableText("Abyssal whip", "A weapon from the abyss.", true)
	if a != b {
		t.Error("same fields produced different text")
	}
	if TextHash(a) != TextHash(b) {
		t.Error("same text produced different hashes")
	}
}

func TestTextHashChangesWithContent(t *testing.T) {
	a := TextHash(BuildSearchableText("Abyssal whip", "A weapon.", true))
	b := TextHash(BuildSearchableText("Abyssal whip", "A different weapon.", true))
	if a == b {
		t.Error("different text produced identical hashes")
	}
}

func TestFormatQueryBarePhrase(t *testing.T) {
	got := FormatQuery("  dragon longsword ")
	if got != "Item Name: dragon longsword" {
		t.Errorf("got %q", got)
	}
}

func TestFormatQueryPassthrough(t *testing.T) {
	tests := []string{
		"Item Name: dragon longsword",
		"item name: dragon longsword",
		"Description: a powerful sword",
		"DESCRIPTION: a powerful sword",
	}
	for _, q := range tests {
		got := FormatQuery("  " + q + "  ")
		if got != q {
			t.Errorf("FormatQuery(%q) = %q, want passthrough", q, got)
		}
	}
}
