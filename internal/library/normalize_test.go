package library

import (
	"testing"
)

func TestRemoveDiacritics(t *testing.T) {
	cases := map[string]string{
		"Jiří":           "Jiri",
		"Výlet":          "Vylet",
		"Sněžka":         "Snezka",
		"plain":          "plain",
		"":               "",
		"Crème brûlée":   "Creme brulee",
		"Žluťoučký kůň":  "Zlutoucky kun",
	}

	for input, expected := range cases {
		if got := RemoveDiacritics(input); got != expected {
			t.Errorf("RemoveDiacritics(%q): expected %q, got %q", input, expected, got)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	if got := NormalizeText("Výlet NA Sněžku"); got != "vylet na snezku" {
		t.Errorf("expected 'vylet na snezku', got %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Výlet na Sněžku 2024":   "vylet-na-snezku-2024",
		"Summer Trip":            "summer-trip",
		"already-slugged":        "already-slugged",
		"  spaces  everywhere  ": "spaces-everywhere",
		"UPPER_case.mixed":       "upper-case-mixed",
		"2024-08 Dovolená":       "2024-08-dovolena",
		"***":                    "",
	}

	for input, expected := range cases {
		if got := Slug(input); got != expected {
			t.Errorf("Slug(%q): expected %q, got %q", input, expected, got)
		}
	}
}

func TestSlug_Stable(t *testing.T) {
	// Same directory name must always produce the same album ID
	first := Slug("Léto u moře")
	second := Slug("Léto u moře")

	if first != second {
		t.Errorf("slug not stable: %q vs %q", first, second)
	}

	if first != "leto-u-more" {
		t.Errorf("expected 'leto-u-more', got %q", first)
	}
}
