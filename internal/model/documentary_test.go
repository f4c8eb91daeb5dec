package model

import (
	"testing"
	"time"
)

func TestParseYear(t *testing.T) {
	tests := map[string]int{
		"2024-05-01": 2024,
		"2019–2021":  2019,
		"1999":       1999,
		"":           0,
		"N/A":        0,
		"199":        0,
	}
	for input, want := range tests {
		if got := ParseYear(input); got != want {
			t.Errorf("ParseYear(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestNormalizeTitle(t *testing.T) {
	tests := map[string]string{
		"  LA 92 ":          "la 92",
		"la   92":           "la 92",
		"The Seven Five":    "the seven five",
		"\tStrong\nIsland ": "strong island",
	}
	for input, want := range tests {
		if got := NormalizeTitle(input); got != want {
			t.Errorf("NormalizeTitle(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDocumentary_NumericRating(t *testing.T) {
	tests := []struct {
		rating string
		want   float64
		ok     bool
	}{
		{"8.1", 8.1, true},
		{" 7.0 ", 7.0, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"-Infinity", 0, false},
		{"1e400", 0, false},
	}
	for _, tt := range tests {
		got, ok := Documentary{Rating: tt.rating}.NumericRating()
		if got != tt.want || ok != tt.ok {
			t.Errorf("NumericRating(%q) = (%v, %v), want (%v, %v)", tt.rating, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCandidateItem_ReleaseYear(t *testing.T) {
	c := CandidateItem{ReleaseDate: "2021-03-04"}
	if c.ReleaseYear() != 2021 {
		t.Errorf("ReleaseYear = %d, want 2021", c.ReleaseYear())
	}
	if (CandidateItem{}).ReleaseYear() != 0 {
		t.Error("空のリリース日は0を返すべき")
	}
}

func TestCacheEntry_Expired(t *testing.T) {
	now := time.Unix(1_000_000, 0)

	if (&CacheEntry{ExpiresAt: 0}).Expired(now) {
		t.Error("ExpiresAt=0 は期限なしとして扱うべき")
	}
	if (&CacheEntry{ExpiresAt: 1_000_001}).Expired(now) {
		t.Error("未来の期限は期限切れではない")
	}
	if !(&CacheEntry{ExpiresAt: 1_000_000}).Expired(now) {
		t.Error("期限ちょうどは期限切れとして扱うべき")
	}
}

func TestAPIError_Error(t *testing.T) {
	err := NewTitleNotFoundError("LA 92")
	if err.Error() != "[TITLE_NOT_FOUND] 作品が見つかりません: LA 92" {
		t.Errorf("Error() = %q", err.Error())
	}
	if NewPipelineFailedError().Message != "Failed to load movies" {
		t.Error("PipelineFailedのメッセージはフロントエンド互換の文言であるべき")
	}
}
