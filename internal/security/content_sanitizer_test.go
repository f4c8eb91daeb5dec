package security

import (
	"strings"
	"testing"
)

func TestSanitizeText_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "A look inside the prison system.", "A look inside the prison system."},
		{"インラインタグ", "<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"実体参照", "Crime &amp; Punishment", "Crime & Punishment"},
		{"アンパサンド", "Tom & Jerry", "Tom & Jerry"},
		{"前後の空白", "  <p>text</p>  ", "text"},
		{"空文字", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_RemovesScript(t *testing.T) {
	s := NewTextSanitizer()

	got := s.SanitizeText(`<script>alert("xss")</script>Documentary about <a href="javascript:x">justice</a>`)
	if strings.Contains(got, "<") || strings.Contains(got, "alert") {
		t.Errorf("scriptが除去されていない: %q", got)
	}
	if !strings.Contains(got, "Documentary about justice") {
		t.Errorf("本文が失われている: %q", got)
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := "<em>The</em> House I Live In"

	first := s.SanitizeText(input)
	second := s.SanitizeText(first)
	if first != second {
		t.Errorf("冪等ではない: %q != %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizerService = NewTextSanitizer()
}
