package markdown

import (
	"strings"
	"testing"

	"github.com/mfenderov/postseek/pkg/models"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		contains []string
	}{
		{
			name:     "heading",
			html:     `<h1>Storing spores</h1>`,
			contains: []string{"# Storing spores"},
		},
		{
			name:     "bold attribution",
			html:     `<blockquote>Quote:<br /><b>X said:</b> hello</blockquote>`,
			contains: []string{"> Quote:", "**X said:**", "hello"},
		},
		{
			name:     "links stay inline",
			html:     `<p>See <a href="https://example.com">this</a> and <a href="https://example.org/a">that</a>.</p>`,
			contains: []string{"[this](https://example.com)", "[that](https://example.org/a)"},
		},
		{
			name:     "line breaks",
			html:     `one<br />two`,
			contains: []string{"one", "two"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.html)
			if err != nil {
				t.Fatalf("Convert() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Convert() = %q, missing %q", got, want)
				}
			}
		})
	}
}

func TestConvert_CollapsesBlankLines(t *testing.T) {
	got, err := Convert(`<p>a</p><p></p><p></p><br /><br /><p>b</p>`)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if strings.Contains(got, "\n\n\n") {
		t.Errorf("Convert() = %q, has more than two consecutive newlines", got)
	}
	if got != strings.TrimSpace(got) {
		t.Errorf("Convert() = %q, not trimmed", got)
	}
}

func TestConvert_Empty(t *testing.T) {
	got, err := Convert("  ")
	if err != nil || got != "" {
		t.Errorf("Convert() = %q, %v", got, err)
	}
}

func TestEmbeddingInput(t *testing.T) {
	got, err := EmbeddingInput(models.Post{Title: "Agar", Content: "Pour it <b>hot</b>."})
	if err != nil {
		t.Fatalf("EmbeddingInput() error = %v", err)
	}
	if !strings.HasPrefix(got, "# Agar") {
		t.Errorf("EmbeddingInput() = %q, want title heading first", got)
	}
	if !strings.Contains(got, "**hot**") {
		t.Errorf("EmbeddingInput() = %q, missing content", got)
	}
}
