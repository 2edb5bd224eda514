// Package markdown renders post HTML as the plain text sent to the embedding provider.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/mfenderov/postseek/pkg/models"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Convert transforms HTML into Markdown with at most two consecutive newlines.
// Links are written inline so each link text keeps its URL next to it.
func Convert(htmlContent string) (string, error) {
	if strings.TrimSpace(htmlContent) == "" {
		return "", nil
	}

	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	out, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	md := blankRuns.ReplaceAllString(string(out), "\n\n")
	return strings.TrimSpace(md), nil
}

// EmbeddingInput is the text embedded for a post: its title as a heading
// followed by its content.
func EmbeddingInput(post models.Post) (string, error) {
	return Convert("<h1>" + post.Title + "</h1>" + post.Content)
}
