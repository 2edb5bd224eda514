package parser

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrInvalidPost marks a post fragment with a missing or empty author name,
// which the forum returns for removed or hidden posts.
var ErrInvalidPost = errors.New("invalid post fragment")

// RawPost holds the tagged text fields of a post-detail fragment.
type RawPost struct {
	ID      string
	First   string
	Last    string
	When    string
	Utime   string
	Content string
	Name    string
}

// ValidPost reports whether fragment carries a non-empty <name> tag.
func ValidPost(fragment string) bool {
	return strings.Contains(fragment, "<name>") && !strings.Contains(fragment, "<name></name>")
}

// ParseRawPost extracts the tagged fields of a post fragment. Fragments that
// are not well-formed XML fall back to a tolerant tag scan.
func ParseRawPost(fragment string) (*RawPost, error) {
	if !ValidPost(fragment) {
		return nil, ErrInvalidPost
	}

	doc, err := xmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return scanRawPost(fragment), nil
	}

	text := func(tag string) string {
		n := xmlquery.FindOne(doc, "//"+tag)
		if n == nil {
			return ""
		}
		return n.InnerText()
	}
	return &RawPost{
		ID:      strings.TrimSpace(text("id")),
		First:   strings.TrimSpace(text("first")),
		Last:    strings.TrimSpace(text("last")),
		When:    strings.TrimSpace(text("when")),
		Utime:   text("utime"),
		Content: text("content"),
		Name:    text("name"),
	}, nil
}

var cdata = regexp.MustCompile(`(?s)^<!\[CDATA\[(.*)\]\]>$`)

func scanTag(fragment, tag string) string {
	open, closing := "<"+tag+">", "</"+tag+">"
	start := strings.Index(fragment, open)
	if start < 0 {
		return ""
	}
	start += len(open)
	end := strings.LastIndex(fragment, closing)
	if end < start {
		return ""
	}
	inner := fragment[start:end]
	if m := cdata.FindStringSubmatch(inner); m != nil {
		return m[1]
	}
	return html.UnescapeString(inner)
}

func scanRawPost(fragment string) *RawPost {
	return &RawPost{
		ID:      strings.TrimSpace(scanTag(fragment, "id")),
		First:   strings.TrimSpace(scanTag(fragment, "first")),
		Last:    strings.TrimSpace(scanTag(fragment, "last")),
		When:    strings.TrimSpace(scanTag(fragment, "when")),
		Utime:   scanTag(fragment, "utime"),
		Content: scanTag(fragment, "content"),
		Name:    scanTag(fragment, "name"),
	}
}

// String is used in debug logs.
func (p *RawPost) String() string {
	return fmt.Sprintf("post %s by %s (%d bytes)", p.ID, p.Name, len(p.Content))
}
