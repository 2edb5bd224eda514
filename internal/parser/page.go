// Package parser extracts structure from cached raw pages and post fragments.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// PostRef is one result row of a search-results page.
type PostRef struct {
	ID    string // id attribute without its one-letter prefix
	Title string
}

// Int returns the numeric post id.
func (r PostRef) Int() (int64, error) {
	id, err := strconv.ParseInt(r.ID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("post id %q: %w", r.ID, err)
	}
	return id, nil
}

// Listing is what a search-results page yields.
// Refs and Forums are parallel when the page is well formed.
type Listing struct {
	Refs   []PostRef
	Forums []string
}

// Aligned reports whether every ref has a forum name.
func (l *Listing) Aligned() bool {
	return len(l.Refs) == len(l.Forums)
}

// ValidPage reports whether html looks like a results table.
// A page without these markers means the results have run out.
func ValidPage(html string) bool {
	return strings.Contains(html, "Subject") && strings.Contains(html, "Forum")
}

// ParsePage extracts post refs (".pp" elements) and forum names
// (".forumrow a" elements) from a search-results page.
func ParsePage(html string) (*Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	listing := &Listing{}
	doc.Find("body .pp").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		listing.Refs = append(listing.Refs, PostRef{
			ID:    dropFirst(id),
			Title: s.Text(),
		})
	})
	doc.Find("body .forumrow a").Each(func(_ int, s *goquery.Selection) {
		// link text is wrapped in a leading and trailing newline
		listing.Forums = append(listing.Forums, dropLast(dropFirst(s.Text())))
	})
	return listing, nil
}

func dropFirst(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	return s[size:]
}

func dropLast(s string) string {
	if s == "" {
		return s
	}
	_, size := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-size]
}
