package scraper

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mfenderov/postseek/internal/config"
)

// URLs builds forum request URLs from the source configuration.
type URLs struct {
	source config.Source
}

// NewURLs creates a URL builder for source.
func NewURLs(source config.Source) URLs {
	return URLs{source: source}
}

// SearchPage returns the URL of search-results page n (0-based).
// Parameter order matches the forum's own search form.
func (u URLs) SearchPage(n int) string {
	var q strings.Builder
	for _, f := range u.source.Forums {
		q.WriteString("forum%5B%5D=" + url.QueryEscape(f) + "&")
	}
	fmt.Fprintf(&q, "namebox=%s&limit=%d&sort=%s&way=%s&page=%d",
		url.QueryEscape(u.source.Author), u.source.Limit,
		url.QueryEscape(u.source.Sort), url.QueryEscape(u.source.Way), n)
	return u.join(u.source.SearchPath) + "?" + q.String()
}

// Post returns the URL of the detail fragment for post id.
func (u URLs) Post(id int64) string {
	return u.join(u.source.PostPath) + "?n=" + strconv.FormatInt(id, 10)
}

func (u URLs) join(p string) string {
	return strings.TrimSuffix(u.source.BaseURL, "/") + "/" + strings.TrimPrefix(p, "/")
}
