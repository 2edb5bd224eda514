// Package processor turns cached raw posts into normalized Post records.
package processor

import "regexp"

// Rule is one named text substitution applied to post content.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Apply runs the rule over s.
func (r Rule) Apply(s string) string {
	return r.Pattern.ReplaceAllString(s, r.Replacement)
}

// Rules repair the forum software's inconsistent quote markup.
// They run in order; later rules expect the earlier ones to have run.
// Changing a pattern changes the text previously embedded posts were built from.
var Rules = []Rule{
	{
		Name:        "strip-font",
		Pattern:     regexp.MustCompile(`</?font.*?>`),
		Replacement: "",
	},
	{
		Name:        "collapse-br",
		Pattern:     regexp.MustCompile(`(?:<br />){2,}`),
		Replacement: "<br />",
	},
	{
		Name:        "quote-leading-hr",
		Pattern:     regexp.MustCompile(`<blockquote>Quote:<hr /><br />`),
		Replacement: "<blockquote>Quote:<br />",
	},
	{
		Name:        "quote-trailing-hr",
		Pattern:     regexp.MustCompile(`<br /><hr />(</blockquote>)?`),
		Replacement: "$1",
	},
	{
		Name:        "quote-attribution",
		Pattern:     regexp.MustCompile(`<blockquote>Quote:(.*?)<b><i>(.*?) said:</i></b>(.*?)</blockquote>`),
		Replacement: "<blockquote>Quote:<br /><b>$2 said:</b>$3</blockquote>",
	},
}

// Normalize applies every rule to content, in order.
func Normalize(content string) string {
	for _, r := range Rules {
		content = r.Apply(content)
	}
	return content
}
