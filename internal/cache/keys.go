package cache

import (
	"slices"
	"strconv"
	"strings"
)

// Namespace builds and parses keys of the form "<prefix><id>".
type Namespace struct {
	Prefix string
}

var (
	Pages          = Namespace{Prefix: "page-"}
	Posts          = Namespace{Prefix: "post-"}
	ProcessedPosts = Namespace{Prefix: "processedPost-"}
	Embeddings     = Namespace{Prefix: "embedding-"}
)

// Key returns the key for id.
func (n Namespace) Key(id int64) string {
	return n.Prefix + strconv.FormatInt(id, 10)
}

// Parse returns the numeric suffix of key. It reports false for keys
// outside the namespace or with a non-numeric suffix.
func (n Namespace) Parse(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, n.Prefix)
	if !ok || rest == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IDs extracts the ids of all keys in the namespace, ascending.
func (n Namespace) IDs(keys []string) []int64 {
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		if id, ok := n.Parse(k); ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
