package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEmbeddedPost_FlattensPostFields(t *testing.T) {
	p := EmbeddedPost{
		Post: Post{
			ID:      9570484,
			Title:   "Storing spores",
			Forum:   "Mushroom Cultivation",
			When:    1200000000,
			Utime:   "abc",
			Content: "<b>hi</b>",
		},
		Embedding: []float32{0.5, -0.25},
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("failed to marshal EmbeddedPost: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}

	for _, key := range []string{"id", "title", "forum", "first", "last", "when", "utime", "content", "embedding"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("expected top-level key %q in %s", key, data)
		}
	}
	if _, ok := raw["removedContent"]; ok {
		t.Errorf("removedContent should be omitted when false: %s", data)
	}
}

func TestQueryRequest_WireNames(t *testing.T) {
	data, err := json.Marshal(QueryRequest{Namespace: "rr-posts", TopK: 20, IncludeMetadata: true})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	for _, want := range []string{`"topK":20`, `"includeMetadata":true`, `"includeValues":false`, `"namespace":"rr-posts"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("marshalled request %s missing %s", data, want)
		}
	}
}
