package models

// Post is a normalized forum post.
type Post struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Forum          string `json:"forum"`
	First          int64  `json:"first"`
	Last           int64  `json:"last"`
	When           int64  `json:"when"`  // Unix seconds
	Utime          string `json:"utime"` // opaque source token
	Content        string `json:"content"`
	RemovedContent bool   `json:"removedContent,omitempty"`
}

// EmbeddedPost is a Post together with its embedding vector.
type EmbeddedPost struct {
	Post
	Embedding []float32 `json:"embedding"`
}

// Metadata is the per-vector payload stored in the vector index.
type Metadata struct {
	Title          string `json:"title"`
	When           int64  `json:"when"`
	Utime          string `json:"utime"`
	First          int64  `json:"first"`
	Last           int64  `json:"last"`
	Content        string `json:"content"`
	Forum          string `json:"forum"`
	Poster         string `json:"poster"`
	RemovedContent bool   `json:"removedContent,omitempty"`
}

// Vector is a single upsert record for the vector index.
type Vector struct {
	ID       string    `json:"id"`
	Metadata Metadata  `json:"metadata"`
	Values   []float32 `json:"values"`
}

// QueryRequest is a nearest-neighbour query against the vector index.
type QueryRequest struct {
	Namespace       string    `json:"namespace"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	IncludeValues   bool      `json:"includeValues"`
	Vector          []float32 `json:"vector"`
}

// Match is a single query hit.
type Match struct {
	ID       string    `json:"id"`
	Score    float64   `json:"score"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Values   []float32 `json:"values,omitempty"`
}

// QueryResponse is the vector index answer to a QueryRequest.
type QueryResponse struct {
	Matches   []Match `json:"matches"`
	Namespace string  `json:"namespace"`
}
