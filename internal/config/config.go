package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrMissingSetting is returned by Require when a needed value is empty.
var ErrMissingSetting = errors.New("missing required setting")

// Config holds all application configuration.
type Config struct {
	Source     Source     `mapstructure:"source"`
	Crawler    Crawler    `mapstructure:"crawler"`
	Cache      Cache      `mapstructure:"cache"`
	Embeddings Embeddings `mapstructure:"embeddings"`
	Index      Index      `mapstructure:"index"`
	Search     Search     `mapstructure:"search"`
	Redis      Redis      `mapstructure:"redis"`
	API        API        `mapstructure:"api"`
	MCP        MCP        `mapstructure:"mcp"`
}

// Source describes the forum being crawled and whose posts are collected.
type Source struct {
	BaseURL    string   `mapstructure:"base_url"`
	SearchPath string   `mapstructure:"search_path"`
	PostPath   string   `mapstructure:"post_path"`
	Forums     []string `mapstructure:"forums"`
	Author     string   `mapstructure:"author"`
	Limit      int      `mapstructure:"limit"`
	Sort       string   `mapstructure:"sort"`
	Way        string   `mapstructure:"way"`
}

// Crawler holds crawl pacing configuration.
type Crawler struct {
	MaxPages               int           `mapstructure:"max_pages"`                // 0 = stop only on the first invalid page
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"` // ends an unbounded page crawl
	PageDelay              time.Duration `mapstructure:"page_delay"`
	PageDelaySpread        time.Duration `mapstructure:"page_delay_spread"`
	PostDelay              time.Duration `mapstructure:"post_delay"`
	PostDelaySpread        time.Duration `mapstructure:"post_delay_spread"`
	Timeout                time.Duration `mapstructure:"timeout"`
	UserAgent              string        `mapstructure:"user_agent"`
}

// Cache selects and configures the durable key-value cache.
type Cache struct {
	Backend string `mapstructure:"backend"` // "dir" or "s3"
	Dir     string `mapstructure:"dir"`
	S3      S3     `mapstructure:"s3"`
}

// S3 holds S3/MinIO storage configuration.
type S3 struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// Embeddings holds embedding provider configuration.
type Embeddings struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BatchSize    int           `mapstructure:"batch_size"`
	Interval     time.Duration `mapstructure:"interval"`
	CostPer1K    float64       `mapstructure:"cost_per_1k"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryWait    time.Duration `mapstructure:"retry_wait"`
	RetryMaxWait time.Duration `mapstructure:"retry_max_wait"`
}

// Index holds vector index configuration.
type Index struct {
	Backend       string        `mapstructure:"backend"` // "pinecone", "elasticsearch" or "local"
	URL           string        `mapstructure:"url"`     // Pinecone index host, without scheme
	APIKey        string        `mapstructure:"api_key"`
	Namespace     string        `mapstructure:"namespace"`
	Poster        string        `mapstructure:"poster"`
	BatchSize     int           `mapstructure:"batch_size"`
	Interval      time.Duration `mapstructure:"interval"`
	MetadataLimit int           `mapstructure:"metadata_limit"`
	Elasticsearch Elasticsearch `mapstructure:"elasticsearch"`
}

// Elasticsearch holds ES connection configuration for the elasticsearch index backend.
type Elasticsearch struct {
	Addresses  []string `mapstructure:"addresses"`
	Index      string   `mapstructure:"index"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	Dimensions int      `mapstructure:"dimensions"` // 0 = derived from embeddings.model
}

// Search holds query-side parameters shared by the CLI, the HTTP API and MCP.
type Search struct {
	TopK           int           `mapstructure:"top_k"`
	MaxQueryLength int           `mapstructure:"max_query_length"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// Redis holds the optional search result cache connection.
type Redis struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// API holds HTTP search API configuration.
type API struct {
	Addr         string `mapstructure:"addr"`
	CacheControl string `mapstructure:"cache_control"`
}

// MCP holds MCP server configuration.
type MCP struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

// Need names a group of settings a command depends on.
type Need int

const (
	NeedEmbeddings Need = iota
	NeedIndex
)

// Require checks that the settings behind each need are present.
// The returned error wraps ErrMissingSetting and names the environment variable to set.
func (c Config) Require(needs ...Need) error {
	for _, n := range needs {
		switch n {
		case NeedEmbeddings:
			if c.Embeddings.APIKey == "" {
				return fmt.Errorf("%w: embeddings.api_key (OPENAI_API_KEY)", ErrMissingSetting)
			}
		case NeedIndex:
			switch c.Index.Backend {
			case "pinecone":
				if c.Index.URL == "" {
					return fmt.Errorf("%w: index.url (PINECONE_INDEX_URL)", ErrMissingSetting)
				}
				if c.Index.APIKey == "" {
					return fmt.Errorf("%w: index.api_key (PINECONE_API_KEY)", ErrMissingSetting)
				}
			case "elasticsearch":
				if len(c.Index.Elasticsearch.Addresses) == 0 {
					return fmt.Errorf("%w: index.elasticsearch.addresses", ErrMissingSetting)
				}
			case "local":
			default:
				return fmt.Errorf("unknown index backend %q", c.Index.Backend)
			}
		}
	}
	return nil
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Source: Source{
			BaseURL:    "https://www.shroomery.org/forums",
			SearchPath: "dosearch.php",
			PostPath:   "includes/tooltip/postcontents.php",
			Forums:     []string{"f2", "f4"},
			Author:     "RogerRabbit",
			Limit:      100,
			Sort:       "d",
			Way:        "d",
		},
		Crawler: Crawler{
			MaxPages:               359, // estimate; the invalid-page stop is what actually ends the crawl
			MaxConsecutiveFailures: 5,
			PageDelay:              2 * time.Second,
			PageDelaySpread:        1 * time.Second,
			PostDelay:              500 * time.Millisecond,
			PostDelaySpread:        1 * time.Second,
			Timeout:                30 * time.Second,
			UserAgent:              "postseek/1.0",
		},
		Cache: Cache{
			Backend: "dir",
			Dir:     "storage",
			S3: S3{
				Endpoint:        "localhost:9000",
				Bucket:          "postseek",
				Prefix:          "cache",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
		},
		Embeddings: Embeddings{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "text-embedding-ada-002",
			BatchSize:    100,
			Interval:     2 * time.Second,
			CostPer1K:    0.0004,
			MaxAttempts:  3,
			RetryWait:    2 * time.Second,
			RetryMaxWait: 30 * time.Second,
		},
		Index: Index{
			Backend:       "pinecone",
			Namespace:     "rr-posts",
			Poster:        "RogerRabbit",
			BatchSize:     100,
			Interval:      1 * time.Second,
			MetadataLimit: 10240, // Pinecone per-vector metadata ceiling
			Elasticsearch: Elasticsearch{
				Addresses: []string{"http://localhost:9200"},
				Index:     "postseek-vectors",
			},
		},
		Search: Search{
			TopK:           20,
			MaxQueryLength: 200,
			CacheTTL:       10 * time.Minute,
		},
		Redis: Redis{
			Address: "localhost:6379",
		},
		API: API{
			Addr:         ":3000",
			CacheControl: "public, max-age=60, s-maxage=86400",
		},
		MCP: MCP{
			Name:    "postseek",
			Version: "1.0.0",
		},
	}
}
