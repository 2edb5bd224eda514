package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mfenderov/postseek/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	cfg     config.Config
)

// GetConfig returns the loaded configuration.
func GetConfig() config.Config {
	return cfg
}

var rootCmd = &cobra.Command{
	Use:   "postseek",
	Short: "postseek: semantic search over one author's forum posts",
	Long: `postseek crawls a forum's search results for one author, caches every
post, normalizes the markup, embeds each post and publishes the vectors to an
index that the search API and MCP tools query.

Commands:
  run          Crawl, process, embed and publish in one go
  crawl-pages  Cache search-results pages
  crawl-posts  Cache the posts listed on cached pages
  process      Normalize cached posts
  embed        Embed processed posts
  publish      Upsert embeddings into the vector index
  search       Query the index from the command line
  serve        Start the HTTP search API
  mcp          Start the MCP server on stdio`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig, initLogger)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log warnings and errors only")
}

func initLogger() {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelWarn
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// envBindings maps config keys to their environment variables. The provider
// secrets also accept their unprefixed names.
var envBindings = map[string][]string{
	"source.base_url":                  {"POSTSEEK_SOURCE_BASE_URL"},
	"source.author":                    {"POSTSEEK_SOURCE_AUTHOR"},
	"crawler.max_pages":                {"POSTSEEK_CRAWLER_MAX_PAGES"},
	"crawler.max_consecutive_failures": {"POSTSEEK_CRAWLER_MAX_CONSECUTIVE_FAILURES"},
	"crawler.page_delay":               {"POSTSEEK_CRAWLER_PAGE_DELAY"},
	"crawler.post_delay":               {"POSTSEEK_CRAWLER_POST_DELAY"},
	"crawler.user_agent":               {"POSTSEEK_CRAWLER_USER_AGENT"},
	"cache.backend":                    {"POSTSEEK_CACHE_BACKEND"},
	"cache.dir":                        {"POSTSEEK_CACHE_DIR"},
	"cache.s3.endpoint":                {"POSTSEEK_CACHE_S3_ENDPOINT"},
	"cache.s3.bucket":                  {"POSTSEEK_CACHE_S3_BUCKET"},
	"cache.s3.access_key_id":           {"POSTSEEK_CACHE_S3_ACCESS_KEY_ID"},
	"cache.s3.secret_access_key":       {"POSTSEEK_CACHE_S3_SECRET_ACCESS_KEY"},
	"cache.s3.use_ssl":                 {"POSTSEEK_CACHE_S3_USE_SSL"},
	"embeddings.base_url":              {"POSTSEEK_EMBEDDINGS_BASE_URL"},
	"embeddings.api_key":               {"POSTSEEK_EMBEDDINGS_API_KEY", "OPENAI_API_KEY"},
	"embeddings.model":                 {"POSTSEEK_EMBEDDINGS_MODEL"},
	"index.backend":                    {"POSTSEEK_INDEX_BACKEND"},
	"index.url":                        {"POSTSEEK_INDEX_URL", "PINECONE_INDEX_URL"},
	"index.api_key":                    {"POSTSEEK_INDEX_API_KEY", "PINECONE_API_KEY"},
	"index.namespace":                  {"POSTSEEK_INDEX_NAMESPACE"},
	"index.elasticsearch.addresses":    {"POSTSEEK_INDEX_ELASTICSEARCH_ADDRESSES"},
	"index.elasticsearch.index":        {"POSTSEEK_INDEX_ELASTICSEARCH_INDEX"},
	"index.elasticsearch.username":     {"POSTSEEK_INDEX_ELASTICSEARCH_USERNAME"},
	"index.elasticsearch.password":     {"POSTSEEK_INDEX_ELASTICSEARCH_PASSWORD"},
	"search.top_k":                     {"POSTSEEK_SEARCH_TOP_K"},
	"search.cache_ttl":                 {"POSTSEEK_SEARCH_CACHE_TTL"},
	"redis.enabled":                    {"POSTSEEK_REDIS_ENABLED"},
	"redis.address":                    {"POSTSEEK_REDIS_ADDRESS"},
	"redis.password":                   {"POSTSEEK_REDIS_PASSWORD"},
	"api.addr":                         {"POSTSEEK_API_ADDR"},
	"mcp.name":                         {"POSTSEEK_MCP_NAME"},
	"mcp.version":                      {"POSTSEEK_MCP_VERSION"},
}

func initConfig() {
	// Start with defaults
	cfg = config.Defaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/postseek")
		viper.AddConfigPath(".")
	}

	// POSTSEEK_INDEX_NAMESPACE -> index.namespace
	viper.SetEnvPrefix("POSTSEEK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			slog.Warn("env binding failed", "key", key, "error", err)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("config file error", "error", err)
		}
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Warn("failed to parse config", "error", err)
	}

	// Addresses arrive from the environment as one comma-separated string
	if addrs := os.Getenv("POSTSEEK_INDEX_ELASTICSEARCH_ADDRESSES"); addrs != "" {
		cfg.Index.Elasticsearch.Addresses = strings.Split(addrs, ",")
	}
}
