// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Log         LogConfig         `mapstructure:"log"`
	Loader      LoaderConfig      `mapstructure:"loader"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	LLM         LLMConfig         `mapstructure:"llm"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Tika        TikaConfig        `mapstructure:"tika"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// AuthConfig 存储接口鉴权配置。
// BearerToken 与 BearerTokenBcrypt 至少配置一个；JWTSecret 非空时额外接受 HS256 服务令牌。
type AuthConfig struct {
	BearerToken       string `mapstructure:"bearer_token"`
	BearerTokenBcrypt string `mapstructure:"bearer_token_bcrypt"`
	JWTSecret         string `mapstructure:"jwt_secret"`
}

// DatabaseConfig 存储关系型数据库配置，Driver 取值 mysql / postgres / sqlite。
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内锁。
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
	LockWait   time.Duration `mapstructure:"lock_wait"`
	LockPrefix string        `mapstructure:"lock_prefix"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LoaderConfig 控制远程文档下载。
type LoaderConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
}

// ChunkingConfig 控制文本切块的窗口大小与重叠（以字符计）。
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Model             string        `mapstructure:"model"`
	Dimensions        int           `mapstructure:"dimensions"`
	BatchSize         int           `mapstructure:"batch_size"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey           string              `mapstructure:"api_key"`
	BaseURL          string              `mapstructure:"base_url"`
	Model            string              `mapstructure:"model"`
	TopK             int                 `mapstructure:"top_k"`
	MaxContextTokens int                 `mapstructure:"max_context_tokens"`
	Timeout          time.Duration       `mapstructure:"timeout"`
	Generation       LLMGenerationConfig `mapstructure:"generation"`
	Prompt           LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与兜底回答。
type LLMPromptConfig struct {
	System       string `mapstructure:"system"`
	NoResultText string `mapstructure:"no_result_text"`
	FailureText  string `mapstructure:"failure_text"`
}

// VectorStoreConfig 选择并配置向量库实现：qdrant / elasticsearch / pgvector / memory。
type VectorStoreConfig struct {
	Type          string              `mapstructure:"type"`
	Qdrant        QdrantConfig        `mapstructure:"qdrant"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	PGVector      PGVectorConfig      `mapstructure:"pgvector"`
}

// QdrantConfig 存储 Qdrant gRPC 连接配置。
type QdrantConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIKey     string `mapstructure:"api_key"`
	UseTLS     bool   `mapstructure:"use_tls"`
	Collection string `mapstructure:"collection"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// PGVectorConfig 存储 pgvector 表配置，连接复用 database.dsn。
type PGVectorConfig struct {
	Table string `mapstructure:"table"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不归档原始文档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// TikaConfig 存储 Tika 服务器相关的配置，用于 .doc / .msg 文本提取。
type TikaConfig struct {
	ServerURL string        `mapstructure:"server_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DefaultSystemPrompt 要求模型只依据检索到的上下文作答。
const DefaultSystemPrompt = "You are an intelligent assistant specializing in document analysis for insurance, legal, and HR domains. " +
	"Your task is to answer the user's question based *only* on the provided context clauses from the document. " +
	"Provide a clear, direct, and concise answer. If the context does not contain the information needed to " +
	"answer the question, explicitly state that the information is not available in the provided context."

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("redis.lock_ttl", 10*time.Minute)
	v.SetDefault("redis.lock_wait", 10*time.Minute)
	v.SetDefault("redis.lock_prefix", "docqa:ingest:")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("loader.timeout", 30*time.Second)
	v.SetDefault("loader.max_bytes", 50<<20)
	v.SetDefault("chunking.chunk_size", 400)
	v.SetDefault("chunking.chunk_overlap", 150)
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 100)
	v.SetDefault("embedding.timeout", 60*time.Second)
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4-turbo")
	v.SetDefault("llm.top_k", 5)
	v.SetDefault("llm.max_context_tokens", 6000)
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("llm.prompt.system", DefaultSystemPrompt)
	v.SetDefault("llm.prompt.no_result_text", "I could not find relevant information in the document to answer this question.")
	v.SetDefault("llm.prompt.failure_text", "There was an error while generating the answer. Please try again.")
	v.SetDefault("vector_store.type", "qdrant")
	v.SetDefault("vector_store.qdrant.host", "localhost")
	v.SetDefault("vector_store.qdrant.port", 6334)
	v.SetDefault("vector_store.qdrant.collection", "hackrx-index")
	v.SetDefault("vector_store.elasticsearch.index_name", "hackrx-index")
	v.SetDefault("vector_store.pgvector.table", "chunk_embeddings")
	v.SetDefault("minio.bucket_name", "docqa-documents")
	v.SetDefault("kafka.topic", "docqa-events")
	v.SetDefault("kafka.group_id", "docqa-events-tail")
	v.SetDefault("tika.timeout", 60*time.Second)

	// 没有默认值的键也需要注册，AutomaticEnv 才会在 Unmarshal 时读取对应环境变量
	for _, key := range []string{
		"auth.bearer_token_bcrypt", "auth.jwt_secret",
		"redis.addr", "redis.password",
		"log.output_path",
		"llm.generation.top_p", "llm.generation.max_tokens",
		"embedding.requests_per_second",
		"vector_store.qdrant.api_key", "vector_store.qdrant.use_tls",
		"vector_store.elasticsearch.addresses", "vector_store.elasticsearch.username", "vector_store.elasticsearch.password",
		"minio.endpoint", "minio.access_key_id", "minio.secret_access_key", "minio.use_ssl",
		"kafka.brokers",
		"tika.server_url",
	} {
		v.SetDefault(key, nil)
	}
	v.SetDefault("redis.db", 0)
	v.SetDefault("llm.generation.temperature", 0)
}

// bindLegacyEnv 兼容原有部署中使用的环境变量名。
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("embedding.api_key", "DOCQA_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("llm.api_key", "DOCQA_LLM_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("database.dsn", "DOCQA_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("auth.bearer_token", "DOCQA_AUTH_BEARER_TOKEN", "BEARER_TOKEN")
}

// ConfigPathEnv 指定默认配置文件路径的环境变量。
const ConfigPathEnv = "DOCQA_CONFIG"

// DefaultPath 返回命令行 --config 的默认值：优先使用 DOCQA_CONFIG。
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(ConfigPathEnv)); p != "" {
		return p
	}
	return "./configs/config.yaml"
}

// Load 读取 .env、YAML 配置文件与环境变量，返回校验后的配置。
// 配置文件不存在时仅使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !isMissingFile(err) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init 初始化全局配置，失败时直接 panic。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = *cfg
}

// Validate 检查配置中互相约束的字段。
func (c *Config) Validate() error {
	if c.Auth.BearerToken == "" && c.Auth.BearerTokenBcrypt == "" && c.Auth.JWTSecret == "" {
		return errors.New("auth.bearer_token、auth.bearer_token_bcrypt 与 auth.jwt_secret 至少需要配置一项")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size 必须为正数: %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("chunking.chunk_overlap 必须位于 [0, chunk_size) 区间: %d", c.Chunking.ChunkOverlap)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size 必须为正数: %d", c.Embedding.BatchSize)
	}
	if c.LLM.TopK <= 0 {
		return fmt.Errorf("llm.top_k 必须为正数: %d", c.LLM.TopK)
	}
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("不支持的 database.driver: %q", c.Database.Driver)
	}
	switch c.VectorStore.Type {
	case "qdrant", "elasticsearch", "memory":
	case "pgvector":
		if c.Database.Driver != "postgres" {
			return errors.New("vector_store.type=pgvector 需要 database.driver=postgres")
		}
	default:
		return fmt.Errorf("不支持的 vector_store.type: %q", c.VectorStore.Type)
	}
	return nil
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory") ||
		strings.Contains(err.Error(), "cannot find the file")
}
