package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ベクトルストアのバックエンド種別
const (
	VectorBackendMemory   = "memory"
	VectorBackendPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// OpenAI設定（Embeddings + 回答生成）
	OpenAI OpenAIConfig

	// ベクトルストア設定
	Vector VectorConfig

	// Database設定（postgres バックエンド使用時）
	Database DatabaseConfig

	// Git設定
	Git GitConfig

	// インデックス処理設定
	Ingest IngestConfig

	// 質問応答設定
	Ask AskConfig
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	ChatModel          string
}

// VectorConfig はベクトルストアのバックエンド設定
type VectorConfig struct {
	Backend string // "memory" or "postgres"
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN は pgx 用の接続文字列を組み立てます
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GitConfig はGit操作設定
type GitConfig struct {
	CloneDir    string
	RemoteBase  string
	SSHKeyPath  string
	SSHPassword string // SSH秘密鍵のパスワード（パスフレーズ）
}

// IngestConfig はインデックス処理設定
type IngestConfig struct {
	BatchSize    int // 1バッチで処理するファイル数
	MaxTokens    int // チャンクの最大トークン数
	EmbedDelayMS int // Embedding API 呼び出し間のディレイ（ミリ秒）
}

// AskConfig は質問応答設定
type AskConfig struct {
	TopK              int // 取得するチャンク数
	ContextTokenLimit int // コンテキストのトークン上限
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			ChatModel:          getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		},
		Vector: VectorConfig{
			Backend: getEnv("VECTOR_BACKEND", VectorBackendMemory),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "repochat"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "repochat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Git: GitConfig{
			CloneDir:    getEnv("GIT_CLONE_DIR", defaultCloneDir()),
			RemoteBase:  getEnv("GIT_REMOTE_BASE", "https://github.com"),
			SSHKeyPath:  getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword: getEnv("GIT_SSH_PASSWORD", ""),
		},
		Ingest: IngestConfig{
			BatchSize:    getEnvAsInt("INGEST_BATCH_SIZE", 20),
			MaxTokens:    getEnvAsInt("INGEST_MAX_TOKENS", 400),
			EmbedDelayMS: getEnvAsInt("INGEST_EMBED_DELAY_MS", 100),
		},
		Ask: AskConfig{
			TopK:              getEnvAsInt("ASK_TOP_K", 5),
			ContextTokenLimit: getEnvAsInt("ASK_CONTEXT_TOKEN_LIMIT", 6000),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Vector.Backend {
	case VectorBackendMemory, VectorBackendPostgres:
	default:
		return fmt.Errorf("unknown VECTOR_BACKEND: %q (expected %q or %q)",
			c.Vector.Backend, VectorBackendMemory, VectorBackendPostgres)
	}
	return nil
}

// defaultCloneDir はクローン先のデフォルトディレクトリを返します
func defaultCloneDir() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return ".repochat/repos"
	}
	return cacheDir + "/repochat/repos"
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
