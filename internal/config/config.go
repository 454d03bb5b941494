// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// アップロード制限
	MaxFileSize int64 // 単一パートの最大サイズ（バイト）
	MaxPages    int   // 元PDFの最大ページ数
	MaxRows     int   // CSVの最大行数

	// バッチ処理設定
	BatchConcurrency      int    // 行を同時に処理する数（0以下はCPU数）
	LayoutArity           int    // 1シートあたりのページ数
	LayoutLabel           bool   // シートに行の名前を印字するか
	LayoutDescription     string // pdfcpu の n-up 設定文字列
	RequestTimeoutSeconds int    // 1リクエストあたりの処理時間上限（秒）
	CSVDelimiter          string // CSVの区切り文字

	// 実行記録
	RunStoreRedisURL string // 実行記録を保存するRedisのURL（空ならメモリ）
	RunExpireMinutes int    // 実行記録の有効期限（分）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 10*1024*1024), // 10MB
		MaxPages:    getEnvAsInt("MAX_PAGES", 500),
		MaxRows:     getEnvAsInt("MAX_ROWS", 500),

		BatchConcurrency:      getEnvAsInt("BATCH_CONCURRENCY", 0),
		LayoutArity:           getEnvAsInt("LAYOUT_ARITY", 4),
		LayoutLabel:           getEnvAsBool("LAYOUT_LABEL", true),
		LayoutDescription:     getEnv("LAYOUT_DESCRIPTION", ""),
		RequestTimeoutSeconds: getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 120),
		CSVDelimiter:          getEnv("CSV_DELIMITER", ";"),

		RunStoreRedisURL: getEnv("RUN_STORE_REDIS_URL", ""),
		RunExpireMinutes: getEnvAsInt("RUN_EXPIRE_MINUTES", 10),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if !supportedArity(c.LayoutArity) {
		return fmt.Errorf("LAYOUT_ARITY must be one of 1, 2, 3, 4, 6, 8, 9, 12, 16 (got %d)", c.LayoutArity)
	}
	if utf8.RuneCountInString(c.CSVDelimiter) != 1 {
		return fmt.Errorf("CSV_DELIMITER must be a single character (got %q)", c.CSVDelimiter)
	}
	if r, _ := utf8.DecodeRuneInString(c.CSVDelimiter); r == '"' || r == '\r' || r == '\n' {
		return fmt.Errorf("CSV_DELIMITER %q is not allowed", c.CSVDelimiter)
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("MAX_PAGES must be positive")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("MAX_ROWS must be positive")
	}
	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func supportedArity(n int) bool {
	switch n {
	case 1, 2, 3, 4, 6, 8, 9, 12, 16:
		return true
	}
	return false
}

// Delimiter は CSV の区切り文字を rune で返します。
func (c *Config) Delimiter() rune {
	r, _ := utf8.DecodeRuneInString(c.CSVDelimiter)
	return r
}

// RequestTimeout は1リクエストの処理時間上限です。
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RunTTL は実行記録の保持期間です。
func (c *Config) RunTTL() time.Duration {
	minutes := c.RunExpireMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
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

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
