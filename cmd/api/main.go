// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/taakinstructies/internal/batch"
	"github.com/yourusername/taakinstructies/internal/config"
	"github.com/yourusername/taakinstructies/internal/pdf"
	"github.com/yourusername/taakinstructies/internal/runs"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	// ダウンロード時にフロントエンドが実行IDと警告件数を読めるように公開
	corsConfig.ExposeHeaders = []string{"Content-Disposition", "X-Run-Id", "X-Batch-Warnings"}
	router.Use(cors.New(corsConfig))

	runStore, err := setupRunStore(cfg)
	if err != nil {
		log.Fatalf("Failed to set up run store: %v", err)
	}

	// ルーティングの設定
	setupRoutes(router, cfg, runStore)

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "taakinstructies-api",
		"version": "0.1.0",
	})
}

// newBatchService は設定からPDFエンジンとバッチ処理サービスを組み立てます。
func newBatchService(cfg *config.Config) *batch.Service {
	engine := pdf.NewEngine(pdf.EngineOptions{
		NUpDescription: cfg.LayoutDescription,
		Label:          cfg.LayoutLabel,
	})
	return batch.NewService(engine, batch.Options{
		Delimiter:   cfg.Delimiter(),
		MaxRows:     cfg.MaxRows,
		MaxPages:    cfg.MaxPages,
		Arity:       cfg.LayoutArity,
		Concurrency: cfg.BatchConcurrency,
	}, log.Default())
}

// setupRoutes は API グループの配線を行います。
func setupRoutes(router *gin.Engine, cfg *config.Config, runStore runs.Store) {
	router.GET("/health", handleHealth)

	svc := newBatchService(cfg)
	handlerOpts := batch.HandlerOptions{
		MaxFileSize: cfg.MaxFileSize,
		Timeout:     cfg.RequestTimeout(),
		Runs:        runStore,
		Logger:      log.Default(),
	}

	api := router.Group("/api")
	{
		api.POST("/generate", batch.GenerateHandler(svc, handlerOpts))
		api.POST("/generate/preview", batch.PreviewHandler(svc, handlerOpts))
		api.GET("/runs/:id", runStatusHandler(runStore))
	}
}
