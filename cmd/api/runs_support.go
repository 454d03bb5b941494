package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/taakinstructies/internal/config"
	"github.com/yourusername/taakinstructies/internal/runs"
)

// setupRunStore は RUN_STORE_REDIS_URL があれば Redis、なければメモリに実行記録を保存します。
func setupRunStore(cfg *config.Config) (runs.Store, error) {
	if cfg.RunStoreRedisURL == "" {
		log.Printf("Run store: memory (ttl: %s)", cfg.RunTTL())
		return runs.NewMemoryStore(cfg.RunTTL()), nil
	}

	opt, err := redis.ParseURL(cfg.RunStoreRedisURL)
	if err != nil {
		return nil, err
	}
	log.Printf("Run store: redis %s (ttl: %s)", opt.Addr, cfg.RunTTL())
	return runs.NewRedisStore(redis.NewClient(opt), cfg.RunTTL()), nil
}

func runStatusHandler(store runs.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("id")
		if strings.TrimSpace(runID) == "" {
			c.JSON(http.StatusBadRequest, gin.H{
				"code":    "INVALID_INPUT",
				"message": "runId を指定してください。",
			})
			return
		}

		record, err := store.Get(c.Request.Context(), runID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "実行記録の取得に失敗しました。",
			})
			return
		}
		if record == nil {
			c.JSON(http.StatusNotFound, gin.H{
				"code":    "RUN_NOT_FOUND",
				"message": "指定された実行記録は存在しません。",
			})
			return
		}

		c.JSON(http.StatusOK, record)
	}
}
