package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"heeecker-lists-backend/pkg/config"
)

// CORS 创建CORS中间件
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Requested-With",
			"Cache-Control",
		},
		ExposedHeaders: []string{
			"Retry-After",
			"X-RateLimit-Limit",
		},
		MaxAge: 300, // 5分钟
	}

	// 开发环境允许所有来源
	if cfg.IsDevelopment() || len(cfg.AllowedOrigins) == 0 {
		corsOptions.AllowedOrigins = []string{"*"}
	}

	// 访问令牌走查询参数，不需要 cookie 凭据
	corsOptions.AllowCredentials = false

	return cors.Handler(corsOptions)
}
