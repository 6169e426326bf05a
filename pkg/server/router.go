// Package server assembles the chi router shared by the serverless entry
// point and the standalone binary.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
	"heeecker-lists-backend/pkg/handlers"
	"heeecker-lists-backend/pkg/lists"
	customMiddleware "heeecker-lists-backend/pkg/middleware"
	"heeecker-lists-backend/pkg/utils"
)

// NewRouter 创建Chi路由器并挂载所有中间件与路由
func NewRouter(cfg *config.Config, db database.Store, log *zap.Logger) http.Handler {
	router := chi.NewRouter()
	setupMiddleware(router, cfg, log)
	setupRoutes(router, cfg, db, log)
	return router
}

// setupMiddleware 设置全局中间件
func setupMiddleware(router *chi.Mux, cfg *config.Config, log *zap.Logger) {
	// 基础中间件
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	// Normalize path and restore scheme/host before logging and routing
	router.Use(customMiddleware.Normalize())
	router.Use(customMiddleware.Logger(log))
	router.Use(customMiddleware.Recovery(cfg, log))

	// CORS中间件
	router.Use(customMiddleware.CORS(cfg))

	// 超时中间件（Vercel函数有时间限制）
	router.Use(middleware.Timeout(25 * time.Second))

	// 压缩中间件
	router.Use(middleware.Compress(5))

	// 开发环境额外中间件
	if cfg.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有路由
func setupRoutes(router *chi.Mux, cfg *config.Config, db database.Store, log *zap.Logger) {
	svc := lists.NewService(db, cfg, log)
	spacesHandler := handlers.NewSpacesHandler(cfg, svc, log)
	listsHandler := handlers.NewListsHandler(cfg, svc, log)
	systemHandler := handlers.NewSystemHandler(cfg, db, log)

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", systemHandler.HealthCheck)
		r.Get("/legal", systemHandler.Legal)

		r.With(customMiddleware.MaxBodySize(cfg.MaxBodyBytes), customMiddleware.ContentTypeJSON).
			Post("/space", spacesHandler.CreateSpace)

		// 以下路由都要求 ?token=
		r.Route("/space/{spaceId}", func(r chi.Router) {
			r.Use(customMiddleware.RequireToken)
			r.Use(customMiddleware.MaxBodySize(cfg.MaxBodyBytes))
			r.Use(customMiddleware.ContentTypeJSON)

			r.Get("/", spacesHandler.GetSpace)
			r.Get("/lists", listsHandler.ListLists)
			r.Post("/list", listsHandler.CreateList)
			r.Get("/list/{listId}", listsHandler.GetList)
			r.With(customMiddleware.RateLimitByIP(cfg.RowRateLimitPerMinute)).
				Post("/list/{listId}/row", listsHandler.AppendRow)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
		})
	})

	// 前端静态文件与SPA回退
	router.NotFound(systemHandler.Static)

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), nil)
	})
}
