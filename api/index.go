package handler

import (
	"net/http"
	"sync"

	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
	"heeecker-lists-backend/pkg/logging"
	"heeecker-lists-backend/pkg/server"
	"heeecker-lists-backend/pkg/utils"
)

var (
	routerMu sync.Mutex
	router   http.Handler
)

// Handler 是Vercel函数的入口点
// 这个函数实现了"单体路由模式"，所有API端点集中在一个Chi路由器中。
// 路由器在冷启动时构建，热调用复用；构建失败时下次请求重试。
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := getRouter()
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Service unavailable")
		return
	}
	h.ServeHTTP(w, r)
}

func getRouter() (http.Handler, error) {
	routerMu.Lock()
	defer routerMu.Unlock()
	if router != nil {
		return router, nil
	}
	h, err := build(config.GetCached())
	if err != nil {
		return nil, err
	}
	router = h
	return router, nil
}

func build(cfg *config.Config) (http.Handler, error) {
	// 验证配置
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := logging.New(cfg)
	if err != nil {
		return nil, err
	}

	// 获取复用的数据库连接
	db, err := database.GetDatabase(database.DatabaseConfig{
		Driver:      cfg.DBDriver,
		PostgresDSN: cfg.PostgresDSN,
		SQLitePath:  cfg.SQLitePath,
		DataDir:     cfg.DataDir,
		Debug:       cfg.Debug,
	}, log)
	if err != nil {
		log.Error("database unavailable", zap.Error(err))
		return nil, err
	}

	return server.NewRouter(cfg, db, log), nil
}
