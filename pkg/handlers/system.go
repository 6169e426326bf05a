package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
	"heeecker-lists-backend/pkg/utils"
)

// SystemHandler 健康检查、法律声明与前端静态文件
type SystemHandler struct {
	config *config.Config
	db     database.Store
	log    *zap.Logger
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(cfg *config.Config, db database.Store, log *zap.Logger) *SystemHandler {
	return &SystemHandler{config: cfg, db: db, log: log}
}

// HealthCheck GET /api/health
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.config.StorageTimeout)
	defer cancel()

	// 测试数据库连接
	dbStatus := "healthy"
	status := http.StatusOK
	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		dbStatus = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"service":     "heeecker-lists-backend",
		"environment": h.config.Environment,
		"database":    h.config.DBDriver,
		"db_status":   dbStatus,
		"timestamp":   time.Now().Unix(),
	}
	if h.config.IsDevelopment() {
		body["pool"] = database.GetConnectionStats()
	}
	utils.WriteJSONResponse(w, status, body)
}

// Legal GET /api/legal 返回纯文本的法律声明与隐私政策
func (h *SystemHandler) Legal(w http.ResponseWriter, r *http.Request) {
	text, err := os.ReadFile(h.config.LegalFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			utils.WriteNotFoundResponse(w, "Legal notice not configured")
			return
		}
		h.log.Error("read legal file", zap.String("path", h.config.LegalFile), zap.Error(err))
		utils.WriteInternalServerErrorResponse(w, "Internal Server Error")
		return
	}
	utils.WriteTextResponse(w, http.StatusOK, string(text))
}

// Static 从 PublicDir 提供前端文件；未知路径回退到 index.html
func (h *SystemHandler) Static(w http.ResponseWriter, r *http.Request) {
	if h.config.PublicDir == "" || strings.HasPrefix(r.URL.Path, "/api") {
		utils.WriteNotFoundResponse(w, "Not Found")
		return
	}

	// path.Clean on a rooted path never climbs above the root
	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(h.config.PublicDir, filepath.FromSlash(name))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		http.ServeFile(w, r, file)
		return
	}

	index := filepath.Join(h.config.PublicDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		utils.WriteNotFoundResponse(w, "Not Found")
		return
	}
	http.ServeFile(w, r, index)
}
