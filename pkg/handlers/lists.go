package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/lists"
	"heeecker-lists-backend/pkg/middleware"
	"heeecker-lists-backend/pkg/models"
	"heeecker-lists-backend/pkg/utils"
)

// ListsHandler 处理列表与行的请求。所有路由都要求 ?token=。
type ListsHandler struct {
	config *config.Config
	svc    *lists.Service
	log    *zap.Logger
}

// NewListsHandler 创建列表处理器
func NewListsHandler(cfg *config.Config, svc *lists.Service, log *zap.Logger) *ListsHandler {
	return &ListsHandler{config: cfg, svc: svc, log: log}
}

// CreateListRequest 创建列表请求体
type CreateListRequest struct {
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Columns     []models.ColumnDefinition `json:"columns"`
	MaxRowCount *int                      `json:"maxRowCount,omitempty"`
}

// AppendRowResponse 追加行的响应
type AppendRowResponse struct {
	RowID int        `json:"rowId"`
	Row   models.Row `json:"row"`
}

func (h *ListsHandler) fail(w http.ResponseWriter, err error) {
	writeServiceError(w, h.log, err, h.config.ExposeValidationDetails)
}

// ListLists GET /api/space/{spaceId}/lists
func (h *ListsHandler) ListLists(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetTokenFromContext(r.Context())
	summaries, err := h.svc.ListLists(r.Context(), chi.URLParam(r, "spaceId"), token)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.WriteSuccessResponse(w, summaries)
}

// GetList GET /api/space/{spaceId}/list/{listId}
func (h *ListsHandler) GetList(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetTokenFromContext(r.Context())
	list, err := h.svc.GetList(r.Context(), chi.URLParam(r, "spaceId"), chi.URLParam(r, "listId"), token)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// CreateList POST /api/space/{spaceId}/list
func (h *ListsHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var req CreateListRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	token, _ := middleware.GetTokenFromContext(r.Context())
	list, err := h.svc.CreateList(r.Context(), chi.URLParam(r, "spaceId"), token, lists.CreateListInput{
		Name:        req.Name,
		Description: req.Description,
		Columns:     req.Columns,
		MaxRowCount: req.MaxRowCount,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.WriteSuccessResponse(w, list)
}

// AppendRow POST /api/space/{spaceId}/list/{listId}/row
func (h *ListsHandler) AppendRow(w http.ResponseWriter, r *http.Request) {
	var payload models.RowPayload
	if err := utils.ParseJSONBody(r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	if payload == nil {
		// JSON null
		payload = models.RowPayload{}
	}

	token, _ := middleware.GetTokenFromContext(r.Context())
	res, err := h.svc.AppendRow(r.Context(), chi.URLParam(r, "spaceId"), chi.URLParam(r, "listId"), token, payload)
	if err != nil {
		h.fail(w, err)
		return
	}
	utils.WriteSuccessResponse(w, AppendRowResponse{RowID: res.Index, Row: res.Row})
}
