package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/lists"
	"heeecker-lists-backend/pkg/middleware"
	"heeecker-lists-backend/pkg/utils"
)

// SpacesHandler 处理空间的创建与读取
type SpacesHandler struct {
	config *config.Config
	svc    *lists.Service
	log    *zap.Logger
}

// NewSpacesHandler 创建空间处理器
func NewSpacesHandler(cfg *config.Config, svc *lists.Service, log *zap.Logger) *SpacesHandler {
	return &SpacesHandler{config: cfg, svc: svc, log: log}
}

// CreateSpaceRequest 创建空间请求体
type CreateSpaceRequest struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	CreatedBy        string `json:"createdBy"`
	OwnerContactMail string `json:"ownerContactMail"`
	DeletionDate     *int64 `json:"deletionDate,omitempty"`
}

// CreateSpace POST /api/space
func (h *SpacesHandler) CreateSpace(w http.ResponseWriter, r *http.Request) {
	var req CreateSpaceRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	baseURL := h.config.BaseURL
	if baseURL == "" {
		baseURL = middleware.RequestBaseURL(r)
	}

	created, err := h.svc.CreateSpace(r.Context(), lists.CreateSpaceInput{
		Name:             req.Name,
		Description:      req.Description,
		CreatedBy:        req.CreatedBy,
		OwnerContactMail: req.OwnerContactMail,
		DeletionDate:     req.DeletionDate,
		BaseURL:          baseURL,
	})
	if err != nil {
		writeServiceError(w, h.log, err, h.config.ExposeValidationDetails)
		return
	}
	utils.WriteSuccessResponse(w, created)
}

// GetSpace GET /api/space/{spaceId}?token=
func (h *SpacesHandler) GetSpace(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.GetTokenFromContext(r.Context())
	view, err := h.svc.GetSpace(r.Context(), chi.URLParam(r, "spaceId"), token)
	if err != nil {
		writeServiceError(w, h.log, err, h.config.ExposeValidationDetails)
		return
	}
	utils.WriteSuccessResponse(w, view)
}
