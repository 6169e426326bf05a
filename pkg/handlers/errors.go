package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/lists"
	"heeecker-lists-backend/pkg/schema"
	"heeecker-lists-backend/pkg/utils"
)

// writeServiceError 将 lists.Service 的错误映射为HTTP响应
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error, exposeDetails bool) {
	var rej *schema.Rejection
	switch {
	case errors.As(err, &rej):
		var details any
		if exposeDetails {
			details = map[string]string{"column": rej.Column, "reason": string(rej.Reason)}
		}
		utils.WriteValidationErrorResponse(w, "Row rejected", details)
	case errors.Is(err, lists.ErrInvalid):
		utils.WriteBadRequestResponse(w, "Bad Request")
	case errors.Is(err, lists.ErrNotFound):
		utils.WriteNotFoundResponse(w, "Not Found")
	case errors.Is(err, lists.ErrForbidden):
		utils.WriteForbiddenResponse(w, "Admin token required")
	case errors.Is(err, lists.ErrConflict):
		utils.WriteConflictResponse(w, "DUPLICATE_VALUE", "A row with this unique value was just added")
	case errors.Is(err, lists.ErrListFull):
		utils.WriteConflictResponse(w, "LIST_FULL", "List has reached its row limit")
	default:
		// ErrStorage, ErrSchema 已在服务层记录
		if !errors.Is(err, lists.ErrStorage) && !errors.Is(err, lists.ErrSchema) {
			log.Error("unexpected service error", zap.Error(err))
		}
		utils.WriteInternalServerErrorResponse(w, "Internal Server Error")
	}
}

// writeDecodeError 请求体无法解析时返回400；超出大小限制时返回413
func writeDecodeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		utils.WriteErrorResponseWithCode(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			"Request body too large", nil)
		return
	}
	utils.WriteBadRequestResponse(w, "Invalid JSON body")
}
