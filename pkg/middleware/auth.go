package middleware

import (
	"context"
	"net/http"

	"heeecker-lists-backend/pkg/utils"
)

// ContextKey 用于在context中存储请求信息的键
type ContextKey string

const (
	TokenContextKey ContextKey = "access_token"
)

// AccessToken 从 ?token= 中读取访问令牌并放入context，原样保留不做任何规范化
func AccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), TokenContextKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireToken rejects requests that carry no access token with 400.
// Whether the token is any good is decided later, against the space.
func RequireToken(next http.Handler) http.Handler {
	return AccessToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetTokenFromContext(r.Context()); !ok {
			utils.WriteBadRequestResponse(w, "token query parameter is required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// GetTokenFromContext 从context中获取访问令牌
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenContextKey).(string)
	return token, ok && token != ""
}
