package utils

import (
	"crypto/rand"
	"encoding/base64"
)

// DefaultTokenBytes 访问令牌的随机字节数
const DefaultTokenBytes = 32

// GenerateURLToken 生成 URL-safe 的随机 token，长度约为 4/3*n 字符
// n 为原始随机字节数，n <= 0 时使用 DefaultTokenBytes
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = DefaultTokenBytes
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 使用 RawURLEncoding，避免出现 '=' 填充与 '+' '/' 字符
	return base64.RawURLEncoding.EncodeToString(b), nil
}
