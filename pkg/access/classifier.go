// Package access decides what a presented token may do inside a space.
package access

import (
	"crypto/subtle"

	"heeecker-lists-backend/pkg/models"
)

// Classify maps a presented token to the access level it grants on space.
// An empty token never consults the space.
func Classify(space *models.Space, token string) models.AccessLevel {
	if token == "" || space == nil {
		return models.AccessUnauthorized
	}
	if equal(token, space.AdminToken) {
		return models.AccessAdmin
	}
	if equal(token, space.ShareableToken) {
		return models.AccessShareable
	}
	return models.AccessUnauthorized
}

func equal(presented, stored string) bool {
	if stored == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
