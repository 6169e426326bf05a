package models

// Space is an ephemeral container for lists, gated by two access tokens.
// All timestamps are milliseconds since the Unix epoch.
type Space struct {
	ID               string `json:"id" db:"id"`
	Name             string `json:"name" db:"name"`
	Description      string `json:"description" db:"description"`
	CreatedAt        int64  `json:"createdOnTimestampMs" db:"created_at"`
	LastModifiedAt   int64  `json:"lastModifiedOnTimestampMs" db:"last_modified_at"`
	DeleteAt         int64  `json:"deleteOnTimestampMs" db:"delete_at"`
	CreatedBy        string `json:"createdBy" db:"created_by"`
	OwnerContactMail string `json:"ownerContactMail" db:"owner_contact_mail"`
	AdminToken       string `json:"adminUrlToken" db:"admin_token"`
	ShareableToken   string `json:"sharableAccessToken" db:"shareable_token"`
}

// AccessLevel is the result of classifying a presented token against a Space.
type AccessLevel int

const (
	AccessUnauthorized AccessLevel = iota
	AccessShareable
	AccessAdmin
)

func (a AccessLevel) String() string {
	switch a {
	case AccessAdmin:
		return "admin"
	case AccessShareable:
		return "shareable"
	default:
		return "unauthorized"
	}
}

// CanRead reports whether the level grants list and row access.
func (a AccessLevel) CanRead() bool {
	return a == AccessAdmin || a == AccessShareable
}
