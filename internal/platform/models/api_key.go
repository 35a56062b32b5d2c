package models

const (
	APIKeyActive  = "active"
	APIKeyRevoked = "revoked"
)

type APIKey struct {
	ID         string   `json:"id"`
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	KeyHash    string   `json:"-"`
	KeyPrefix  string   `json:"key_prefix"`
	Scopes     []string `json:"scopes"` // JSON array in DB
	Status     string   `json:"status"`
	LastUsedAt *int64   `json:"last_used_at,omitempty"`
	ExpiresAt  *int64   `json:"expires_at,omitempty"`
	CreatedAt  int64    `json:"created_at"`
	RevokedAt  *int64   `json:"revoked_at,omitempty"`

	// Key is the raw secret. It is only ever set on the insert response.
	Key string `json:"key,omitempty"`
}

func (k *APIKey) Revoked() bool {
	return k.Status == APIKeyRevoked
}
