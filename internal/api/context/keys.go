package context

type Key string

const (
	Claims Key = "claims"
	Params Key = "params"
	// APIKeyID is set when the caller authenticated with an API key instead of a session token.
	APIKeyID Key = "api_key_id"
)
