package auth

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	DefaultKeyPrefix = "alw_live_"
	keyEntropyBytes  = 24
)

var keyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// KeyHasher generates API key secrets and hashes them with a keyed BLAKE2b.
// Only the hash is persisted; the raw secret is shown to the caller once.
type KeyHasher struct {
	prefix string
	key    []byte
}

func NewKeyHasher(pepper, prefix string) *KeyHasher {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	// BLAKE2b keys are limited to 64 bytes.
	k := []byte(pepper)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum512(k)
		k = sum[:]
	}
	return &KeyHasher{prefix: prefix, key: k}
}

func (h *KeyHasher) Prefix() string {
	return h.prefix
}

// Generate returns a new raw key and its hash.
func (h *KeyHasher) Generate() (raw, hash string, err error) {
	buf := make([]byte, keyEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = h.prefix + strings.ToLower(keyEncoding.EncodeToString(buf))
	hash, err = h.Hash(raw)
	return raw, hash, err
}

func (h *KeyHasher) Hash(raw string) (string, error) {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		return "", err
	}
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Looks reports whether token has the shape of one of our API keys rather than a JWT.
func (h *KeyHasher) Looks(token string) bool {
	return strings.HasPrefix(token, h.prefix)
}
