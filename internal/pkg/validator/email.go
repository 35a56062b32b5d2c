package validator

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
)

// NormalizeEmail checks the address syntax and returns it lower-cased and trimmed.
// Display names are rejected; only bare addresses are accepted.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", errors.New("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", errors.New("invalid email format")
	}
	parts := strings.Split(addr.Address, "@")
	if len(parts) != 2 || !strings.Contains(parts[1], ".") {
		return "", errors.New("invalid email domain")
	}
	return strings.ToLower(addr.Address), nil
}

var (
	slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)
	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Slugify turns a display name into a URL-safe slug.
func Slugify(name string) string {
	s := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	return s
}

func IsSlug(s string) bool {
	return len(s) <= 64 && slugPattern.MatchString(s)
}
