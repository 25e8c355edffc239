package auth

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// SanitizeName removes any HTML and trims whitespace from a display name
// before it is stored and later echoed back to other room members.
func SanitizeName(name string) string {
	cleaned := policy.Sanitize(name)
	cleaned = strings.TrimSpace(cleaned)
	return cleaned
}
