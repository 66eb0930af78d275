package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

func GenerateToken() string {
	return uuid.NewString()
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns an arbitrary display name into a lowercase hyphenated slug.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
