// ABOUTME: Lexical rules for property keys, values and tags
// ABOUTME: Violations are reported as bad requests

package metadata

import (
	"strings"

	"github.com/nainya/metacatalog/pkg/index"
)

// DefaultMaxLength bounds keys, values and tags.
const DefaultMaxLength = 50

// ValidateProperty checks a user property with the default length bound.
func ValidateProperty(key, value string) error {
	return validateProperty(key, value, DefaultMaxLength)
}

// ValidateTag checks a user tag with the default length bound.
func ValidateTag(tag string) error {
	return validateTag(tag, DefaultMaxLength)
}

func validateProperty(key, value string, maxLength int) error {
	if strings.EqualFold(key, index.TagsKey) {
		return ErrBadRequest.New("%q is a reserved key", index.TagsKey)
	}
	if err := checkText("key", key, maxLength); err != nil {
		return err
	}
	return checkText("value", value, maxLength)
}

func validateTag(tag string, maxLength int) error {
	return checkText("tag", tag, maxLength)
}

func checkText(what, s string, maxLength int) error {
	if s == "" {
		return ErrBadRequest.New("%s must not be empty", what)
	}
	if len(s) > maxLength {
		return ErrBadRequest.New("%s %q exceeds %d characters", what, s, maxLength)
	}
	for i := 0; i < len(s); i++ {
		if !allowed(s[i]) {
			return ErrBadRequest.New("%s %q must contain only letters, digits, '_' and '-'", what, s)
		}
	}
	return nil
}

func allowed(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '_' || c == '-'
}
