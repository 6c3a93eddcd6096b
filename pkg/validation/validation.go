package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxIDLength          = 128
	MaxListNameLength    = 100
	MaxDescriptionLength = 1000
	MaxTags              = 32
	MaxTagLength         = 50
	MaxActionLength      = 100
	MaxDetailsLength     = 2000
)

// UserIDRegex accepts opaque ids issued by the identity provider.
var UserIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:@-]+$`)

func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("user id is too long (max %d characters)", MaxIDLength)
	}
	if !UserIDRegex.MatchString(id) {
		return fmt.Errorf("invalid user id format")
	}
	return nil
}

// ValidateMovieID checks an external catalog reference. It is treated as
// opaque, so only length and printability are enforced.
func ValidateMovieID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("movie id is required")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("movie id is too long (max %d characters)", MaxIDLength)
	}
	if strings.ContainsFunc(id, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) {
		return fmt.Errorf("movie id must not contain whitespace or control characters")
	}
	return nil
}

func ValidateListName(name string) error {
	if err := ValidateNonEmptyString(name, "list name"); err != nil {
		return err
	}
	return ValidateStringLength(name, 1, MaxListNameLength, "list name")
}

func ValidateDescription(desc string) error {
	return ValidateStringLength(desc, 0, MaxDescriptionLength, "description")
}

func ValidateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("too many expertise tags (max %d)", MaxTags)
	}
	for _, tag := range tags {
		if err := ValidateStringLength(tag, 0, MaxTagLength, "expertise tag"); err != nil {
			return err
		}
	}
	return nil
}

func ValidateActivity(action, details string) error {
	if err := ValidateNonEmptyString(action, "action"); err != nil {
		return err
	}
	if err := ValidateStringLength(action, 1, MaxActionLength, "action"); err != nil {
		return err
	}
	return ValidateStringLength(details, 0, MaxDetailsLength, "details")
}

// ValidatePosterURL accepts an empty value or an absolute http(s) URL.
func ValidatePosterURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid poster URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("poster URL must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("poster URL must have a host")
	}
	return nil
}

func ValidateNonEmptyString(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

func ValidateStringLength(s string, min, max int, fieldName string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
