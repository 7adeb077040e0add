package utils

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f]`)
	pathUnsafe     = regexp.MustCompile(`[/\\:*?"<>|]+`)
	repeatedSpaces = regexp.MustCompile(`\s{2,}`)
)

// ValidateAmount validates a document amount
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount is not a number: %v", amount)
	}
	if amount < 0 {
		return fmt.Errorf("amount must not be negative: %.2f", amount)
	}
	return nil
}

// ValidateDate validates a YYYY-MM-DD calendar date. Empty is allowed.
func ValidateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD: %s", date)
	}
	return nil
}

// SanitizeString removes control characters
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}

// SanitizePathSegment makes name safe to use as one folder name.
// Path separators and characters rejected by common file stores become "-".
func SanitizePathSegment(name string) string {
	s := SanitizeString(name)
	s = pathUnsafe.ReplaceAllString(s, "-")
	s = repeatedSpaces.ReplaceAllString(s, " ")
	return strings.Trim(s, " .-")
}

// SanitizePath sanitizes each "/"-separated segment of p and drops empty
// and dot segments, so the result never escapes its root.
func SanitizePath(p string) string {
	var segments []string
	for _, seg := range strings.Split(strings.ReplaceAll(p, "\\", "/"), "/") {
		seg = SanitizePathSegment(seg)
		if seg == "" || seg == "." || seg == ".." {
			continue
		}
		segments = append(segments, seg)
	}
	return strings.Join(segments, "/")
}

// JoinPath joins already-sanitized path segments with "/"
func JoinPath(segments ...string) string {
	var parts []string
	for _, s := range segments {
		if s = strings.Trim(s, "/"); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
