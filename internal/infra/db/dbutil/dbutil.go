package dbutil

import (
	"encoding/json"
	"strings"
)

// StringOrDash returns "-" when the input is empty/whitespace
func StringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// JSONOrEmpty keeps JSON columns valid: empty input becomes {} and
// non-JSON input is wrapped as {"raw": ...}.
func JSONOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(s), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": s})
		return string(b)
	}
	return s
}

// Limit applies the default page size of 20 and caps it at 100.
func Limit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}
