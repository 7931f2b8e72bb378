package render

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

var headOpenTag = regexp.MustCompile(`(?i)<head(\s[^>]*)?>`)

// injectBaseHref inserts <base href> right after the first <head> tag so relative assets resolve.
// Documents without a <head> are returned unchanged.
func injectBaseHref(doc, baseURL string) string {
	if strings.TrimSpace(baseURL) == "" {
		return doc
	}
	loc := headOpenTag.FindStringIndex(doc)
	if loc == nil {
		return doc
	}
	tag := `<base href="` + html.EscapeString(baseURL) + `">`
	return doc[:loc[1]] + tag + doc[loc[1]:]
}

var cssLength = regexp.MustCompile(`^\s*([0-9]*\.?[0-9]+)\s*(px|in|cm|mm)?\s*$`)

// lengthInches converts a CSS length to inches, the unit the print API takes.
func lengthInches(v string) (float64, error) {
	m := cssLength.FindStringSubmatch(strings.ToLower(v))
	if m == nil {
		return 0, fmt.Errorf("invalid length %q", v)
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q: %w", v, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("length must be positive, got %q", v)
	}
	switch m[2] {
	case "in":
		return n, nil
	case "cm":
		return n / 2.54, nil
	case "mm":
		return n / 25.4, nil
	default:
		return n / 96, nil
	}
}
