package security

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var (
	scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	jsURL       = regexp.MustCompile(`(?i)javascript\s*:`)
	inlineEvent = regexp.MustCompile(`(?i)\bon\w+\s*=`)

	strict = bluemonday.StrictPolicy()
)

// Keys that could poison a prototype chain once the blob reaches a
// browser.
var forbiddenKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// maxPasses bounds the fixpoint loop.
const maxPasses = 8

// Sanitize returns a copy of v with every string leaf cleaned of markup and
// dangerous keys dropped from every object. It never fails, and applying it
// twice gives the same result as applying it once.
func Sanitize(v any) any {
	switch x := v.(type) {
	case string:
		return SanitizeString(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			if forbiddenKeys[k] {
				continue
			}
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Sanitize(val)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Sanitize(val)
		}
		return out
	default:
		return v
	}
}

// SanitizeString strips script blocks, javascript: URLs and inline event
// handlers, then removes tags and escapes what is left.
func SanitizeString(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := strip(strict.Sanitize(strip(s)))
		if next == s {
			break
		}
		s = next
	}
	return s
}

func strip(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = jsURL.ReplaceAllString(s, "")
	return inlineEvent.ReplaceAllString(s, "")
}
