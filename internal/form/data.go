package form

import "strings"

// FormData is the semi-structured answer blob accumulated by the wizard.
type FormData map[string]any

// Has reports whether key holds an answer. Nil, blank strings and empty
// lists count as unanswered.
func (d FormData) Has(key string) bool {
	return Answered(d[key])
}

// Answered is the presence rule shared by the guard and the validator.
func Answered(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}

// String returns the value of key when it is a string, "" otherwise.
func (d FormData) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Clone returns a shallow copy.
func (d FormData) Clone() FormData {
	out := make(FormData, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Pick returns a copy holding only keys.
func (d FormData) Pick(keys []string) FormData {
	out := FormData{}
	for _, k := range keys {
		if v, ok := d[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Merge shallow-merges src into a copy of d. Unrelated keys are preserved.
func (d FormData) Merge(src FormData) FormData {
	out := d.Clone()
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Without returns a copy of d with keys removed.
func (d FormData) Without(keys ...string) FormData {
	out := d.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// AnyOf reports whether at least one of keys is answered.
func (d FormData) AnyOf(keys []string) bool {
	for _, k := range keys {
		if d.Has(k) {
			return true
		}
	}
	return false
}
