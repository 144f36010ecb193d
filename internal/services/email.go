package services

import (
	"net/mail"
	"strings"
)

// NormEmail lower-cases and trims an address. ok is false when the result
// is not a bare, well-formed address; an empty input is reported as ok so
// callers decide whether it is required.
func NormEmail(s string) (string, bool) {
	e := strings.TrimSpace(strings.ToLower(s))
	if e == "" {
		return "", true
	}
	addr, err := mail.ParseAddress(e)
	if err != nil {
		return e, false
	}
	// "Name <a@b.pl>" parses too; only the bare address is accepted.
	return e, addr.Address == e && addr.Name == ""
}
