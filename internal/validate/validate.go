// Package validate holds the pure input predicates used when partitioning
// invitee references and checking request payloads.
package validate

import (
	"regexp"

	"github.com/google/uuid"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// IsValidEmail reports whether s is a syntactically plausible email address.
func IsValidEmail(s string) bool {
	return len(s) <= 254 && emailRe.MatchString(s)
}

// IsValidUUID reports whether s parses as a UUID.
func IsValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
