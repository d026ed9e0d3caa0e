package notify

import (
	"regexp"
	"strings"
)

// AddressPattern is the accepted syntax for sender and recipient addresses.
const AddressPattern = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`

var addressRe = regexp.MustCompile(AddressPattern)

// ValidAddress reports whether s is a syntactically valid email address.
func ValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// Validate checks the sender and every recipient before any network call.
func Validate(sender string, recipients []string) error {
	if !ValidAddress(sender) {
		return &InvalidSenderError{Address: sender}
	}
	if len(recipients) == 0 {
		return &InvalidRecipientError{}
	}
	for _, r := range recipients {
		if !ValidAddress(r) {
			return &InvalidRecipientError{Address: r}
		}
	}
	return nil
}

// MaskAddress hides most of the local part of an address for logging.
func MaskAddress(s string) string {
	local, domain, ok := strings.Cut(s, "@")
	if !ok {
		return "***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
