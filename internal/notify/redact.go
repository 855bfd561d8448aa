package notify

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// Sri Lankan mobile and landline numbers, local or +94 form, with optional
	// separators.
	phoneRe = regexp.MustCompile(`(?:\+94|0)[-.\s]?[0-9]{2}[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashContact returns a stable, non-reversible reference to an email address
// or phone number so archived records can still be correlated.
func HashContact(contact string) string {
	h := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(contact))))
	return fmt.Sprintf("sha256:%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
// Patient and doctor names are kept.
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	text = phoneRe.ReplaceAllString(text, "[PHONE]")
	return text
}

// redactMessage is the copy of msg the archive keeps.
func redactMessage(msg EmailMessage) EmailMessage {
	if msg.To != "" {
		msg.To = HashContact(msg.To)
	}
	msg.Subject = ScrubPII(msg.Subject)
	msg.Body = ScrubPII(msg.Body)
	msg.HTML = ScrubPII(msg.HTML)
	return msg
}
