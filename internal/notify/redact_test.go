package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubPII(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Contact nimal@example.com for details", "Contact [EMAIL] for details"},
		{"Call 077 123 4567 to reschedule", "Call [PHONE] to reschedule"},
		{"Call +94771234567 or 0112345678 today", "Call [PHONE] or [PHONE] today"},
		{"Appointment APT000042 at 09:30 confirmed", "Appointment APT000042 at 09:30 confirmed"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ScrubPII(tc.in), tc.in)
	}
}

func TestHashContactIsStable(t *testing.T) {
	a := HashContact("Nimal@Example.com ")
	b := HashContact("nimal@example.com")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "sha256:"))
	assert.NotContains(t, a, "nimal")
}

func TestRedactMessage(t *testing.T) {
	msg := redactMessage(EmailMessage{
		To:     "nimal@example.com",
		ToName: "Nimal Silva",
		Body:   "Dear Nimal Silva, we will call 0771234567.",
		HTML:   "<p>Reply to help@echannelling.lk</p>",
	})
	assert.Equal(t, HashContact("nimal@example.com"), msg.To)
	assert.Equal(t, "Nimal Silva", msg.ToName)
	assert.Equal(t, "Dear Nimal Silva, we will call [PHONE].", msg.Body)
	assert.Equal(t, "<p>Reply to [EMAIL]</p>", msg.HTML)
}
