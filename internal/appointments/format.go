package appointments

import (
	"fmt"
	"strconv"
	"strings"
)

const formattedIDPrefix = "APT"

// FormatID renders the reference printed on receipts, e.g. APT000042. It
// depends on id alone, so any holder of the numeric id can rebuild it.
func FormatID(id int64) string {
	return fmt.Sprintf("%s%06d", formattedIDPrefix, id)
}

// ParseID accepts either a numeric id or a formatted reference.
func ParseID(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if len(s) >= len(formattedIDPrefix) && strings.EqualFold(s[:len(formattedIDPrefix)], formattedIDPrefix) {
		s = s[len(formattedIDPrefix):]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalid("appointment_id", fmt.Sprintf("%q is not an appointment reference", raw))
	}
	return id, nil
}
