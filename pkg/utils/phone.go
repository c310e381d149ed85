package utils

import (
	"strings"
)

// MinPhoneDigits is the shortest number accepted as a broadcast recipient.
const MinPhoneDigits = 10

// OnlyDigits strips every non-digit character.
func OnlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeForSend prepends countryCode to numbers of exactly 10 or 11 digits,
// which are assumed to be national numbers missing their country code.
// A foreign number of that length gets the wrong prefix; that limitation is known.
func NormalizeForSend(number, countryCode string) string {
	digits := OnlyDigits(number)
	if countryCode == "" {
		return digits
	}
	if len(digits) == 10 || len(digits) == 11 {
		return countryCode + digits
	}
	return digits
}

// IsGroupJID reports whether a WhatsApp JID addresses a group.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@g.us")
}
