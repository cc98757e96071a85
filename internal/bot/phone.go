package bot

import "strings"

// normalizePhone canonicalizes free-text phone input into the +<country><number>
// form used as the counterparty name. Belarusian and Russian formats are
// recognized; anything else that looks like a bare local number is passed
// through with a plus. Returns "" when the input is not a phone number.
func normalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		} else if r != '+' && r != ' ' && r != '-' && r != '(' && r != ')' {
			return ""
		}
	}
	d := digits.String()

	switch {
	case len(d) == 12 && strings.HasPrefix(d, "375"):
		return "+" + d
	case len(d) == 11 && strings.HasPrefix(d, "80"):
		// local Belarusian format 80XX...
		return "+375" + d[2:]
	case len(d) == 11 && strings.HasPrefix(d, "7"):
		return "+" + d
	case len(d) == 11 && strings.HasPrefix(d, "8"):
		// local Russian format 8XXX...
		return "+7" + d[1:]
	case len(d) == 9 || len(d) == 10:
		return "+" + d
	default:
		return ""
	}
}
