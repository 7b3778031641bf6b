package identity

import "unicode"

// ValidPassword enforces the password policy: at least eight characters
// with one uppercase letter, one lowercase letter and one digit.
func ValidPassword(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}
