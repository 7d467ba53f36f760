package domain

// PatronIDLength is the number of digits on a library card.
const PatronIDLength = 6

// ValidPatronID reports whether id is a library card number: exactly six ASCII digits.
// Patrons are not stored; every operation checks the id this way.
func ValidPatronID(id string) bool {
	return len(id) == PatronIDLength && IsDigits(id)
}

// IsDigits reports whether s is non-empty and made only of ASCII digits.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
