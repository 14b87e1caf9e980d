package flows

// IdentifierLen is the required length of a client identifier: 64 hex
// characters encoding a 32-byte digest derived externally from the username.
const IdentifierLen = 64

// ValidIdentifier reports whether the identifier is exactly 64 hex
// characters. Every entry point must check this before any store access;
// rejection is uniform across endpoints so the validator cannot become a
// format oracle.
func ValidIdentifier(identifier string) bool {
	if len(identifier) != IdentifierLen {
		return false
	}
	for i := 0; i < len(identifier); i++ {
		c := identifier[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
