package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashPIN hashes a till PIN. PINs are short, so the cost matters more than
// for passwords; callers should pass the configured bcrypt cost, never the
// library minimum.
func HashPIN(pin string, cost int) (string, error) {
	return HashPassword(pin, cost)
}

// VerifyPIN compares a stored PIN hash against the presented PIN.
func VerifyPIN(hash, pin string) bool {
	return VerifyPassword(hash, pin)
}
