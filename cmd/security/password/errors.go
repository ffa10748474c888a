package password

import "errors"

// Public, stable errors for callers.
var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")

	// ErrMalformedDigest reports a stored digest that cannot be decoded or whose
	// parameters are outside the accepted bounds.
	ErrMalformedDigest = errors.New("malformed password digest")
)

// IsPolicyViolation reports whether err is one of the policy errors returned by Validate.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPasswordTooShort) ||
		errors.Is(err, ErrPasswordTooLong) ||
		errors.Is(err, ErrWeakPassword)
}
