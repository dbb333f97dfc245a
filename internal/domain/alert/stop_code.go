package alert

import (
	"crypto/subtle"
	"errors"
)

// ErrInvalidStopCode is returned when a stop request carries the wrong code.
// The configured code itself must never appear in logs or error messages.
var ErrInvalidStopCode = errors.New("invalid stop code")

// CheckStopCode compares the supplied code against the configured one in
// constant time.
func CheckStopCode(configured, supplied string) error {
	if len(configured) == 0 {
		return errors.New("no stop code configured")
	}
	if subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) != 1 {
		return ErrInvalidStopCode
	}
	return nil
}
