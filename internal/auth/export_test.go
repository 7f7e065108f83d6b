package auth

import "time"

// SetClock overrides the service clock in tests.
func SetClock(s *JWTService, now func() time.Time) {
	s.now = now
}
