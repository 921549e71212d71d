package users

import (
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/nilsaker/hearthkeep/internal/apierr"
)

// bcryptWorkers bounds concurrent bcrypt calls to the same worker-pool
// width the runtime model reserves for blocking work (spec.md §5: "a
// bounded worker pool, default 4 OS threads"). Hash/verify always go
// through this channel so a burst of logins can't starve other work.
var bcryptWorkers = make(chan struct{}, 4)

func withBcryptWorker(fn func()) {
	bcryptWorkers <- struct{}{}
	defer func() { <-bcryptWorkers }()
	fn()
}

func hashPassword(password string) (string, error) {
	var hash []byte
	var err error
	withBcryptWorker(func() {
		hash, err = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	})
	return string(hash), err
}

func verifyPassword(hash, password string) bool {
	var ok bool
	withBcryptWorker(func() {
		ok = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	})
	return ok
}

var (
	fakeHashOnce sync.Once
	fakeHash     string
)

// fakeVerify runs a real bcrypt comparison against a dummy hash so the
// "unknown user" login path costs the same as a genuine password mismatch
// (spec.md §9 "constant-time credential checks").
func fakeVerify() {
	fakeHashOnce.Do(func() {
		h, _ := bcrypt.GenerateFromPassword([]byte("hearthkeep-timing-equaliser"), bcrypt.DefaultCost)
		fakeHash = string(h)
	})
	verifyPassword(fakeHash, "irrelevant")
}

// validatePasswordPolicy enforces spec.md §4.9: length ≥8, upper+lower
// letters, and at least one digit or symbol.
func validatePasswordPolicy(pw string) error {
	if len(pw) < 8 {
		return apierr.PolicyViolationf("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigitOrSymbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			hasDigitOrSymbol = true
		}
	}
	if !hasUpper || !hasLower || !hasDigitOrSymbol {
		return apierr.PolicyViolationf("password must contain upper and lower case letters and a digit or symbol")
	}
	return nil
}
