package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageFormatting(t *testing.T) {
	assert.Equal(t, "not_found: svc1", NotFoundf("svc1").Error())
	assert.Equal(t, "policy_violation: bad command", PolicyViolationf("bad command").Error())
	assert.Equal(t, "invalid_id", New(InvalidID, "", "").Error())
}

func TestIsMatchesOnKind(t *testing.T) {
	err := NotFoundf("svc1")
	assert.True(t, errors.Is(err, NotFoundf("other-id")), "Is should compare Kind, not ID")
	assert.False(t, errors.Is(err, AlreadyExistsf("svc1")))
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("disk full")
	wrapped := Wrap(IO, "svc1", "write manifest", cause)
	assert.ErrorIs(t, wrapped, cause)
}

func TestKindOfOnPlainError(t *testing.T) {
	assert.Equal(t, Other, KindOf(errors.New("boom")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		NotFound:          404,
		AlreadyExists:     409,
		AlreadyRunning:    409,
		NotRunning:        409,
		InvalidID:         400,
		PolicyViolation:   400,
		InvalidSchedule:   400,
		SpawnFailed:       500,
		Unauthorized:      401,
		Forbidden:         403,
		TwoFactorRequired: 401,
		TooManyRequests:   429,
		IO:                500,
		Serde:             400,
		Other:             500,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(kind), "kind %s", kind)
	}
}
