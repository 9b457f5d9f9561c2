package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Format(t *testing.T) {
	h, err := HashPassword("secret1")
	require.NoError(t, err)

	parts := strings.Split(h, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "pbkdf2:sha256:260000", parts[0])
	assert.Len(t, parts[1], 8)
	assert.Len(t, parts[2], 64)
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a, _ := HashPassword("same")
	b, _ := HashPassword("same")
	assert.NotEqual(t, a, b)
}

func TestCheckPassword(t *testing.T) {
	h := hashWith("secret1", "abcdEFGH", 1000)
	assert.True(t, CheckPassword(h, "secret1"))
	assert.False(t, CheckPassword(h, "secret2"))
}

func TestCheckPassword_Malformed(t *testing.T) {
	for _, h := range []string{
		"",
		"plain",
		"scrypt:32768:8:1$salt$abcd",
		"pbkdf2:sha256:x$salt$abcd",
		"pbkdf2:sha256:1000$salt$nothex",
	} {
		assert.False(t, CheckPassword(h, "anything"), h)
	}
}

func TestCheckPassword_DefaultIterationsWhenOmitted(t *testing.T) {
	full := hashWith("pw", "saltsalt", DefaultIterations)
	short := strings.Replace(full, ":260000$", "$", 1)
	assert.True(t, CheckPassword(short, "pw"))
}

func TestCheckoutState(t *testing.T) {
	tok, err := IssueCheckoutState(5, 9, time.Hour)
	require.NoError(t, err)

	assert.NoError(t, VerifyCheckoutState(tok, 5, 9))
	assert.ErrorIs(t, VerifyCheckoutState(tok, 6, 9), ErrStateMismatch)
	assert.ErrorIs(t, VerifyCheckoutState(tok, 5, 1), ErrStateMismatch)
}

func TestCheckoutState_Expired(t *testing.T) {
	tok, err := IssueCheckoutState(5, 9, -time.Minute)
	require.NoError(t, err)
	assert.Error(t, VerifyCheckoutState(tok, 5, 9))
}

func TestCheckoutState_Tampered(t *testing.T) {
	tok, _ := IssueCheckoutState(5, 9, time.Hour)
	assert.Error(t, VerifyCheckoutState(tok+"x", 5, 9))
}

func TestPrincipalContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	p := &Principal{ID: 2, Email: "a@b.lt", Admin: true}
	ctx := WithPrincipal(context.Background(), p)
	assert.Same(t, p, FromContext(ctx))
}

func TestIsAdmin(t *testing.T) {
	admins := []uint{1, 2}
	assert.True(t, IsAdmin(2, admins))
	assert.False(t, IsAdmin(3, admins))
	assert.False(t, IsAdmin(0, []uint{0}))
}
