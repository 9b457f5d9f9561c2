package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBox_RoundTrip(t *testing.T) {
	box, err := New("secret")
	require.NoError(t, err)

	sealed, err := box.Seal([]byte("hello"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hello")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))
}

func TestBox_NonceMakesOutputsDiffer(t *testing.T) {
	box, _ := New("secret")
	a, _ := box.Seal([]byte("x"))
	b, _ := box.Seal([]byte("x"))
	assert.NotEqual(t, a, b)
}

func TestBox_WrongKeyFails(t *testing.T) {
	a, _ := New("one")
	b, _ := New("two")

	sealed, err := a.SealJSON(map[string]string{"sid": "abc"})
	require.NoError(t, err)

	var out map[string]string
	assert.ErrorIs(t, b.OpenJSON(sealed, &out), ErrDecrypt)
}

func TestBox_Garbage(t *testing.T) {
	box, _ := New("secret")
	_, err := box.Open("!!!")
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = box.Open("YQ==")
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}
