package secretbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	box, err := New("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := box.Seal("AIza-maps-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "AIza")

	again, err := box.Seal("AIza-maps-key")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again)

	pt, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "AIza-maps-key", pt)
}

func TestOpen_WrongKeyOrGarbage(t *testing.T) {
	a, err := New("key-a")
	require.NoError(t, err)
	b, err := New("key-b")
	require.NoError(t, err)

	sealed, err := a.Seal("secret")
	require.NoError(t, err)

	_, err = b.Open(sealed)
	assert.ErrorIs(t, err, ErrCiphertext)
	_, err = a.Open("!!!")
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = New("  ")
	assert.ErrorIs(t, err, ErrNoKey)
}
