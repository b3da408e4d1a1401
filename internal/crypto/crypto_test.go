package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpen(t *testing.T) {
	a, err := New(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	ct, err := a.EncryptToString("1//refresh-token", "tenant-a")
	require.NoError(t, err)
	assert.NotContains(t, ct, "refresh-token")

	pt, err := a.DecryptString(ct, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "1//refresh-token", pt)

	_, err = a.DecryptString(ct, "tenant-b")
	assert.Error(t, err, "ciphertext must not open under another tenant")

	_, err = a.DecryptString("AAAA", "tenant-a")
	assert.Error(t, err)
}

func TestNewRejectsShortKey(t *testing.T) {
	_, err := New([]byte("short"))
	assert.Error(t, err)
}
