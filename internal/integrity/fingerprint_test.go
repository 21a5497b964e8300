package integrity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talhajamadar1013-star/Qmail/pkg/keyerrors"
)

func TestFingerprintKnownVector(t *testing.T) {
	got, err := Fingerprint([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestFingerprintDeterministic(t *testing.T) {
	key := []byte{0x01, 0x02, 0x03, 0xff}

	first, err := Fingerprint(key)
	require.NoError(t, err)
	second, err := Fingerprint(key)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestFingerprintDiffersPerKey(t *testing.T) {
	a, err := Fingerprint([]byte{0x00})
	require.NoError(t, err)
	b, err := Fingerprint([]byte{0x01})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestFingerprintRejectsEmptyKey(t *testing.T) {
	_, err := Fingerprint(nil)
	assert.True(t, keyerrors.IsKind(err, keyerrors.KindInvalidArgument))
}
