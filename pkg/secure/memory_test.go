package secure

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureBytesUse(t *testing.T) {
	data := []byte("sensitive test data here")
	sb := FromBytes(data)

	err := sb.Use(func(b []byte) error {
		assert.Equal(t, data, b)
		return nil
	})
	require.NoError(t, err)

	want := errors.New("boom")
	assert.ErrorIs(t, sb.Use(func([]byte) error { return want }), want)

	sb.Destroy()
	assert.True(t, sb.Destroyed())
	assert.ErrorIs(t, sb.Use(func([]byte) error { return nil }), ErrDestroyed)
}

func TestFromBytesCopies(t *testing.T) {
	original := []byte("test data for secure bytes")
	sb := FromBytes(original)

	original[0] = 0xFF
	got, err := sb.Copy()
	require.NoError(t, err)
	assert.NotEqual(t, original, got)
	assert.Equal(t, byte('t'), got[0])

	sb.Destroy()
	_, err = sb.Copy()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestTakeZeroesSource(t *testing.T) {
	src := []byte{1, 2, 3, 4}
	sb := Take(src)

	assert.Equal(t, []byte{0, 0, 0, 0}, src)
	got, err := sb.Copy()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, got)
}

func TestDestroyZeroesBackingArray(t *testing.T) {
	sb := FromBytes([]byte("secret"))
	var inner []byte
	require.NoError(t, sb.Use(func(b []byte) error {
		inner = b
		return nil
	}))

	sb.Destroy()
	sb.Destroy()
	for _, b := range inner {
		assert.Equal(t, byte(0), b)
	}

	var nilBytes *SecureBytes
	assert.NotPanics(t, func() { nilBytes.Destroy() })
}

func TestZero(t *testing.T) {
	data := []byte("sensitive data to be zeroed")
	original := make([]byte, len(data))
	copy(original, data)

	Zero(data)

	for _, b := range data {
		assert.Equal(t, byte(0), b)
	}
	assert.NotEqual(t, original, data)
}

func TestConstantTimeCompare(t *testing.T) {
	a := []byte("test data")
	b := []byte("test data")
	c := []byte("different")
	d := []byte("test dat")

	assert.True(t, ConstantTimeCompare(a, b))
	assert.False(t, ConstantTimeCompare(a, c))
	assert.False(t, ConstantTimeCompare(a, d))
	assert.False(t, ConstantTimeCompare(a, []byte{}))
}

func TestRandomBytes(t *testing.T) {
	tests := []struct {
		name      string
		size      int
		wantError bool
	}{
		{"16 bytes", 16, false},
		{"32 bytes", 32, false},
		{"Zero bytes", 0, true},
		{"Negative bytes", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := RandomBytes(tt.size)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, b)
				return
			}
			require.NoError(t, err)
			assert.Len(t, b, tt.size)

			b2, err := RandomBytes(tt.size)
			require.NoError(t, err)
			assert.NotEqual(t, b, b2)
		})
	}
}
