package secret_test

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teneolabs/teneo-go/pkg/secret"
)

func testScalar() []byte {
	scalar := make([]byte, secret.ScalarSize)
	for i := range scalar {
		scalar[i] = byte(i + 1)
	}
	return scalar
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("seals and recovers the scalar", func(t *testing.T) {
		t.Parallel()

		want := testScalar()
		sec, err := secret.New(testScalar())
		require.NoError(t, err)

		require.NoError(t, sec.Use(func(scalar []byte) error {
			assert.Equal(t, want, scalar)
			return nil
		}))
	})

	t.Run("zeroes the caller's copy", func(t *testing.T) {
		t.Parallel()

		input := testScalar()
		_, err := secret.New(input)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, secret.ScalarSize), input)
	})

	t.Run("rejects wrong scalar sizes", func(t *testing.T) {
		t.Parallel()

		_, err := secret.New(make([]byte, 16))
		assert.ErrorIs(t, err, secret.ErrInvalidScalar)

		_, err = secret.New(nil)
		assert.ErrorIs(t, err, secret.ErrInvalidScalar)
	})
}

func TestUse(t *testing.T) {
	t.Parallel()

	t.Run("propagates the callback error", func(t *testing.T) {
		t.Parallel()

		sec, err := secret.New(testScalar())
		require.NoError(t, err)

		assert.ErrorIs(t, sec.Use(func([]byte) error { return assert.AnError }), assert.AnError)
	})

	t.Run("plaintext is zeroed after the callback", func(t *testing.T) {
		t.Parallel()

		sec, err := secret.New(testScalar())
		require.NoError(t, err)

		var leaked []byte
		require.NoError(t, sec.Use(func(scalar []byte) error {
			leaked = scalar
			return nil
		}))
		assert.True(t, bytes.Equal(leaked, make([]byte, secret.ScalarSize)))
	})

	t.Run("concurrent use is safe", func(t *testing.T) {
		t.Parallel()

		want := testScalar()
		sec, err := secret.New(testScalar())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 50 {
					_ = sec.Use(func(scalar []byte) error {
						if !bytes.Equal(scalar, want) {
							t.Error("scalar corrupted under concurrency")
						}
						return nil
					})
				}
			}()
		}
		wg.Wait()
	})
}

func TestDestroy(t *testing.T) {
	t.Parallel()

	sec, err := secret.New(testScalar())
	require.NoError(t, err)

	assert.False(t, sec.Destroyed())
	sec.Destroy()
	assert.True(t, sec.Destroyed())

	assert.ErrorIs(t, sec.Use(func([]byte) error { return nil }), secret.ErrDestroyed)

	// Idempotent.
	sec.Destroy()
	assert.True(t, sec.Destroyed())
}
