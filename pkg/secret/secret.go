package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/hkdf"
)

const (
	// ScalarSize is the required size of the secp256k1 private scalar.
	ScalarSize = 32

	// sealInfo provides HKDF domain separation for the in-memory sealing key.
	sealInfo = "teneo-go-secret-v1"
)

// Secret keeps a 32-byte signing scalar encrypted at rest in memory.
// The plaintext scalar exists only inside a Use callback and is zeroed
// before Use returns. Safe for concurrent use.
type Secret struct {
	mu         sync.Mutex
	sealKey    []byte // AES-256 key derived per instance, never reused across instances
	ciphertext []byte // nonce + sealed scalar + tag
	destroyed  bool
}

// New seals the given 32-byte scalar under a random per-instance key and
// zeroes the caller's copy. The ciphertext is the only long-lived
// representation of the scalar.
func New(scalar []byte) (*Secret, error) {
	if len(scalar) != ScalarSize {
		return nil, ErrInvalidScalar
	}

	master := make([]byte, 32)
	salt := make([]byte, 32)
	if _, err := rand.Read(master); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}

	sealKey, err := deriveSealKey(master, salt)
	clearBytes(master)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(sealKey)
	if err != nil {
		clearBytes(sealKey)
		return nil, errors.Join(ErrSealFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		clearBytes(sealKey)
		return nil, errors.Join(ErrSealFailed, err)
	}

	// Prepend nonce to ciphertext, same layout as stored secrets.
	ciphertext := aead.Seal(nonce, nonce, scalar, nil)
	clearBytes(scalar)

	return &Secret{sealKey: sealKey, ciphertext: ciphertext}, nil
}

// Use decrypts the scalar, invokes fn with the plaintext, and zeroes the
// plaintext before returning. The slice passed to fn must not be retained.
func (s *Secret) Use(fn func(scalar []byte) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return ErrDestroyed
	}

	aead, err := newAEAD(s.sealKey)
	if err != nil {
		return errors.Join(ErrOpenFailed, err)
	}

	nonceSize := aead.NonceSize()
	if len(s.ciphertext) < nonceSize {
		return ErrOpenFailed
	}

	nonce, sealed := s.ciphertext[:nonceSize], s.ciphertext[nonceSize:]
	scalar, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return errors.Join(ErrOpenFailed, err)
	}
	defer clearBytes(scalar)

	return fn(scalar)
}

// Destroy zeroes the sealing key and ciphertext. Subsequent Use calls
// return ErrDestroyed. Destroy is idempotent.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	clearBytes(s.sealKey)
	clearBytes(s.ciphertext)
	s.destroyed = true
}

// Destroyed reports whether the secret has been zeroed.
func (s *Secret) Destroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// deriveSealKey stretches the random master through HKDF-SHA256 so the raw
// entropy never doubles as the cipher key.
func deriveSealKey(master, salt []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, master, salt, []byte(sealInfo))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, errors.Join(ErrSealFailed, err)
	}
	return key, nil
}

// clearBytes zeroes a byte slice to shorten the lifetime of sensitive
// material in memory.
func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
