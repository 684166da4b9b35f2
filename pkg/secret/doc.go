// Package secret wraps the client signing key so that it stays encrypted
// at rest in process memory.
//
// The 32-byte secp256k1 scalar is sealed with AES-256-GCM under a random
// per-instance key derived via HKDF. Plaintext copies exist only for the
// duration of a Use callback and are zeroed before it returns.
//
//	sec, err := secret.New(rawKey) // rawKey is zeroed by New
//	err = sec.Use(func(scalar []byte) error {
//	    // sign with scalar; do not retain the slice
//	    return nil
//	})
//	sec.Destroy()
package secret
