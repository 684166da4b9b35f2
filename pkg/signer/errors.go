package signer

import "errors"

var (
	ErrNilSecret  = errors.New("signer requires a sealed secret")
	ErrInvalidKey = errors.New("invalid secp256k1 private key")
	ErrSignFailed = errors.New("signing failed")
)
