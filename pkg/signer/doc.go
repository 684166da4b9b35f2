// Package signer implements challenge signing and signature verification
// for the authentication handshake.
//
// Signing uses the standard Ethereum personal-message prefix (EIP-191) over
// secp256k1 and produces 0x-prefixed hex signatures with V in {27, 28}.
// Verification recovers the signer address and compares it against an
// expected address, accepting both raw and wallet-style recovery ids.
package signer
