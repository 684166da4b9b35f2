package signer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/teneolabs/teneo-go/pkg/secret"
)

// SignatureLength is the byte length of an Ethereum [R || S || V] signature.
const SignatureLength = 65

// Oracle derives the client address once at construction and signs UTF-8
// messages with the Ethereum personal-message prefix. The private scalar is
// only unsealed inside sign operations.
type Oracle struct {
	sec     *secret.Secret
	address common.Address
}

// New builds an Oracle from a sealed secret, deriving the public address.
func New(sec *secret.Secret) (*Oracle, error) {
	if sec == nil {
		return nil, ErrNilSecret
	}

	var address common.Address
	err := sec.Use(func(scalar []byte) error {
		key, err := crypto.ToECDSA(scalar)
		if err != nil {
			return errors.Join(ErrInvalidKey, err)
		}
		defer zeroKey(key)

		address = crypto.PubkeyToAddress(key.PublicKey)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &Oracle{sec: sec, address: address}, nil
}

// Address returns the secp256k1 address derived from the secret.
func (o *Oracle) Address() common.Address {
	return o.address
}

// SignText signs msg over the standard Ethereum personal-message prefix and
// returns a 0x-prefixed hex signature with V in {27, 28}.
func (o *Oracle) SignText(msg string) (string, error) {
	digest := TextHash([]byte(msg))

	var sigHex string
	err := o.sec.Use(func(scalar []byte) error {
		key, err := crypto.ToECDSA(scalar)
		if err != nil {
			return errors.Join(ErrInvalidKey, err)
		}
		defer zeroKey(key)

		sig, err := crypto.Sign(digest, key)
		if err != nil {
			return errors.Join(ErrSignFailed, err)
		}

		// Wallet convention carries the recovery id as 27/28.
		sig[SignatureLength-1] += 27
		sigHex = hexutil.Encode(sig)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sigHex, nil
}

// VerifyText recovers the signer of msg from a 0x-prefixed hex signature and
// reports whether it matches the expected address. Both {0, 1} and {27, 28}
// recovery ids are accepted.
func VerifyText(msg, sigHex string, expected common.Address) bool {
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != SignatureLength {
		return false
	}

	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[SignatureLength-1] >= 27 {
		normalized[SignatureLength-1] -= 27
	}

	pub, err := crypto.SigToPub(TextHash([]byte(msg)), normalized)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == expected
}

// TextHash hashes data per EIP-191: keccak256("\x19Ethereum Signed
// Message:\n" + len(data) + data).
func TextHash(data []byte) []byte {
	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(prefixed))
}

// zeroKey clears the scalar held inside an in-flight private key.
func zeroKey(key *ecdsa.PrivateKey) {
	bits := key.D.Bits()
	for i := range bits {
		bits[i] = 0
	}
}
