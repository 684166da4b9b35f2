package transport

import (
	"encoding/json"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/teneolabs/teneo-go/pkg/events"
	"github.com/teneolabs/teneo-go/pkg/protocol"
	"github.com/teneolabs/teneo-go/pkg/signer"
)

// VerifyConfig controls inbound signature verification. When enabled,
// frames of the types listed in RequireFor are checked against their
// canonical serialization before dispatch. In strict mode a failed or
// missing signature drops the frame; otherwise the event is emitted and
// dispatch continues.
type VerifyConfig struct {
	Enabled          bool
	TrustedAddresses []string
	RequireFor       []protocol.MessageType
	StrictMode       bool
}

func (c VerifyConfig) requires(t protocol.MessageType) bool {
	for _, required := range c.RequireFor {
		if required == t {
			return true
		}
	}
	return false
}

func (c VerifyConfig) trusted(address string) bool {
	for _, t := range c.TrustedAddresses {
		if strings.EqualFold(t, address) {
			return true
		}
	}
	return false
}

// verifyInbound runs signature verification for msg and reports whether
// dispatch should proceed.
func (s *Session) verifyInbound(msg *protocol.Message) bool {
	cfg := s.opts.Verification
	if !cfg.Enabled || !cfg.requires(msg.Type) {
		return true
	}

	if msg.Signature == "" {
		s.emitter.Emit(events.SignatureMissing, SignatureEvent{Type: msg.Type, ID: msg.ID})
		return !cfg.StrictMode
	}

	claimed := claimedAddress(msg)
	if !common.IsHexAddress(claimed) {
		return s.signatureFailed(msg, claimed, "no verifiable signer address")
	}
	if !cfg.trusted(claimed) {
		return s.signatureFailed(msg, claimed, "signer address is not trusted")
	}

	canonical, err := msg.CanonicalBytes()
	if err != nil {
		return s.signatureFailed(msg, claimed, err.Error())
	}
	if !signer.VerifyText(string(canonical), msg.Signature, common.HexToAddress(claimed)) {
		return s.signatureFailed(msg, claimed, "signature does not match")
	}

	s.emitter.Emit(events.SignatureVerified, SignatureEvent{Type: msg.Type, ID: msg.ID, Address: claimed})
	return true
}

func (s *Session) signatureFailed(msg *protocol.Message, address, reason string) bool {
	s.emitter.Emit(events.SignatureFailed, SignatureEvent{
		Type:    msg.Type,
		ID:      msg.ID,
		Address: address,
		Reason:  reason,
	})
	return !s.opts.Verification.StrictMode
}

// claimedAddress extracts the address a signature claims to be from: the
// data object's address field when present, the envelope from otherwise.
func claimedAddress(msg *protocol.Message) string {
	if len(msg.Data) > 0 {
		var data struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(msg.Data, &data); err == nil && data.Address != "" {
			return data.Address
		}
	}
	return msg.From
}
