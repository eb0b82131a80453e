package crypto

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// Canonical request hashing for signed API calls. A caller proves control of
// its address by signing the Keccak256 digest of a versioned, pipe-delimited
// request string. The format is deliberately flat and printable so wallets
// and curl scripts can reproduce it byte for byte.
//
// Examples:
//   custodex/1|deposit|0xToken|100|0xCaller
//   custodex/1|cancel|7|0xCaller

const requestDomain = "custodex/1"

// RequestHash returns the 32-byte digest of a canonical request string built
// from the action name and its fields, in declaration order.
func RequestHash(action string, fields ...string) []byte {
	parts := append([]string{requestDomain, action}, fields...)
	return crypto.Keccak256([]byte(strings.Join(parts, "|")))
}

// SignRequest signs a canonical request with the given signer.
func SignRequest(s *Signer, action string, fields ...string) ([]byte, error) {
	sig, err := s.Sign(RequestHash(action, fields...))
	if err != nil {
		return nil, fmt.Errorf("failed to sign %s request: %w", action, err)
	}
	return sig, nil
}
