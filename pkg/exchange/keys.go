package exchange

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Pebble key schema. Prefix-based so balances, orders, and events can each
// be range-scanned on startup; numeric components are zero-padded (20
// digits) for lexicographic ordering.

const (
	prefixBalance = "bal:"  // bal:{token}:{owner} → int64
	prefixOrder   = "ord:"  // ord:{id} → Order JSON (status included)
	prefixEvent   = "evt:"  // evt:{seq} → Event JSON
	keyOrderCount = "meta:ordercount"
	keyEventSeq   = "meta:eventseq"
)

// balanceKey returns the key for a (token, owner) balance entry.
// Format: "bal:{token}:{owner}"
func balanceKey(tok, owner common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixBalance, tok.Hex(), owner.Hex()))
}

func balancePrefix() []byte {
	return []byte(prefixBalance)
}

// orderKey returns the key for an order id.
// Format: "ord:{id}" with the id zero-padded for ordered iteration.
func orderKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixOrder, id))
}

func orderPrefix() []byte {
	return []byte(prefixOrder)
}

// eventKey returns the key for an event sequence number.
// Format: "evt:{seq}" zero-padded so the log iterates in commit order.
func eventKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixEvent, seq))
}

func eventPrefix() []byte {
	return []byte(prefixEvent)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}

// balanceKeyParse extracts (token, owner) from a balance key.
func balanceKeyParse(key []byte) (tok, owner common.Address, err error) {
	// "bal:" + 42 hex chars + ":" + 42 hex chars
	want := len(prefixBalance) + 42 + 1 + 42
	if len(key) != want {
		return tok, owner, fmt.Errorf("invalid balance key length: %d", len(key))
	}
	tokHex := string(key[len(prefixBalance) : len(prefixBalance)+42])
	ownerHex := string(key[len(prefixBalance)+43:])
	if !common.IsHexAddress(tokHex) || !common.IsHexAddress(ownerHex) {
		return tok, owner, fmt.Errorf("invalid address in balance key: %s", key)
	}
	return common.HexToAddress(tokHex), common.HexToAddress(ownerHex), nil
}
