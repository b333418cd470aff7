package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix is the human-readable part used when rendering actor
// addresses.
const AddressPrefix = "shelf"

// Address represents a 20-byte actor address (owner, manager, buyer).
type Address struct {
	bytes []byte
}

// NewAddress wraps a raw 20-byte value.
func NewAddress(b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("crypto: address must be 20 bytes, got %d", len(b))
	}
	buf := make([]byte, 20)
	copy(buf, b)
	return Address{bytes: buf}, nil
}

// Bytes returns the raw 20-byte value.
func (a Address) Bytes() []byte { return a.bytes }

// Array returns the address as a fixed-size value usable as a map key.
func (a Address) Array() [20]byte {
	var out [20]byte
	copy(out[:], a.bytes)
	return out
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32 actor address.
func DecodeAddress(addr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addr)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("crypto: unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("crypto: invalid address payload: %w", err)
	}
	return NewAddress(conv)
}

// Record namespace tags. Every stored aggregate lives at an address derived
// from its tag and parent identity, so any component can recompute the
// expected location without a directory service.
const (
	TagSlot    = "slot"
	TagListing = "listing"
	TagEscrow  = "escrow"
	TagOracle  = "oracle"
)

// DeriveRecordAddress computes the storage address for a record as
// keccak256(tag || parent). The function is pure and deterministic.
func DeriveRecordAddress(tag string, parent [32]byte) [32]byte {
	var out [32]byte
	sum := ethcrypto.Keccak256([]byte(tag), parent[:])
	copy(out[:], sum)
	return out
}
