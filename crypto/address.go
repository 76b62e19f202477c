package crypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix is the human-readable part used for stablenet account
// addresses.
const AddressPrefix = "stn"

// AddressLength is the raw byte length of an account identity.
const AddressLength = 20

// Address represents a 20-byte stablenet account identity.
type Address struct {
	bytes []byte
}

// ZeroAddress is the null identity. Minting emits transfer events from it and
// the ledger rejects it as a credit target.
var ZeroAddress = Address{bytes: make([]byte, AddressLength)}

// NewAddress wraps the supplied raw bytes as an address.
func NewAddress(b []byte) Address {
	if len(b) != AddressLength {
		panic("address must be 20 bytes long")
	}
	return Address{bytes: append([]byte(nil), b...)}
}

// String renders the address as bech32 with the stn prefix.
func (a Address) String() string {
	raw := a.bytes
	if len(raw) != AddressLength {
		raw = make([]byte, AddressLength)
	}
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(AddressPrefix, conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// Bytes returns a defensive copy of the raw address bytes.
func (a Address) Bytes() []byte {
	if len(a.bytes) != AddressLength {
		return make([]byte, AddressLength)
	}
	return append([]byte(nil), a.bytes...)
}

// Fixed returns the raw address as a fixed-size array, suitable for map keys
// and stored records.
func (a Address) Fixed() [20]byte {
	var out [20]byte
	if len(a.bytes) == AddressLength {
		copy(out[:], a.bytes)
	}
	return out
}

// IsZero reports whether the address is the null identity.
func (a Address) IsZero() bool {
	if len(a.bytes) != AddressLength {
		return true
	}
	return bytes.Equal(a.bytes, ZeroAddress.bytes)
}

// Equal reports whether two addresses carry the same raw bytes.
func (a Address) Equal(other Address) bool {
	return a.Fixed() == other.Fixed()
}

// DecodeAddress parses a bech32 encoded stablenet address.
func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if prefix != AddressPrefix {
		return Address{}, fmt.Errorf("unexpected address prefix %q", prefix)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	if len(conv) != AddressLength {
		return Address{}, fmt.Errorf("address payload must be %d bytes, got %d", AddressLength, len(conv))
	}
	return Address{bytes: conv}, nil
}

// FromFixed wraps a fixed-size array as an address.
func FromFixed(raw [20]byte) Address {
	return Address{bytes: append([]byte(nil), raw[:]...)}
}
