package multisig

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/asaskevich/govalidator"
	"golang.org/x/crypto/sha3"
)

const AddressLength = 20

// Address identifies an account, a wallet or a token.
type Address [AddressLength]byte

var ZeroAddress Address

func HexToAddress(s string) (Address, error) {
	var addr Address
	if len(s) != 2+2*AddressLength || !strings.HasPrefix(s, "0x") || !govalidator.IsHexadecimal(s[2:]) {
		return addr, fmt.Errorf("invalid address %q", s)
	}

	b, err := hex.DecodeString(s[2:])
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}

	copy(addr[:], b)
	return addr, nil
}

func MustHexToAddress(s string) Address {
	addr, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}

	return addr
}

func (a Address) IsZero() bool {
	return a == ZeroAddress
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	addr, err := HexToAddress(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}

	*a = addr
	return nil
}

func compareAddress(a, b Address) int {
	return bytes.Compare(a[:], b[:])
}

// deriveAddress computes the address of the index-th wallet created by the
// registry at from. The same inputs always produce the same address.
func deriveAddress(from Address, index uint64) Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(from[:])
	_ = binary.Write(h, binary.BigEndian, index)

	var addr Address
	copy(addr[:], h.Sum(nil)[12:])
	return addr
}
