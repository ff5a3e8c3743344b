package multisig

import (
	"github.com/pandodao/mtg/mtgpack"
)

func buildIndexKey(prefix []byte, values ...any) []byte {
	enc := mtgpack.NewEncoder()
	if err := enc.EncodeValues(values...); err != nil {
		panic(err)
	}

	b := enc.Bytes()
	key := make([]byte, 0, len(prefix)+len(b))
	key = append(key, prefix...)
	return append(key, b...)
}

// addressPrefix scopes prefix to the given addresses, e.g. r:<wallet>.
func addressPrefix(prefix []byte, addrs ...Address) []byte {
	key := make([]byte, 0, len(prefix)+len(addrs)*AddressLength)
	key = append(key, prefix...)
	for _, addr := range addrs {
		key = append(key, addr[:]...)
	}

	return key
}
