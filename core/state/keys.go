package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	slotPrefix    = []byte("market/slot/")
	listingPrefix = []byte("market/listing/")
	oraclePrefix  = []byte("market/oracle/")
	escrowPrefix  = []byte("market/escrow/")
	vaultPrefix   = []byte("market/vault/")
	accountPrefix = []byte("account/")
)

func prefixedKey(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return ethcrypto.Keccak256(buf)
}

func slotKey(addr [32]byte) []byte    { return prefixedKey(slotPrefix, addr[:]) }
func listingKey(addr [32]byte) []byte { return prefixedKey(listingPrefix, addr[:]) }
func oracleKey(addr [32]byte) []byte  { return prefixedKey(oraclePrefix, addr[:]) }
func escrowKey(addr [32]byte) []byte  { return prefixedKey(escrowPrefix, addr[:]) }
func vaultKey(addr [32]byte) []byte   { return prefixedKey(vaultPrefix, addr[:]) }
func accountKey(addr []byte) []byte   { return prefixedKey(accountPrefix, addr) }
