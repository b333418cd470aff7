package state

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"shelfledger/core/types"
	"shelfledger/native/market"
	"shelfledger/storage"
)

// Manager reads and writes marketplace records against a key-value store.
// Mutations accumulate in a pending overlay: Commit flushes everything as one
// atomic database batch, Discard drops the overlay. This is the
// multi-record atomic-commit layer that stands in for a transactional host
// ledger: callers run one lifecycle operation, then commit or discard.
type Manager struct {
	db      storage.Database
	pending map[string]pendingEntry
}

type pendingEntry struct {
	value  []byte
	delete bool
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string]pendingEntry)}
}

func (m *Manager) get(key []byte) ([]byte, error) {
	if entry, ok := m.pending[string(key)]; ok {
		if entry.delete {
			return nil, nil
		}
		return entry.value, nil
	}
	return m.db.Get(key)
}

func (m *Manager) put(key, value []byte) {
	m.pending[string(key)] = pendingEntry{value: value}
}

func (m *Manager) del(key []byte) {
	m.pending[string(key)] = pendingEntry{delete: true}
}

// Pending reports how many keys the overlay currently holds.
func (m *Manager) Pending() int { return len(m.pending) }

// Commit writes the pending overlay to the database as one atomic batch and
// clears it. Keys are ordered deterministically.
func (m *Manager) Commit() error {
	if len(m.pending) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m.pending))
	for k := range m.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := make([]storage.Mutation, 0, len(keys))
	for _, k := range keys {
		entry := m.pending[k]
		batch = append(batch, storage.Mutation{Key: []byte(k), Value: entry.value, Delete: entry.delete})
	}
	if err := m.db.Write(batch); err != nil {
		return err
	}
	m.pending = make(map[string]pendingEntry)
	return nil
}

// Discard drops the pending overlay without writing anything.
func (m *Manager) Discard() {
	m.pending = make(map[string]pendingEntry)
}

func (m *Manager) putRecord(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	m.put(key, encoded)
	return nil
}

// SlotPut stores a placement slot under its derived address.
func (m *Manager) SlotPut(slot *market.PlacementSlot) error {
	if slot == nil {
		return fmt.Errorf("state: nil slot")
	}
	return m.putRecord(slotKey(market.SlotAddress(slot.ID)), slot)
}

// SlotGet loads the placement slot stored at the given derived address.
func (m *Manager) SlotGet(addr [32]byte) (*market.PlacementSlot, bool) {
	data, err := m.get(slotKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	slot := new(market.PlacementSlot)
	if err := rlp.DecodeBytes(data, slot); err != nil {
		return nil, false
	}
	return slot, true
}

// ListingPut stores a product listing under its derived address.
func (m *Manager) ListingPut(listing *market.ProductListing) error {
	if listing == nil {
		return fmt.Errorf("state: nil listing")
	}
	if listing.Price == nil {
		listing = listing.Clone()
		listing.Price = big.NewInt(0)
	}
	return m.putRecord(listingKey(market.ListingAddress(listing.ID)), listing)
}

// ListingGet loads the product listing stored at the given derived address.
func (m *Manager) ListingGet(addr [32]byte) (*market.ProductListing, bool) {
	data, err := m.get(listingKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	listing := new(market.ProductListing)
	if err := rlp.DecodeBytes(data, listing); err != nil {
		return nil, false
	}
	return listing, true
}

// OraclePut stores an order oracle under its derived address.
func (m *Manager) OraclePut(oracle *market.OrderOracle) error {
	if oracle == nil {
		return fmt.Errorf("state: nil oracle")
	}
	return m.putRecord(oracleKey(market.OracleAddress(oracle.Asset)), oracle)
}

// OracleGet loads the order oracle stored at the given derived address.
func (m *Manager) OracleGet(addr [32]byte) (*market.OrderOracle, bool) {
	data, err := m.get(oracleKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	oracle := new(market.OrderOracle)
	if err := rlp.DecodeBytes(data, oracle); err != nil {
		return nil, false
	}
	return oracle, true
}

// OracleDelete removes the oracle record at the given derived address.
func (m *Manager) OracleDelete(addr [32]byte) error {
	m.del(oracleKey(addr))
	return nil
}

// EscrowPut stores an escrow record under its address.
func (m *Manager) EscrowPut(escrow *market.EscrowAccount) error {
	if escrow == nil {
		return fmt.Errorf("state: nil escrow")
	}
	return m.putRecord(escrowKey(escrow.Address), escrow)
}

// EscrowGet loads the escrow record stored at the given address.
func (m *Manager) EscrowGet(addr [32]byte) (*market.EscrowAccount, bool) {
	data, err := m.get(escrowKey(addr))
	if err != nil || len(data) == 0 {
		return nil, false
	}
	escrow := new(market.EscrowAccount)
	if err := rlp.DecodeBytes(data, escrow); err != nil {
		return nil, false
	}
	return escrow, true
}

// EscrowDelete removes the escrow record at the given address.
func (m *Manager) EscrowDelete(addr [32]byte) error {
	m.del(escrowKey(addr))
	return nil
}

// VaultBalance returns the custody balance held under a derived record
// address. Missing vaults read as zero.
func (m *Manager) VaultBalance(addr [32]byte) (*big.Int, error) {
	data, err := m.get(vaultKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(data), nil
}

// VaultCredit adds funds to the custody balance of a derived record address.
func (m *Manager) VaultCredit(addr [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative vault credit")
	}
	balance, err := m.VaultBalance(addr)
	if err != nil {
		return err
	}
	balance = balance.Add(balance, amount)
	m.put(vaultKey(addr), balance.Bytes())
	return nil
}

// VaultDebit removes funds from the custody balance of a derived record
// address. The balance never goes negative.
func (m *Manager) VaultDebit(addr [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("state: negative vault debit")
	}
	balance, err := m.VaultBalance(addr)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("state: insufficient vault balance")
	}
	balance = balance.Sub(balance, amount)
	if balance.Sign() == 0 {
		m.del(vaultKey(addr))
		return nil
	}
	m.put(vaultKey(addr), balance.Bytes())
	return nil
}

// GetAccount loads the account stored for a 20-byte actor address. Missing
// accounts return nil with no error.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, err := m.get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, err
	}
	return account, nil
}

// PutAccount stores the account for a 20-byte actor address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	if account.Balance == nil {
		account = account.Clone()
	}
	return m.putRecord(accountKey(addr), account)
}
