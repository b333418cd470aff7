package core

import (
	"math/big"
	"sync"

	"shelfledger/core/events"
	"shelfledger/core/state"
	"shelfledger/core/types"
	"shelfledger/native/market"
	"shelfledger/storage"
)

// Node hosts the market engine over persistent storage. Every operation runs
// against the state manager's pending overlay and either commits as one
// atomic batch or discards everything, including buffered events. Events
// reach subscribers only after their state transition is durable.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	state   *state.Manager
	engine  *market.Engine
	emitter events.Emitter
	buffer  []events.Event
}

// NewNode wires a node over the given database and asset program binding.
func NewNode(db storage.Database, assets market.AssetProgram) *Node {
	manager := state.NewManager(db)
	engine := market.NewEngine()
	engine.SetState(manager)
	engine.SetAssets(assets)
	n := &Node{
		db:      db,
		state:   manager,
		engine:  engine,
		emitter: events.NoopEmitter{},
	}
	engine.SetEmitter(nodeEmitter{node: n})
	return n
}

// SetEmitter configures the downstream emitter that receives events after
// commit. Passing nil resets it to a no-op implementation.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

type nodeEmitter struct {
	node *Node
}

func (e nodeEmitter) Emit(evt events.Event) {
	if e.node == nil || evt == nil {
		return
	}
	e.node.buffer = append(e.node.buffer, evt)
}

// withCommit runs one engine operation as a transaction. The caller must hold
// the node mutex.
func (n *Node) withCommit(op func() error) error {
	n.buffer = n.buffer[:0]
	if err := op(); err != nil {
		n.state.Discard()
		n.buffer = n.buffer[:0]
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.state.Discard()
		n.buffer = n.buffer[:0]
		return err
	}
	for _, evt := range n.buffer {
		n.emitter.Emit(evt)
	}
	n.buffer = n.buffer[:0]
	return nil
}

// RegisterSlot creates a placement slot.
func (n *Node) RegisterSlot(owner [20]byte, id [32]byte, placement market.PlacementType, category market.ProductCategory, manager [20]byte) (*market.PlacementSlot, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var slot *market.PlacementSlot
	err := n.withCommit(func() error {
		var err error
		slot, err = n.engine.RegisterSlot(owner, id, placement, category, manager)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// UpdateSlot replaces a slot's descriptive fields.
func (n *Node) UpdateSlot(caller [20]byte, id [32]byte, placement market.PlacementType, category market.ProductCategory, manager [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error {
		return n.engine.UpdateSlot(caller, id, placement, category, manager)
	})
}

// ActivateSlot turns a slot on.
func (n *Node) ActivateSlot(caller [20]byte, id [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error { return n.engine.ActivateSlot(caller, id) })
}

// DeactivateSlot turns a slot off.
func (n *Node) DeactivateSlot(caller [20]byte, id [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error { return n.engine.DeactivateSlot(caller, id) })
}

// RegisterListing creates a product listing.
func (n *Node) RegisterListing(owner [20]byte, id [32]byte, origin market.Origin, placement market.PlacementType, category market.ProductCategory, manager [20]byte, orderManager market.Origin) (*market.ProductListing, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var listing *market.ProductListing
	err := n.withCommit(func() error {
		var err error
		listing, err = n.engine.RegisterListing(owner, id, origin, placement, category, manager, orderManager)
		return err
	})
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// UpdateListing replaces a listing's descriptive fields and optional price.
func (n *Node) UpdateListing(caller [20]byte, id [32]byte, placement market.PlacementType, category market.ProductCategory, manager [20]byte, price *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error {
		return n.engine.UpdateListing(caller, id, placement, category, manager, price)
	})
}

// ActivateListing turns a listing on.
func (n *Node) ActivateListing(caller [20]byte, id [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error { return n.engine.ActivateListing(caller, id) })
}

// DeactivateListing turns a listing off.
func (n *Node) DeactivateListing(caller [20]byte, id [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error { return n.engine.DeactivateListing(caller, id) })
}

// PlaceProducts stocks a listing with an asset batch and mounts it on a slot.
func (n *Node) PlaceProducts(owner [20]byte, listingID, slotID, collection [32]byte, assets [][32]byte, price *big.Int) (*market.StockingReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var receipt *market.StockingReceipt
	err := n.withCommit(func() error {
		var err error
		receipt, err = n.engine.PlaceProducts(owner, listingID, slotID, collection, assets, price)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// MakePurchase buys units against an asset, funding the listing escrow.
func (n *Node) MakePurchase(buyer [20]byte, listingID, slotID, asset [32]byte, quantity uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error {
		return n.engine.MakePurchase(buyer, listingID, slotID, asset, quantity)
	})
}

// UpdateOrderStatus advances an asset's order oracle to a new status.
func (n *Node) UpdateOrderStatus(caller [20]byte, listingID, asset [32]byte, status market.OrderStatus) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error {
		return n.engine.UpdateOrderStatus(caller, listingID, asset, status)
	})
}

// CompleteOrder settles one completed unit out of escrow to the seller.
func (n *Node) CompleteOrder(caller [20]byte, listingID, asset [32]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var payout *big.Int
	err := n.withCommit(func() error {
		var err error
		payout, err = n.engine.CompleteOrder(caller, listingID, asset)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// RemoveProducts unbinds the full asset batch and sweeps the escrow.
func (n *Node) RemoveProducts(owner [20]byte, listingID, slotID, escrow [32]byte, assets [][32]byte) (*market.RemovalReceipt, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var receipt *market.RemovalReceipt
	err := n.withCommit(func() error {
		var err error
		receipt, err = n.engine.RemoveProducts(owner, listingID, slotID, escrow, assets)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// CloseOracle reclaims an order oracle's storage deposit.
func (n *Node) CloseOracle(caller [20]byte, listingID, asset [32]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.withCommit(func() error {
		return n.engine.CloseOracle(caller, listingID, asset)
	})
}

// Credit mints funds into an account balance. Dev-mode faucet used by the
// local daemon; a production deployment funds accounts from its ledger.
func (n *Node) Credit(addr [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return n.withCommit(func() error {
		acc, err := n.state.GetAccount(addr[:])
		if err != nil {
			return err
		}
		if acc == nil {
			acc = &types.Account{Balance: big.NewInt(0)}
		}
		if acc.Balance == nil {
			acc.Balance = big.NewInt(0)
		}
		acc.Balance = new(big.Int).Add(acc.Balance, amount)
		return n.state.PutAccount(addr[:], acc)
	})
}

// Slot returns the slot registered under an identity, if present.
func (n *Node) Slot(id [32]byte) (*market.PlacementSlot, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.SlotGet(market.SlotAddress(id))
}

// Listing returns the listing registered under an identity, if present.
func (n *Node) Listing(id [32]byte) (*market.ProductListing, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ListingGet(market.ListingAddress(id))
}

// Oracle returns the order oracle tracking an asset, if present.
func (n *Node) Oracle(asset [32]byte) (*market.OrderOracle, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.OracleGet(market.OracleAddress(asset))
}

// EscrowBalance returns the custody balance held under an escrow address.
func (n *Node) EscrowBalance(addr [32]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.VaultBalance(addr)
}

// Balance returns an account's spendable balance. Missing accounts read as
// zero.
func (n *Node) Balance(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if acc == nil || acc.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(acc.Balance), nil
}
