package market

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"shelfledger/core/events"
	"shelfledger/core/types"
	"shelfledger/crypto"
)

// Stocking batch bounds. The upper bound caps the per-transaction
// permission-grant cost.
const (
	MinBatchSize = 1
	MaxBatchSize = 20
)

// Storage deposits debited from the owner when derived records are created
// and refunded when the records close.
var (
	EscrowMinimumReserve = big.NewInt(1_000_000)
	OracleStorageDeposit = big.NewInt(250_000)
)

type engineState interface {
	SlotGet(addr [32]byte) (*PlacementSlot, bool)
	SlotPut(*PlacementSlot) error
	ListingGet(addr [32]byte) (*ProductListing, bool)
	ListingPut(*ProductListing) error
	OracleGet(addr [32]byte) (*OrderOracle, bool)
	OraclePut(*OrderOracle) error
	OracleDelete(addr [32]byte) error
	EscrowGet(addr [32]byte) (*EscrowAccount, bool)
	EscrowPut(*EscrowAccount) error
	EscrowDelete(addr [32]byte) error
	VaultBalance(addr [32]byte) (*big.Int, error)
	VaultCredit(addr [32]byte, amount *big.Int) error
	VaultDebit(addr [32]byte, amount *big.Int) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine wires the placement-marketplace lifecycle logic with external state,
// the asset-permission program and event emission. Every exported operation
// is one ledger transaction: the caller is expected to commit state on
// success and discard it on error, which is what keeps the multi-record
// mutations all-or-nothing.
type Engine struct {
	state   engineState
	assets  AssetProgram
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine creates a market engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAssets configures the external asset-permission program binding.
func (e *Engine) SetAssets(assets AssetProgram) { e.assets = assets }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	if event.Attributes == nil {
		event.Attributes = make(map[string]string)
	}
	event.Attributes["ts"] = strconv.FormatInt(e.nowFn(), 10)
	e.emitter.Emit(marketEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) readyWithAssets() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.assets == nil {
		return errNilAssets
	}
	return nil
}

// SlotAddress returns the derived storage address for a slot identity.
func SlotAddress(id [32]byte) [32]byte {
	return crypto.DeriveRecordAddress(crypto.TagSlot, id)
}

// ListingAddress returns the derived storage address for a listing identity.
func ListingAddress(id [32]byte) [32]byte {
	return crypto.DeriveRecordAddress(crypto.TagListing, id)
}

// EscrowAddress returns the derived custody address for a listing identity.
func EscrowAddress(listingID [32]byte) [32]byte {
	return crypto.DeriveRecordAddress(crypto.TagEscrow, listingID)
}

// OracleAddress returns the derived oracle address for an asset identity.
func OracleAddress(asset [32]byte) [32]byte {
	return crypto.DeriveRecordAddress(crypto.TagOracle, asset)
}

func (e *Engine) loadSlot(id [32]byte) (*PlacementSlot, error) {
	slot, ok := e.state.SlotGet(SlotAddress(id))
	if !ok || slot == nil {
		return nil, ErrSlotNotFound
	}
	return slot, nil
}

func (e *Engine) loadListing(id [32]byte) (*ProductListing, error) {
	listing, ok := e.state.ListingGet(ListingAddress(id))
	if !ok || listing == nil {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

func (e *Engine) loadOracle(asset [32]byte) (*OrderOracle, error) {
	oracle, ok := e.state.OracleGet(OracleAddress(asset))
	if !ok || oracle == nil {
		return nil, ErrOracleNotFound
	}
	return oracle, nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func (e *Engine) creditAccount(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	acc.Balance = new(big.Int).Add(acc.Balance, amount)
	return e.state.PutAccount(addr[:], acc)
}

func (e *Engine) debitAccount(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	acc, err := e.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	acc = ensureAccount(acc)
	if acc.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amount)
	return e.state.PutAccount(addr[:], acc)
}

// RegisterSlot creates a placement slot with an owner-chosen identity. The
// slot starts deactivated with no bound listing.
func (e *Engine) RegisterSlot(owner [20]byte, id [32]byte, placement PlacementType, category ProductCategory, manager [20]byte) (*PlacementSlot, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !placement.Valid() || !category.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, ok := e.state.SlotGet(SlotAddress(id)); ok {
		return nil, ErrSlotExists
	}
	slot := &PlacementSlot{
		ID:              id,
		Owner:           owner,
		Manager:         manager,
		PlacementType:   placement,
		ProductCategory: category,
		IsActive:        false,
	}
	if err := e.state.SlotPut(slot); err != nil {
		return nil, err
	}
	e.emit(NewSlotRegisteredEvent(slot))
	return slot.Clone(), nil
}

// UpdateSlot replaces the slot's descriptive fields. Owner-authorized.
func (e *Engine) UpdateSlot(caller [20]byte, id [32]byte, placement PlacementType, category ProductCategory, manager [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !placement.Valid() || !category.Valid() {
		return ErrInvalidStatus
	}
	slot, err := e.loadSlot(id)
	if err != nil {
		return err
	}
	if caller != slot.Owner {
		return ErrUnauthorized
	}
	slot.PlacementType = placement
	slot.ProductCategory = category
	slot.Manager = manager
	if err := e.state.SlotPut(slot); err != nil {
		return err
	}
	e.emit(NewSlotUpdatedEvent(slot))
	return nil
}

func (e *Engine) setSlotActive(caller [20]byte, id [32]byte, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	slot, err := e.loadSlot(id)
	if err != nil {
		return err
	}
	if caller != slot.Owner {
		return ErrUnauthorized
	}
	slot.IsActive = active
	if err := e.state.SlotPut(slot); err != nil {
		return err
	}
	e.emit(NewSlotActivationEvent(slot))
	return nil
}

// ActivateSlot flips the slot's activation flag on. Owner-authorized.
func (e *Engine) ActivateSlot(caller [20]byte, id [32]byte) error {
	return e.setSlotActive(caller, id, true)
}

// DeactivateSlot flips the slot's activation flag off. Owner-authorized.
func (e *Engine) DeactivateSlot(caller [20]byte, id [32]byte) error {
	return e.setSlotActive(caller, id, false)
}

// RegisterListing creates a product listing with an owner-chosen identity.
// The listing starts deactivated, unstocked and unbound.
func (e *Engine) RegisterListing(owner [20]byte, id [32]byte, origin Origin, placement PlacementType, category ProductCategory, manager [20]byte, orderManager Origin) (*ProductListing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if !origin.Valid() || !orderManager.Valid() || !placement.Valid() || !category.Valid() {
		return nil, ErrInvalidStatus
	}
	if _, ok := e.state.ListingGet(ListingAddress(id)); ok {
		return nil, ErrListingExists
	}
	listing := &ProductListing{
		ID:              id,
		Origin:          origin,
		Owner:           owner,
		Manager:         manager,
		PlacementType:   placement,
		ProductCategory: category,
		OrderManager:    orderManager,
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingRegisteredEvent(listing))
	return listing.Clone(), nil
}

// UpdateListing replaces the listing's descriptive fields and, when a price
// is supplied, records it. Owner-authorized.
func (e *Engine) UpdateListing(caller [20]byte, id [32]byte, placement PlacementType, category ProductCategory, manager [20]byte, price *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !placement.Valid() || !category.Valid() {
		return ErrInvalidStatus
	}
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if caller != listing.Owner {
		return ErrUnauthorized
	}
	if price != nil {
		if price.Sign() <= 0 {
			return ErrPriceNotSet
		}
		listing.Price = new(big.Int).Set(price)
	}
	listing.PlacementType = placement
	listing.ProductCategory = category
	listing.Manager = manager
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewListingUpdatedEvent(listing))
	return nil
}

func (e *Engine) setListingActive(caller [20]byte, id [32]byte, active bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(id)
	if err != nil {
		return err
	}
	if caller != listing.Owner {
		return ErrUnauthorized
	}
	listing.IsActive = active
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}
	e.emit(NewListingActivationEvent(listing))
	return nil
}

// ActivateListing flips the listing's activation flag on. Owner-authorized.
func (e *Engine) ActivateListing(caller [20]byte, id [32]byte) error {
	return e.setListingActive(caller, id, true)
}

// DeactivateListing flips the listing's activation flag off. Owner-authorized.
func (e *Engine) DeactivateListing(caller [20]byte, id [32]byte) error {
	return e.setListingActive(caller, id, false)
}

// StockingReceipt summarises a completed stocking operation.
type StockingReceipt struct {
	Listing [32]byte
	Slot    [32]byte
	Escrow  [32]byte
	Stocked uint64
	Oracles [][32]byte
}

// PlaceProducts binds a batch of asset units into a listing and mounts the
// listing on a slot. The listing must be empty: a listing that has sold units
// keeps its sold counter and can no longer be restocked. Per unit the owner's
// freeze delegate is frozen, the listing gains a transfer delegate and an
// order oracle is registered as the asset's transfer gate.
func (e *Engine) PlaceProducts(owner [20]byte, listingID, slotID, collection [32]byte, assets [][32]byte, price *big.Int) (*StockingReceipt, error) {
	if err := e.readyWithAssets(); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	slot, err := e.loadSlot(slotID)
	if err != nil {
		return nil, err
	}
	if owner != listing.Owner || owner != slot.Owner {
		return nil, ErrUnauthorized
	}
	if !listing.IsActive {
		return nil, ErrListingDeactivated
	}
	if !slot.IsActive {
		return nil, ErrSlotDeactivated
	}
	if listing.InStock != 0 || listing.Sold != 0 {
		return nil, ErrListingNotEmpty
	}
	if slot.Occupied() {
		return nil, ErrSlotOccupied
	}
	if listing.Slot != ([32]byte{}) {
		return nil, ErrListingBound
	}
	if len(assets) < MinBatchSize || len(assets) > MaxBatchSize {
		return nil, ErrInvalidBatch
	}
	minted, err := e.assets.MintedCount(collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	if uint64(len(assets)) != minted {
		return nil, ErrBatchMismatch
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrPriceNotSet
	}

	escrowAddr := EscrowAddress(listingID)
	if err := e.debitAccount(owner, EscrowMinimumReserve); err != nil {
		return nil, err
	}
	if err := e.state.VaultCredit(escrowAddr, EscrowMinimumReserve); err != nil {
		return nil, err
	}
	if err := e.state.EscrowPut(&EscrowAccount{Address: escrowAddr, Listing: listingID, Nonce: 1}); err != nil {
		return nil, err
	}

	listingAddr := ListingAddress(listingID)
	oracles := make([][32]byte, 0, len(assets))
	for _, asset := range assets {
		assetCollection, err := e.assets.AssetCollection(asset)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		if assetCollection != collection {
			return nil, ErrProductMismatch
		}
		if err := e.assets.GrantFreezeDelegate(asset, listingAddr, true); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		if err := e.assets.GrantTransferDelegate(asset, listingAddr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		oracleAddr := OracleAddress(asset)
		if _, ok := e.state.OracleGet(oracleAddr); ok {
			return nil, ErrOracleExists
		}
		if err := e.debitAccount(owner, OracleStorageDeposit); err != nil {
			return nil, err
		}
		if err := e.state.VaultCredit(oracleAddr, OracleStorageDeposit); err != nil {
			return nil, err
		}
		oracle := &OrderOracle{
			Asset:        asset,
			OrderStatus:  OrderPlaced,
			OrderManager: listing.OrderManager,
			Validation:   DefaultValidation(),
			Bump:         1,
		}
		if err := e.state.OraclePut(oracle); err != nil {
			return nil, err
		}
		if err := e.assets.InstallOracleAdapter(asset, oracleAddr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		listing.InStock++
		oracles = append(oracles, oracleAddr)
	}

	listing.Slot = slot.ID
	listing.Escrow = escrowAddr
	listing.Collection = collection
	listing.Price = new(big.Int).Set(price)
	slot.Product = listing.ID
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.state.SlotPut(slot); err != nil {
		return nil, err
	}
	e.emit(NewListingStockedEvent(listing, uint64(len(assets))))
	return &StockingReceipt{
		Listing: listing.ID,
		Slot:    slot.ID,
		Escrow:  escrowAddr,
		Stocked: uint64(len(assets)),
		Oracles: oracles,
	}, nil
}

// MakePurchase moves buyer funds into escrow and advances the target asset's
// oracle out of the awaiting-purchase state. An insufficient buyer balance
// aborts the whole operation before any stock or oracle mutation. The
// awaiting-purchase validation vector acts as a single-use token: a second
// purchase against the same asset fails with ErrOracleConflict.
func (e *Engine) MakePurchase(buyer [20]byte, listingID, slotID, asset [32]byte, quantity uint64) error {
	if err := e.readyWithAssets(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	slot, err := e.loadSlot(slotID)
	if err != nil {
		return err
	}
	if slot.Product != listing.ID {
		return ErrProductMismatch
	}
	if !listing.IsActive {
		return ErrListingDeactivated
	}
	if !slot.IsActive {
		return ErrSlotDeactivated
	}
	assetCollection, err := e.assets.AssetCollection(asset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	if assetCollection != listing.Collection {
		return ErrProductMismatch
	}
	oracle, err := e.loadOracle(asset)
	if err != nil {
		return err
	}
	if oracle.OrderStatus != OrderPlaced {
		return ErrOrderNotPlaced
	}
	if quantity == 0 {
		return ErrInvalidQuantity
	}
	if listing.InStock < quantity {
		return ErrOutOfStock
	}
	if !listing.HasPrice() {
		return ErrPriceNotSet
	}
	if oracle.Validation != DefaultValidation() {
		return ErrOracleConflict
	}
	if listing.Escrow == ([32]byte{}) {
		return ErrEscrowNotFound
	}

	amount := new(big.Int).Mul(listing.Price, new(big.Int).SetUint64(quantity))
	if err := e.debitAccount(buyer, amount); err != nil {
		return err
	}
	if err := e.state.VaultCredit(listing.Escrow, amount); err != nil {
		return err
	}

	listing.InStock -= quantity
	listing.Sold += quantity
	if err := e.state.ListingPut(listing); err != nil {
		return err
	}

	oracle.OrderStatus = OrderPending
	oracle.Validation = purchaseValidation()
	if err := e.state.OraclePut(oracle); err != nil {
		return err
	}
	if err := e.assets.UpdateAttribute(asset, "Order Status", "Confirmed"); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	e.emit(NewPurchaseEvent(listing, asset, buyer, quantity, amount))
	return nil
}

// UpdateOrderStatus moves an asset's order oracle to the caller-chosen
// status. The validation vector is recomputed from the fixed status table and
// is never settable independently. Authorized for the listing owner or
// manager.
func (e *Engine) UpdateOrderStatus(caller [20]byte, listingID, asset [32]byte, status OrderStatus) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	if caller != listing.Owner && caller != listing.Manager {
		return ErrUnauthorized
	}
	oracle, err := e.loadOracle(asset)
	if err != nil {
		return err
	}
	vector, err := ValidationForStatus(status)
	if err != nil {
		return err
	}
	oracle.OrderStatus = status
	oracle.Validation = vector
	if err := e.state.OraclePut(oracle); err != nil {
		return err
	}
	e.emit(NewOrderStatusEvent(listing, asset, status))
	return nil
}

// CompleteOrder pays the listing price out of escrow to the seller for one
// completed unit. The escrow record stays open so further completed units can
// settle against it. The caller must be the listing owner and must own the
// asset per the external asset program.
func (e *Engine) CompleteOrder(caller [20]byte, listingID, asset [32]byte) (*big.Int, error) {
	if err := e.readyWithAssets(); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	if caller != listing.Owner {
		return nil, ErrUnauthorized
	}
	assetOwner, err := e.assets.AssetOwner(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	if assetOwner != caller {
		return nil, ErrUnauthorized
	}
	oracle, err := e.loadOracle(asset)
	if err != nil {
		return nil, err
	}
	if oracle.OrderStatus != OrderCompleted {
		return nil, ErrOrderNotCompleted
	}
	if !listing.HasPrice() {
		return nil, ErrPriceNotSet
	}
	if listing.Escrow == ([32]byte{}) {
		return nil, ErrEscrowNotFound
	}
	balance, err := e.state.VaultBalance(listing.Escrow)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(listing.Price) < 0 {
		return nil, ErrInsufficientBalance
	}
	if err := e.state.VaultDebit(listing.Escrow, listing.Price); err != nil {
		return nil, err
	}
	if err := e.creditAccount(listing.Owner, listing.Price); err != nil {
		return nil, err
	}
	payout := new(big.Int).Set(listing.Price)
	e.emit(NewOrderCompletedEvent(listing, asset, payout))
	return payout, nil
}

// RemovalReceipt summarises a completed removal operation.
type RemovalReceipt struct {
	Removed       uint64
	Swept         *big.Int
	ReserveRefund *big.Int
}

// RemoveProducts unbinds the full asset batch from a listing, reclaims every
// permission grant and oracle hook, sweeps the escrow above its minimum
// reserve to the owner and closes the escrow record. Any asset still
// mid-fulfillment blocks the whole batch.
func (e *Engine) RemoveProducts(owner [20]byte, listingID, slotID, escrowAddr [32]byte, assets [][32]byte) (*RemovalReceipt, error) {
	if err := e.readyWithAssets(); err != nil {
		return nil, err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return nil, err
	}
	slot, err := e.loadSlot(slotID)
	if err != nil {
		return nil, err
	}
	if owner != listing.Owner || owner != slot.Owner {
		return nil, ErrUnauthorized
	}
	if !listing.IsActive {
		return nil, ErrListingDeactivated
	}
	if !slot.IsActive {
		return nil, ErrSlotDeactivated
	}
	if listing.Escrow == ([32]byte{}) || listing.Escrow != escrowAddr {
		return nil, ErrEscrowMismatch
	}
	if _, ok := e.state.EscrowGet(escrowAddr); !ok {
		return nil, ErrEscrowNotFound
	}
	if slot.Product != listing.ID {
		return nil, ErrProductMismatch
	}
	if len(assets) < MinBatchSize || len(assets) > MaxBatchSize {
		return nil, ErrInvalidBatch
	}
	minted, err := e.assets.MintedCount(listing.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	if uint64(len(assets)) != minted {
		return nil, ErrBatchMismatch
	}
	for _, asset := range assets {
		oracle, err := e.loadOracle(asset)
		if err != nil {
			return nil, err
		}
		if !oracle.OrderStatus.Removable() {
			return nil, ErrOrdersInProgress
		}
	}

	listingAddr := ListingAddress(listingID)
	for _, asset := range assets {
		if err := e.assets.SetFrozen(asset, listingAddr, false); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		if err := e.assets.RevokeFreezeDelegate(asset); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		if err := e.assets.RevokeTransferDelegate(asset); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		if err := e.assets.RemoveOracleAdapter(asset); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
		}
		// Units purchased out of stock were already decremented; the
		// counter never goes negative.
		if listing.InStock > 0 {
			listing.InStock--
		}
	}

	balance, err := e.state.VaultBalance(escrowAddr)
	if err != nil {
		return nil, err
	}
	swept := big.NewInt(0)
	if balance.Cmp(EscrowMinimumReserve) > 0 {
		swept = new(big.Int).Sub(balance, EscrowMinimumReserve)
		if err := e.state.VaultDebit(escrowAddr, swept); err != nil {
			return nil, err
		}
		if err := e.creditAccount(owner, swept); err != nil {
			return nil, err
		}
	}
	refund, err := e.state.VaultBalance(escrowAddr)
	if err != nil {
		return nil, err
	}
	if refund.Sign() > 0 {
		if err := e.state.VaultDebit(escrowAddr, refund); err != nil {
			return nil, err
		}
		if err := e.creditAccount(owner, refund); err != nil {
			return nil, err
		}
	}
	if err := e.state.EscrowDelete(escrowAddr); err != nil {
		return nil, err
	}

	listing.Slot = [32]byte{}
	listing.Escrow = [32]byte{}
	slot.Product = [32]byte{}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.state.SlotPut(slot); err != nil {
		return nil, err
	}
	e.emit(NewListingRemovedEvent(listing, uint64(len(assets)), swept))
	return &RemovalReceipt{
		Removed:       uint64(len(assets)),
		Swept:         swept,
		ReserveRefund: refund,
	}, nil
}

// CloseOracle reclaims an order oracle's storage deposit. The caller must be
// the listing's owner and must also be the asset's recorded owner in the
// external asset program, which is cross-checked through the program itself.
func (e *Engine) CloseOracle(caller [20]byte, listingID, asset [32]byte) error {
	if err := e.readyWithAssets(); err != nil {
		return err
	}
	listing, err := e.loadListing(listingID)
	if err != nil {
		return err
	}
	oracleAddr := OracleAddress(asset)
	if _, ok := e.state.OracleGet(oracleAddr); !ok {
		return ErrOracleNotFound
	}
	if caller != listing.Owner {
		return ErrUnauthorized
	}
	assetOwner, err := e.assets.AssetOwner(asset)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAssetRecord, err)
	}
	if assetOwner != listing.Owner {
		return ErrUnauthorized
	}
	refund, err := e.state.VaultBalance(oracleAddr)
	if err != nil {
		return err
	}
	if refund.Sign() > 0 {
		if err := e.state.VaultDebit(oracleAddr, refund); err != nil {
			return err
		}
		if err := e.creditAccount(caller, refund); err != nil {
			return err
		}
	}
	if err := e.state.OracleDelete(oracleAddr); err != nil {
		return err
	}
	e.emit(NewOracleClosedEvent(listing, asset, refund))
	return nil
}
