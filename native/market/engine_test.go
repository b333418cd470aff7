package market

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"shelfledger/core/events"
	"shelfledger/core/types"
	"shelfledger/native/assets"
)

type mockState struct {
	slots    map[[32]byte]*PlacementSlot
	listings map[[32]byte]*ProductListing
	oracles  map[[32]byte]*OrderOracle
	escrows  map[[32]byte]*EscrowAccount
	vaults   map[[32]byte]*big.Int
	accounts map[[20]byte]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		slots:    make(map[[32]byte]*PlacementSlot),
		listings: make(map[[32]byte]*ProductListing),
		oracles:  make(map[[32]byte]*OrderOracle),
		escrows:  make(map[[32]byte]*EscrowAccount),
		vaults:   make(map[[32]byte]*big.Int),
		accounts: make(map[[20]byte]*types.Account),
	}
}

func (m *mockState) SlotPut(s *PlacementSlot) error {
	if s == nil {
		return fmt.Errorf("nil slot")
	}
	m.slots[SlotAddress(s.ID)] = s.Clone()
	return nil
}

func (m *mockState) SlotGet(addr [32]byte) (*PlacementSlot, bool) {
	s, ok := m.slots[addr]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

func (m *mockState) ListingPut(l *ProductListing) error {
	if l == nil {
		return fmt.Errorf("nil listing")
	}
	m.listings[ListingAddress(l.ID)] = l.Clone()
	return nil
}

func (m *mockState) ListingGet(addr [32]byte) (*ProductListing, bool) {
	l, ok := m.listings[addr]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (m *mockState) OraclePut(o *OrderOracle) error {
	if o == nil {
		return fmt.Errorf("nil oracle")
	}
	m.oracles[OracleAddress(o.Asset)] = o.Clone()
	return nil
}

func (m *mockState) OracleGet(addr [32]byte) (*OrderOracle, bool) {
	o, ok := m.oracles[addr]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

func (m *mockState) OracleDelete(addr [32]byte) error {
	delete(m.oracles, addr)
	return nil
}

func (m *mockState) EscrowPut(e *EscrowAccount) error {
	if e == nil {
		return fmt.Errorf("nil escrow")
	}
	m.escrows[e.Address] = e.Clone()
	return nil
}

func (m *mockState) EscrowGet(addr [32]byte) (*EscrowAccount, bool) {
	e, ok := m.escrows[addr]
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

func (m *mockState) EscrowDelete(addr [32]byte) error {
	delete(m.escrows, addr)
	return nil
}

func (m *mockState) VaultBalance(addr [32]byte) (*big.Int, error) {
	bal, ok := m.vaults[addr]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockState) VaultCredit(addr [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	bal, ok := m.vaults[addr]
	if !ok {
		bal = big.NewInt(0)
	}
	m.vaults[addr] = new(big.Int).Add(bal, amount)
	return nil
}

func (m *mockState) VaultDebit(addr [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	bal, ok := m.vaults[addr]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient vault balance")
	}
	m.vaults[addr] = new(big.Int).Sub(bal, amount)
	return nil
}

func (m *mockState) GetAccount(addr []byte) (*types.Account, error) {
	var key [20]byte
	copy(key[:], addr)
	acc, ok := m.accounts[key]
	if !ok {
		return nil, nil
	}
	return acc.Clone(), nil
}

func (m *mockState) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("nil account")
	}
	var key [20]byte
	copy(key[:], addr)
	m.accounts[key] = account.Clone()
	return nil
}

func (m *mockState) fund(addr [20]byte, amount int64) {
	m.accounts[addr] = &types.Account{Balance: big.NewInt(amount)}
}

func (m *mockState) balance(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

type recordingEmitter struct {
	events   []string
	payloads []*types.Event
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.events = append(r.events, evt.EventType())
	if payload, ok := evt.(interface{ Event() *types.Event }); ok {
		r.payloads = append(r.payloads, payload.Event())
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestID(fill byte) [32]byte {
	var id [32]byte
	copy(id[:], bytes.Repeat([]byte{fill}, 32))
	return id
}

type marketFixture struct {
	engine   *Engine
	state    *mockState
	registry *assets.Registry
	emitter  *recordingEmitter

	owner      [20]byte
	manager    [20]byte
	buyer      [20]byte
	slotID     [32]byte
	listingID  [32]byte
	collection [32]byte
	units      [][32]byte
}

func newMarketFixture(t *testing.T, unitCount int) *marketFixture {
	t.Helper()
	f := &marketFixture{
		state:      newMockState(),
		registry:   assets.NewRegistry(),
		emitter:    &recordingEmitter{},
		owner:      newTestAddress(0x11),
		manager:    newTestAddress(0x22),
		buyer:      newTestAddress(0x33),
		slotID:     newTestID(0xA1),
		listingID:  newTestID(0xB2),
		collection: newTestID(0xC3),
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetAssets(f.registry)
	f.engine.SetEmitter(f.emitter)

	f.registry.CreateCollection(f.collection)
	for i := 0; i < unitCount; i++ {
		unit := newTestID(byte(0xD0 + i))
		if _, err := f.registry.Mint(f.collection, unit, f.owner); err != nil {
			t.Fatalf("mint unit %d: %v", i, err)
		}
		f.units = append(f.units, unit)
	}

	if _, err := f.engine.RegisterSlot(f.owner, f.slotID, PlacementRelatedPurchase, CategoryBeverage, f.manager); err != nil {
		t.Fatalf("register slot: %v", err)
	}
	if _, err := f.engine.RegisterListing(f.owner, f.listingID, OriginNative, PlacementRelatedPurchase, CategoryBeverage, f.manager, OriginNative); err != nil {
		t.Fatalf("register listing: %v", err)
	}
	if err := f.engine.ActivateSlot(f.owner, f.slotID); err != nil {
		t.Fatalf("activate slot: %v", err)
	}
	if err := f.engine.ActivateListing(f.owner, f.listingID); err != nil {
		t.Fatalf("activate listing: %v", err)
	}
	return f
}

// stock funds the owner and runs the full stocking batch at the given price.
func (f *marketFixture) stock(t *testing.T, price int64) *StockingReceipt {
	t.Helper()
	deposits := new(big.Int).Mul(OracleStorageDeposit, big.NewInt(int64(len(f.units))))
	required := new(big.Int).Add(EscrowMinimumReserve, deposits)
	f.state.fund(f.owner, required.Int64())
	receipt, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, f.units, big.NewInt(price))
	if err != nil {
		t.Fatalf("place products: %v", err)
	}
	return receipt
}

func (f *marketFixture) listing(t *testing.T) *ProductListing {
	t.Helper()
	listing, ok := f.state.ListingGet(ListingAddress(f.listingID))
	if !ok {
		t.Fatal("listing not found")
	}
	return listing
}

func (f *marketFixture) oracle(t *testing.T, asset [32]byte) *OrderOracle {
	t.Helper()
	oracle, ok := f.state.OracleGet(OracleAddress(asset))
	if !ok {
		t.Fatalf("oracle for asset %x not found", asset[:4])
	}
	return oracle
}

func TestRegisterSlotRejectsDuplicate(t *testing.T) {
	f := newMarketFixture(t, 0)
	if _, err := f.engine.RegisterSlot(f.owner, f.slotID, PlacementTargeted, CategoryToys, f.manager); !errors.Is(err, ErrSlotExists) {
		t.Fatalf("expected ErrSlotExists, got %v", err)
	}
}

func TestRegisterListingRejectsDuplicate(t *testing.T) {
	f := newMarketFixture(t, 0)
	if _, err := f.engine.RegisterListing(f.owner, f.listingID, OriginShopify, PlacementTargeted, CategoryToys, f.manager, OriginShopify); !errors.Is(err, ErrListingExists) {
		t.Fatalf("expected ErrListingExists, got %v", err)
	}
}

func TestUpdateSlotRequiresOwner(t *testing.T) {
	f := newMarketFixture(t, 0)
	if err := f.engine.UpdateSlot(f.buyer, f.slotID, PlacementTargeted, CategoryToys, f.manager); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.UpdateSlot(f.owner, f.slotID, PlacementTargeted, CategoryToys, f.buyer); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	slot, _ := f.state.SlotGet(SlotAddress(f.slotID))
	if slot.PlacementType != PlacementTargeted || slot.ProductCategory != CategoryToys || slot.Manager != f.buyer {
		t.Fatalf("slot fields not updated: %+v", slot)
	}
}

func TestUpdateListingPriceRules(t *testing.T) {
	f := newMarketFixture(t, 0)
	if err := f.engine.UpdateListing(f.owner, f.listingID, PlacementRelatedPurchase, CategoryBeverage, f.manager, big.NewInt(0)); !errors.Is(err, ErrPriceNotSet) {
		t.Fatalf("expected ErrPriceNotSet for zero price, got %v", err)
	}
	if err := f.engine.UpdateListing(f.owner, f.listingID, PlacementRelatedPurchase, CategoryBeverage, f.manager, big.NewInt(500)); err != nil {
		t.Fatalf("set price: %v", err)
	}
	// nil price leaves the stored price untouched
	if err := f.engine.UpdateListing(f.owner, f.listingID, PlacementRelatedPurchase, CategoryBeverage, f.manager, nil); err != nil {
		t.Fatalf("update without price: %v", err)
	}
	if got := f.listing(t).Price; got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("price changed unexpectedly: %s", got)
	}
}

func TestPlaceProductsLifecycle(t *testing.T) {
	f := newMarketFixture(t, 3)
	receipt := f.stock(t, 1000)

	if receipt.Stocked != 3 || len(receipt.Oracles) != 3 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	listing := f.listing(t)
	if listing.InStock != 3 || listing.Sold != 0 {
		t.Fatalf("unexpected stock counters: in=%d sold=%d", listing.InStock, listing.Sold)
	}
	if listing.Slot != f.slotID || listing.Escrow != EscrowAddress(f.listingID) || listing.Collection != f.collection {
		t.Fatalf("listing bindings wrong: %+v", listing)
	}
	slot, _ := f.state.SlotGet(SlotAddress(f.slotID))
	if slot.Product != f.listingID {
		t.Fatalf("slot not bound: %+v", slot)
	}

	escrowBal, _ := f.state.VaultBalance(listing.Escrow)
	if escrowBal.Cmp(EscrowMinimumReserve) != 0 {
		t.Fatalf("escrow vault = %s, want reserve %s", escrowBal, EscrowMinimumReserve)
	}
	if owner := f.state.balance(f.owner); owner.Sign() != 0 {
		t.Fatalf("owner should have spent full reserve and deposits, has %s", owner)
	}

	for _, unit := range f.units {
		oracle := f.oracle(t, unit)
		if oracle.OrderStatus != OrderPlaced {
			t.Fatalf("oracle status = %v, want placed", oracle.OrderStatus)
		}
		if oracle.Validation != DefaultValidation() {
			t.Fatalf("oracle validation = %+v, want awaiting-purchase vector", oracle.Validation)
		}
		depositBal, _ := f.state.VaultBalance(OracleAddress(unit))
		if depositBal.Cmp(OracleStorageDeposit) != 0 {
			t.Fatalf("oracle deposit = %s, want %s", depositBal, OracleStorageDeposit)
		}
		asset, ok := f.registry.Asset(unit)
		if !ok {
			t.Fatal("asset missing from registry")
		}
		if !asset.Frozen || asset.FreezeDelegate == nil || asset.TransferDelegate == nil || asset.Adapter == nil {
			t.Fatalf("asset permissions not installed: %+v", asset)
		}
		if asset.FreezeDelegate.Authority != ListingAddress(f.listingID) {
			t.Fatal("freeze delegate not held by listing")
		}
	}
}

func TestPlaceProductsRejectsBadBatches(t *testing.T) {
	f := newMarketFixture(t, 2)
	f.state.fund(f.owner, 10_000_000)

	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, nil, big.NewInt(100)); !errors.Is(err, ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch for empty batch, got %v", err)
	}
	oversized := make([][32]byte, MaxBatchSize+1)
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, oversized, big.NewInt(100)); !errors.Is(err, ErrInvalidBatch) {
		t.Fatalf("expected ErrInvalidBatch for oversized batch, got %v", err)
	}
	// one of two minted units supplied
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, f.units[:1], big.NewInt(100)); !errors.Is(err, ErrBatchMismatch) {
		t.Fatalf("expected ErrBatchMismatch, got %v", err)
	}
}

func TestPlaceProductsRejectsForeignUnits(t *testing.T) {
	f := newMarketFixture(t, 1)
	other := newTestID(0xEE)
	f.registry.CreateCollection(other)
	foreign := newTestID(0xEF)
	if _, err := f.registry.Mint(other, foreign, f.owner); err != nil {
		t.Fatalf("mint foreign: %v", err)
	}
	f.state.fund(f.owner, 10_000_000)
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, [][32]byte{foreign}, big.NewInt(100)); !errors.Is(err, ErrProductMismatch) {
		t.Fatalf("expected ErrProductMismatch, got %v", err)
	}
}

func TestPlaceProductsRequiresPositivePrice(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.state.fund(f.owner, 10_000_000)
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, f.units, nil); !errors.Is(err, ErrPriceNotSet) {
		t.Fatalf("expected ErrPriceNotSet for nil price, got %v", err)
	}
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, f.units, big.NewInt(-5)); !errors.Is(err, ErrPriceNotSet) {
		t.Fatalf("expected ErrPriceNotSet for negative price, got %v", err)
	}
}

func TestPlaceProductsRequiresEmptyListing(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	f.state.fund(f.buyer, 100)
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// sold units keep the listing permanently closed to restocking even
	// after the batch is removed
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.engine.RemoveProducts(f.owner, f.listingID, f.slotID, EscrowAddress(f.listingID), f.units); err != nil {
		t.Fatalf("remove: %v", err)
	}
	f.state.fund(f.owner, 10_000_000)
	if _, err := f.engine.PlaceProducts(f.owner, f.listingID, f.slotID, f.collection, f.units, big.NewInt(100)); !errors.Is(err, ErrListingNotEmpty) {
		t.Fatalf("expected ErrListingNotEmpty, got %v", err)
	}
}

func TestMakePurchaseHappyPath(t *testing.T) {
	f := newMarketFixture(t, 3)
	f.stock(t, 1000)
	f.state.fund(f.buyer, 5000)

	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 2); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if got := f.state.balance(f.buyer); got.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("buyer balance = %s, want 3000", got)
	}
	listing := f.listing(t)
	if listing.InStock != 1 || listing.Sold != 2 {
		t.Fatalf("counters in=%d sold=%d, want 1/2", listing.InStock, listing.Sold)
	}
	escrowBal, _ := f.state.VaultBalance(listing.Escrow)
	want := new(big.Int).Add(EscrowMinimumReserve, big.NewInt(2000))
	if escrowBal.Cmp(want) != 0 {
		t.Fatalf("escrow balance = %s, want %s", escrowBal, want)
	}
	oracle := f.oracle(t, f.units[0])
	if oracle.OrderStatus != OrderPending {
		t.Fatalf("oracle status = %v, want pending", oracle.OrderStatus)
	}
	if oracle.Validation == DefaultValidation() {
		t.Fatal("validation vector was not consumed")
	}
	if oracle.Validation.Update != ValidationRejected {
		t.Fatalf("post-purchase update flag = %v, want rejected", oracle.Validation.Update)
	}
	asset, _ := f.registry.Asset(f.units[0])
	if asset.Attributes["Order Status"] != "Confirmed" {
		t.Fatalf("asset attribute = %q", asset.Attributes["Order Status"])
	}
}

func TestMakePurchaseSingleUsePerAsset(t *testing.T) {
	f := newMarketFixture(t, 3)
	f.stock(t, 100)
	f.state.fund(f.buyer, 1000)

	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1)
	if !errors.Is(err, ErrOrderNotPlaced) && !errors.Is(err, ErrOracleConflict) {
		t.Fatalf("second purchase should be rejected, got %v", err)
	}
	// a different unit in the same listing still sells
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[1], 1); err != nil {
		t.Fatalf("purchase of second unit: %v", err)
	}
}

func TestMakePurchaseExternallyAdvancedOracle(t *testing.T) {
	f := newMarketFixture(t, 2)
	f.stock(t, 100)
	f.state.fund(f.buyer, 1000)

	// an out-of-band writer advanced the vector while leaving the status
	// at placed; the purchase must refuse the stale token
	oracle := f.oracle(t, f.units[0])
	oracle.Validation = NewValidationVector(ValidationApproved, ValidationApproved, ValidationRejected, ValidationPass)
	if err := f.state.OraclePut(oracle); err != nil {
		t.Fatalf("seed oracle: %v", err)
	}
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); !errors.Is(err, ErrOracleConflict) {
		t.Fatalf("expected ErrOracleConflict, got %v", err)
	}
}

func TestMakePurchaseInsufficientFundsAborts(t *testing.T) {
	f := newMarketFixture(t, 2)
	f.stock(t, 1000)
	f.state.fund(f.buyer, 999)

	before := f.listing(t)
	escrowBefore, _ := f.state.VaultBalance(before.Escrow)
	oracleBefore := f.oracle(t, f.units[0])

	err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	after := f.listing(t)
	if after.InStock != before.InStock || after.Sold != before.Sold {
		t.Fatalf("stock mutated on failed purchase: %+v", after)
	}
	escrowAfter, _ := f.state.VaultBalance(after.Escrow)
	if escrowAfter.Cmp(escrowBefore) != 0 {
		t.Fatalf("escrow mutated on failed purchase: %s -> %s", escrowBefore, escrowAfter)
	}
	oracleAfter := f.oracle(t, f.units[0])
	if oracleAfter.OrderStatus != oracleBefore.OrderStatus || oracleAfter.Validation != oracleBefore.Validation {
		t.Fatalf("oracle mutated on failed purchase: %+v", oracleAfter)
	}
	if got := f.state.balance(f.buyer); got.Cmp(big.NewInt(999)) != 0 {
		t.Fatalf("buyer balance changed: %s", got)
	}
}

func TestMakePurchaseOutOfStock(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	f.state.fund(f.buyer, 1000)
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 2); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestUpdateOrderStatusAuthority(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)

	if err := f.engine.UpdateOrderStatus(f.buyer, f.listingID, f.units[0], OrderConfirmed); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := f.engine.UpdateOrderStatus(f.manager, f.listingID, f.units[0], OrderConfirmed); err != nil {
		t.Fatalf("manager update: %v", err)
	}
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderFulfilled); err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderStatus(42)); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestUpdateOrderStatusDerivesValidation(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)

	cases := []struct {
		status OrderStatus
		want   ValidationVector
	}{
		{OrderConfirmed, NewValidationVector(ValidationRejected, ValidationRejected, ValidationRejected, ValidationPass)},
		{OrderFulfilled, NewValidationVector(ValidationRejected, ValidationRejected, ValidationRejected, ValidationPass)},
		{OrderDelivered, NewValidationVector(ValidationRejected, ValidationRejected, ValidationRejected, ValidationPass)},
		{OrderCompleted, NewValidationVector(ValidationApproved, ValidationApproved, ValidationRejected, ValidationPass)},
		{OrderCancelled, NewValidationVector(ValidationApproved, ValidationApproved, ValidationRejected, ValidationPass)},
		{OrderPlaced, NewValidationVector(ValidationPass, ValidationRejected, ValidationPass, ValidationPass)},
	}
	for _, tc := range cases {
		if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], tc.status); err != nil {
			t.Fatalf("transition to %v: %v", tc.status, err)
		}
		oracle := f.oracle(t, f.units[0])
		if oracle.Validation != tc.want {
			t.Fatalf("vector after %v = %+v, want %+v", tc.status, oracle.Validation, tc.want)
		}
	}
}

func TestCompleteOrderPaysOutOnce(t *testing.T) {
	f := newMarketFixture(t, 2)
	f.stock(t, 1000)
	f.state.fund(f.buyer, 1000)
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := f.engine.CompleteOrder(f.owner, f.listingID, f.units[0]); !errors.Is(err, ErrOrderNotCompleted) {
		t.Fatalf("expected ErrOrderNotCompleted before completion, got %v", err)
	}
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderCompleted); err != nil {
		t.Fatalf("complete transition: %v", err)
	}

	ownerBefore := f.state.balance(f.owner)
	payout, err := f.engine.CompleteOrder(f.owner, f.listingID, f.units[0])
	if err != nil {
		t.Fatalf("complete order: %v", err)
	}
	if payout.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("payout = %s, want 1000", payout)
	}
	ownerAfter := f.state.balance(f.owner)
	if new(big.Int).Sub(ownerAfter, ownerBefore).Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("owner credited %s, want 1000", new(big.Int).Sub(ownerAfter, ownerBefore))
	}

	// the escrow is back down to its reserve; a second settlement against
	// the same sale has nothing to pay with
	if _, err := f.engine.CompleteOrder(f.owner, f.listingID, f.units[0]); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance on replay, got %v", err)
	}
}

func TestCompleteOrderRequiresAssetOwnership(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderCompleted); err != nil {
		t.Fatalf("complete transition: %v", err)
	}
	if _, err := f.engine.CompleteOrder(f.buyer, f.listingID, f.units[0]); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for non-owner caller, got %v", err)
	}
}

func TestRemoveProductsSweepsEscrow(t *testing.T) {
	f := newMarketFixture(t, 2)
	f.stock(t, 1000)
	f.state.fund(f.buyer, 1000)
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// the unsold unit is still awaiting purchase and must be cancelled
	// before the batch can come out
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[1], OrderCancelled); err != nil {
		t.Fatalf("cancel unsold unit: %v", err)
	}
	escrowAddr := EscrowAddress(f.listingID)

	receipt, err := f.engine.RemoveProducts(f.owner, f.listingID, f.slotID, escrowAddr, f.units)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if receipt.Removed != 2 {
		t.Fatalf("removed = %d, want 2", receipt.Removed)
	}
	if receipt.Swept.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("swept = %s, want 1000", receipt.Swept)
	}
	if receipt.ReserveRefund.Cmp(EscrowMinimumReserve) != 0 {
		t.Fatalf("reserve refund = %s, want %s", receipt.ReserveRefund, EscrowMinimumReserve)
	}

	if _, ok := f.state.EscrowGet(escrowAddr); ok {
		t.Fatal("escrow record should be deleted")
	}
	bal, _ := f.state.VaultBalance(escrowAddr)
	if bal.Sign() != 0 {
		t.Fatalf("escrow vault not drained: %s", bal)
	}
	listing := f.listing(t)
	if listing.Slot != ([32]byte{}) || listing.Escrow != ([32]byte{}) {
		t.Fatalf("listing still bound: %+v", listing)
	}
	if listing.InStock != 0 {
		t.Fatalf("in-stock = %d after removal", listing.InStock)
	}
	if listing.Sold != 1 {
		t.Fatalf("sold counter must survive removal, got %d", listing.Sold)
	}
	slot, _ := f.state.SlotGet(SlotAddress(f.slotID))
	if slot.Occupied() {
		t.Fatalf("slot still occupied: %+v", slot)
	}
	for _, unit := range f.units {
		asset, _ := f.registry.Asset(unit)
		if asset.Frozen || asset.FreezeDelegate != nil || asset.TransferDelegate != nil || asset.Adapter != nil {
			t.Fatalf("asset permissions not reclaimed: %+v", asset)
		}
	}
}

func TestRemoveProductsBlockedByOpenOrders(t *testing.T) {
	for _, status := range []OrderStatus{OrderPlaced, OrderConfirmed, OrderFulfilled, OrderDelivered} {
		t.Run(status.String(), func(t *testing.T) {
			f := newMarketFixture(t, 1)
			f.stock(t, 100)
			// stocking leaves the unit at placed; every other blocked
			// status needs an explicit transition
			if status != OrderPlaced {
				if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], status); err != nil {
					t.Fatalf("transition to %v: %v", status, err)
				}
			}
			if _, err := f.engine.RemoveProducts(f.owner, f.listingID, f.slotID, EscrowAddress(f.listingID), f.units); !errors.Is(err, ErrOrdersInProgress) {
				t.Fatalf("expected ErrOrdersInProgress at %v, got %v", status, err)
			}
		})
	}
}

func TestRemoveProductsChecksEscrowReference(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	wrong := newTestID(0x99)
	if _, err := f.engine.RemoveProducts(f.owner, f.listingID, f.slotID, wrong, f.units); !errors.Is(err, ErrEscrowMismatch) {
		t.Fatalf("expected ErrEscrowMismatch, got %v", err)
	}
}

func TestCloseOracleRefundsDeposit(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	if err := f.engine.UpdateOrderStatus(f.owner, f.listingID, f.units[0], OrderCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.engine.RemoveProducts(f.owner, f.listingID, f.slotID, EscrowAddress(f.listingID), f.units); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := f.engine.CloseOracle(f.buyer, f.listingID, f.units[0]); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	before := f.state.balance(f.owner)
	if err := f.engine.CloseOracle(f.owner, f.listingID, f.units[0]); err != nil {
		t.Fatalf("close oracle: %v", err)
	}
	after := f.state.balance(f.owner)
	if new(big.Int).Sub(after, before).Cmp(OracleStorageDeposit) != 0 {
		t.Fatalf("refund = %s, want %s", new(big.Int).Sub(after, before), OracleStorageDeposit)
	}
	if _, ok := f.state.OracleGet(OracleAddress(f.units[0])); ok {
		t.Fatal("oracle should be deleted")
	}
	if err := f.engine.CloseOracle(f.owner, f.listingID, f.units[0]); !errors.Is(err, ErrOracleNotFound) {
		t.Fatalf("expected ErrOracleNotFound on double close, got %v", err)
	}
}

func TestDeactivatedRecordsBlockTrading(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.stock(t, 100)
	f.state.fund(f.buyer, 1000)

	if err := f.engine.DeactivateListing(f.owner, f.listingID); err != nil {
		t.Fatalf("deactivate listing: %v", err)
	}
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); !errors.Is(err, ErrListingDeactivated) {
		t.Fatalf("expected ErrListingDeactivated, got %v", err)
	}
	if err := f.engine.ActivateListing(f.owner, f.listingID); err != nil {
		t.Fatalf("reactivate listing: %v", err)
	}
	if err := f.engine.DeactivateSlot(f.owner, f.slotID); err != nil {
		t.Fatalf("deactivate slot: %v", err)
	}
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); !errors.Is(err, ErrSlotDeactivated) {
		t.Fatalf("expected ErrSlotDeactivated, got %v", err)
	}
}

func TestEngineEmitsLifecycleEvents(t *testing.T) {
	f := newMarketFixture(t, 1)
	f.emitter.events = nil
	f.stock(t, 100)
	f.state.fund(f.buyer, 100)
	if err := f.engine.MakePurchase(f.buyer, f.listingID, f.slotID, f.units[0], 1); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	want := []string{EventTypeListingStocked, EventTypePurchase}
	if len(f.emitter.events) != len(want) {
		t.Fatalf("events = %v, want %v", f.emitter.events, want)
	}
	for i, evt := range want {
		if f.emitter.events[i] != evt {
			t.Fatalf("events = %v, want %v", f.emitter.events, want)
		}
	}
	if len(f.emitter.payloads) != len(want) {
		t.Fatalf("payloads not exposed through the event wrapper: %d", len(f.emitter.payloads))
	}
	purchase := f.emitter.payloads[1]
	if purchase.Attributes["buyer"] != hexActor(f.buyer) {
		t.Fatalf("purchase buyer = %q", purchase.Attributes["buyer"])
	}
	if purchase.Attributes["amount"] != "100" {
		t.Fatalf("purchase amount = %q", purchase.Attributes["amount"])
	}
	if purchase.Attributes["ts"] == "" {
		t.Fatal("purchase event missing timestamp")
	}
}

func TestEngineRequiresConfiguredBackends(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.RegisterSlot(newTestAddress(1), newTestID(1), PlacementTargeted, CategoryToys, newTestAddress(2)); err == nil {
		t.Fatal("expected error without state backend")
	}
	engine.SetState(newMockState())
	if _, err := engine.PlaceProducts(newTestAddress(1), newTestID(1), newTestID(2), newTestID(3), [][32]byte{newTestID(4)}, big.NewInt(1)); err == nil {
		t.Fatal("expected error without asset program")
	}
}
