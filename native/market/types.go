package market

import (
	"fmt"
	"math/big"
)

// Origin identifies the marketplace a listing or order flow belongs to.
type Origin uint8

const (
	OriginNative Origin = iota
	OriginShopify
	OriginSquare
)

// Valid reports whether the origin value is within the supported range.
func (o Origin) Valid() bool {
	switch o {
	case OriginNative, OriginShopify, OriginSquare:
		return true
	default:
		return false
	}
}

func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginShopify:
		return "shopify"
	case OriginSquare:
		return "square"
	default:
		return fmt.Sprintf("origin(%d)", uint8(o))
	}
}

// PlacementType classifies how a product appears in a placement slot.
type PlacementType uint8

const (
	PlacementDigitalReplica PlacementType = iota
	PlacementRelatedPurchase
	PlacementTargeted
)

// Valid reports whether the placement type is within the supported range.
func (p PlacementType) Valid() bool {
	switch p {
	case PlacementDigitalReplica, PlacementRelatedPurchase, PlacementTargeted:
		return true
	default:
		return false
	}
}

func (p PlacementType) String() string {
	switch p {
	case PlacementDigitalReplica:
		return "digital_replica"
	case PlacementRelatedPurchase:
		return "related_purchase"
	case PlacementTargeted:
		return "targeted_placement"
	default:
		return fmt.Sprintf("placement(%d)", uint8(p))
	}
}

// ProductCategory is the coarse merchandising category of a listing.
type ProductCategory uint8

const (
	CategoryClothing ProductCategory = iota
	CategoryElectronics
	CategoryBooks
	CategoryHome
	CategoryBeauty
	CategoryToys
	CategorySports
	CategoryAutomotive
	CategoryGrocery
	CategoryBeverage
	CategoryHealth
)

// Valid reports whether the category is within the supported range.
func (c ProductCategory) Valid() bool {
	return c <= CategoryHealth
}

func (c ProductCategory) String() string {
	switch c {
	case CategoryClothing:
		return "clothing"
	case CategoryElectronics:
		return "electronics"
	case CategoryBooks:
		return "books"
	case CategoryHome:
		return "home"
	case CategoryBeauty:
		return "beauty"
	case CategoryToys:
		return "toys"
	case CategorySports:
		return "sports"
	case CategoryAutomotive:
		return "automotive"
	case CategoryGrocery:
		return "grocery"
	case CategoryBeverage:
		return "beverage"
	case CategoryHealth:
		return "health"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// OrderStatus is the per-asset order lifecycle state tracked by an oracle.
type OrderStatus uint8

const (
	OrderPending OrderStatus = iota
	OrderPlaced
	OrderConfirmed
	OrderFulfilled
	OrderDelivered
	OrderCompleted
	OrderCancelled
)

// Valid reports whether the status value is within the supported range.
func (s OrderStatus) Valid() bool {
	return s <= OrderCancelled
}

// Terminal reports whether the status ends the order lifecycle.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Removable reports whether an asset in this status may be unbound from its
// listing. Anything mid-fulfillment blocks removal.
func (s OrderStatus) Removable() bool {
	switch s {
	case OrderPending, OrderCompleted, OrderCancelled:
		return true
	default:
		return false
	}
}

func (s OrderStatus) String() string {
	switch s {
	case OrderPending:
		return "pending"
	case OrderPlaced:
		return "placed"
	case OrderConfirmed:
		return "confirmed"
	case OrderFulfilled:
		return "fulfilled"
	case OrderDelivered:
		return "delivered"
	case OrderCompleted:
		return "completed"
	case OrderCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// PlacementSlot is a registered placement location that can host at most one
// product listing at a time. Product holds the bound listing identity and is
// zero while the slot is empty; only the stocking operation sets it and only
// the removal operation clears it.
type PlacementSlot struct {
	ID              [32]byte
	Owner           [20]byte
	Manager         [20]byte
	PlacementType   PlacementType
	ProductCategory ProductCategory
	Product         [32]byte
	IsActive        bool
}

// Occupied reports whether a listing is currently bound to the slot.
func (s *PlacementSlot) Occupied() bool {
	return s != nil && s.Product != ([32]byte{})
}

// Clone returns a copy of the slot safe for callers to mutate.
func (s *PlacementSlot) Clone() *PlacementSlot {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// ProductListing is the aggregate record for one sellable unit-type. Slot,
// Escrow and Collection are zero until the listing is stocked; Price is nil
// (or zero) until set. InStock counts unbound-but-available units, Sold the
// cumulative units transacted; neither is ever negative.
type ProductListing struct {
	ID              [32]byte
	Origin          Origin
	Owner           [20]byte
	Manager         [20]byte
	PlacementType   PlacementType
	ProductCategory ProductCategory
	InStock         uint64
	Sold            uint64
	Slot            [32]byte
	IsActive        bool
	Price           *big.Int
	Escrow          [32]byte
	Collection      [32]byte
	OrderManager    Origin
}

// Stocked reports whether the listing currently carries an escrow binding.
func (l *ProductListing) Stocked() bool {
	return l != nil && l.Escrow != ([32]byte{})
}

// HasPrice reports whether a positive price has been recorded.
func (l *ProductListing) HasPrice() bool {
	return l != nil && l.Price != nil && l.Price.Sign() > 0
}

// Clone returns a deep copy of the listing.
func (l *ProductListing) Clone() *ProductListing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	}
	return &clone
}

// EscrowAccount marks a derived custody record as the holder of buyer funds
// for one listing. The actual escrow value is the vault balance the state
// manager tracks under the record's address.
type EscrowAccount struct {
	Address [32]byte
	Listing [32]byte
	Nonce   uint64
}

// Clone returns a copy of the escrow record.
func (e *EscrowAccount) Clone() *EscrowAccount {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// OrderOracle is the per-asset record the external asset program consults
// before permitting any gated lifecycle event. Validation is always a pure
// function of the order status transitions applied through the engine.
type OrderOracle struct {
	Asset        [32]byte
	OrderStatus  OrderStatus
	OrderManager Origin
	Validation   ValidationVector
	Bump         uint64
}

// Clone returns a copy of the oracle record.
func (o *OrderOracle) Clone() *OrderOracle {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}
