package market

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"shelfledger/core/types"
)

const (
	EventTypeSlotRegistered    = "market.slot.registered"
	EventTypeSlotUpdated       = "market.slot.updated"
	EventTypeSlotActivation    = "market.slot.activation"
	EventTypeListingRegistered = "market.listing.registered"
	EventTypeListingUpdated    = "market.listing.updated"
	EventTypeListingActivation = "market.listing.activation"
	EventTypeListingStocked    = "market.listing.stocked"
	EventTypeListingRemoved    = "market.listing.removed"
	EventTypePurchase          = "market.order.purchased"
	EventTypeOrderStatus       = "market.order.status_updated"
	EventTypeOrderCompleted    = "market.order.completed"
	EventTypeOracleClosed      = "market.oracle.closed"
)

func hexID(id [32]byte) string {
	return hex.EncodeToString(id[:])
}

func hexActor(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func slotAttributes(s *PlacementSlot) map[string]string {
	attrs := make(map[string]string)
	if s == nil {
		return attrs
	}
	attrs["id"] = hexID(s.ID)
	attrs["owner"] = hexActor(s.Owner)
	attrs["placementType"] = s.PlacementType.String()
	attrs["productCategory"] = s.ProductCategory.String()
	attrs["active"] = strconv.FormatBool(s.IsActive)
	if s.Occupied() {
		attrs["product"] = hexID(s.Product)
	}
	return attrs
}

func listingAttributes(l *ProductListing) map[string]string {
	attrs := make(map[string]string)
	if l == nil {
		return attrs
	}
	attrs["id"] = hexID(l.ID)
	attrs["owner"] = hexActor(l.Owner)
	attrs["origin"] = l.Origin.String()
	attrs["inStock"] = strconv.FormatUint(l.InStock, 10)
	attrs["sold"] = strconv.FormatUint(l.Sold, 10)
	attrs["active"] = strconv.FormatBool(l.IsActive)
	if l.HasPrice() {
		attrs["price"] = l.Price.String()
	}
	if l.Stocked() {
		attrs["escrow"] = hexID(l.Escrow)
	}
	return attrs
}

// NewSlotRegisteredEvent returns the canonical payload for a newly registered
// placement slot.
func NewSlotRegisteredEvent(s *PlacementSlot) *types.Event {
	return &types.Event{Type: EventTypeSlotRegistered, Attributes: slotAttributes(s)}
}

// NewSlotUpdatedEvent returns the payload emitted after a slot field update.
func NewSlotUpdatedEvent(s *PlacementSlot) *types.Event {
	return &types.Event{Type: EventTypeSlotUpdated, Attributes: slotAttributes(s)}
}

// NewSlotActivationEvent returns the payload emitted when a slot's activation
// flag flips.
func NewSlotActivationEvent(s *PlacementSlot) *types.Event {
	return &types.Event{Type: EventTypeSlotActivation, Attributes: slotAttributes(s)}
}

// NewListingRegisteredEvent returns the canonical payload for a newly
// registered product listing.
func NewListingRegisteredEvent(l *ProductListing) *types.Event {
	return &types.Event{Type: EventTypeListingRegistered, Attributes: listingAttributes(l)}
}

// NewListingUpdatedEvent returns the payload emitted after a listing field
// update.
func NewListingUpdatedEvent(l *ProductListing) *types.Event {
	return &types.Event{Type: EventTypeListingUpdated, Attributes: listingAttributes(l)}
}

// NewListingActivationEvent returns the payload emitted when a listing's
// activation flag flips.
func NewListingActivationEvent(l *ProductListing) *types.Event {
	return &types.Event{Type: EventTypeListingActivation, Attributes: listingAttributes(l)}
}

// NewListingStockedEvent returns the payload emitted after a stocking batch
// completes.
func NewListingStockedEvent(l *ProductListing, count uint64) *types.Event {
	attrs := listingAttributes(l)
	attrs["stocked"] = strconv.FormatUint(count, 10)
	return &types.Event{Type: EventTypeListingStocked, Attributes: attrs}
}

// NewListingRemovedEvent returns the payload emitted after a removal batch
// completes and the escrow is swept.
func NewListingRemovedEvent(l *ProductListing, count uint64, swept *big.Int) *types.Event {
	attrs := listingAttributes(l)
	attrs["removed"] = strconv.FormatUint(count, 10)
	if swept != nil {
		attrs["swept"] = swept.String()
	}
	return &types.Event{Type: EventTypeListingRemoved, Attributes: attrs}
}

// NewPurchaseEvent returns the payload emitted when a buyer purchases units
// against an asset.
func NewPurchaseEvent(l *ProductListing, asset [32]byte, buyer [20]byte, quantity uint64, amount *big.Int) *types.Event {
	attrs := listingAttributes(l)
	attrs["asset"] = hexID(asset)
	attrs["buyer"] = hexActor(buyer)
	attrs["quantity"] = strconv.FormatUint(quantity, 10)
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypePurchase, Attributes: attrs}
}

// NewOrderStatusEvent returns the payload emitted on an order status
// transition.
func NewOrderStatusEvent(l *ProductListing, asset [32]byte, status OrderStatus) *types.Event {
	attrs := listingAttributes(l)
	attrs["asset"] = hexID(asset)
	attrs["status"] = status.String()
	return &types.Event{Type: EventTypeOrderStatus, Attributes: attrs}
}

// NewOrderCompletedEvent returns the payload emitted when escrow pays out for
// a completed unit.
func NewOrderCompletedEvent(l *ProductListing, asset [32]byte, payout *big.Int) *types.Event {
	attrs := listingAttributes(l)
	attrs["asset"] = hexID(asset)
	if payout != nil {
		attrs["payout"] = payout.String()
	}
	return &types.Event{Type: EventTypeOrderCompleted, Attributes: attrs}
}

// NewOracleClosedEvent returns the payload emitted when an order oracle is
// closed and its deposit refunded.
func NewOracleClosedEvent(l *ProductListing, asset [32]byte, refund *big.Int) *types.Event {
	attrs := listingAttributes(l)
	attrs["asset"] = hexID(asset)
	if refund != nil {
		attrs["refund"] = refund.String()
	}
	return &types.Event{Type: EventTypeOracleClosed, Attributes: attrs}
}
