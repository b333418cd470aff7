package market

import (
	"math/big"
	"testing"
)

func TestOrderStatusPredicates(t *testing.T) {
	removable := map[OrderStatus]bool{
		OrderPending:   true,
		OrderPlaced:    false,
		OrderConfirmed: false,
		OrderFulfilled: false,
		OrderDelivered: false,
		OrderCompleted: true,
		OrderCancelled: true,
	}
	for status, want := range removable {
		if got := status.Removable(); got != want {
			t.Fatalf("%v.Removable() = %v, want %v", status, got, want)
		}
	}
	if !OrderCompleted.Terminal() || !OrderCancelled.Terminal() {
		t.Fatal("completed and cancelled are terminal")
	}
	if OrderDelivered.Terminal() {
		t.Fatal("delivered is not terminal")
	}
	if OrderStatus(99).Valid() {
		t.Fatal("out-of-range status reported valid")
	}
}

func TestSlotOccupied(t *testing.T) {
	slot := &PlacementSlot{ID: newTestID(1)}
	if slot.Occupied() {
		t.Fatal("empty slot reported occupied")
	}
	slot.Product = newTestID(2)
	if !slot.Occupied() {
		t.Fatal("bound slot reported empty")
	}
}

func TestListingHasPrice(t *testing.T) {
	listing := &ProductListing{ID: newTestID(1)}
	if listing.HasPrice() {
		t.Fatal("nil price reported set")
	}
	listing.Price = big.NewInt(0)
	if listing.HasPrice() {
		t.Fatal("zero price reported set")
	}
	listing.Price = big.NewInt(7)
	if !listing.HasPrice() {
		t.Fatal("positive price reported unset")
	}
}

func TestListingCloneIsDeep(t *testing.T) {
	listing := &ProductListing{ID: newTestID(1), Price: big.NewInt(100)}
	clone := listing.Clone()
	clone.Price.SetInt64(999)
	if listing.Price.Int64() != 100 {
		t.Fatal("clone shares price with original")
	}
}
