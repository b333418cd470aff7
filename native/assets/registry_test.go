package assets

import (
	"errors"
	"testing"
)

func id(fill byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func actor(fill byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestMintTracksCollectionCount(t *testing.T) {
	r := NewRegistry()
	col := id(1)
	r.CreateCollection(col)

	if _, err := r.Mint(id(9), id(2), actor(1)); !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
	if _, err := r.Mint(col, id(2), actor(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := r.Mint(col, id(2), actor(1)); !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}
	if _, err := r.Mint(col, id(3), actor(1)); err != nil {
		t.Fatalf("mint second: %v", err)
	}
	count, err := r.MintedCount(col)
	if err != nil || count != 2 {
		t.Fatalf("minted count = %d (%v), want 2", count, err)
	}
}

func TestFreezeDelegateLifecycle(t *testing.T) {
	r := NewRegistry()
	col, asset := id(1), id(2)
	authority := id(7)
	r.CreateCollection(col)
	if _, err := r.Mint(col, asset, actor(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := r.GrantFreezeDelegate(asset, authority, true); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := r.GrantFreezeDelegate(asset, authority, true); !errors.Is(err, ErrDelegateExists) {
		t.Fatalf("expected ErrDelegateExists, got %v", err)
	}
	if err := r.Transfer(asset, actor(2)); err == nil {
		t.Fatal("frozen asset transferred")
	}
	if err := r.SetFrozen(asset, id(8), false); !errors.Is(err, ErrNotDelegate) {
		t.Fatalf("expected ErrNotDelegate, got %v", err)
	}
	if err := r.SetFrozen(asset, authority, false); err != nil {
		t.Fatalf("thaw: %v", err)
	}
	if err := r.Transfer(asset, actor(2)); err != nil {
		t.Fatalf("transfer after thaw: %v", err)
	}
	owner, err := r.AssetOwner(asset)
	if err != nil || owner != actor(2) {
		t.Fatalf("owner = %x (%v)", owner, err)
	}
	if err := r.RevokeFreezeDelegate(asset); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := r.RevokeFreezeDelegate(asset); !errors.Is(err, ErrDelegateNotFound) {
		t.Fatalf("expected ErrDelegateNotFound, got %v", err)
	}
}

func TestOracleAdapterSingleton(t *testing.T) {
	r := NewRegistry()
	col, asset := id(1), id(2)
	r.CreateCollection(col)
	if _, err := r.Mint(col, asset, actor(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if err := r.InstallOracleAdapter(asset, id(5)); err != nil {
		t.Fatalf("install: %v", err)
	}
	if err := r.InstallOracleAdapter(asset, id(6)); !errors.Is(err, ErrAdapterExists) {
		t.Fatalf("expected ErrAdapterExists, got %v", err)
	}
	if err := r.RemoveOracleAdapter(asset); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := r.RemoveOracleAdapter(asset); !errors.Is(err, ErrAdapterNotFound) {
		t.Fatalf("expected ErrAdapterNotFound, got %v", err)
	}
}

func TestUpdateAttribute(t *testing.T) {
	r := NewRegistry()
	col, asset := id(1), id(2)
	r.CreateCollection(col)
	if _, err := r.Mint(col, asset, actor(1)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := r.UpdateAttribute(asset, "Order Status", "Confirmed"); err != nil {
		t.Fatalf("update attribute: %v", err)
	}
	a, ok := r.Asset(asset)
	if !ok || a.Attributes["Order Status"] != "Confirmed" {
		t.Fatalf("attribute not stored: %+v", a)
	}
	if err := r.UpdateAttribute(id(9), "k", "v"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}
