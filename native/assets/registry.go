// Package assets is a reference implementation of the external
// asset-permission program the market engine binds against. It owns base
// ownership, freeze/transfer delegate plugins and oracle adapters for every
// asset, keyed by 32-byte identities. Deployments targeting a real asset
// program replace this package behind the market.AssetProgram interface.
package assets

import "errors"

var (
	ErrAssetNotFound      = errors.New("assets: asset not found")
	ErrCollectionNotFound = errors.New("assets: collection not found")
	ErrAssetExists        = errors.New("assets: asset already minted")
	ErrDelegateExists     = errors.New("assets: delegate already installed")
	ErrDelegateNotFound   = errors.New("assets: delegate not installed")
	ErrAdapterExists      = errors.New("assets: oracle adapter already installed")
	ErrAdapterNotFound    = errors.New("assets: oracle adapter not installed")
	ErrNotDelegate        = errors.New("assets: authority is not the delegate")
)

// LifecycleEvent enumerates the hookable asset lifecycle events.
type LifecycleEvent uint8

const (
	LifecycleCreate LifecycleEvent = iota
	LifecycleTransfer
	LifecycleBurn
	LifecycleUpdate
)

// Delegate is a plugin granting an external authority control over one
// aspect of an asset.
type Delegate struct {
	Authority [32]byte
}

// OracleAdapter binds an oracle record address as the authoritative gate
// source for a lifecycle event.
type OracleAdapter struct {
	Oracle [32]byte
	Event  LifecycleEvent
}

// Asset is one uniquely identified unit inside a collection.
type Asset struct {
	Address          [32]byte
	Collection       [32]byte
	Owner            [20]byte
	Frozen           bool
	FreezeDelegate   *Delegate
	TransferDelegate *Delegate
	Adapter          *OracleAdapter
	Attributes       map[string]string
}

// Collection groups minted assets and carries the authoritative minted count.
type Collection struct {
	Address [32]byte
	Minted  uint64
}

// Registry is the in-memory program state. It is single-writer, matching the
// execution model of the ledger that drives it.
type Registry struct {
	assets      map[[32]byte]*Asset
	collections map[[32]byte]*Collection
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		assets:      make(map[[32]byte]*Asset),
		collections: make(map[[32]byte]*Collection),
	}
}

// CreateCollection registers an empty collection.
func (r *Registry) CreateCollection(address [32]byte) *Collection {
	col := &Collection{Address: address}
	r.collections[address] = col
	return col
}

// Mint creates an asset under a collection and bumps the minted count.
func (r *Registry) Mint(collection, asset [32]byte, owner [20]byte) (*Asset, error) {
	col, ok := r.collections[collection]
	if !ok {
		return nil, ErrCollectionNotFound
	}
	if _, ok := r.assets[asset]; ok {
		return nil, ErrAssetExists
	}
	a := &Asset{
		Address:    asset,
		Collection: collection,
		Owner:      owner,
		Attributes: make(map[string]string),
	}
	r.assets[asset] = a
	col.Minted++
	return a, nil
}

// Transfer moves ownership of an asset. A frozen asset cannot move.
func (r *Registry) Transfer(asset [32]byte, to [20]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.Frozen {
		return errors.New("assets: asset frozen")
	}
	a.Owner = to
	return nil
}

// Asset returns the stored asset record, if present.
func (r *Registry) Asset(asset [32]byte) (*Asset, bool) {
	a, ok := r.assets[asset]
	return a, ok
}

// MintedCount implements market.AssetProgram.
func (r *Registry) MintedCount(collection [32]byte) (uint64, error) {
	col, ok := r.collections[collection]
	if !ok {
		return 0, ErrCollectionNotFound
	}
	return col.Minted, nil
}

// AssetOwner implements market.AssetProgram.
func (r *Registry) AssetOwner(asset [32]byte) ([20]byte, error) {
	a, ok := r.assets[asset]
	if !ok {
		return [20]byte{}, ErrAssetNotFound
	}
	return a.Owner, nil
}

// AssetCollection implements market.AssetProgram.
func (r *Registry) AssetCollection(asset [32]byte) ([32]byte, error) {
	a, ok := r.assets[asset]
	if !ok {
		return [32]byte{}, ErrAssetNotFound
	}
	return a.Collection, nil
}

// GrantFreezeDelegate implements market.AssetProgram.
func (r *Registry) GrantFreezeDelegate(asset [32]byte, authority [32]byte, frozen bool) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.FreezeDelegate != nil {
		return ErrDelegateExists
	}
	a.FreezeDelegate = &Delegate{Authority: authority}
	a.Frozen = frozen
	return nil
}

// GrantTransferDelegate implements market.AssetProgram.
func (r *Registry) GrantTransferDelegate(asset [32]byte, authority [32]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.TransferDelegate != nil {
		return ErrDelegateExists
	}
	a.TransferDelegate = &Delegate{Authority: authority}
	return nil
}

// RevokeFreezeDelegate implements market.AssetProgram.
func (r *Registry) RevokeFreezeDelegate(asset [32]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.FreezeDelegate == nil {
		return ErrDelegateNotFound
	}
	a.FreezeDelegate = nil
	return nil
}

// RevokeTransferDelegate implements market.AssetProgram.
func (r *Registry) RevokeTransferDelegate(asset [32]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.TransferDelegate == nil {
		return ErrDelegateNotFound
	}
	a.TransferDelegate = nil
	return nil
}

// SetFrozen implements market.AssetProgram. Only the installed freeze
// delegate's authority may thaw or freeze the asset.
func (r *Registry) SetFrozen(asset [32]byte, authority [32]byte, frozen bool) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.FreezeDelegate == nil {
		return ErrDelegateNotFound
	}
	if a.FreezeDelegate.Authority != authority {
		return ErrNotDelegate
	}
	a.Frozen = frozen
	return nil
}

// InstallOracleAdapter implements market.AssetProgram. One adapter per asset,
// gating the transfer lifecycle event.
func (r *Registry) InstallOracleAdapter(asset [32]byte, oracle [32]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.Adapter != nil {
		return ErrAdapterExists
	}
	a.Adapter = &OracleAdapter{Oracle: oracle, Event: LifecycleTransfer}
	return nil
}

// RemoveOracleAdapter implements market.AssetProgram.
func (r *Registry) RemoveOracleAdapter(asset [32]byte) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.Adapter == nil {
		return ErrAdapterNotFound
	}
	a.Adapter = nil
	return nil
}

// UpdateAttribute implements market.AssetProgram.
func (r *Registry) UpdateAttribute(asset [32]byte, key, value string) error {
	a, ok := r.assets[asset]
	if !ok {
		return ErrAssetNotFound
	}
	if a.Attributes == nil {
		a.Attributes = make(map[string]string)
	}
	a.Attributes[key] = value
	return nil
}
