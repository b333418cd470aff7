package market

// AssetProgram is the narrow contract this core requires from the external
// asset-permission program. The engine never depends on that program's record
// layout beyond what these methods expose, so the test suite can substitute a
// double and deployments can bind a real adapter.
//
// Delegate authorities are 32-byte record addresses (normally the listing's
// derived address), matching the permission model where the listing itself
// holds freeze and transfer delegation over every bound asset.
type AssetProgram interface {
	// MintedCount returns the authoritative number of assets minted under a
	// collection.
	MintedCount(collection [32]byte) (uint64, error)
	// AssetOwner returns the asset's recorded owner.
	AssetOwner(asset [32]byte) ([20]byte, error)
	// AssetCollection returns the collection an asset was minted under.
	AssetCollection(asset [32]byte) ([32]byte, error)
	// GrantFreezeDelegate installs a freeze delegate with the supplied
	// authority, optionally freezing the asset immediately.
	GrantFreezeDelegate(asset [32]byte, authority [32]byte, frozen bool) error
	// GrantTransferDelegate installs a transfer delegate with the supplied
	// authority.
	GrantTransferDelegate(asset [32]byte, authority [32]byte) error
	// RevokeFreezeDelegate removes the freeze delegate.
	RevokeFreezeDelegate(asset [32]byte) error
	// RevokeTransferDelegate removes the transfer delegate.
	RevokeTransferDelegate(asset [32]byte) error
	// SetFrozen thaws or freezes the asset on behalf of the delegate
	// authority.
	SetFrozen(asset [32]byte, authority [32]byte, frozen bool) error
	// InstallOracleAdapter binds the oracle record address as the gate source
	// consulted on the asset's transfer lifecycle event.
	InstallOracleAdapter(asset [32]byte, oracle [32]byte) error
	// RemoveOracleAdapter removes the oracle gate binding.
	RemoveOracleAdapter(asset [32]byte) error
	// UpdateAttribute writes human-readable status metadata onto the asset.
	UpdateAttribute(asset [32]byte, key, value string) error
}
