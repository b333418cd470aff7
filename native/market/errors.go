package market

import "errors"

var (
	ErrSlotNotFound        = errors.New("market: placement slot not found")
	ErrListingNotFound     = errors.New("market: product listing not found")
	ErrOracleNotFound      = errors.New("market: order oracle not found")
	ErrEscrowNotFound      = errors.New("market: escrow not found")
	ErrEscrowMismatch      = errors.New("market: escrow reference mismatch")
	ErrProductMismatch     = errors.New("market: asset does not belong to listing")
	ErrUnauthorized        = errors.New("market: unauthorized")
	ErrSlotExists          = errors.New("market: placement slot already registered")
	ErrListingExists       = errors.New("market: product listing already registered")
	ErrOracleExists        = errors.New("market: order oracle already registered")
	ErrSlotDeactivated     = errors.New("market: placement slot deactivated")
	ErrListingDeactivated  = errors.New("market: product listing deactivated")
	ErrSlotOccupied        = errors.New("market: placement slot already occupied")
	ErrListingBound        = errors.New("market: listing already bound to a slot")
	ErrListingNotEmpty     = errors.New("market: listing must have zero stock and zero sold")
	ErrOrderNotPlaced      = errors.New("market: order not in placed status")
	ErrOrdersInProgress    = errors.New("market: orders in progress block removal")
	ErrOrderNotCompleted   = errors.New("market: order not completed")
	ErrOutOfStock          = errors.New("market: product out of stock")
	ErrInvalidQuantity     = errors.New("market: quantity must be positive")
	ErrPriceNotSet         = errors.New("market: listing price not set")
	ErrInvalidStatus       = errors.New("market: unsupported order status")
	ErrInvalidBatch        = errors.New("market: batch size out of range")
	ErrBatchMismatch       = errors.New("market: batch does not match minted asset count")
	ErrInsufficientBalance = errors.New("market: insufficient balance")
	ErrOracleConflict      = errors.New("market: oracle validation already advanced")
	ErrInvalidAssetRecord  = errors.New("market: malformed asset record")

	errNilState  = errors.New("market engine: state not configured")
	errNilAssets = errors.New("market engine: asset program not configured")
)

// Taxonomy codes surfaced to callers alongside the reason string.
const (
	CodeNotFound                   = "not_found"
	CodeUnauthorized               = "unauthorized"
	CodeInvalidState               = "invalid_state"
	CodeInvalidBatch               = "invalid_batch"
	CodeInsufficientBalance        = "insufficient_balance"
	CodeExternalValidationConflict = "external_validation_conflict"
	CodeInternal                   = "internal"
)

// Code maps an engine failure onto its taxonomy code.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSlotNotFound),
		errors.Is(err, ErrListingNotFound),
		errors.Is(err, ErrOracleNotFound),
		errors.Is(err, ErrEscrowNotFound),
		errors.Is(err, ErrEscrowMismatch),
		errors.Is(err, ErrProductMismatch):
		return CodeNotFound
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInvalidBatch),
		errors.Is(err, ErrBatchMismatch):
		return CodeInvalidBatch
	case errors.Is(err, ErrInsufficientBalance):
		return CodeInsufficientBalance
	case errors.Is(err, ErrOracleConflict),
		errors.Is(err, ErrInvalidAssetRecord):
		return CodeExternalValidationConflict
	case errors.Is(err, ErrSlotExists),
		errors.Is(err, ErrListingExists),
		errors.Is(err, ErrOracleExists),
		errors.Is(err, ErrSlotDeactivated),
		errors.Is(err, ErrListingDeactivated),
		errors.Is(err, ErrSlotOccupied),
		errors.Is(err, ErrListingBound),
		errors.Is(err, ErrListingNotEmpty),
		errors.Is(err, ErrOrderNotPlaced),
		errors.Is(err, ErrOrdersInProgress),
		errors.Is(err, ErrOrderNotCompleted),
		errors.Is(err, ErrOutOfStock),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrPriceNotSet),
		errors.Is(err, ErrInvalidStatus):
		return CodeInvalidState
	default:
		return CodeInternal
	}
}
