package market

// ExternalValidationResult is a single permission-gate flag consumed by the
// external asset program when an asset lifecycle event is attempted.
type ExternalValidationResult uint8

const (
	ValidationApproved ExternalValidationResult = iota
	ValidationRejected
	ValidationPass
)

// Valid reports whether the result value is within the supported range.
func (r ExternalValidationResult) Valid() bool {
	return r <= ValidationPass
}

func (r ExternalValidationResult) String() string {
	switch r {
	case ValidationApproved:
		return "approved"
	case ValidationRejected:
		return "rejected"
	case ValidationPass:
		return "pass"
	default:
		return "invalid"
	}
}

// validationVersion tags the only live layout of the vector. Version zero is
// the uninitialized sentinel.
const validationVersion = 1

// ValidationVector is the four-flag gate (create/transfer/burn/update) read by
// the external asset program. Vectors are value types compared with ==, which
// is what makes the purchase path's single-use check work.
type ValidationVector struct {
	Version  uint8
	Create   ExternalValidationResult
	Transfer ExternalValidationResult
	Burn     ExternalValidationResult
	Update   ExternalValidationResult
}

// NewValidationVector builds a vector at the current version.
func NewValidationVector(create, transfer, burn, update ExternalValidationResult) ValidationVector {
	return ValidationVector{
		Version:  validationVersion,
		Create:   create,
		Transfer: transfer,
		Burn:     burn,
		Update:   update,
	}
}

// Initialized reports whether the vector carries the live layout version.
func (v ValidationVector) Initialized() bool {
	return v.Version == validationVersion
}

// DefaultValidation is the awaiting-purchase vector installed when an oracle
// is registered. The purchase operation requires the oracle to still carry
// exactly this vector, making it a single-use token against double purchase.
func DefaultValidation() ValidationVector {
	return NewValidationVector(ValidationPass, ValidationRejected, ValidationPass, ValidationPass)
}

// purchaseValidation blocks creation exploitation after a unit is bought
// while the order works through fulfillment.
func purchaseValidation() ValidationVector {
	return NewValidationVector(ValidationPass, ValidationRejected, ValidationPass, ValidationRejected)
}

// ValidationForStatus is the single chokepoint deriving the gate vector from
// an order status. The vector must never be mutated anywhere else.
func ValidationForStatus(status OrderStatus) (ValidationVector, error) {
	switch status {
	case OrderPlaced, OrderPending:
		return NewValidationVector(ValidationPass, ValidationRejected, ValidationPass, ValidationPass), nil
	case OrderConfirmed, OrderFulfilled, OrderDelivered:
		return NewValidationVector(ValidationRejected, ValidationRejected, ValidationRejected, ValidationPass), nil
	case OrderCompleted, OrderCancelled:
		return NewValidationVector(ValidationApproved, ValidationApproved, ValidationRejected, ValidationPass), nil
	default:
		return ValidationVector{}, ErrInvalidStatus
	}
}
