package ledger

import "errors"

// Sentinel errors for the allocation ledger. Handlers match these with
// errors.Is to pick a response status; callers must never see a partial
// state alongside any of them.
var (
	// ErrInsufficientStock means the requested allocation or increase exceeds
	// the material's currently free stock. Recoverable by the caller; never
	// retried automatically.
	ErrInsufficientStock = errors.New("insufficient free stock")

	// ErrAllocationExists means the (material, machine) pair already has an
	// allocation; the caller should update it instead of creating a duplicate.
	ErrAllocationExists = errors.New("allocation already exists for this machine")

	ErrAllocationNotFound = errors.New("allocation not found")
	ErrMaterialNotFound   = errors.New("material not found")
	ErrMachineNotFound    = errors.New("machine not found")

	// ErrDuplicateMachine means a batch create listed the same machine twice.
	ErrDuplicateMachine = errors.New("duplicate machine in batch")

	// ErrNegativeStock means a negative allocated quantity was requested.
	ErrNegativeStock = errors.New("allocated stock cannot be negative")

	// ErrEmptyBatch means a batch create carried no items.
	ErrEmptyBatch = errors.New("allocation batch is empty")

	// ErrMachineUnavailable means the target machine is not active. Policy
	// check applied on creation only.
	ErrMachineUnavailable = errors.New("machine is not active")

	// ErrConcurrentModification is surfaced when the bounded retry on
	// serialization conflicts is exhausted.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrStorageUnavailable wraps unexpected storage-layer failures. May be
	// retried by the caller; never silently swallowed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// IsNotFound reports whether err refers to a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrMachineNotFound)
}

// IsValidation reports whether err is a business-rule rejection the caller
// can fix by changing the request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateMachine) ||
		errors.Is(err, ErrNegativeStock) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrMachineUnavailable)
}

// IsConflict reports whether err should map to a conflict response.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAllocationExists) ||
		errors.Is(err, ErrConcurrentModification)
}
