// Package fault classifies operation failures into a small set of kinds that
// the transport layer maps onto response codes. Domain packages wrap their
// errors with a kind at the point where the failure is understood; everything
// unclassified is treated as Internal.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind is a failure category.
type Kind string

const (
	// ValidationFailed marks malformed or semantically invalid input.
	ValidationFailed Kind = "validation_failed"
	// NotFound marks a missing entity reference.
	NotFound Kind = "not_found"
	// InactiveEntity marks a reference to an entity that exists but is disabled.
	InactiveEntity Kind = "inactive_entity"
	// InvalidStatusTransition marks a lifecycle move the status engine forbids.
	InvalidStatusTransition Kind = "invalid_status_transition"
	// CouponRejected marks a coupon that failed an eligibility check.
	CouponRejected Kind = "coupon_rejected"
	// Conflict marks a write that lost to a concurrent one.
	Conflict Kind = "conflict"
	// UpstreamUnavailable marks a dependency timeout or cancellation; the
	// caller may retry.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// Internal marks everything else.
	Internal Kind = "internal"
)

// Error carries a failure kind alongside a human-readable message and the
// underlying cause.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with no underlying cause.
func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// KindOf extracts the kind of the outermost classified error in err's chain.
// Unclassified errors report Internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// IsKind reports whether err's chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
