// Package customer identifies guests by phone number within a tenant.
package customer

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no customer matches the phone number.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalidPhone is returned when a phone number cannot be normalized.
	ErrInvalidPhone = errors.New("invalid phone number")
)

// Customer is a guest linked to a tenant by phone number.
type Customer struct {
	ID        string
	TenantID  string
	Name      string
	Phone     string
	CreatedAt time.Time
}

// Info is the customer data supplied with an order.
type Info struct {
	Name  string
	Phone string
}

// Directory finds or registers customers.
//
// CreateAndLink is create-or-get: when a concurrent request registers the same
// (tenant, phone) pair first, the surviving record is returned instead of an
// error.
type Directory interface {
	FindByPhone(ctx context.Context, tenantID, phone string) (*Customer, error)
	CreateAndLink(ctx context.Context, tenantID string, info Info) (*Customer, error)
}

// NormalizePhone strips formatting characters and validates the digit count.
// The normalized form is the identity key, so "+1 (555) 123-4567" and
// "15551234567" resolve to the same customer.
func NormalizePhone(raw string) (string, error) {
	normalized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '(', ')', '-', '+', '.':
			return -1
		}
		return r
	}, raw)

	if len(normalized) < 10 || len(normalized) > 11 {
		return "", ErrInvalidPhone
	}
	for _, r := range normalized {
		if r < '0' || r > '9' {
			return "", ErrInvalidPhone
		}
	}
	return normalized, nil
}
