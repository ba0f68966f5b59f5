package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tably/order-engine/internal/domain/catalog"
	"github.com/tably/order-engine/internal/domain/fault"
)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string
	Quantity  int
	Notes     string
	Addons    []AddonInput
}

// AddonInput is one requested addon on an order line.
type AddonInput struct {
	AddonID  string
	Quantity int
}

// buildItems resolves every product and addon through the catalog, snapshots
// names and prices, and computes per-line subtotals. It fails before any
// mutation when a reference is missing, inactive, or has a non-positive
// quantity.
func buildItems(ctx context.Context, resolver catalog.Resolver, tenantID string, inputs []ItemInput) ([]Item, error) {
	if len(inputs) == 0 {
		return nil, fault.Wrap(ErrEmptyItems, fault.ValidationFailed, "order has no items")
	}

	items := make([]Item, 0, len(inputs))
	for _, in := range inputs {
		if in.Quantity <= 0 {
			return nil, fault.Wrap(ErrInvalidQuantity, fault.ValidationFailed,
				"product %s: quantity must be greater than 0", in.ProductID)
		}

		p, err := resolver.GetProduct(ctx, tenantID, in.ProductID)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return nil, fault.Wrap(err, fault.NotFound, "product %s not found", in.ProductID)
			}
			return nil, classifyUpstream(err, "resolve product %s", in.ProductID)
		}
		if !p.Active {
			return nil, fault.New(fault.InactiveEntity, "product %s is inactive", in.ProductID)
		}

		item := Item{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  in.Quantity,
			Notes:     in.Notes,
		}

		for _, ain := range in.Addons {
			if ain.Quantity <= 0 {
				return nil, fault.Wrap(ErrInvalidQuantity, fault.ValidationFailed,
					"addon %s: quantity must be greater than 0", ain.AddonID)
			}

			a, err := resolver.GetAddon(ctx, tenantID, ain.AddonID)
			if err != nil {
				if errors.Is(err, catalog.ErrAddonNotFound) {
					return nil, fault.Wrap(err, fault.NotFound, "addon %s not found", ain.AddonID)
				}
				return nil, classifyUpstream(err, "resolve addon %s", ain.AddonID)
			}
			if !a.Active {
				return nil, fault.New(fault.InactiveEntity, "addon %s is inactive", ain.AddonID)
			}

			item.Addons = append(item.Addons, ItemAddon{
				AddonID:   a.ID,
				Name:      a.Name,
				UnitPrice: a.Price,
				Quantity:  ain.Quantity,
				Subtotal:  a.Price.Mul(decimal.NewFromInt(int64(ain.Quantity))).Round(2),
			})
		}

		item.Subtotal = itemSubtotal(item)
		items = append(items, item)
	}

	return items, nil
}

// itemSubtotal computes unitPrice×qty plus all addon subtotals.
func itemSubtotal(item Item) decimal.Decimal {
	sum := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
	for _, a := range item.Addons {
		sum = sum.Add(a.Subtotal)
	}
	return sum.Round(2)
}

// reprice recomputes the order's subtotal and total from scratch. Item edits
// always go through here; totals are never adjusted incrementally.
func reprice(o *Order) {
	subtotal := decimal.Zero
	for _, item := range o.Items {
		subtotal = subtotal.Add(item.Subtotal)
	}
	o.Subtotal = subtotal.Round(2)

	total := o.Subtotal.Add(o.DeliveryFee).Sub(o.DiscountAmount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total.Round(2)
}
