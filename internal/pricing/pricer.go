package pricing

// Package pricing turns a cart into priced order amounts. All prices are
// resolved server-side from the catalog; client-supplied prices are never
// trusted.

import (
	"fmt"
	"math"

	"github.com/freshfoldapp/freshfold/internal/catalog"
	"github.com/freshfoldapp/freshfold/internal/models"
)

// Settings are the externally configured pricing constants, read live at
// order-creation time.
type Settings struct {
	DeliveryFeeCents           int
	FreeDeliveryThresholdCents int
	TaxRateBasisPoints         int
}

// CartLine is a client-submitted line: an item name and quantity. The unit
// price comes from the catalog.
type CartLine struct {
	Name     string
	Quantity int
}

// CartGroup is a client-submitted service group: per-item lines for
// item-priced services, or a weight for per-kg services.
type CartGroup struct {
	ServiceID string
	Lines     []CartLine
	WeightKg  float64
}

// Quote is the complete priced breakdown of a cart. The invariant
// TotalCents == SubtotalCents - DiscountCents + DeliveryCents + TaxCents
// holds exactly.
type Quote struct {
	Items         []models.OrderItemGroup
	SubtotalCents int
	DiscountCents int
	DeliveryCents int
	TaxCents      int
	TotalCents    int
}

type Pricer struct {
	catalog *catalog.Catalog
}

func NewPricer(c *catalog.Catalog) *Pricer {
	return &Pricer{catalog: c}
}

// PriceCart resolves every cart group against the catalog and computes the
// subtotal. It returns models.ErrInvalidCart for an empty cart,
// non-positive quantities or weights, and unknown services or items.
func (p *Pricer) PriceCart(cart []CartGroup) ([]models.OrderItemGroup, int, error) {
	if len(cart) == 0 {
		return nil, 0, fmt.Errorf("%w: no items", models.ErrInvalidCart)
	}

	groups := make([]models.OrderItemGroup, 0, len(cart))
	subtotal := 0

	for _, cartGroup := range cart {
		service, err := p.catalog.FindService(cartGroup.ServiceID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", models.ErrInvalidCart, err)
		}

		group := models.OrderItemGroup{
			ServiceID:   service.ID,
			ServiceName: service.Name,
		}

		if service.PerWeight() {
			if len(cartGroup.Lines) > 0 {
				return nil, 0, fmt.Errorf("%w: service %s is priced per weight", models.ErrInvalidCart, service.ID)
			}
			if cartGroup.WeightKg <= 0 {
				return nil, 0, fmt.Errorf("%w: service %s requires a positive weight", models.ErrInvalidCart, service.ID)
			}
			group.WeightKg = cartGroup.WeightKg
			group.SubtotalCents = int(math.Round(cartGroup.WeightKg * float64(service.PerKgCents)))
		} else {
			if len(cartGroup.Lines) == 0 {
				return nil, 0, fmt.Errorf("%w: service %s has no lines", models.ErrInvalidCart, service.ID)
			}
			for _, line := range cartGroup.Lines {
				if line.Quantity <= 0 {
					return nil, 0, fmt.Errorf("%w: non-positive quantity for %s", models.ErrInvalidCart, line.Name)
				}
				unitPrice, err := service.ItemPrice(line.Name)
				if err != nil {
					return nil, 0, fmt.Errorf("%w: %v", models.ErrInvalidCart, err)
				}
				group.Lines = append(group.Lines, models.OrderItemLine{
					Name:           line.Name,
					Quantity:       line.Quantity,
					UnitPriceCents: unitPrice,
				})
				group.SubtotalCents += unitPrice * line.Quantity
			}
		}

		subtotal += group.SubtotalCents
		groups = append(groups, group)
	}

	return groups, subtotal, nil
}

// Finalize applies the delivery-charge rule and tax to a priced cart. The
// delivery fee is waived once the subtotal reaches the free-delivery
// threshold; tax applies to the discounted subtotal.
func Finalize(items []models.OrderItemGroup, subtotalCents, discountCents int, settings Settings) Quote {
	if discountCents > subtotalCents {
		discountCents = subtotalCents
	}

	delivery := settings.DeliveryFeeCents
	if subtotalCents >= settings.FreeDeliveryThresholdCents {
		delivery = 0
	}

	tax := taxCents(subtotalCents-discountCents, settings.TaxRateBasisPoints)

	return Quote{
		Items:         items,
		SubtotalCents: subtotalCents,
		DiscountCents: discountCents,
		DeliveryCents: delivery,
		TaxCents:      tax,
		TotalCents:    subtotalCents - discountCents + delivery + tax,
	}
}

// taxCents rounds half-up at the single point tax is computed.
func taxCents(baseCents, basisPoints int) int {
	return (baseCents*basisPoints + 5000) / 10000
}
