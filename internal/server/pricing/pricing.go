// Package pricing computes what a buyer pays for a material.
package pricing

import (
	"fmt"

	"github.com/psicopedagogiando/tienda/internal/server/models"
)

// FinalPrice applies discountPct only when onSale is set. The discount is
// clamped to 0..100 and the result rounded half-up to the cent.
func FinalPrice(priceCents int64, onSale bool, discountPct int) int64 {
	if !onSale || discountPct <= 0 {
		return priceCents
	}
	if discountPct >= 100 {
		return 0
	}
	return (priceCents*int64(100-discountPct) + 50) / 100
}

// ForMaterial returns the current price of m.
func ForMaterial(m *models.Material) int64 {
	return FinalPrice(m.PrecioCents, m.EnOferta, m.PorcentajeDescuento)
}

// DisplayPrice rounds cents to whole currency units for listings.
func DisplayPrice(cents int64) int64 {
	return (cents + 50) / 100
}

// Units converts cents to currency units for wire formats that expect a
// decimal amount.
func Units(cents int64) float64 {
	return float64(cents) / 100
}

// Format renders cents as a fixed two-decimal amount.
func Format(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
