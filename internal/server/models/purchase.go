package models

import "time"

// Purchase is the immutable record of one paid (or simulated) acquisition.
// Buyer and material fields are snapshots taken when the purchase was
// recorded and never follow later profile or catalog edits.
type Purchase struct {
	ID                string
	UserID            string
	MaterialID        string
	PaymentID         string
	Status            string
	NombreUsuario     string
	EmailUsuario      string
	NombreMaterial    string
	PrecioPagadoCents int64
	Fecha             time.Time
}

// PurchaseHistoryItem is a purchase joined with what is still known about the
// material it refers to.
type PurchaseHistoryItem struct {
	Purchase
	MaterialAvailable bool
	ImagenPortada     string
}
