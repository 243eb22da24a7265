package models

import "time"

// Material is a downloadable product. Prices are kept in cents.
type Material struct {
	ID                  string
	Nombre              string
	Descripcion         string
	Edad                string
	PrecioCents         int64
	EnOferta            bool
	PorcentajeDescuento int
	// ArchivoKey is the object key of the full PDF in the private bucket.
	ArchivoKey string
	// PreviewURL and ImagenPortada are public URLs.
	PreviewURL    string
	ImagenPortada string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MaterialFilter narrows catalog listings. Empty fields match everything.
type MaterialFilter struct {
	Query string
	Edad  string
}
