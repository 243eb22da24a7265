package models

import (
	"encoding/json"
	"time"
)

// ContentBlock is an editable section of the public site stored as free-form
// JSON keyed by section name.
type ContentBlock struct {
	Seccion   string
	Valores   json.RawMessage
	UpdatedAt time.Time
}

// Post types.
const (
	PostTypeImage = "imagen"
	PostTypeVideo = "video"
	PostTypeText  = "texto"
)

// Post is an entry of the "psicopedagogiando" feed. For video posts URLMedia
// holds a bare YouTube video id; for image posts it holds a public URL and
// MediaKey the object key backing it.
type Post struct {
	ID          string
	Tipo        string
	Titulo      string
	Contenido   string
	URLMedia    string
	MediaKey    string
	LinkExterno string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
