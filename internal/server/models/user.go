// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is an account together with its editable profile. Role is only ever
// read from the stored row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Nombre       string
	Telefono     string
	Pais         string
	FechaNac     *time.Time
	Rol          string
	CreatedAt    time.Time
}
