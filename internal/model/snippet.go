// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet is a stored, shareable piece of described code.
//
// The record is append-only: once created, the only field that ever changes
// is AccessCount, and only the /start retrieval path increments it.
//
// ID FORMAT:
// The ID is opaque to everything above the repository layer. The SQLite store
// hands out xid strings ("cv37rs3pp9olc6atsptg"), the Mongo store hands out
// ObjectID hex strings. Both fit inside Telegram's 64-character deep-link payload.
type Snippet struct {
	ID          string    `json:"id"`
	Language    string    `json:"language"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	CreatedBy   string    `json:"createdBy"`             // submitter's handle, by value (no foreign key)
	AccessCount int64     `json:"accessCount"`           // never decreases
	Image       string    `json:"image,omitempty"`       // Telegram file id or URL, optional
	CreatedAt   time.Time `json:"createdAt"`
}
