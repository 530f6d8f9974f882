package models

import "time"

// Credentials is the single stored Bluesky login: account handle (or DID) and
// an app password. The store keeps at most one row.
type Credentials struct {
	ID         int64     `db:"id" json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Password   string    `db:"password" json:"password"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
