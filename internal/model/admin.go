package model

import "time"

// AdminSession is a logged-in admin viewer, stored in redis under the
// HMAC of its token.
type AdminSession struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SelectionStats summarizes progress across all provisioned students.
type SelectionStats struct {
	Total   int `db:"total" json:"total"`
	Chosen  int `db:"chosen" json:"chosen"`
	Pending int `db:"-" json:"pending"`
}

type CreateAdminSessionParams struct {
	TokenHash string
	ExpiresAt time.Time
}
