package model

// User is an Odoo user (res.users).
type User struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Login *string `json:"login"`
	Email *string `json:"email"`
}
