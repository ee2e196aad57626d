package model

// Contact is a business contact (res.partner). Optional fields are nil when the
// upstream value is unset, never an empty string standing in for "unset".
type Contact struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	CompanyName *string `json:"company_name"`
}
