package odoo

import (
	"bytes"
	"encoding/json"

	"github.com/jmehdipour/odoo-gateway/internal/model"
)

// rawRecord is one upstream row keyed by field name. It never leaves this package.
type rawRecord map[string]json.RawMessage

func decodeRecords(raw json.RawMessage) ([]rawRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, unavailable("expected a record list, got %.64q", string(trimmed))
	}
	var recs []rawRecord
	if err := json.Unmarshal(trimmed, &recs); err != nil {
		return nil, unavailable("decode records: %v", err)
	}
	return recs, nil
}

func (r rawRecord) id() (int64, error) {
	v, ok := r["id"]
	if !ok {
		return 0, unavailable("record without id")
	}
	var id int64
	if err := json.Unmarshal(v, &id); err != nil || id <= 0 {
		return 0, unavailable("invalid record id %s", string(v))
	}
	return id, nil
}

// str maps a field to *string. Odoo encodes unset values as false, so false,
// null, a missing field or any non-string value become nil.
func (r rawRecord) str(field string) *string {
	v, ok := r[field]
	if !ok {
		return nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return nil
	}
	return &s
}

func toContact(r rawRecord) (model.Contact, error) {
	id, err := r.id()
	if err != nil {
		return model.Contact{}, err
	}
	c := model.Contact{
		ID:          id,
		Name:        r.str("name"),
		Email:       r.str("email"),
		Phone:       r.str("phone"),
		CompanyName: r.str("company_name"),
	}
	// an empty company is "no company"
	if c.CompanyName != nil && *c.CompanyName == "" {
		c.CompanyName = nil
	}
	return c, nil
}

func toUser(r rawRecord) (model.User, error) {
	id, err := r.id()
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:    id,
		Name:  r.str("name"),
		Login: r.str("login"),
		Email: r.str("email"),
	}, nil
}
