package odoo

import (
	"testing"

	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestResolveCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.OdooConfig
		want Credentials
	}{
		{
			name: "api key wins over password",
			cfg:  config.OdooConfig{DB: "odoo", Username: "admin", Password: "admin", APIKey: "key-123"},
			want: Credentials{Mode: ModeAPIKey, Database: "odoo", Username: "admin", Secret: "key-123"},
		},
		{
			name: "password mode without key",
			cfg:  config.OdooConfig{DB: "odoo", Username: "admin", Password: "secret"},
			want: Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "secret"},
		},
		{
			name: "blank key is ignored",
			cfg:  config.OdooConfig{DB: "odoo", Username: "admin", Password: "secret", APIKey: "   "},
			want: Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "secret"},
		},
		{
			name: "missing username is resolved, not rejected",
			cfg:  config.OdooConfig{DB: "", Username: "", Password: "x"},
			want: Credentials{Mode: ModePassword, Secret: "x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveCredentials(tt.cfg))
		})
	}
}

func TestCredentials_StringRedactsSecret(t *testing.T) {
	c := Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.Contains(t, c.String(), "user=admin")
}
