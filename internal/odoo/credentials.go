package odoo

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/odoo-gateway/internal/config"
)

// Mode selects how the client authenticates against Odoo.
type Mode string

const (
	ModeAPIKey   Mode = "api_key"
	ModePassword Mode = "password"
)

// Credentials is the resolved authentication strategy. Secret is the api key in
// ModeAPIKey and the password in ModePassword.
type Credentials struct {
	Mode     Mode
	Database string
	Username string
	Secret   string
}

// ResolveCredentials picks api-key mode whenever a key is configured and falls
// back to username/password otherwise. Missing username or database is not an
// error here; the login attempt reports it.
func ResolveCredentials(cfg config.OdooConfig) Credentials {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return Credentials{
			Mode:     ModeAPIKey,
			Database: cfg.DB,
			Username: cfg.Username,
			Secret:   key,
		}
	}
	return Credentials{
		Mode:     ModePassword,
		Database: cfg.DB,
		Username: cfg.Username,
		Secret:   cfg.Password,
	}
}

// String never includes the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("mode=%s db=%s user=%s secret=[redacted]", c.Mode, c.Database, c.Username)
}
