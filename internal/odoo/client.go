// Package odoo is a read-only JSON-RPC client for an Odoo server. It owns the
// authentication session and turns untyped upstream rows into model records.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	"github.com/jmehdipour/odoo-gateway/internal/model"
	"go.uber.org/zap"
)

const (
	ContactModel = "res.partner"
	UserModel    = "res.users"
)

var (
	contactFields = []string{"name", "email", "phone", "company_name"}
	userFields    = []string{"name", "login", "email"}
)

const defaultTimeout = 5 * time.Second

type options struct {
	httpClient    *http.Client
	timeout       time.Duration
	apiKeyUID     int64
	failThreshold int
	openFor       time.Duration
	log           *zap.Logger
}

type Option func(*options)

// WithHTTPClient replaces the default client; its Timeout is kept as is.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithAPIKeyUID sets the uid presented in api-key mode.
func WithAPIKeyUID(uid int64) Option { return func(o *options) { o.apiKeyUID = uid } }

// WithBreaker configures the breaker: threshold consecutive transport failures
// open it for openFor.
func WithBreaker(threshold int, openFor time.Duration) Option {
	return func(o *options) {
		o.failThreshold = threshold
		o.openFor = openFor
	}
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// Client reads contacts and users. It is safe for concurrent use and owns
// exactly one Session.
type Client struct {
	creds   Credentials
	session *Session
	rpc     *transport
	log     *zap.Logger
}

// New builds a client for the server at baseURL (no trailing slash).
func New(baseURL string, creds Credentials, opts ...Option) *Client {
	o := options{timeout: defaultTimeout, apiKeyUID: 1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = defaultTimeout
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	var apiKey string
	if creds.Mode == ModeAPIKey {
		apiKey = creds.Secret
	}

	return &Client{
		creds:   creds,
		session: NewSession(creds, o.apiKeyUID),
		rpc:     newTransport(baseURL, apiKey, o.httpClient, o.failThreshold, o.openFor, o.log),
		log:     o.log,
	}
}

// NewFromConfig resolves credentials from cfg and builds a client.
func NewFromConfig(cfg config.OdooConfig, opts ...Option) *Client {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithAPIKeyUID(cfg.APIKeyUID),
		WithBreaker(cfg.Breaker.FailThreshold, cfg.Breaker.OpenFor),
	}
	return New(cfg.URL, ResolveCredentials(cfg), append(base, opts...)...)
}

func (c *Client) Session() *Session { return c.session }

// Authenticate makes sure the session is established and returns its uid.
func (c *Client) Authenticate(ctx context.Context) (int64, error) {
	tok, err := c.session.Ensure(ctx, c.login)
	if err != nil {
		return 0, err
	}
	return tok.UID, nil
}

// ListContacts returns every contact in upstream order.
func (c *Client) ListContacts(ctx context.Context) ([]model.Contact, error) {
	recs, err := c.read(ctx, ContactModel, nil, contactFields)
	if err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(recs))
	for _, r := range recs {
		ct, err := toContact(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// GetContact returns one contact; ErrNotFound when id matches nothing.
func (c *Client) GetContact(ctx context.Context, id int64) (model.Contact, error) {
	recs, err := c.read(ctx, ContactModel, []int64{id}, contactFields)
	if err != nil {
		return model.Contact{}, err
	}
	if len(recs) == 0 {
		return model.Contact{}, fmt.Errorf("%w: %s id=%d", ErrNotFound, ContactModel, id)
	}
	return toContact(recs[0])
}

// ListUsers returns every user in upstream order.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	recs, err := c.read(ctx, UserModel, nil, userFields)
	if err != nil {
		return nil, err
	}
	out := make([]model.User, 0, len(recs))
	for _, r := range recs {
		u, err := toUser(r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Close releases idle upstream connections.
func (c *Client) Close() {
	c.rpc.client.CloseIdleConnections()
}

// read runs search_read on modelName; an empty ids slice means all records.
func (c *Client) read(ctx context.Context, modelName string, ids []int64, fields []string) ([]rawRecord, error) {
	tok, err := c.session.Ensure(ctx, c.login)
	if err != nil {
		metrics.UpstreamCallsTotal.WithLabelValues(modelName, "auth").Inc()
		return nil, err
	}

	domain := []any{}
	if len(ids) > 0 {
		domain = append(domain, []any{"id", "in", ids})
	}

	raw, err := c.rpc.call(ctx, "object", "execute_kw",
		tok.Database, tok.UID, tok.Secret, modelName, "search_read",
		[]any{domain},
		map[string]any{"fields": fields},
	)
	if err == nil {
		var recs []rawRecord
		if recs, err = decodeRecords(raw); err == nil {
			metrics.UpstreamCallsTotal.WithLabelValues(modelName, "ok").Inc()
			return recs, nil
		}
	}

	outcome := "fault"
	switch {
	case errors.Is(err, ErrAuthentication):
		outcome = "auth"
	case errors.Is(err, ErrUpstreamUnavailable):
		outcome = "unavailable"
	}
	metrics.UpstreamCallsTotal.WithLabelValues(modelName, outcome).Inc()
	c.log.Warn("odoo read failed", zap.String("model", modelName), zap.Error(err))
	return nil, err
}

func (c *Client) login(ctx context.Context, creds Credentials) (int64, error) {
	if creds.Database == "" || creds.Username == "" {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return 0, fmt.Errorf("%w: database and username are required", ErrAuthentication)
	}

	raw, err := c.rpc.call(ctx, "common", "login", creds.Database, creds.Username, creds.Secret)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		c.log.Error("odoo login failed", zap.String("db", creds.Database), zap.String("user", creds.Username), zap.Error(err))
		return 0, err
	}

	// the uid comes back as an integer, or false/null when credentials are rejected
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		c.log.Warn("odoo login rejected", zap.String("db", creds.Database), zap.String("user", creds.Username))
		return 0, nil
	}
	var uid int64
	if err := json.Unmarshal(trimmed, &uid); err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		err = unavailable("login: unexpected result %s", trimmed)
		c.log.Error("odoo login failed", zap.String("db", creds.Database), zap.String("user", creds.Username), zap.Error(err))
		return 0, err
	}
	if uid <= 0 {
		metrics.LoginsTotal.WithLabelValues("rejected").Inc()
		return 0, nil
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	c.log.Info("odoo session established", zap.String("db", creds.Database), zap.Int64("uid", uid))
	return uid, nil
}
