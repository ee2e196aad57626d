package odoo

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/jmehdipour/odoo-gateway/internal/model"
	"github.com/jmehdipour/odoo-gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func seedContacts(f *testutil.FakeOdoo) {
	f.SetRecords(ContactModel,
		map[string]any{"id": 1, "name": "John Doe", "email": "john@example.com", "phone": "123456789", "company_name": "Acme Corp"},
		map[string]any{"id": 2, "name": "Jane Smith", "email": false, "phone": false, "company_name": false},
		map[string]any{"id": 3, "name": "No Company", "email": "nc@example.com", "phone": "1", "company_name": ""},
	)
}

func newPasswordClient(f *testutil.FakeOdoo, opts ...Option) *Client {
	return New(f.URL, Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "admin"}, opts...)
}

func TestClient_ListContacts(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	seedContacts(f)
	c := newPasswordClient(f)

	got, err := c.ListContacts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, model.Contact{
		ID: 1, Name: strp("John Doe"), Email: strp("john@example.com"),
		Phone: strp("123456789"), CompanyName: strp("Acme Corp"),
	}, got[0])
	assert.Equal(t, model.Contact{ID: 2, Name: strp("Jane Smith")}, got[1])
	assert.Nil(t, got[2].CompanyName)
	assert.Equal(t, int64(3), got[2].ID)

	assert.Equal(t, int32(1), f.LoginCalls.Load())
	assert.Equal(t, StateAuthenticated, c.Session().State())
	assert.Equal(t, int64(2), c.Session().UID())
}

func TestClient_ListContacts_RequestShape(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	c := newPasswordClient(f)

	_, err := c.ListContacts(context.Background())
	require.NoError(t, err)

	reqs := f.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "common", reqs[0].Params.Service)
	assert.Equal(t, "login", reqs[0].Params.Method)

	read := reqs[1]
	assert.Equal(t, "object", read.Params.Service)
	assert.Equal(t, "execute_kw", read.Params.Method)
	require.Len(t, read.Params.Args, 7)
	assert.JSONEq(t, `"res.partner"`, string(read.Params.Args[3]))
	assert.JSONEq(t, `"search_read"`, string(read.Params.Args[4]))
	assert.JSONEq(t, `[[]]`, string(read.Params.Args[5]))
	assert.JSONEq(t, `{"fields":["name","email","phone","company_name"]}`, string(read.Params.Args[6]))
}

func TestClient_ListContacts_Empty(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	c := newPasswordClient(f)

	got, err := c.ListContacts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClient_GetContact(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	seedContacts(f)
	c := newPasswordClient(f)

	got, err := c.GetContact(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Acme Corp", *got.CompanyName)

	reqs := f.Requests()
	assert.JSONEq(t, `[[["id","in",[1]]]]`, string(reqs[len(reqs)-1].Params.Args[5]))
}

func TestClient_GetContact_NotFound(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	seedContacts(f)
	c := newPasswordClient(f)

	_, err := c.GetContact(context.Background(), 999)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, ErrUpstream)
}

func TestClient_ListUsers(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.SetRecords(UserModel,
		map[string]any{"id": 2, "name": "Administrator", "login": "admin", "email": "admin@example.com"},
		map[string]any{"id": 5, "name": "Portal", "login": "portal", "email": false},
	)
	c := newPasswordClient(f)

	got, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.User{
		{ID: 2, Name: strp("Administrator"), Login: strp("admin"), Email: strp("admin@example.com")},
		{ID: 5, Name: strp("Portal"), Login: strp("portal")},
	}, got)

	reqs := f.Requests()
	assert.JSONEq(t, `{"fields":["name","login","email"]}`, string(reqs[len(reqs)-1].Params.Args[6]))
}

func TestClient_APIKeyMode(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.APIKey = "key-123"
	f.UID = 1
	seedContacts(f)

	c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Username: "admin", Secret: "key-123"})
	got, err := c.ListContacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)

	assert.Equal(t, int32(0), f.LoginCalls.Load())
	reqs := f.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "key-123", reqs[0].APIKeyHeader)
	assert.JSONEq(t, `"key-123"`, string(reqs[0].Params.Args[2]))
	assert.JSONEq(t, `1`, string(reqs[0].Params.Args[1]))
}

func TestClient_PasswordModeSendsNoAPIKeyHeader(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	c := newPasswordClient(f)

	_, err := c.ListUsers(context.Background())
	require.NoError(t, err)
	for _, r := range f.Requests() {
		assert.Empty(t, r.APIKeyHeader)
	}
}

func TestClient_BadPassword(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	c := New(f.URL, Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "wrong"})

	_, err := c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, StateFailed, c.Session().State())

	_, err = c.ListUsers(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), f.LoginCalls.Load())
	assert.Equal(t, int32(0), f.ReadCalls.Load())
}

func TestClient_LoginResultShapes(t *testing.T) {
	tests := []struct {
		name        string
		result      any
		unavailable bool
	}{
		{name: "false", result: false},
		{name: "null", result: nil},
		{name: "zero", result: 0},
		{name: "string", result: "2", unavailable: true},
		{name: "object", result: map[string]any{"uid": 2}, unavailable: true},
		{name: "list", result: []int{2}, unavailable: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFakeOdoo(t)
			f.Override = func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				if req.Params.Service != "common" {
					return false
				}
				testutil.WriteResult(w, tt.result)
				return true
			}
			c := newPasswordClient(f)

			_, err := c.ListContacts(context.Background())
			assert.ErrorIs(t, err, ErrAuthentication)
			if tt.unavailable {
				assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			} else {
				assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
			}
			assert.Equal(t, StateFailed, c.Session().State())
			assert.Equal(t, int32(0), f.ReadCalls.Load())
		})
	}
}

func TestClient_MissingUsernameFailsAtLogin(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	c := New(f.URL, Credentials{Mode: ModePassword, Database: "odoo", Secret: "admin"})

	_, err := c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(0), f.LoginCalls.Load())
}

func TestClient_ConcurrentFirstCallsLoginOnce(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.LoginDelay = 50 * time.Millisecond
	seedContacts(f)
	c := newPasswordClient(f)

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ListContacts(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.LoginCalls.Load())
	assert.Equal(t, int32(n), f.ReadCalls.Load())
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		override func(w http.ResponseWriter, req testutil.RPCRequest) bool
		want     error
		notWant  error
	}{
		{
			name: "server fault",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				testutil.WriteFault(w, "builtins.ValueError", "Invalid field 'phone'")
				return true
			},
			want:    ErrUpstream,
			notWant: ErrUpstreamUnavailable,
		},
		{
			name: "access denied on read",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				testutil.WriteFault(w, "odoo.exceptions.AccessDenied", "Access Denied")
				return true
			},
			want: ErrAuthentication,
		},
		{
			name: "http 500",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				w.WriteHeader(http.StatusInternalServerError)
				return true
			},
			want:    ErrUpstreamUnavailable,
			notWant: ErrUpstream,
		},
		{
			name: "malformed body",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				_, _ = w.Write([]byte("<html>oops</html>"))
				return true
			},
			want: ErrUpstreamUnavailable,
		},
		{
			name: "result is not a list",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				testutil.WriteResult(w, map[string]any{"id": 1})
				return true
			},
			want: ErrUpstreamUnavailable,
		},
		{
			name: "record without id",
			override: func(w http.ResponseWriter, req testutil.RPCRequest) bool {
				testutil.WriteResult(w, []map[string]any{{"name": "ghost"}})
				return true
			},
			want: ErrUpstreamUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.NewFakeOdoo(t)
			f.APIKey = "k"
			f.Override = tt.override
			c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"})

			_, err := c.ListContacts(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			if tt.notWant != nil {
				assert.NotErrorIs(t, err, tt.notWant)
			}
		})
	}
}

func TestClient_FaultKeepsMessageForLogs(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.APIKey = "k"
	f.Override = func(w http.ResponseWriter, req testutil.RPCRequest) bool {
		testutil.WriteFault(w, "builtins.ValueError", "Invalid field 'phone'")
		return true
	}
	c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"})

	_, err := c.ListUsers(context.Background())
	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "builtins.ValueError", fault.Name)
	assert.Equal(t, "Invalid field 'phone'", fault.Message)
}

func TestClient_Timeout(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.APIKey = "k"
	f.Override = func(w http.ResponseWriter, req testutil.RPCRequest) bool {
		time.Sleep(200 * time.Millisecond)
		testutil.WriteResult(w, []any{})
		return true
	}
	c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"}, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 190*time.Millisecond)
}

func TestClient_ConnectionRefused(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	url := f.URL
	f.Close()

	c := New(url, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"})
	_, err := c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	// in password mode the failed handshake is an authentication failure
	c = New(url, Credentials{Mode: ModePassword, Database: "odoo", Username: "admin", Secret: "admin"})
	_, err = c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestClient_CallerCancellationDoesNotAbort(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	seedContacts(f)
	c := newPasswordClient(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := c.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestClient_BreakerOpensOnTransportFailures(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.APIKey = "k"
	f.Override = func(w http.ResponseWriter, req testutil.RPCRequest) bool {
		w.WriteHeader(http.StatusBadGateway)
		return true
	}
	c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"}, WithBreaker(2, time.Minute))

	for i := 0; i < 2; i++ {
		_, err := c.ListContacts(context.Background())
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	}
	require.Len(t, f.Requests(), 2)

	_, err := c.ListContacts(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Len(t, f.Requests(), 2, "open breaker must not reach upstream")
}

func TestClient_FaultsDoNotOpenBreaker(t *testing.T) {
	f := testutil.NewFakeOdoo(t)
	f.APIKey = "k"
	f.Override = func(w http.ResponseWriter, req testutil.RPCRequest) bool {
		testutil.WriteFault(w, "builtins.ValueError", "boom")
		return true
	}
	c := New(f.URL, Credentials{Mode: ModeAPIKey, Database: "odoo", Secret: "k"}, WithBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := c.ListContacts(context.Background())
		assert.ErrorIs(t, err, ErrUpstream)
	}
	assert.Len(t, f.Requests(), 3)
}
