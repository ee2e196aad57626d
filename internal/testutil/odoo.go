// Package testutil provides an in-process Odoo JSON-RPC server for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// RPCRequest is the decoded body of a /jsonrpc call.
type RPCRequest struct {
	ID     json.RawMessage `json:"id"`
	Params struct {
		Service string            `json:"service"`
		Method  string            `json:"method"`
		Args    []json.RawMessage `json:"args"`
	} `json:"params"`
	APIKeyHeader string `json:"-"`
}

// FakeOdoo answers common.login and object.execute_kw(search_read) from
// in-memory rows. Zero values accept db "odoo", user "admin", password "admin".
type FakeOdoo struct {
	*httptest.Server

	Database string
	Username string
	Password string
	APIKey   string
	UID      int64

	// LoginDelay slows login down so concurrent callers pile up.
	LoginDelay time.Duration

	// Override, when set, may answer a request itself by returning true.
	Override func(w http.ResponseWriter, req RPCRequest) bool

	LoginCalls atomic.Int32
	ReadCalls  atomic.Int32

	mu       sync.Mutex
	records  map[string][]map[string]any
	requests []RPCRequest
}

// NewFakeOdoo starts a server that is closed with the test.
func NewFakeOdoo(t testing.TB) *FakeOdoo {
	f := &FakeOdoo{
		Database: "odoo",
		Username: "admin",
		Password: "admin",
		UID:      2,
		records:  map[string][]map[string]any{},
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Server.Close)
	return f
}

// SetRecords replaces the rows of model. Rows are returned in the given order.
func (f *FakeOdoo) SetRecords(model string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[model] = rows
}

// Requests returns every request received so far.
func (f *FakeOdoo) Requests() []RPCRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RPCRequest(nil), f.requests...)
}

// WriteResult writes a successful JSON-RPC response.
func WriteResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
}

// WriteFault writes a JSON-RPC error response.
func WriteFault(w http.ResponseWriter, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"error": map[string]any{
			"code":    200,
			"message": "Odoo Server Error",
			"data":    map[string]any{"name": name, "message": message},
		},
	})
}

func (f *FakeOdoo) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/jsonrpc" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	req.APIKeyHeader = r.Header.Get("api-key")

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.Override != nil && f.Override(w, req) {
		return
	}

	switch req.Params.Service + "." + req.Params.Method {
	case "common.login":
		f.login(w, req)
	case "object.execute_kw":
		f.searchRead(w, req)
	default:
		WriteFault(w, "werkzeug.exceptions.NotFound", "unknown method")
	}
}

func (f *FakeOdoo) login(w http.ResponseWriter, req RPCRequest) {
	f.LoginCalls.Add(1)
	if f.LoginDelay > 0 {
		time.Sleep(f.LoginDelay)
	}
	var db, user, pass string
	if len(req.Params.Args) == 3 {
		_ = json.Unmarshal(req.Params.Args[0], &db)
		_ = json.Unmarshal(req.Params.Args[1], &user)
		_ = json.Unmarshal(req.Params.Args[2], &pass)
	}
	if db != f.Database || user != f.Username || pass != f.Password {
		WriteResult(w, false)
		return
	}
	WriteResult(w, f.UID)
}

func (f *FakeOdoo) searchRead(w http.ResponseWriter, req RPCRequest) {
	f.ReadCalls.Add(1)
	args := req.Params.Args
	if len(args) < 6 {
		WriteFault(w, "builtins.TypeError", "missing arguments")
		return
	}

	var (
		db     string
		uid    int64
		secret string
		model  string
		method string
		domain [][]json.RawMessage
		kw     struct {
			Fields []string `json:"fields"`
		}
	)
	_ = json.Unmarshal(args[0], &db)
	_ = json.Unmarshal(args[1], &uid)
	_ = json.Unmarshal(args[2], &secret)
	_ = json.Unmarshal(args[3], &model)
	_ = json.Unmarshal(args[4], &method)
	var domainArgs [][][]json.RawMessage
	if err := json.Unmarshal(args[5], &domainArgs); err == nil && len(domainArgs) > 0 {
		domain = domainArgs[0]
	}
	if len(args) > 6 {
		_ = json.Unmarshal(args[6], &kw)
	}

	validKey := f.APIKey != "" && secret == f.APIKey
	validPass := uid == f.UID && secret == f.Password
	if db != f.Database || !(validKey || validPass) {
		WriteFault(w, "odoo.exceptions.AccessDenied", "Access Denied")
		return
	}
	if method != "search_read" {
		WriteFault(w, "builtins.AttributeError", "unsupported method "+method)
		return
	}

	var ids map[int64]bool
	for _, term := range domain {
		if len(term) != 3 {
			continue
		}
		var field, op string
		_ = json.Unmarshal(term[0], &field)
		_ = json.Unmarshal(term[1], &op)
		if field == "id" && op == "in" {
			var list []int64
			_ = json.Unmarshal(term[2], &list)
			ids = map[int64]bool{}
			for _, id := range list {
				ids[id] = true
			}
		}
	}

	f.mu.Lock()
	rows := f.records[model]
	f.mu.Unlock()

	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		id := toInt64(row["id"])
		if ids != nil && !ids[id] {
			continue
		}
		projected := map[string]any{"id": row["id"]}
		for _, field := range kw.Fields {
			if v, ok := row[field]; ok {
				projected[field] = v
			} else {
				projected[field] = false
			}
		}
		out = append(out, projected)
	}
	WriteResult(w, out)
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
