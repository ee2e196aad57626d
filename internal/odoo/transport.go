package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      uint64    `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 32 << 20

// transport posts JSON-RPC envelopes to {baseURL}/jsonrpc through a breaker.
type transport struct {
	endpoint string
	apiKey   string
	client   *http.Client
	br       *gobreaker.CircuitBreaker
	seq      atomic.Uint64
	log      *zap.Logger
}

func newTransport(baseURL, apiKey string, client *http.Client, failThreshold int, openFor time.Duration, log *zap.Logger) *transport {
	if failThreshold <= 0 {
		failThreshold = 5
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}

	t := &transport{
		endpoint: baseURL + "/jsonrpc",
		apiKey:   apiKey,
		client:   client,
		log:      log,
	}
	threshold := uint32(failThreshold)
	t.br = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "odoo",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		// faults and auth rejections prove the server is up
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUpstreamUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			t.log.Warn("odoo breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return t
}

// call runs one JSON-RPC method. Caller cancellation is ignored; the http
// client timeout bounds the call instead.
func (t *transport) call(ctx context.Context, service, method string, args ...any) (json.RawMessage, error) {
	ctx = context.WithoutCancel(ctx)

	out, err := t.br.Execute(func() (any, error) {
		return t.post(ctx, rpcRequest{
			JSONRPC: "2.0",
			Method:  "call",
			Params:  rpcParams{Service: service, Method: method, Args: args},
			ID:      t.seq.Add(1),
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, unavailable("breaker %s", err)
		}
		return nil, err
	}
	return out.(json.RawMessage), nil
}

func (t *transport) post(ctx context.Context, body rpcRequest) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal rpc request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, unavailable("build request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("api-key", t.apiKey)
	}

	res, err := t.client.Do(req)
	if err != nil {
		return nil, unavailable("%s.%s: %v", body.Params.Service, body.Params.Method, err)
	}

	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return nil, unavailable("%s.%s: status=%d", body.Params.Service, body.Params.Method, res.StatusCode)
	}

	var rpc rpcResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxResponseBytes)).Decode(&rpc); err != nil {
		return nil, unavailable("%s.%s: decode response: %v", body.Params.Service, body.Params.Method, err)
	}

	if rpc.Error != nil {
		f := &Fault{Code: rpc.Error.Code, Name: rpc.Error.Data.Name, Message: rpc.Error.Data.Message}
		if f.Message == "" {
			f.Message = rpc.Error.Message
		}
		if f.Name == accessDenied {
			return nil, fmt.Errorf("%w: %w", ErrAuthentication, f)
		}
		return nil, f
	}

	return rpc.Result, nil
}

func (t *transport) breakerState() gobreaker.State { return t.br.State() }
