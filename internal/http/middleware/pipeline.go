// Package middleware holds the request hardening pipeline: an ordered list of
// gates run before routing, each of which may pass a request or answer it.
package middleware

import (
	"net/http"

	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RejectedByKey is the echo.Context key holding the name of the gate that
// answered the request, if any.
const RejectedByKey = "rejected_by"

// Rejection is a terminal response produced by a gate.
type Rejection struct {
	Status int
	Detail string
	Header http.Header
}

func reject(status int, detail string) *Rejection {
	return &Rejection{Status: status, Detail: detail}
}

// Gate inspects a request. A nil Rejection passes the request on.
type Gate interface {
	Name() string
	Inspect(c echo.Context) *Rejection
}

// Annotator is implemented by gates that decorate responses. Annotate runs
// right before the status line is written, for every response including
// rejections from other gates.
type Annotator interface {
	Annotate(req *http.Request, h http.Header)
}

// Pipeline runs gates in order and stops at the first rejection.
type Pipeline struct {
	gates []Gate
	log   *zap.Logger
}

func NewPipeline(log *zap.Logger, gates ...Gate) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{gates: gates, log: log}
}

// Names returns the gate names in evaluation order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.gates))
	for _, g := range p.gates {
		out = append(out, g.Name())
	}
	return out
}

// Middleware adapts the pipeline to echo. Install it with Echo.Pre so it runs
// before routing and for unknown paths too.
func (p *Pipeline) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			for _, g := range p.gates {
				if a, ok := g.(Annotator); ok {
					res.Before(func() { a.Annotate(req, res.Header()) })
				}
			}

			for _, g := range p.gates {
				rej := g.Inspect(c)
				if rej == nil {
					continue
				}
				c.Set(RejectedByKey, g.Name())
				if rej.Status >= http.StatusBadRequest {
					metrics.GateRejectionsTotal.WithLabelValues(g.Name()).Inc()
					p.log.Debug("request rejected",
						zap.String("gate", g.Name()),
						zap.Int("status", rej.Status),
						zap.String("path", req.URL.Path),
						zap.String("client_ip", c.RealIP()),
					)
				}
				return write(c, rej)
			}
			return next(c)
		}
	}
}

func write(c echo.Context, rej *Rejection) error {
	for k, vs := range rej.Header {
		for _, v := range vs {
			c.Response().Header().Add(k, v)
		}
	}
	if rej.Detail == "" {
		return c.NoContent(rej.Status)
	}
	return c.JSON(rej.Status, map[string]string{"detail": rej.Detail})
}
