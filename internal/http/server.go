package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jmehdipour/odoo-gateway/internal/audit"
	"github.com/jmehdipour/odoo-gateway/internal/config"
	"github.com/jmehdipour/odoo-gateway/internal/http/middleware"
	"github.com/jmehdipour/odoo-gateway/internal/metrics"
	"github.com/jmehdipour/odoo-gateway/internal/model"
	"github.com/jmehdipour/odoo-gateway/internal/util"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Odoo is the read side of odoo.Client used by the handlers.
type Odoo interface {
	ListContacts(ctx context.Context) ([]model.Contact, error)
	GetContact(ctx context.Context, id int64) (model.Contact, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

func NewServer(cfg config.Config, client Odoo, pipeline *middleware.Pipeline, pub audit.Publisher, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pub == nil {
		pub = audit.Nop{}
	}

	ipx, err := ipExtractor(cfg.API.TrustedProxies)
	if err != nil {
		return nil, err
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(log.OFF)
	e.IPExtractor = ipx
	e.HTTPErrorHandler = errorHandler(logger)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	// pre-routing chain; the pipeline answers before any route runs
	e.Pre(
		echoMid.RequestIDWithConfig(echoMid.RequestIDConfig{Generator: util.New}),
		requestLogger(logger),
		auditMiddleware(pub),
		echoMid.Recover(),
		pipeline.Middleware(),
	)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Welcome to Odoo API Connector"})
	})

	// routes
	e.GET("/contacts", listContactsHandler(client, logger))
	e.GET("/contacts/:id", getContactHandler(client, logger))
	e.GET("/users", listUsersHandler(client, logger))

	return &Server{e: e, log: logger}, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// ipExtractor trusts X-Forwarded-For only from the listed proxies (IPs or
// CIDRs); with none listed the peer address is used.
func ipExtractor(trusted []string) (echo.IPExtractor, error) {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect(), nil
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, p := range trusted {
		if !strings.Contains(p, "/") {
			if ip := net.ParseIP(p); ip != nil && ip.To4() != nil {
				p += "/32"
			} else {
				p += "/128"
			}
		}
		_, ipNet, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("api.trusted_proxies: %w", err)
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return echo.ExtractIPFromXFFHeader(opts...), nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return echoMid.RequestLoggerWithConfig(echoMid.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echoMid.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request_id", v.RequestID),
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("client_ip", v.RemoteIP),
			}
			if gate, ok := c.Get(middleware.RejectedByKey).(string); ok {
				fields = append(fields, zap.String("gate", gate))
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			if v.Status >= http.StatusInternalServerError {
				logger.Warn("request", fields...)
				return nil
			}
			logger.Info("request", fields...)
			return nil
		},
	})
}
