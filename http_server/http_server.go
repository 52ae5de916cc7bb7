package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/medata/medrecords/config"
	"github.com/medata/medrecords/consistency"
	"github.com/medata/medrecords/export"
	"github.com/medata/medrecords/gologger"
	"github.com/medata/medrecords/s3_helper"
	"github.com/medata/medrecords/utils"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

var logger = gologger.NewLogger()

type HTTPServer struct {
	Echo *echo.Echo

	cfg      *config.Config
	pool     *pgxpool.Pool
	exporter *export.Exporter
	runner   *consistency.Runner
}

type CustomValidator struct {
	validator *validator.Validate
}

// NewHTTPServer builds the server and its routes without binding a port,
// Start does the listening.
func NewHTTPServer(cfg *config.Config, pool *pgxpool.Pool, s3c *s3_helper.Client) *HTTPServer {
	s := &HTTPServer{
		Echo:     echo.New(),
		cfg:      cfg,
		pool:     pool,
		exporter: export.NewExporter(cfg, pool, s3c),
		runner:   consistency.NewRunner(cfg, pool, s3c),
	}
	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.JSONSerializer = &utils.NoEscapeJSONSerializer{}

	s.Echo.Use(CreateReqContext)
	s.Echo.Use(LoggerMiddleware)
	s.Echo.Use(middleware.CORS())
	s.Echo.Validator = &CustomValidator{validator: validator.New()}

	// technical - no auth
	s.Echo.GET("/hc", s.HealthCheck)
	s.Echo.GET("/health", s.HealthCheck)

	api := s.Echo.Group("/api/v1", s.APIKeyMiddleware)
	api.GET("/patients/:patient_id", ccHandler(s.GetPatient))
	api.GET("/patients/:patient_id/lab_results", ccHandler(s.GetPatientLabResults))

	admin := s.Echo.Group("/admin", s.APIKeyMiddleware)
	admin.POST("/tables/:table/export", ccHandler(s.ExportTableHandler))
	admin.POST("/tables/:table/verify", ccHandler(s.VerifyTableHandler))

	return s
}

func StartHTTPServer(cfg *config.Config, pool *pgxpool.Pool, s3c *s3_helper.Client) *HTTPServer {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.HTTPPort))
	if err != nil {
		logger.Error().Err(err).Msg("error creating tcp listener, exiting")
		os.Exit(1)
	}
	s := NewHTTPServer(cfg, pool, s3c)

	s.Echo.Listener = listener
	go func() {
		logger.Info().Msg("starting h2c server on " + listener.Addr().String())
		err := s.Echo.StartH2CServer("", &http2.Server{})
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start h2c server, exiting")
			os.Exit(1)
		}
	}()

	return s
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func ValidateRequest(c echo.Context, s interface{}) error {
	if err := c.Bind(s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(s); err != nil {
		return err
	}
	return nil
}

func (*HTTPServer) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// APIKeyMiddleware rejects requests whose X-API-Key header does not match
// the configured secret.
func (s *HTTPServer) APIKeyMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-API-Key") != s.cfg.APIKey {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"detail": "Invalid API key",
			})
		}
		return next(c)
	}
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	err := s.Echo.Shutdown(ctx)
	return err
}

func LoggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			// default handler
			c.Error(err)
		}
		stop := time.Since(start)
		// Log otherwise
		logger := zerolog.Ctx(c.Request().Context())
		req := c.Request()
		res := c.Response()

		p := req.URL.Path
		if p == "" {
			p = "/"
		}

		cl := req.Header.Get(echo.HeaderContentLength)
		if cl == "" {
			cl = "0"
		}
		logger.Debug().Str("method", req.Method).Str("remote_ip", c.RealIP()).Str("req_uri", req.RequestURI).Str("handler_path", c.Path()).Str("path", p).Int("status", res.Status).Int64("latency_ns", int64(stop)).Str("protocol", req.Proto).Str("bytes_in", cl).Int64("bytes_out", res.Size).Msg("req recived")
		return nil
	}
}
