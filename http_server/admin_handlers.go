package http_server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/medata/medrecords/utils"
	"github.com/medata/medrecords/validation"
	"github.com/rs/zerolog"
)

type AdminReqBody struct {
	// How many seconds before the run will time out.
	//
	// Default `60`.
	MaxRuntimeSec *int64
}

func (s *HTTPServer) knownTable(c *CustomContext) (string, error) {
	table := c.Param("table")
	if !utils.ContainsString(s.cfg.Tables(), table) {
		return "", c.JSON(http.StatusBadRequest, map[string]string{
			"detail": fmt.Sprintf("unknown table %s", table),
		})
	}
	return table, nil
}

// adminError maps a permanent object-store permission failure to 403,
// everything else to 500.
func (s *HTTPServer) adminError(c *CustomContext, err error, msg string) error {
	if utils.IsPermanent(err) {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Msg(msg)
		return c.JSON(http.StatusForbidden, map[string]string{
			"detail": err.Error(),
		})
	}
	return c.InternalError(err, msg)
}

func (s *HTTPServer) ExportTableHandler(c *CustomContext) error {
	start := time.Now()
	table, err := s.knownTable(c)
	if table == "" {
		return err
	}

	var reqBody AdminReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	zerolog.Ctx(ctx).Debug().Str("table", table).Msg("running export handler")

	res, err := s.exporter.ExportTable(ctx, table)
	if err != nil {
		return s.adminError(c, err, "error exporting table")
	}

	return c.JSON(http.StatusOK, ResponseEnvelope{
		Data: res.Stats,
		Metadata: ResponseMetadata{
			ResponseTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func (s *HTTPServer) VerifyTableHandler(c *CustomContext) error {
	start := time.Now()
	table, err := s.knownTable(c)
	if table == "" {
		return err
	}

	var reqBody AdminReqBody
	if err := ValidateRequest(c, &reqBody); err != nil {
		return c.String(http.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Second*time.Duration(utils.Deref(reqBody.MaxRuntimeSec, 60)))
	defer cancel()

	zerolog.Ctx(ctx).Debug().Str("table", table).Msg("running verify handler")

	report, err := s.runner.VerifyTable(ctx, table)
	if err != nil {
		// a comparison mismatch is a result, not a server failure
		var ve *validation.ValidationError
		if !errors.As(err, &ve) {
			return s.adminError(c, err, "error verifying table")
		}
	}

	return c.JSON(http.StatusOK, ResponseEnvelope{
		Data: report,
		Metadata: ResponseMetadata{
			ResponseTimeMS: time.Since(start).Milliseconds(),
		},
	})
}
