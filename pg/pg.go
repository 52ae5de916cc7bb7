package pg

import (
	"context"
	"errors"
	"time"

	"github.com/UltimateTournament/backoff/v4"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/medata/medrecords/gologger"
)

var (
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewLogger()
)

// Schema is the Postgres schema holding the medical record tables.
const Schema = "medate_exam"

// Connect establishes the pgx pool. Connectivity is the only thing that
// retries (with backoff, at startup), individual statements never do.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	logger.Debug().Msg("connecting to postgres...")
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	var pool *pgxpool.Pool
	err = backoff.Retry(func() error {
		var err error
		pool, err = pgxpool.ConnectConfig(ctx, config)
		if err != nil {
			logger.Warn().Err(err).Msg("postgres not reachable yet, retrying")
			return err
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx))
	if err != nil {
		return nil, err
	}

	logger.Debug().Msg("connected to postgres")
	return pool, nil
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
