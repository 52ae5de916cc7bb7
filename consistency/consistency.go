// Package consistency checks that the columnar mirror of a table faithfully
// reflects the relational source of truth. A verification run seeds
// synthetic rows, re-exports the table, reads the export back, and compares
// both datasets; synthetic rows and the exported object are removed on
// every exit path, comparison failure included.
package consistency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/medata/medrecords/config"
	"github.com/medata/medrecords/dataset"
	"github.com/medata/medrecords/export"
	"github.com/medata/medrecords/gologger"
	"github.com/medata/medrecords/pg"
	"github.com/medata/medrecords/s3_helper"
	"github.com/medata/medrecords/utils"
	"github.com/medata/medrecords/validation"
)

var logger = gologger.NewLogger()

// State is the verification run lifecycle. Runs move
// INIT → SEEDED → EXPORTED → COMPARED → CLEANED_UP, any failure
// short-circuits to FAILED but still cleans up.
type State string

const (
	StateInit      State = "INIT"
	StateSeeded    State = "SEEDED"
	StateExported  State = "EXPORTED"
	StateCompared  State = "COMPARED"
	StateCleanedUp State = "CLEANED_UP"
	StateFailed    State = "FAILED"
)

// cleanupOrder respects the foreign key chain, children first.
var cleanupOrder = []string{"lab_results", "lab_tests", "admissions", "patient_information"}

type (
	Runner struct {
		cfg      *config.Config
		pool     *pgxpool.Pool
		s3c      *s3_helper.Client
		exporter *export.Exporter
	}

	// Report records what a verification run did and where it ended.
	Report struct {
		RunID     string
		Table     string
		State     State
		KeyPrefix string
		ExportKey string
		Rows      int64
		// Mismatch holds the comparison failure enumerating every
		// differing column, empty when the stores agree.
		Mismatch string
		TimeMS   int64
	}
)

func NewRunner(cfg *config.Config, pool *pgxpool.Pool, s3c *s3_helper.Client) *Runner {
	return &Runner{
		cfg:      cfg,
		pool:     pool,
		s3c:      s3c,
		exporter: export.NewExporter(cfg, pool, s3c),
	}
}

// Run executes one seeded verification of a table. The returned error is
// non-nil for store failures and comparison mismatches alike; the report
// is always returned with the terminal state.
func (r *Runner) Run(ctx context.Context, table string, seed Seed) (report *Report, err error) {
	start := time.Now()
	report = &Report{RunID: utils.GenKSortedID("run_"), Table: table, State: StateInit, KeyPrefix: seed.KeyPrefix}
	logger.Debug().Str("runID", report.RunID).Str("table", table).Msg("starting verification run")

	// Cleanup runs on every exit path, with a fresh context so a canceled
	// run still releases its fixtures.
	defer func() {
		cleanupErr := r.cleanup(report)
		if cleanupErr != nil {
			logger.Error().Err(cleanupErr).Str("table", table).Msg("verification cleanup failed")
			if err == nil {
				err = cleanupErr
				return
			}
		}
		if err == nil {
			report.State = StateCleanedUp
		} else {
			report.State = StateFailed
		}
		report.TimeMS = time.Since(start).Milliseconds()
	}()

	if err := r.seedRows(ctx, seed); err != nil {
		return report, fmt.Errorf("error seeding rows: %w", err)
	}
	report.State = StateSeeded

	res, err := r.exporter.ExportTable(ctx, table)
	if err != nil {
		return report, fmt.Errorf("error exporting %s: %w", table, err)
	}
	report.State = StateExported
	report.ExportKey = res.Stats.Key
	report.Rows = res.Stats.Rows

	if err := r.compare(ctx, table, res, report); err != nil {
		return report, err
	}
	report.State = StateCompared

	return report, nil
}

// compareSchemas checks every relational column against the parquet
// footer's field types under the compatibility rules.
func (r *Runner) compareSchemas(ctx context.Context, key string, cols []dataset.Column) error {
	columnarTypes, err := r.s3c.GetParquetSchema(ctx, key)
	if err != nil {
		return fmt.Errorf("error reading parquet schema: %w", err)
	}
	var diffs []string
	for _, col := range cols {
		ct, ok := columnarTypes[col.Name]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("column '%s' missing from columnar schema", col.Name))
			continue
		}
		if !validation.IsCompatibleType(ct, col.Type) {
			diffs = append(diffs, fmt.Sprintf("column '%s' has incompatible types: columnar '%s' vs relational '%s'", col.Name, ct, col.Type))
		}
	}
	if len(diffs) > 0 {
		return fmt.Errorf("schemas are not compatible: %s", strings.Join(diffs, "; "))
	}
	return nil
}

func (r *Runner) compare(ctx context.Context, table string, res *export.Result, report *Report) error {
	if err := r.compareSchemas(ctx, res.Stats.Key, res.Dataset.Columns); err != nil {
		return err
	}

	columnar, err := r.exporter.ReadExport(ctx, res.Dataset.Columns, res.Stats.Key)
	if err != nil {
		return fmt.Errorf("error reading export back: %w", err)
	}

	err = validation.ValidateDatasetEquality(columnar, res.Dataset, validation.EqualityOpts{
		SortBy:      []string{r.cfg.TablePKMap[table]},
		CheckDtype:  true,
		Description: table,
	})
	if err != nil {
		var ve *validation.ValidationError
		if errors.As(err, &ve) {
			report.Mismatch = ve.Message
		}
		return fmt.Errorf("stores disagree for %s: %w", table, err)
	}
	return nil
}

func (r *Runner) seedRows(ctx context.Context, seed Seed) error {
	err := utils.ReliableExecInTx(ctx, r.pool, pg.StandardContextTimeout, func(ctx context.Context, tx pgx.Tx) error {
		for _, p := range seed.Patients {
			if err := p.Insert(ctx, tx); err != nil {
				return err
			}
		}
		for _, t := range seed.LabTests {
			if err := t.Insert(ctx, tx); err != nil {
				return err
			}
		}
		for _, lr := range seed.LabResults {
			if err := lr.Insert(ctx, tx); err != nil {
				return err
			}
		}
		for _, a := range seed.Admissions {
			if err := a.Insert(ctx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if pg.IsUniqueViolation(err) {
		return fmt.Errorf("seed keys collide with existing rows, a previous run may not have cleaned up: %w", err)
	}
	return err
}

func (r *Runner) cleanup(report *Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := utils.ReliableExecInTx(ctx, r.pool, pg.StandardContextTimeout, func(ctx context.Context, tx pgx.Tx) error {
		for _, table := range cleanupOrder {
			if _, err := pg.DeleteByPrefix(ctx, tx, table, r.cfg.TablePKMap[table], report.KeyPrefix); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error deleting seeded rows: %w", err)
	}

	if report.ExportKey != "" {
		if err := r.s3c.DeleteObject(ctx, report.ExportKey); err != nil {
			return fmt.Errorf("error deleting exported object: %w", err)
		}
	}
	return nil
}

// VerifyTable checks the live contents of a table without seeding: export,
// read back, compare. The exported object is kept, it is a regular export.
func (r *Runner) VerifyTable(ctx context.Context, table string) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: utils.GenKSortedID("run_"), Table: table, State: StateInit}

	res, err := r.exporter.ExportTable(ctx, table)
	if err != nil {
		report.State = StateFailed
		return report, fmt.Errorf("error exporting %s: %w", table, err)
	}
	report.State = StateExported
	report.ExportKey = res.Stats.Key
	report.Rows = res.Stats.Rows

	if err := r.compare(ctx, table, res, report); err != nil {
		report.State = StateFailed
		report.TimeMS = time.Since(start).Milliseconds()
		return report, err
	}

	report.State = StateCompared
	report.TimeMS = time.Since(start).Milliseconds()
	return report, nil
}

// ComparePKSets asserts the primary key value sets of the relational and
// columnar datasets are equal, each key present exactly once.
func ComparePKSets(relational, columnar *dataset.Dataset, pkCol string) error {
	ri := relational.ColumnIndex(pkCol)
	ci := columnar.ColumnIndex(pkCol)
	if ri == -1 || ci == -1 {
		return fmt.Errorf("no primary key column %q in both datasets", pkCol)
	}

	counts := make(map[any]int)
	for _, row := range relational.Rows {
		counts[row[ri]]++
	}
	for _, row := range columnar.Rows {
		counts[row[ci]]--
	}
	var diffs []string
	for k, c := range counts {
		if c != 0 {
			diffs = append(diffs, fmt.Sprintf("%v", k))
		}
	}
	if len(diffs) > 0 {
		return &validation.ValidationError{Message: fmt.Sprintf("Primary key sets differ for %s: %v", pkCol, diffs)}
	}
	return nil
}
