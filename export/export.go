// Package export maintains the columnar mirror: it serializes the full
// current content of a relational table to parquet and writes it to object
// storage under a timestamped key. Every export is a new immutable object,
// an update or delete on the relational side is only visible in the mirror
// after the next full export.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/medata/medrecords/config"
	"github.com/medata/medrecords/dataset"
	"github.com/medata/medrecords/gologger"
	"github.com/medata/medrecords/parquet_schema"
	"github.com/medata/medrecords/pg"
	"github.com/medata/medrecords/s3_helper"
	"github.com/rs/zerolog"
	s3_pq "github.com/xitongsys/parquet-go-source/s3"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"
)

var logger = gologger.NewLogger()

// KeyPrefix roots every columnar export in the bucket.
const KeyPrefix = "raw/parquet"

const timestampLayout = "20060102T150405"

type (
	Exporter struct {
		cfg  *config.Config
		pool *pgxpool.Pool
		s3c  *s3_helper.Client
	}

	Stats struct {
		Table  string
		Key    string
		Rows   int64
		Bytes  int64
		TimeMS int64
	}

	// Result carries what a run produced: the upload stats, the relational
	// dataset the export serialized, and the relational column schema.
	Result struct {
		Stats   Stats
		Dataset *dataset.Dataset
	}
)

func NewExporter(cfg *config.Config, pool *pgxpool.Pool, s3c *s3_helper.Client) *Exporter {
	return &Exporter{cfg: cfg, pool: pool, s3c: s3c}
}

// Key builds the time-partitioned object key for a table export. Keys are
// never reused, so exports never race a reader on the same object.
func Key(table string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s_%s.parquet", KeyPrefix, table, table, at.UTC().Format(timestampLayout))
}

// ExportTable reads the table from Postgres, serializes it to parquet, and
// uploads it. Returns the upload stats and the relational dataset it
// serialized so callers can compare without a second read.
func (e *Exporter) ExportTable(ctx context.Context, table string) (*Result, error) {
	ctx = logger.WithContext(ctx)
	logger := zerolog.Ctx(ctx)

	start := time.Now()

	ds, err := pg.ReadTable(ctx, e.pool, table)
	if err != nil {
		return nil, fmt.Errorf("error in pg.ReadTable: %w", err)
	}

	schema := parquet_schema.FromRelational(ds.Columns)
	schemaString, err := schema.SchemaString()
	if err != nil {
		return nil, fmt.Errorf("error in SchemaString: %w", err)
	}

	var b bytes.Buffer
	pw, err := writer.NewJSONWriterFromWriter(schemaString, &b, 4)
	if err != nil {
		return nil, fmt.Errorf("error in NewJSONWriterFromWriter: %w", err)
	}

	for _, row := range ds.Rows {
		rowMap := make(map[string]any, len(ds.Columns))
		for i, col := range ds.Columns {
			rowMap[col.Name] = row[i]
		}
		rowBytes, err := json.Marshal(rowMap)
		if err != nil {
			return nil, fmt.Errorf("error in json.Marshal of row: %w", err)
		}
		if err := pw.Write(string(rowBytes)); err != nil {
			return nil, fmt.Errorf("error in pw.Write for row %s: %w", string(rowBytes), err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("error in pw.WriteStop: %w", err)
	}

	byteLen := int64(b.Len())
	key := Key(table, time.Now())
	if _, err := e.s3c.WriteBytes(ctx, key, &b, nil); err != nil {
		return nil, fmt.Errorf("error uploading export to s3: %w", err)
	}

	logger.Debug().Str("table", table).Str("key", key).Int("rows", ds.Len()).Msg("exported table")

	return &Result{
		Stats: Stats{
			Table:  table,
			Key:    key,
			Rows:   int64(ds.Len()),
			Bytes:  byteLen,
			TimeMS: time.Since(start).Milliseconds(),
		},
		Dataset: ds,
	}, nil
}

// ReadExport reads a columnar export back into a Dataset. relationalCols is
// the table's relational schema, which fixes both the parquet schema for
// the reader and the column order of the result; the returned dataset
// carries columnar type names.
func (e *Exporter) ReadExport(ctx context.Context, relationalCols []dataset.Column, key string) (*dataset.Dataset, error) {
	schema := parquet_schema.FromRelational(relationalCols)
	schemaString, err := schema.SchemaString()
	if err != nil {
		return nil, fmt.Errorf("error in SchemaString: %w", err)
	}

	fr, err := s3_pq.NewS3FileReaderWithParams(ctx, s3_pq.S3FileReaderParams{
		Bucket:   e.s3c.Bucket,
		Key:      key,
		S3Client: e.s3c.S3(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating s3 file reader for %s: %w", key, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, schemaString, 4)
	if err != nil {
		return nil, fmt.Errorf("error creating parquet reader for %s: %w", key, err)
	}
	defer pr.ReadStop()

	ds := dataset.New(schema.ColumnarColumns())

	num := int(pr.GetNumRows())
	if num == 0 {
		return ds, nil
	}

	structs, err := pr.ReadByNumber(num)
	if err != nil {
		return nil, fmt.Errorf("error reading rows from %s: %w", key, err)
	}

	for _, item := range structs {
		rowMap := make(map[string]any)
		v := reflect.ValueOf(item)
		typeOf := v.Type()
		for i := 0; i < v.NumField(); i++ {
			rowMap[fieldToColumn(typeOf.Field(i).Name)] = derefCell(v.Field(i).Interface())
		}

		row := make(dataset.Row, len(ds.Columns))
		for i, col := range ds.Columns {
			row[i] = rowMap[col.Name]
		}
		ds.AppendRow(row)
	}

	return ds, nil
}

// ListExports returns the accumulated export keys for a table, oldest
// first by key order.
func (e *Exporter) ListExports(ctx context.Context, table string) ([]string, error) {
	return e.s3c.ListKeys(ctx, fmt.Sprintf("%s/%s/", KeyPrefix, table))
}

// fieldToColumn undoes the parquet-go exported-field renaming, the schema
// names are lowercase column names.
func fieldToColumn(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// derefCell flattens the pointer scalars parquet-go returns for OPTIONAL
// fields, nil stays NULL.
func derefCell(v any) any {
	switch tv := v.(type) {
	case *string:
		if tv == nil {
			return nil
		}
		return *tv
	case *float64:
		if tv == nil {
			return nil
		}
		return *tv
	case *int64:
		if tv == nil {
			return nil
		}
		return *tv
	case *int32:
		if tv == nil {
			return nil
		}
		return int64(*tv)
	default:
		return v
	}
}
