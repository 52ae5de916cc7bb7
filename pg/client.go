package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/medata/medrecords/dataset"
	"github.com/medata/medrecords/utils"
)

// GetTableSchema reads a table's column schema from information_schema in
// ordinal position order.
func GetTableSchema(ctx context.Context, pool *pgxpool.Pool, table string) ([]dataset.Column, error) {
	var cols []dataset.Column
	err := utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT column_name, data_type, is_nullable
			FROM information_schema.columns
			WHERE table_schema = $1
			AND table_name = $2
			ORDER BY ordinal_position
		`, Schema, table)
		if err != nil {
			return fmt.Errorf("error querying information_schema.columns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name, dataType, isNullable string
			if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
				return fmt.Errorf("error in rows.Scan: %w", err)
			}
			cols = append(cols, dataset.Column{
				Name:     name,
				Type:     strings.ToLower(dataType),
				Nullable: isNullable == "YES",
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s: %w", Schema, table, utils.ErrNotFound)
	}
	return cols, nil
}

// TableExists probes information_schema for a table.
func TableExists(ctx context.Context, pool *pgxpool.Pool, table string) (bool, error) {
	var exists bool
	err := utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		return conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = $1
				AND table_name = $2
			)
		`, Schema, table).Scan(&exists)
	})
	return exists, err
}

// ReadTable reads the full current content of a table into a Dataset, with
// cell values normalized for cross-store comparison: dates to "2006-01-02"
// strings, times to "15:04:05", timestamps to RFC3339, integers widened to
// int64.
func ReadTable(ctx context.Context, pool *pgxpool.Pool, table string) (*dataset.Dataset, error) {
	cols, err := GetTableSchema(ctx, pool, table)
	if err != nil {
		return nil, fmt.Errorf("error in GetTableSchema: %w", err)
	}

	ds := dataset.New(cols)
	err = utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY 1", qualify(table)))
		if err != nil {
			if IsUndefinedTable(err) {
				return fmt.Errorf("table %s.%s: %w", Schema, table, utils.ErrNotFound)
			}
			return fmt.Errorf("error selecting from %s: %w", table, err)
		}
		defer rows.Close()

		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				return fmt.Errorf("error in rows.Values: %w", err)
			}
			row := make(dataset.Row, len(vals))
			for i, v := range vals {
				row[i] = NormalizeCell(v, cols[i].Type)
			}
			ds.AppendRow(row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ds, nil
}

// QueryMaps runs a parameterized query and returns each row as a column
// name to value map, values normalized for JSON responses.
func QueryMaps(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) ([]map[string]any, error) {
	var out []map[string]any
	err := utils.ReliableExec(ctx, pool, StandardContextTimeout, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("error in conn.Query: %w", err)
		}
		defer rows.Close()

		fields := rows.FieldDescriptions()
		for rows.Next() {
			vals, err := rows.Values()
			if err != nil {
				return fmt.Errorf("error in rows.Values: %w", err)
			}
			m := make(map[string]any, len(vals))
			for i, v := range vals {
				m[string(fields[i].Name)] = NormalizeCell(v, "")
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByPrefix deletes the rows of a table whose primary key starts with
// prefix, inside the caller's transaction. Used to clear synthetic
// verification keys.
func DeleteByPrefix(ctx context.Context, tx pgx.Tx, table, pkCol, prefix string) (int64, error) {
	tag, err := tx.Exec(ctx, fmt.Sprintf(
		"DELETE FROM %s WHERE %s LIKE $1",
		qualify(table), pgx.Identifier{pkCol}.Sanitize(),
	), prefix+"%")
	if err != nil {
		return 0, fmt.Errorf("error deleting from %s by prefix: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func qualify(table string) string {
	return pgx.Identifier{Schema, table}.Sanitize()
}

// NormalizeCell converts a pgx-decoded value into the comparison
// representation. declaredType may be empty when only generic JSON-safe
// conversion is wanted.
func NormalizeCell(v any, declaredType string) any {
	if v == nil {
		return nil
	}

	switch {
	case declaredType == "date":
		if t, ok := v.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	case declaredType == "time without time zone":
		switch tv := v.(type) {
		case pgtype.Time:
			return clockString(tv.Microseconds)
		case int64:
			// pgtype.Time.Get() yields microseconds since midnight
			return clockString(tv)
		case time.Time:
			return tv.Format("15:04:05")
		}
	case strings.Contains(declaredType, "timestamp"):
		if t, ok := v.(time.Time); ok {
			return t.UTC().Format(time.RFC3339)
		}
	}

	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return tv
	case float32:
		return float64(tv)
	case int:
		return int64(tv)
	case int16:
		return int64(tv)
	case int32:
		return int64(tv)
	case int64:
		return tv
	case bool:
		return tv
	case time.Time:
		return tv.UTC().Format(time.RFC3339)
	case pgtype.Time:
		return clockString(tv.Microseconds)
	case pgtype.Numeric:
		var f float64
		if err := tv.AssignTo(&f); err == nil {
			return f
		}
	}
	return fmt.Sprintf("%v", v)
}

func clockString(micros int64) string {
	return time.Unix(0, 0).UTC().Add(time.Duration(micros) * time.Microsecond).Format("15:04:05")
}
