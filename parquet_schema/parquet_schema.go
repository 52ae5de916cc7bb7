package parquet_schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medata/medrecords/dataset"
)

type (
	// Schema maps a table's relational column schema onto the parquet
	// schema used for its columnar export. Every field is OPTIONAL under a
	// REQUIRED root, NULLs are representable for any column.
	Schema struct {
		columns []dataset.Column
	}

	parquetJSONSchema struct {
		Tag    string               `json:",omitempty"`
		Fields []*parquetJSONSchema `json:",omitempty"`
	}

	schemaTag struct {
		Type          string
		ConvertedType string
		Encoding      string
		Name          string
	}
)

// FromRelational builds the export schema for a table from its
// information_schema column list (ordinal order preserved).
func FromRelational(cols []dataset.Column) *Schema {
	return &Schema{columns: cols}
}

// tagFor maps a relational declared type onto parquet physical/converted
// types. Dates, times and timestamps export as strings: the type
// compatibility rules accept the string encoding for all three, and the
// JSON writer then needs no epoch conversions.
func tagFor(col dataset.Column) schemaTag {
	t := strings.ToLower(col.Type)
	switch {
	case t == "double precision" || t == "float8" || t == "real":
		return schemaTag{Type: "DOUBLE", Name: col.Name}
	case t == "integer" || t == "int" || t == "bigint":
		return schemaTag{Type: "INT64", Name: col.Name}
	default:
		return schemaTag{Type: "BYTE_ARRAY", ConvertedType: "UTF8", Encoding: "PLAIN", Name: col.Name}
	}
}

// ColumnarType returns the columnar type name for a relational declared
// type, as fed to the type compatibility mapper.
func ColumnarType(relationalType string) string {
	tag := tagFor(dataset.Column{Type: relationalType})
	switch tag.Type {
	case "DOUBLE":
		return "double"
	case "INT64":
		return "int64"
	default:
		return "string"
	}
}

// ColumnarColumns returns the schema's columns with columnar type names,
// the shape a read-back of the export reports.
func (s *Schema) ColumnarColumns() []dataset.Column {
	cols := make([]dataset.Column, len(s.columns))
	for i, c := range s.columns {
		cols[i] = dataset.Column{Name: c.Name, Type: ColumnarType(c.Type), Nullable: c.Nullable}
	}
	return cols
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

func (t schemaTag) String() string {
	var tagArr []string
	if t.Type != "" {
		tagArr = append(tagArr, "type="+t.Type)
	}
	if t.ConvertedType != "" {
		tagArr = append(tagArr, "convertedtype="+t.ConvertedType)
	}
	if t.Encoding != "" {
		tagArr = append(tagArr, "encoding="+t.Encoding)
	}
	if t.Name != "" {
		tagArr = append(tagArr, "name="+t.Name)
	}
	tagArr = append(tagArr, "repetitiontype=OPTIONAL")
	return strings.Join(tagArr, ", ")
}

// SchemaString returns the JSON formatted schema string for
// writer.NewJSONWriterFromWriter.
func (s *Schema) SchemaString() (string, error) {
	var fields []*parquetJSONSchema
	for _, col := range s.columns {
		fields = append(fields, &parquetJSONSchema{Tag: tagFor(col).String()})
	}
	pjs := parquetJSONSchema{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: fields,
	}

	b, err := json.Marshal(pjs)
	if err != nil {
		return "", fmt.Errorf("error in json.Marshal: %w", err)
	}
	return string(b), nil
}
