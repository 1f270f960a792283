// Package export writes decks out as shareable decklists.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"time"
)

// Format is a tabular output format.
type Format string

const (
	// FormatCSV represents CSV export format.
	FormatCSV Format = "csv"
	// FormatJSON represents JSON export format.
	FormatJSON Format = "json"
)

// Options holds configuration for file exports.
type Options struct {
	FilePath  string
	Overwrite bool
}

// Exporter writes export payloads to a file.
type Exporter struct {
	opts Options
}

// NewExporter creates a new Exporter with the given options.
func NewExporter(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Write runs fn against the configured file, creating its directory and
// refusing to clobber an existing file unless Overwrite is set.
func (e *Exporter) Write(fn func(io.Writer) error) (err error) {
	file, err := e.createFile()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(file)
}

func (e *Exporter) createFile() (*os.File, error) {
	if e.opts.FilePath == "" {
		return nil, fmt.Errorf("no output path")
	}

	dir := filepath.Dir(e.opts.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	if _, err := os.Stat(e.opts.FilePath); err == nil && !e.opts.Overwrite {
		return nil, fmt.Errorf("file already exists: %s (use overwrite option to replace)", e.opts.FilePath)
	}

	file, err := os.Create(e.opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	return file, nil
}

// ExportToWriter writes data to w. CSV needs a non-empty slice of structs;
// columns come from `csv` tags, or the field name when untagged.
func ExportToWriter(w io.Writer, format Format, data interface{}, prettyJSON bool) error {
	switch format {
	case FormatJSON:
		encoder := json.NewEncoder(w)
		if prettyJSON {
			encoder.SetIndent("", "  ")
		}
		return encoder.Encode(data)
	case FormatCSV:
		return writeCSV(w, data)
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
}

func writeCSV(w io.Writer, data interface{}) error {
	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("CSV export requires a slice, got %s", v.Kind())
	}
	if v.Len() == 0 {
		return fmt.Errorf("no data to export")
	}

	first := indirect(v.Index(0))
	if first.Kind() != reflect.Struct {
		return fmt.Errorf("CSV export requires a slice of structs")
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeaders(first.Type())); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < v.Len(); i++ {
		if err := writer.Write(csvRow(indirect(v.Index(i)))); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func indirect(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Ptr {
		return v.Elem()
	}
	return v
}

func csvHeaders(t reflect.Type) []string {
	var headers []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("csv") == "-" {
			continue
		}
		if tag := field.Tag.Get("csv"); tag != "" {
			headers = append(headers, tag)
		} else {
			headers = append(headers, field.Name)
		}
	}
	return headers
}

func csvRow(v reflect.Value) []string {
	var row []string
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("csv") == "-" {
			continue
		}
		row = append(row, valueToString(v.Field(i)))
	}
	return row
}

func valueToString(v reflect.Value) string {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", v.Int())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	case reflect.Bool:
		return fmt.Sprintf("%t", v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

// GenerateFilename builds a timestamped file name such as
// "krenko_20260101_120000.txt".
func GenerateFilename(base string, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", base, now.Format("20060102_150405"), ext)
}
