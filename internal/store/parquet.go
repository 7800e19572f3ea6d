package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"cexintel/internal/intel"
)

// alertRow is the flattened columnar representation of one alert.
type alertRow struct {
	Date         string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Exchange     string `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Category     string `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8"`
	Subcategory  string `parquet:"name=subcategory, type=BYTE_ARRAY, convertedtype=UTF8"`
	Severity     string `parquet:"name=severity, type=BYTE_ARRAY, convertedtype=UTF8"`
	Title        string `parquet:"name=title, type=BYTE_ARRAY, convertedtype=UTF8"`
	Description  string `parquet:"name=description, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventDate    string `parquet:"name=event_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source       string `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	URL          string `parquet:"name=url, type=BYTE_ARRAY, convertedtype=UTF8"`
	DiscoveredAt int64  `parquet:"name=discovered_at, type=INT64"`
}

// ParquetMirror archives each day's alerts as a columnar file per date
// for offline analysis. Unlike the byte mirrors it derives its output
// from the decoded record, so it is an archive channel rather than a
// serving copy.
type ParquetMirror struct {
	dir string
}

func NewParquetMirror(dir string) *ParquetMirror {
	return &ParquetMirror{dir: dir}
}

func (m *ParquetMirror) Name() string { return "parquet:" + m.dir }

func (m *ParquetMirror) Write(date string, rec intel.DayRecord, _ []byte) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	path := filepath.Join(m.dir, date+".parquet")
	// full replace, mirroring the store's overwrite semantics
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("replace archive %s: %w", path, err)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(alertRow), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, a := range rec.Alerts {
		row := alertRow{
			Date:         rec.Date,
			Exchange:     a.Exchange,
			Category:     string(a.Category),
			Subcategory:  a.Subcategory,
			Severity:     string(a.Severity),
			Title:        a.Title,
			Description:  a.Description,
			EventDate:    a.EventDate,
			Source:       a.Source,
			URL:          a.URL,
			DiscoveredAt: a.DiscoveredAt.UnixMilli(),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write archive row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize archive: %w", err)
	}
	return fw.Close()
}
