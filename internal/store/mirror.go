package store

import (
	"fmt"
	"os"
	"path/filepath"

	"cexintel/internal/intel"
)

// Mirror receives every stored day record synchronously. Byte mirrors
// (directory, S3) persist the identical serialized bytes; derived
// mirrors (parquet archive) work from the decoded record.
type Mirror interface {
	Name() string
	Write(date string, rec intel.DayRecord, data []byte) error
}

// DirMirror copies day-record bytes into a second directory, the
// deployment path the serving layer reads from.
type DirMirror struct {
	dir string
}

func NewDirMirror(dir string) *DirMirror {
	return &DirMirror{dir: dir}
}

func (m *DirMirror) Name() string { return "dir:" + m.dir }

func (m *DirMirror) Write(date string, _ intel.DayRecord, data []byte) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}
	return atomicWrite(filepath.Join(m.dir, date+".json"), data)
}
