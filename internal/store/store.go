// Durable keyed storage of day records: one JSON file per ISO date
// under the storage root, with synchronous fan-out to registered
// mirrors on every write.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"cexintel/internal/intel"
	"cexintel/logger"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Store writes and reads day records under a single root directory.
// Writes are full replacements: re-collecting a day overwrites the
// previous record with no merge.
type Store struct {
	root    string
	mirrors []Mirror
	log     *logger.Entry
}

// New creates a store rooted at dir. Mirrors observe identical bytes
// for every put before Put returns.
func New(root string, mirrors ...Mirror) *Store {
	return &Store{
		root:    root,
		mirrors: mirrors,
		log:     logger.GetLogger().WithComponent("store"),
	}
}

func (s *Store) path(date string) string {
	return filepath.Join(s.root, date+".json")
}

// Put serializes the record and replaces the file for its date. The
// write goes to a temp file first and is renamed into place so a crash
// mid-write never leaves a half-written record readable.
func (s *Store) Put(rec intel.DayRecord) error {
	if !datePattern.MatchString(rec.Date) {
		return fmt.Errorf("invalid record date %q", rec.Date)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create storage root: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal day record: %w", err)
	}

	if err := atomicWrite(s.path(rec.Date), data); err != nil {
		return fmt.Errorf("write day record %s: %w", rec.Date, err)
	}

	for _, m := range s.mirrors {
		if err := m.Write(rec.Date, rec, data); err != nil {
			return fmt.Errorf("mirror %s: %w", m.Name(), err)
		}
	}

	s.log.WithFields(logger.Fields{
		"date":    rec.Date,
		"alerts":  len(rec.Alerts),
		"mirrors": len(s.mirrors),
	}).Info("day record stored")
	return nil
}

// Get returns the record for a date. The second return is false when
// no record exists for that date; a missing date is not an error.
func (s *Store) Get(date string) (intel.DayRecord, bool, error) {
	data, err := os.ReadFile(s.path(date))
	if os.IsNotExist(err) {
		return intel.DayRecord{}, false, nil
	}
	if err != nil {
		return intel.DayRecord{}, false, fmt.Errorf("read day record %s: %w", date, err)
	}

	var rec intel.DayRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return intel.DayRecord{}, false, fmt.Errorf("decode day record %s: %w", date, err)
	}
	return rec, true, nil
}

// ListDates returns known dates newest first, bounded by limit
// (limit <= 0 means unbounded). Bulk-seed "historical-*" entries share
// the directory but are a separate import channel and never appear
// here.
func (s *Store) ListDates(limit int) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list storage root: %w", err)
	}

	var dates []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".json")
		if name == e.Name() || !datePattern.MatchString(name) {
			continue
		}
		dates = append(dates, name)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	if limit > 0 && len(dates) > limit {
		dates = dates[:limit]
	}
	return dates, nil
}

// Latest walks back from the given date (inclusive) up to lookback days
// and returns the nearest record found. Callers use it when today's
// collection has not landed yet.
func (s *Store) Latest(from string, lookback int) (intel.DayRecord, bool, error) {
	day, err := time.Parse("2006-01-02", from)
	if err != nil {
		return intel.DayRecord{}, false, fmt.Errorf("invalid date %q: %w", from, err)
	}
	for i := 0; i <= lookback; i++ {
		date := day.AddDate(0, 0, -i).Format("2006-01-02")
		rec, ok, err := s.Get(date)
		if err != nil {
			return intel.DayRecord{}, false, err
		}
		if ok {
			return rec, true, nil
		}
	}
	return intel.DayRecord{}, false, nil
}

// Window loads the records for the most recent n dates, newest first.
func (s *Store) Window(n int) ([]intel.DayRecord, error) {
	dates, err := s.ListDates(n)
	if err != nil {
		return nil, err
	}
	records := make([]intel.DayRecord, 0, len(dates))
	for _, date := range dates {
		rec, ok, err := s.Get(date)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Seed loads the bulk-imported historical alert set, preferring a
// *-detailed file. Absence is normal and returns an empty list.
func (s *Store) Seed() ([]intel.Alert, error) {
	entries, err := os.ReadDir(s.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list storage root: %w", err)
	}

	var detailed, plain []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "historical-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		if strings.HasSuffix(name, "-detailed.json") {
			detailed = append(detailed, name)
		} else {
			plain = append(plain, name)
		}
	}
	sort.Strings(detailed)
	sort.Strings(plain)

	candidates := append(detailed, plain...)
	if len(candidates) == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(s.root, candidates[0]))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed struct {
		Alerts []intel.Alert `json:"alerts"`
	}
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", candidates[0], err)
	}
	return seed.Alerts, nil
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
