package refstore

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Snapshot I/O: the interchange format is JSON Lines, one [Record] per line.
// A snapshot is how reference data moves between deployments and backends:
// curated bootstrap sets are loaded from one, and any store can be exported
// back to one, whatever engine actually holds the records.

// ReadSnapshot decodes records from r until EOF. Blank lines are skipped.
// Decoding stops at the first malformed line; records read before it are
// returned along with the error.
func ReadSnapshot(r io.Reader) ([]Record, error) {
	var records []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return records, fmt.Errorf("refstore: snapshot line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, fmt.Errorf("refstore: read snapshot: %w", err)
	}
	return records, nil
}

// WriteSnapshot encodes records to w, one JSON object per line.
func WriteSnapshot(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("refstore: snapshot record %d: %w", i, err)
		}
	}
	return nil
}

// LoadFile bulk-imports the snapshot at path into st and returns the number
// of records inserted. A missing file is not an error when optional is true:
// a fresh deployment simply has no reference data yet.
func LoadFile(ctx context.Context, st Store, path string, optional bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("refstore: open snapshot: %w", err)
	}
	defer f.Close()

	records, err := ReadSnapshot(f)
	if err != nil {
		return 0, err
	}
	return st.BulkImport(ctx, records)
}

// SaveFile exports every record in st to path, replacing the file. The
// write goes through a temporary file in the same directory and a rename,
// so a crash mid-export never leaves a half-written snapshot behind.
func SaveFile(ctx context.Context, st Store, path string) (int, error) {
	records, err := st.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("refstore: export: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("refstore: export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteSnapshot(tmp, records); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("refstore: export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("refstore: export: %w", err)
	}
	return len(records), nil
}
