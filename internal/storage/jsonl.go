// Package storage keeps the publication index: an ephemeral SQLite
// database rebuilt from the merged bibliography, and JSONL snapshots of it.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/avitech-lab/labsite/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all publications from a JSONL file.
func ReadAll(path string) ([]reference.Publication, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // Empty file returns empty slice
		}
		return nil, fmt.Errorf("opening publications file: %w", err)
	}
	defer f.Close()

	var pubs []reference.Publication
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var p reference.Publication
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		pubs = append(pubs, p)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading publications file: %w", err)
	}

	return pubs, nil
}

// WriteAll writes all publications to a JSONL file, replacing existing content.
func WriteAll(path string, pubs []reference.Publication) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating publications file: %w", err)
	}
	defer f.Close()

	if err := Encode(f, pubs); err != nil {
		return err
	}
	return f.Close()
}

// Encode writes publications to w, one JSON object per line.
func Encode(w io.Writer, pubs []reference.Publication) error {
	for i, p := range pubs {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding publication %d: %w", i, err)
		}

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing publication %d: %w", i, err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}
	return nil
}

// FindByKey searches for a publication by citation key.
func FindByKey(pubs []reference.Publication, key string) (int, bool) {
	for i, p := range pubs {
		if p.Key == key {
			return i, true
		}
	}
	return -1, false
}

// FindByDOI searches for a publication by DOI.
func FindByDOI(pubs []reference.Publication, doi string) (int, bool) {
	if doi == "" {
		return -1, false
	}
	for i, p := range pubs {
		if p.DOI == doi {
			return i, true
		}
	}
	return -1, false
}
