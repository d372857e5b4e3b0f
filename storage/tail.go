package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
)

// trimPartialTail cuts a file back to the end of its last complete record
// so an append after a crash never lands on a half-written line. complete
// returns the length of the intact prefix.
func trimPartialTail(path string, complete func(data []byte) int64) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read output: %w", err)
	}
	keep := complete(data)
	if keep >= int64(len(data)) {
		return nil
	}
	log.Printf("Dropping %d bytes of partial record at end of %s", int64(len(data))-keep, path)
	if err := os.Truncate(path, keep); err != nil {
		return fmt.Errorf("truncate output: %w", err)
	}
	return nil
}

// completeLines keeps everything up to and including the last newline.
func completeLines(data []byte) int64 {
	if len(data) == 0 || data[len(data)-1] == '\n' {
		return int64(len(data))
	}
	return int64(bytes.LastIndexByte(data, '\n') + 1)
}

// completeCSVRecords keeps every record whose terminating newline made it
// to disk. Quoted fields may span lines, so a plain newline scan is not
// enough.
func completeCSVRecords(data []byte) int64 {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var good int64
	for {
		if _, err := r.Read(); err != nil {
			return good
		}
		off := r.InputOffset()
		if off > 0 && data[off-1] == '\n' {
			good = off
		}
	}
}
