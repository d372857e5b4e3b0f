package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"rera_crawler/models"
	"rera_crawler/storage"
)

// report prints a record when regNo is set, one run when id is set and the
// recent run overview otherwise.
func report(w io.Writer, store *storage.SQLiteStore, regNo string, id int64) error {
	switch {
	case regNo != "":
		return printRecord(w, store, regNo)
	case id > 0:
		return printRun(w, store, id)
	default:
		return printStatus(w, store, 10)
	}
}

func printStatus(w io.Writer, store *storage.SQLiteStore, limit int) error {
	runs, err := store.GetRecentRuns(limit)
	if err != nil {
		return err
	}
	records, err := store.CountRecords()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d records indexed\n\n", records)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTARTED\tSTATUS\tTERMS\tFAILED\tRECORDS\tSKIPPED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d/%d\t%d\t%d\t%d\n",
			r.ID, r.Mode, r.StartedAt.Format("2006-01-02 15:04"), r.Status,
			r.TermsDone, r.TermsTotal, r.TermsFailed, r.RecordsWritten, r.RowsSkipped)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(runs) == 0 {
		return nil
	}
	return printFailures(w, store, runs[0].ID)
}

func printRun(w io.Writer, store *storage.SQLiteStore, id int64) error {
	run, err := store.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run %d", id)
	}
	fmt.Fprintf(w, "Run %d (%s, %s): %s\n", run.ID, run.Mode, run.UUID, run.Status)

	logs, err := store.GetLogs(id)
	if err != nil {
		return err
	}
	for _, l := range logs {
		line := fmt.Sprintf("%s [%s] %s", l.Timestamp.Format("15:04:05"), l.Level, l.Message)
		if l.Term != "" {
			line += " (" + l.Term + ")"
		}
		fmt.Fprintln(w, line)
	}
	return printFailures(w, store, id)
}

func printFailures(w io.Writer, store *storage.SQLiteStore, id int64) error {
	failures, err := store.GetFailures(id)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%d failures in run %d:\n", len(failures), id)
	for _, f := range failures {
		fmt.Fprintf(w, "  %s\n", f)
	}
	return nil
}

func printRecord(w io.Writer, store *storage.SQLiteStore, regNo string) error {
	rec, err := store.GetRecord(regNo)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no record %q", regNo)
	}
	return writeJSON(w, rec)
}

func writeJSON(w io.Writer, rec *models.ProjectRecord) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}
