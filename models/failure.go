package models

import "fmt"

// Failure reports an error the crawl recovered from. RowID is empty for
// term-level failures.
type Failure struct {
	Term  string `json:"term"`
	RowID string `json:"row_id,omitempty"`
	State string `json:"state"`
	Kind  string `json:"kind"`
	Err   string `json:"error"`
}

func (f Failure) String() string {
	if f.RowID != "" {
		return fmt.Sprintf("term %q row %q in %s: %s: %s", f.Term, f.RowID, f.State, f.Kind, f.Err)
	}
	return fmt.Sprintf("term %q in %s: %s: %s", f.Term, f.State, f.Kind, f.Err)
}
