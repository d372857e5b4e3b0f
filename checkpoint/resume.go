package checkpoint

import (
	"context"
	"fmt"
	"log"

	"rera_crawler/models"
)

type Strategy string

const (
	// StrategyPositional skips a number of terms: the explicit offset when
	// given, otherwise everything up to the stored checkpoint.
	StrategyPositional Strategy = "positional"
	// StrategyContent resumes after the identifier of the last record in the
	// output store.
	StrategyContent Strategy = "content"
)

func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyPositional, StrategyContent:
		return Strategy(s), nil
	case "":
		return StrategyPositional, nil
	}
	return "", fmt.Errorf("unknown resume strategy %q", s)
}

// Store persists the last completed term per key.
type Store interface {
	GetCheckpoint(ctx context.Context, key string) (*models.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error
}

// LastIdentifier is implemented by output stores that can report the id of
// their last record.
type LastIdentifier interface {
	LastIdentifier() (string, error)
}

// PositionalOffset clamps n into [0, total].
func PositionalOffset(n, total int) int {
	if n < 0 {
		return 0
	}
	if n > total {
		return total
	}
	return n
}

// ContentOffset returns the index after lastID in terms, or 0 when lastID is
// empty or no longer part of the term list.
func ContentOffset(terms []models.SearchTerm, lastID string) int {
	if lastID == "" {
		return 0
	}
	for i, t := range terms {
		if t.Value == lastID {
			return i + 1
		}
	}
	return 0
}

// CheckpointOffset returns the index after the stored checkpoint. When the
// term file changed since the checkpoint was written the term is looked up by
// value first.
func CheckpointOffset(terms []models.SearchTerm, cp *models.Checkpoint) int {
	if cp == nil {
		return 0
	}
	if cp.Index >= 0 && cp.Index < len(terms) && terms[cp.Index].Value == cp.Term {
		return cp.Index + 1
	}
	if cp.Term != "" {
		if off := ContentOffset(terms, cp.Term); off > 0 {
			return off
		}
	}
	return PositionalOffset(cp.Index+1, len(terms))
}

// Resumer resolves the first term to process.
type Resumer struct {
	Strategy    Strategy
	Offset      int // explicit positional offset, < 0 when unset
	ResumeAfter string
	Key         string
	Store       Store
	Output      LastIdentifier
}

func (r *Resumer) Start(ctx context.Context, terms []models.SearchTerm) (int, error) {
	switch r.Strategy {
	case StrategyContent:
		lastID := r.ResumeAfter
		if lastID == "" && r.Output != nil {
			id, err := r.Output.LastIdentifier()
			if err != nil {
				return 0, fmt.Errorf("read last identifier: %w", err)
			}
			lastID = id
		}
		start := ContentOffset(terms, lastID)
		if lastID != "" && start == 0 {
			log.Printf("Last processed id %q not in term list, starting from the beginning", lastID)
		}
		return start, nil

	default:
		if r.Offset >= 0 {
			return PositionalOffset(r.Offset, len(terms)), nil
		}
		if r.Store == nil {
			return 0, nil
		}
		cp, err := r.Store.GetCheckpoint(ctx, r.Key)
		if err != nil {
			return 0, fmt.Errorf("load checkpoint: %w", err)
		}
		return CheckpointOffset(terms, cp), nil
	}
}
