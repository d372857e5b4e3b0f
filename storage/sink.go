package storage

import (
	"context"
	"log"

	"rera_crawler/models"
)

// Sink receives assembled records. Write must make the record durable before
// the next term starts; implementations may buffer within a term and persist
// on Flush.
type Sink interface {
	Write(ctx context.Context, r *models.ProjectRecord) error
	Flush() error
	Close() error
}

// Indexed sinks can report the identifiers they already hold.
type Indexed interface {
	Identifiers() (map[string]bool, error)
	LastIdentifier() (string, error)
}

// MultiSink fans records out to several sinks. The first sink is the primary
// one: its errors fail the write, the others are logged.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(primary Sink, secondary ...Sink) *MultiSink {
	return &MultiSink{sinks: append([]Sink{primary}, secondary...)}
}

func (m *MultiSink) Write(ctx context.Context, r *models.ProjectRecord) error {
	for i, s := range m.sinks {
		if err := s.Write(ctx, r); err != nil {
			if i == 0 {
				return err
			}
			log.Printf("Secondary sink write %s failed: %v", r.ID(), err)
		}
	}
	return nil
}

func (m *MultiSink) Flush() error {
	for _, s := range m.sinks[1:] {
		if err := s.Flush(); err != nil {
			log.Printf("Secondary sink flush failed: %v", err)
		}
	}
	return m.sinks[0].Flush()
}

func (m *MultiSink) Close() error {
	for _, s := range m.sinks[1:] {
		if err := s.Close(); err != nil {
			log.Printf("Secondary sink close failed: %v", err)
		}
	}
	return m.sinks[0].Close()
}

// Identifiers and LastIdentifier delegate to the primary sink.
func (m *MultiSink) Identifiers() (map[string]bool, error) {
	if idx, ok := m.sinks[0].(Indexed); ok {
		return idx.Identifiers()
	}
	return map[string]bool{}, nil
}

func (m *MultiSink) LastIdentifier() (string, error) {
	if idx, ok := m.sinks[0].(Indexed); ok {
		return idx.LastIdentifier()
	}
	return "", nil
}

// DedupSink drops records whose identifier was already written, either in
// this run or in the output store before it started.
type DedupSink struct {
	next    Sink
	seen    map[string]bool
	Skipped int
}

func NewDedupSink(next Sink) (*DedupSink, error) {
	seen := map[string]bool{}
	if idx, ok := next.(Indexed); ok {
		ids, err := idx.Identifiers()
		if err != nil {
			return nil, err
		}
		seen = ids
	}
	return &DedupSink{next: next, seen: seen}, nil
}

func (d *DedupSink) Write(ctx context.Context, r *models.ProjectRecord) error {
	id := r.ID()
	if id != "" && d.seen[id] {
		d.Skipped++
		log.Printf("Skipping duplicate record %s", id)
		return nil
	}
	if err := d.next.Write(ctx, r); err != nil {
		return err
	}
	if id != "" {
		d.seen[id] = true
	}
	return nil
}

func (d *DedupSink) Flush() error { return d.next.Flush() }
func (d *DedupSink) Close() error { return d.next.Close() }

func (d *DedupSink) Identifiers() (map[string]bool, error) {
	out := make(map[string]bool, len(d.seen))
	for k := range d.seen {
		out[k] = true
	}
	return out, nil
}

func (d *DedupSink) LastIdentifier() (string, error) {
	if idx, ok := d.next.(Indexed); ok {
		return idx.LastIdentifier()
	}
	return "", nil
}
