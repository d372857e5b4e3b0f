package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rera_crawler/models"
)

type memSink struct {
	records []*models.ProjectRecord
	flushes int
	closed  bool
	err     error

	flushErr error
	closeErr error
}

func (m *memSink) Write(_ context.Context, r *models.ProjectRecord) error {
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memSink) Flush() error { m.flushes++; return m.flushErr }
func (m *memSink) Close() error { m.closed = true; return m.closeErr }

func (m *memSink) Identifiers() (map[string]bool, error) {
	ids := map[string]bool{}
	for _, r := range m.records {
		ids[r.ID()] = true
	}
	return ids, nil
}

func (m *memSink) LastIdentifier() (string, error) {
	if len(m.records) == 0 {
		return "", nil
	}
	return m.records[len(m.records)-1].ID(), nil
}

func TestDedupSink_SkipsKnownAndRepeated(t *testing.T) {
	ctx := context.Background()
	inner := &memSink{records: []*models.ProjectRecord{sampleRecord("PRM/1")}}

	d, err := NewDedupSink(inner)
	require.NoError(t, err)

	require.NoError(t, d.Write(ctx, sampleRecord("PRM/1")))
	require.NoError(t, d.Write(ctx, sampleRecord("PRM/2")))
	require.NoError(t, d.Write(ctx, sampleRecord("PRM/2")))

	assert.Len(t, inner.records, 2)
	assert.Equal(t, 2, d.Skipped)

	last, err := d.LastIdentifier()
	require.NoError(t, err)
	assert.Equal(t, "PRM/2", last)
}

func TestDedupSink_FailedWriteNotMarkedSeen(t *testing.T) {
	ctx := context.Background()
	inner := &memSink{err: errors.New("disk full")}
	d, err := NewDedupSink(inner)
	require.NoError(t, err)

	assert.Error(t, d.Write(ctx, sampleRecord("PRM/1")))

	inner.err = nil
	require.NoError(t, d.Write(ctx, sampleRecord("PRM/1")))
	assert.Len(t, inner.records, 1)
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	primary := &memSink{}
	secondary := &memSink{err: errors.New("offline")}
	m := NewMultiSink(primary, secondary)

	require.NoError(t, m.Write(ctx, sampleRecord("PRM/1")), "secondary errors are logged only")
	assert.Len(t, primary.records, 1)

	primary.err = errors.New("disk full")
	assert.Error(t, m.Write(ctx, sampleRecord("PRM/2")))

	require.NoError(t, m.Flush())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, primary.flushes)
	assert.True(t, secondary.closed)

	last, err := m.LastIdentifier()
	require.NoError(t, err)
	assert.Equal(t, "PRM/1", last)
}

func TestMultiSink_SecondaryFlushAndCloseErrorsAreLogged(t *testing.T) {
	ctx := context.Background()
	primary := &memSink{}
	mirror := &memSink{
		flushErr: errors.New("pg: connection refused"),
		closeErr: errors.New("pg: connection refused"),
	}
	d, err := NewDedupSink(NewMultiSink(primary, mirror))
	require.NoError(t, err)

	require.NoError(t, d.Write(ctx, sampleRecord("PRM/1")))
	require.NoError(t, d.Flush())
	require.NoError(t, d.Close())
	assert.Equal(t, 1, mirror.flushes)
	assert.True(t, primary.closed)

	primary.flushErr = errors.New("disk full")
	assert.EqualError(t, d.Flush(), "disk full")
}
