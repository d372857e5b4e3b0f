package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rera_crawler/identity"
	"rera_crawler/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS crawl_runs (
	id UUID PRIMARY KEY,
	mode TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	terms_total INTEGER DEFAULT 0,
	terms_done INTEGER DEFAULT 0,
	terms_failed INTEGER DEFAULT 0,
	records_written INTEGER DEFAULT 0,
	errors_count INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS rera_projects (
	reg_no TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	search_term TEXT,
	project_name TEXT,
	promoter_name TEXT,
	district TEXT,
	taluk TEXT,
	summary JSONB NOT NULL,
	details JSONB NOT NULL,
	inventories JSONB NOT NULL DEFAULT '[]',
	towers JSONB NOT NULL DEFAULT '[]',
	internal_infrastructure JSONB NOT NULL DEFAULT '[]',
	external_infrastructure JSONB NOT NULL DEFAULT '[]',
	amenities JSONB NOT NULL DEFAULT '[]',
	last_run_id UUID,
	extracted_at TIMESTAMPTZ,
	first_seen_at TIMESTAMPTZ DEFAULT NOW(),
	updated_at TIMESTAMPTZ DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rera_projects_fingerprint ON rera_projects(fingerprint);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.CrawlRun) error {
	query := `
		INSERT INTO crawl_runs (id, mode, started_at, status, terms_total)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, run.UUID, string(run.Mode), run.StartedAt, string(run.Status), run.TermsTotal)
	return err
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *models.CrawlRun) error {
	query := `
		UPDATE crawl_runs SET
			finished_at = $2, status = $3, terms_total = $4, terms_done = $5,
			terms_failed = $6, records_written = $7, errors_count = $8
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.UUID, run.FinishedAt, string(run.Status), run.TermsTotal, run.TermsDone,
		run.TermsFailed, run.RecordsWritten, run.ErrorsCount,
	)
	return err
}

// =============================================================================
// Projects
// =============================================================================

const upsertProjectQuery = `
	INSERT INTO rera_projects (
		reg_no, fingerprint, search_term, project_name, promoter_name, district, taluk,
		summary, details, inventories, towers, internal_infrastructure, external_infrastructure,
		amenities, last_run_id, extracted_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
	)
	ON CONFLICT (reg_no) DO UPDATE SET
		fingerprint = EXCLUDED.fingerprint,
		search_term = EXCLUDED.search_term,
		project_name = COALESCE(NULLIF(EXCLUDED.project_name, ''), rera_projects.project_name),
		promoter_name = COALESCE(NULLIF(EXCLUDED.promoter_name, ''), rera_projects.promoter_name),
		district = COALESCE(NULLIF(EXCLUDED.district, ''), rera_projects.district),
		taluk = COALESCE(NULLIF(EXCLUDED.taluk, ''), rera_projects.taluk),
		summary = EXCLUDED.summary,
		details = EXCLUDED.details,
		inventories = EXCLUDED.inventories,
		towers = EXCLUDED.towers,
		internal_infrastructure = EXCLUDED.internal_infrastructure,
		external_infrastructure = EXCLUDED.external_infrastructure,
		amenities = EXCLUDED.amenities,
		last_run_id = EXCLUDED.last_run_id,
		extracted_at = EXCLUDED.extracted_at,
		updated_at = NOW()
	WHERE rera_projects.fingerprint IS DISTINCT FROM EXCLUDED.fingerprint`

// projectArgs returns the positional arguments of upsertProjectQuery. Section
// columns are jsonb, so they are passed pre-encoded. Rows whose fingerprint
// is unchanged are left alone, so updated_at marks real changes.
func projectArgs(runID uuid.UUID, r *models.ProjectRecord) ([]any, error) {
	sections := []any{r.Summary, r.Details, r.Inventories, r.Towers,
		r.InternalInfrastructure, r.ExternalInfrastructure, r.Amenities}
	encoded := make([]any, len(sections))
	for i, v := range sections {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal record %s: %w", r.ID(), err)
		}
		if string(data) == "null" {
			data = []byte("[]")
		}
		encoded[i] = string(data)
	}

	args := []any{
		r.ID(), identity.Fingerprint(r), r.Term, r.Summary.ProjectName, r.Summary.PromoterName,
		r.Summary.District, r.Taluk(),
	}
	args = append(args, encoded...)
	args = append(args, runID, r.ExtractedAt)
	return args, nil
}

// Sink buffers a term's records and writes them in one batch on Flush.
func (s *PostgresStore) Sink(runID uuid.UUID) *PostgresSink {
	return &PostgresSink{store: s, runID: runID}
}

type PostgresSink struct {
	store   *PostgresStore
	runID   uuid.UUID
	pending []*models.ProjectRecord
}

func (p *PostgresSink) Write(_ context.Context, r *models.ProjectRecord) error {
	p.pending = append(p.pending, r)
	return nil
}

func (p *PostgresSink) Flush() error {
	if len(p.pending) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch := &pgx.Batch{}
	for _, r := range p.pending {
		args, err := projectArgs(p.runID, r)
		if err != nil {
			return err
		}
		batch.Queue(upsertProjectQuery, args...)
	}
	if err := p.store.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert %d projects: %w", len(p.pending), err)
	}
	p.pending = p.pending[:0]
	return nil
}

// Close flushes what is pending; the pool stays open for its owner.
func (p *PostgresSink) Close() error {
	return p.Flush()
}
