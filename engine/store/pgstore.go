package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"siteforge/engine/models"
)

// PGStore persists every record as a JSONB blob keyed by id — the spec
// treats the relational store as an opaque checkpoint+history KV
// (SPEC_FULL §3), so the schema here is deliberately four narrow tables
// rather than a normalized Site/Build/Run/Iteration model.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects to dsn and ensures the backing tables exist.
func NewPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	s := &PGStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sites (id TEXT PRIMARY KEY, body JSONB NOT NULL);
CREATE TABLE IF NOT EXISTS builds (id TEXT PRIMARY KEY, site_id TEXT NOT NULL, body JSONB NOT NULL);
CREATE TABLE IF NOT EXISTS agent_runs (id TEXT PRIMARY KEY, site_id TEXT NOT NULL, status TEXT NOT NULL, body JSONB NOT NULL);
CREATE TABLE IF NOT EXISTS iteration_results (run_id TEXT NOT NULL, seq SERIAL, body JSONB NOT NULL, PRIMARY KEY (run_id, seq));
CREATE INDEX IF NOT EXISTS idx_builds_site ON builds (site_id);
`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) PutSite(ctx context.Context, site *models.Site) error {
	body, err := json.Marshal(site)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO sites (id, body) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`, site.ID, body)
	return err
}

func (s *PGStore) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM sites WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var site models.Site
	if err := json.Unmarshal(body, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *PGStore) ListSites(ctx context.Context) ([]*models.Site, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM sites`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Site
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var site models.Site
		if err := json.Unmarshal(body, &site); err != nil {
			return nil, err
		}
		out = append(out, &site)
	}
	return out, rows.Err()
}

func (s *PGStore) DeleteSite(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id)
	return err
}

func (s *PGStore) PutBuild(ctx context.Context, build *models.Build) error {
	body, err := json.Marshal(build)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO builds (id, site_id, body) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`, build.ID, build.SiteID, body)
	return err
}

func (s *PGStore) GetBuild(ctx context.Context, id string) (*models.Build, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM builds WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var build models.Build
	if err := json.Unmarshal(body, &build); err != nil {
		return nil, err
	}
	return &build, nil
}

func (s *PGStore) ListBuildsForSite(ctx context.Context, siteID string) ([]*models.Build, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM builds WHERE site_id = $1`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Build
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var build models.Build
		if err := json.Unmarshal(body, &build); err != nil {
			return nil, err
		}
		out = append(out, &build)
	}
	return out, rows.Err()
}

func (s *PGStore) PutAgentRun(ctx context.Context, run *models.AgentRun) error {
	body, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO agent_runs (id, site_id, status, body) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, body = EXCLUDED.body`,
		run.ID, run.SiteID, string(run.Status), body)
	return err
}

func (s *PGStore) GetAgentRun(ctx context.Context, id string) (*models.AgentRun, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT body FROM agent_runs WHERE id = $1`, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var run models.AgentRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PGStore) GetActiveAgentRunForSite(ctx context.Context, siteID string) (*models.AgentRun, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM agent_runs WHERE site_id = $1 AND status = $2 LIMIT 1`,
		siteID, string(models.AgentRunning)).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var run models.AgentRun
	if err := json.Unmarshal(body, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *PGStore) AppendIterationResult(ctx context.Context, runID string, result models.IterationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO iteration_results (run_id, body) VALUES ($1, $2)`, runID, body)
	return err
}

func (s *PGStore) ListIterationResults(ctx context.Context, runID string) ([]models.IterationResult, error) {
	rows, err := s.pool.Query(ctx, `SELECT body FROM iteration_results WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IterationResult
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var result models.IterationResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, rows.Err()
}
