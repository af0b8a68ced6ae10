package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"cvegs-matcher/pkg/models"
)

// CatalogRepo implements catalog.Store against Postgres with pgvector,
// grounded on the store.Store/Migrate/Search shape used for chunk search
// over an embedding column.
type CatalogRepo struct {
	pool *pgxpool.Pool
}

// NewCatalogRepo wraps an existing connection pool (see InitDB/GetPool).
func NewCatalogRepo(pool *pgxpool.Pool) *CatalogRepo {
	return &CatalogRepo{pool: pool}
}

// Migrate creates the catalog table, its embedding index, and the version
// ledger used to resolve the latest active snapshot. embeddingDim must match
// whatever embedding model populated the embedding column.
func (r *CatalogRepo) Migrate(ctx context.Context, embeddingDim int) error {
	q := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS catalog_versions (
  version     BIGINT PRIMARY KEY,
  status      TEXT NOT NULL DEFAULT 'loaded',
  loaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS catalog_records (
  cvegs            TEXT NOT NULL,
  catalog_version  BIGINT NOT NULL REFERENCES catalog_versions(version),
  marca            TEXT NOT NULL DEFAULT '',
  submarca         TEXT NOT NULL DEFAULT '',
  tipveh           TEXT NOT NULL DEFAULT '',
  modelo           INT NOT NULL DEFAULT 0,
  descveh          TEXT NOT NULL DEFAULT '',
  embedding        vector(%d),
  PRIMARY KEY (catalog_version, cvegs)
);

CREATE INDEX IF NOT EXISTS catalog_records_version_modelo_idx
  ON catalog_records (catalog_version, modelo);

CREATE INDEX IF NOT EXISTS catalog_records_embedding_idx
  ON catalog_records USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, embeddingDim)
	_, err := r.pool.Exec(ctx, q)
	return err
}

// LatestVersion returns the newest version marked active, falling back to
// the newest loaded version if none is active yet.
func (r *CatalogRepo) LatestVersion(ctx context.Context) (int64, error) {
	const q = `
SELECT version FROM catalog_versions
WHERE status = 'active'
ORDER BY version DESC
LIMIT 1`
	var version int64
	err := r.pool.QueryRow(ctx, q).Scan(&version)
	if err == nil {
		return version, nil
	}

	const fallbackQ = `SELECT version FROM catalog_versions ORDER BY version DESC LIMIT 1`
	if err2 := r.pool.QueryRow(ctx, fallbackQ).Scan(&version); err2 != nil {
		return 0, fmt.Errorf("resolve latest catalog version: %w", err)
	}
	return version, nil
}

// LoadSnapshot fetches every record belonging to version.
func (r *CatalogRepo) LoadSnapshot(ctx context.Context, version int64) ([]models.CatalogRecord, error) {
	const q = `
SELECT cvegs, marca, submarca, tipveh, modelo, descveh, embedding, catalog_version
FROM catalog_records
WHERE catalog_version = $1`

	rows, err := r.pool.Query(ctx, q, version)
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshot %d: %w", version, err)
	}
	defer rows.Close()

	var out []models.CatalogRecord
	for rows.Next() {
		var rec models.CatalogRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.CVEGS, &rec.Marca, &rec.Submarca, &rec.Tipveh, &rec.Modelo, &rec.Descveh, &vec, &rec.CatalogVersion); err != nil {
			return nil, fmt.Errorf("scan catalog record: %w", err)
		}
		rec.Embedding = vec.Slice()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertRecord inserts or replaces one catalog row for a version, used by
// batch catalog-load tooling.
func (r *CatalogRepo) UpsertRecord(ctx context.Context, rec models.CatalogRecord) error {
	const q = `
INSERT INTO catalog_records (cvegs, catalog_version, marca, submarca, tipveh, modelo, descveh, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (catalog_version, cvegs) DO UPDATE SET
  marca = EXCLUDED.marca,
  submarca = EXCLUDED.submarca,
  tipveh = EXCLUDED.tipveh,
  modelo = EXCLUDED.modelo,
  descveh = EXCLUDED.descveh,
  embedding = EXCLUDED.embedding`

	var vec any
	if rec.Embedding != nil {
		vec = pgvector.NewVector(rec.Embedding)
	}

	_, err := r.pool.Exec(ctx, q, rec.CVEGS, rec.CatalogVersion, rec.Marca, rec.Submarca, rec.Tipveh, rec.Modelo, rec.Descveh, vec)
	return err
}

// PublishVersion marks version active, making it eligible for LatestVersion.
func (r *CatalogRepo) PublishVersion(ctx context.Context, version int64) error {
	const q = `
INSERT INTO catalog_versions (version, status) VALUES ($1, 'active')
ON CONFLICT (version) DO UPDATE SET status = 'active'`
	_, err := r.pool.Exec(ctx, q, version)
	return err
}
