package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

// PostgresRepository persists acquisition history into Postgres.
type PostgresRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.PaperRepository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// AlreadyAcquired reports whether the paper has an acquisition-history row.
func (r *PostgresRepository) AlreadyAcquired(ctx context.Context, id string) (bool, error) {
	if r.db == nil {
		return false, nil
	}

	query, args, err := r.builder.
		Select("1").
		From("acquired_papers").
		Where(sq.Eq{"arxiv_id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build acquired query: %w", err)
	}

	var one int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query acquired: %w", err)
	}

	return true, nil
}

// SaveAcquired upserts the acquisition snapshot for a paper.
func (r *PostgresRepository) SaveAcquired(ctx context.Context, paper domain.AcquiredPaper) error {
	if r.db == nil {
		return nil
	}

	query, args, err := r.builder.
		Insert("acquired_papers").
		Columns("arxiv_id", "artifact_type", "main_tex", "file_count", "acquired_at").
		Values(paper.ArxivID, string(paper.ArtifactType), paper.MainTex, paper.FileCount, paper.AcquiredAt).
		Suffix(`ON CONFLICT (arxiv_id) DO UPDATE
                SET artifact_type = EXCLUDED.artifact_type,
                    main_tex = EXCLUDED.main_tex,
                    file_count = EXCLUDED.file_count,
                    acquired_at = EXCLUDED.acquired_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert acquired: %w", err)
	}

	return nil
}
