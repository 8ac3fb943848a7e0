package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type JobRepository interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Job, error)

	// PrimaryForCandidate is the most recent claimed position, used when a
	// reference has no job pinned to it.
	PrimaryForCandidate(ctx context.Context, candidateID uuid.UUID) (*models.Job, error)
}

type jobRepo struct {
	db DB
}

func NewJobRepository(db DB) JobRepository {
	return &jobRepo{db: db}
}

func baseSelectJob() string {
	return `
        SELECT id, candidate_id, company, title, dates,
               responsibilities, achievements, ordering,
               created_at, updated_at
        FROM jobs
    `
}

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(
		&j.ID,
		&j.CandidateID,
		&j.Company,
		&j.Title,
		&j.Dates,
		&j.Responsibilities,
		&j.Achievements,
		&j.Ordering,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *jobRepo) Create(ctx context.Context, j *models.Job) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO jobs (
            id, candidate_id, company, title, dates,
            responsibilities, achievements, ordering,
            created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW())
    `,
		j.ID, j.CandidateID, j.Company, j.Title, j.Dates,
		j.Responsibilities, j.Achievements, j.Ordering,
	)
	return err
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := r.db.QueryRow(ctx, baseSelectJob()+" WHERE id=$1", id)
	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return j, err
}

func (r *jobRepo) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Job, error) {
	rows, err := r.db.Query(ctx, baseSelectJob()+" WHERE candidate_id=$1 ORDER BY ordering", candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *jobRepo) PrimaryForCandidate(ctx context.Context, candidateID uuid.UUID) (*models.Job, error) {
	row := r.db.QueryRow(ctx, baseSelectJob()+" WHERE candidate_id=$1 ORDER BY ordering LIMIT 1", candidateID)
	j, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return j, err
}
