package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type CandidateRepository interface {
	Create(ctx context.Context, c *models.Candidate) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error)
	ListByUser(ctx context.Context, userID uuid.UUID, status *models.CandidateStatusType) ([]*models.Candidate, error)
	Update(ctx context.Context, c *models.Candidate) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatusType) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type candidateRepo struct {
	db DB
}

func NewCandidateRepository(db DB) CandidateRepository {
	return &candidateRepo{db: db}
}

func baseSelectCandidate() string {
	return `
        SELECT
            id, user_id, name, email, phone, position,
            resume_text, resume_filename, summary, status,
            target_role_category, target_role_details,
            created_at, updated_at
        FROM candidates
    `
}

func scanCandidate(row pgx.Row) (*models.Candidate, error) {
	var c models.Candidate
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.Email,
		&c.Phone,
		&c.Position,
		&c.ResumeText,
		&c.ResumeFilename,
		&c.Summary,
		&c.Status,
		&c.TargetRoleCategory,
		&c.TargetRoleDetails,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *candidateRepo) Create(ctx context.Context, c *models.Candidate) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO candidates (
            id, user_id, name, email, phone, position,
            resume_text, resume_filename, summary, status,
            target_role_category, target_role_details,
            created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
    `,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Position,
		c.ResumeText, c.ResumeFilename, c.Summary, c.Status,
		c.TargetRoleCategory, c.TargetRoleDetails,
	)
	return err
}

func (r *candidateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	row := r.db.QueryRow(ctx, baseSelectCandidate()+" WHERE id=$1", id)
	c, err := scanCandidate(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return c, err
}

func (r *candidateRepo) ListByUser(ctx context.Context, userID uuid.UUID, status *models.CandidateStatusType) ([]*models.Candidate, error) {
	q := baseSelectCandidate() + " WHERE user_id=$1"
	args := []interface{}{userID}
	if status != nil {
		q += " AND status=$2"
		args = append(args, *status)
	}
	q += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Candidate
	for rows.Next() {
		c, scanErr := scanCandidate(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *candidateRepo) Update(ctx context.Context, c *models.Candidate) error {
	_, err := r.db.Exec(ctx, `
        UPDATE candidates
        SET name=$1, email=$2, phone=$3, position=$4,
            resume_text=$5, resume_filename=$6, summary=$7, status=$8,
            target_role_category=$9, target_role_details=$10,
            updated_at=NOW()
        WHERE id=$11
    `,
		c.Name, c.Email, c.Phone, c.Position,
		c.ResumeText, c.ResumeFilename, c.Summary, c.Status,
		c.TargetRoleCategory, c.TargetRoleDetails,
		c.ID,
	)
	return err
}

func (r *candidateRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatusType) error {
	_, err := r.db.Exec(ctx, `
        UPDATE candidates SET status=$1, updated_at=NOW() WHERE id=$2
    `, status, id)
	return err
}

func (r *candidateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	// Jobs and references cascade via FK.
	_, err := r.db.Exec(ctx, `DELETE FROM candidates WHERE id=$1`, id)
	return err
}
