package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

type ReferenceRepository interface {
	Create(ctx context.Context, ref *models.Reference) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Reference, error)
	GetByCallID(ctx context.Context, callID string) (*models.Reference, error)
	GetLatestByPhone(ctx context.Context, phone string) (*models.Reference, error)
	ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Reference, error)

	// ListDueForDispatch returns pending/scheduled references whose
	// scheduled time has arrived or is unset (meaning "now").
	ListDueForDispatch(ctx context.Context, candidateID uuid.UUID, now time.Time) ([]*models.Reference, error)

	// ListStaleCalling returns references still in `calling` whose call was
	// placed before the cutoff with no terminal result recorded.
	ListStaleCalling(ctx context.Context, cutoff time.Time) ([]*models.Reference, error)

	// TransitionAtomic runs mutate under a row lock, but only when the
	// current status is one of `from`. When it is not, the freshly-read row
	// is returned with applied=false and nothing is written — the loser of
	// a webhook/poller race observes the post-state and no-ops.
	TransitionAtomic(
		ctx context.Context,
		id uuid.UUID,
		from []models.ReferenceStatusType,
		mutate func(*models.Reference) error,
	) (ref *models.Reference, applied bool, err error)

	UpdateIfVersion(ctx context.Context, ref *models.Reference, expected int64) (pgconn.CommandTag, error)
	UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Reference) error) error

	Delete(ctx context.Context, id uuid.UUID) error
}

type referenceRepo struct {
	*BaseVersionedRepo[*models.Reference]
	db DB
}

func NewReferenceRepository(db DB) ReferenceRepository {
	r := &referenceRepo{db: db}
	r.BaseVersionedRepo = NewBaseRepo(db, baseSelectReference()+" WHERE id=$1", scanReference)
	return r
}

func baseSelectReference() string {
	return `
        SELECT
            id, candidate_id, job_id,
            name, phone, email, relationship,
            status, call_id, call_placed_at, call_attempts, last_outcome,
            scheduled_time, timezone,
            sms_sent, sms_sent_at,
            custom_questions, notes,
            transcript, score, summary, sentiment,
            red_flags, discrepancies,
            achievements_verified, achievements_not_verified, positive_signals,
            structured_data,
            row_version, created_at, updated_at, completed_at
        FROM candidate_references
    `
}

func scanReference(row pgx.Row) (*models.Reference, error) {
	var ref models.Reference
	var lastOutcome *string
	err := row.Scan(
		&ref.ID,
		&ref.CandidateID,
		&ref.JobID,
		&ref.Name,
		&ref.Phone,
		&ref.Email,
		&ref.Relationship,
		&ref.Status,
		&ref.CallID,
		&ref.CallPlacedAt,
		&ref.CallAttempts,
		&lastOutcome,
		&ref.ScheduledTime,
		&ref.Timezone,
		&ref.SMSSent,
		&ref.SMSSentAt,
		&ref.CustomQuestions,
		&ref.Notes,
		&ref.Transcript,
		&ref.Score,
		&ref.Summary,
		&ref.Sentiment,
		&ref.RedFlags,
		&ref.Discrepancies,
		&ref.AchievementsVerified,
		&ref.AchievementsNotVerified,
		&ref.PositiveSignals,
		&ref.StructuredData,
		&ref.RowVersion,
		&ref.CreatedAt,
		&ref.UpdatedAt,
		&ref.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastOutcome != nil {
		o := models.CallOutcomeType(*lastOutcome)
		ref.LastOutcome = &o
	}
	return &ref, nil
}

func (r *referenceRepo) Create(ctx context.Context, ref *models.Reference) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO candidate_references (
            id, candidate_id, job_id,
            name, phone, email, relationship,
            status, call_attempts,
            timezone, sms_sent, custom_questions, notes,
            transcript, summary, sentiment,
            red_flags, discrepancies,
            achievements_verified, achievements_not_verified, positive_signals,
            created_at, updated_at, row_version
        ) VALUES (
            $1,$2,$3,$4,$5,$6,$7,$8,0,$9,FALSE,$10,'','','','',
            '{}','{}','{}','{}','{}',NOW(),NOW(),1
        )
    `,
		ref.ID,
		ref.CandidateID,
		ref.JobID,
		ref.Name,
		ref.Phone,
		ref.Email,
		ref.Relationship,
		ref.Status,
		ref.Timezone,
		ref.CustomQuestions,
	)
	return err
}

func (r *referenceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reference, error) {
	row := r.db.QueryRow(ctx, baseSelectReference()+" WHERE id=$1", id)
	ref, err := scanReference(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return ref, err
}

func (r *referenceRepo) GetByCallID(ctx context.Context, callID string) (*models.Reference, error) {
	row := r.db.QueryRow(ctx, baseSelectReference()+" WHERE call_id=$1", callID)
	ref, err := scanReference(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return ref, err
}

// GetLatestByPhone resolves an inbound SMS to the most recently
// contacted reference at that number.
func (r *referenceRepo) GetLatestByPhone(ctx context.Context, phone string) (*models.Reference, error) {
	row := r.db.QueryRow(ctx, baseSelectReference()+`
        WHERE phone=$1
        ORDER BY updated_at DESC
        LIMIT 1
    `, phone)
	ref, err := scanReference(row)
	if err == pgx.ErrNoRows {
		return nil, utils.ErrNotFound
	}
	return ref, err
}

func (r *referenceRepo) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Reference, error) {
	rows, err := r.db.Query(ctx, baseSelectReference()+" WHERE candidate_id=$1 ORDER BY created_at", candidateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReferences(rows)
}

func (r *referenceRepo) ListDueForDispatch(ctx context.Context, candidateID uuid.UUID, now time.Time) ([]*models.Reference, error) {
	rows, err := r.db.Query(ctx, baseSelectReference()+`
        WHERE candidate_id=$1
          AND status IN ('pending','scheduled')
          AND (scheduled_time IS NULL OR scheduled_time <= $2)
        ORDER BY created_at
    `, candidateID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReferences(rows)
}

func (r *referenceRepo) ListStaleCalling(ctx context.Context, cutoff time.Time) ([]*models.Reference, error) {
	rows, err := r.db.Query(ctx, baseSelectReference()+`
        WHERE status='calling'
          AND COALESCE(call_placed_at, updated_at) < $1
        ORDER BY COALESCE(call_placed_at, updated_at)
    `, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReferences(rows)
}

func collectReferences(rows pgx.Rows) ([]*models.Reference, error) {
	var out []*models.Reference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (r *referenceRepo) TransitionAtomic(
	ctx context.Context,
	id uuid.UUID,
	from []models.ReferenceStatusType,
	mutate func(*models.Reference) error,
) (*models.Reference, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	row := tx.QueryRow(ctx, baseSelectReference()+" WHERE id=$1 FOR UPDATE", id)
	ref, err := scanReference(row)
	if err != nil {
		return nil, false, err
	}

	matched := false
	for _, s := range from {
		if ref.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		// Someone else already transitioned the row; hand back the
		// post-state so the caller can no-op.
		return ref, false, nil
	}

	if err = mutate(ref); err != nil {
		return nil, false, err
	}

	var outcome *string
	if ref.LastOutcome != nil {
		s := string(*ref.LastOutcome)
		outcome = &s
	}

	_, err = tx.Exec(ctx, `
        UPDATE candidate_references
        SET status=$1,
            call_id=$2, call_placed_at=$3, call_attempts=$4, last_outcome=$5,
            scheduled_time=$6, timezone=$7,
            sms_sent=$8, sms_sent_at=$9,
            notes=$10,
            transcript=$11, score=$12, summary=$13, sentiment=$14,
            red_flags=$15, discrepancies=$16,
            achievements_verified=$17, achievements_not_verified=$18, positive_signals=$19,
            structured_data=$20,
            completed_at=$21,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$22
    `,
		ref.Status,
		ref.CallID, ref.CallPlacedAt, ref.CallAttempts, outcome,
		ref.ScheduledTime, ref.Timezone,
		ref.SMSSent, ref.SMSSentAt,
		ref.Notes,
		ref.Transcript, ref.Score, ref.Summary, ref.Sentiment,
		ref.RedFlags, ref.Discrepancies,
		ref.AchievementsVerified, ref.AchievementsNotVerified, ref.PositiveSignals,
		ref.StructuredData,
		ref.CompletedAt,
		ref.ID,
	)
	if err != nil {
		return nil, false, err
	}
	ref.RowVersion++
	return ref, true, nil
}

// UpdateIfVersion writes every column a read-mutate-update caller may
// touch. Status and the analysis result columns are owned by
// TransitionAtomic and deliberately excluded.
func (r *referenceRepo) UpdateIfVersion(ctx context.Context, ref *models.Reference, expected int64) (pgconn.CommandTag, error) {
	return r.db.Exec(ctx, `
        UPDATE candidate_references
        SET name=$1, phone=$2, email=$3, relationship=$4,
            job_id=$5, custom_questions=$6, notes=$7,
            scheduled_time=$8, timezone=$9,
            sms_sent=$10, sms_sent_at=$11, transcript=$12,
            row_version=row_version+1, updated_at=NOW()
        WHERE id=$13 AND row_version=$14
    `,
		ref.Name, ref.Phone, ref.Email, ref.Relationship,
		ref.JobID, ref.CustomQuestions, ref.Notes,
		ref.ScheduledTime, ref.Timezone,
		ref.SMSSent, ref.SMSSentAt, ref.Transcript,
		ref.ID, expected,
	)
}

func (r *referenceRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Reference) error) error {
	return r.BaseVersionedRepo.UpdateWithRetry(ctx, id.String(), mutate, r.UpdateIfVersion)
}

func (r *referenceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM candidate_references WHERE id=$1`, id)
	return err
}
