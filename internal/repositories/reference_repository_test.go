package repositories

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/refcheckai/refcheck-backend/internal/models"
)

// scriptedRow feeds a prepared value list into a scan, positionally.
type scriptedRow struct {
	vals []interface{}
}

func (r scriptedRow) Scan(dest ...interface{}) error {
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan arity mismatch: %d dest, %d vals", len(dest), len(r.vals))
	}
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

// rowFor lays out a reference in baseSelectReference column order.
func rowFor(ref *models.Reference) scriptedRow {
	var lastOutcome *string
	if ref.LastOutcome != nil {
		s := string(*ref.LastOutcome)
		lastOutcome = &s
	}
	return scriptedRow{vals: []interface{}{
		ref.ID, ref.CandidateID, ref.JobID,
		ref.Name, ref.Phone, ref.Email, ref.Relationship,
		ref.Status, ref.CallID, ref.CallPlacedAt, ref.CallAttempts, lastOutcome,
		ref.ScheduledTime, ref.Timezone,
		ref.SMSSent, ref.SMSSentAt,
		ref.CustomQuestions, ref.Notes,
		ref.Transcript, ref.Score, ref.Summary, ref.Sentiment,
		ref.RedFlags, ref.Discrepancies,
		ref.AchievementsVerified, ref.AchievementsNotVerified, ref.PositiveSignals,
		ref.StructuredData,
		ref.RowVersion, ref.CreatedAt, ref.UpdatedAt, ref.CompletedAt,
	}}
}

// recordingDB captures every Exec and serves a fixed row for reads.
type recordingDB struct {
	row  scriptedRow
	sqls []string
	args [][]interface{}
}

func (d *recordingDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	d.sqls = append(d.sqls, sql)
	d.args = append(d.args, args)
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (d *recordingDB) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return nil, fmt.Errorf("not scripted")
}

func (d *recordingDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return d.row
}

func (d *recordingDB) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, fmt.Errorf("not scripted")
}

func containsArg(args []interface{}, want interface{}) bool {
	for _, a := range args {
		if reflect.DeepEqual(a, want) {
			return true
		}
	}
	return false
}

func baseReference() *models.Reference {
	ref := &models.Reference{
		ID:          uuid.New(),
		CandidateID: uuid.New(),
		Name:        "John Smith",
		Phone:       "+15551234567",
		Status:      models.ReferenceStatusNoAnswer,
	}
	ref.RowVersion = 4
	return ref
}

func TestUpdateIfVersionCoversSMSAndTranscriptColumns(t *testing.T) {
	db := &recordingDB{}
	repo := NewReferenceRepository(db)

	now := time.Now().UTC()
	ref := baseReference()
	ref.SMSSent = true
	ref.SMSSentAt = &now
	ref.Transcript = "AI: Hello.\nUser: Call me tomorrow."

	if _, err := repo.UpdateIfVersion(context.Background(), ref, 4); err != nil {
		t.Fatalf("UpdateIfVersion: %v", err)
	}
	if len(db.sqls) != 1 {
		t.Fatalf("exec count = %d, want 1", len(db.sqls))
	}

	sql := db.sqls[0]
	for _, col := range []string{"sms_sent=", "sms_sent_at=", "transcript=", "notes=", "scheduled_time="} {
		if !strings.Contains(sql, col) {
			t.Errorf("UPDATE does not set %s", col)
		}
	}

	args := db.args[0]
	if !containsArg(args, true) {
		t.Error("sms_sent value not bound")
	}
	if !containsArg(args, &now) {
		t.Error("sms_sent_at value not bound")
	}
	if !containsArg(args, ref.Transcript) {
		t.Error("transcript value not bound")
	}
	if !containsArg(args, int64(4)) {
		t.Error("expected row version not bound")
	}
}

// A read-mutate-update through the real retry loop must persist the
// fields UpdateWithRetry callers mutate, not silently drop them.
func TestUpdateWithRetryPersistsMutatedSMSFlags(t *testing.T) {
	ref := baseReference()
	db := &recordingDB{row: rowFor(ref)}
	repo := NewReferenceRepository(db)

	sentAt := time.Now().UTC()
	err := repo.UpdateWithRetry(context.Background(), ref.ID, func(r *models.Reference) error {
		r.SMSSent = true
		r.SMSSentAt = &sentAt
		r.Transcript = "stashed for reanalysis"
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateWithRetry: %v", err)
	}

	if len(db.args) != 1 {
		t.Fatalf("exec count = %d, want 1", len(db.args))
	}
	args := db.args[0]
	if !containsArg(args, true) {
		t.Error("mutated sms_sent not written")
	}
	if !containsArg(args, &sentAt) {
		t.Error("mutated sms_sent_at not written")
	}
	if !containsArg(args, "stashed for reanalysis") {
		t.Error("mutated transcript not written")
	}
}
