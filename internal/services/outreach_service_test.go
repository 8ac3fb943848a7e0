package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"

	"github.com/refcheckai/refcheck-backend/internal/models"
	"github.com/refcheckai/refcheck-backend/internal/utils"
)

// ---------------------------------------------------------------------
// In-memory fakes. The reference fake serializes TransitionAtomic with a
// mutex, matching the row-lock semantics of the real repository.
// ---------------------------------------------------------------------

type fakeReferenceRepo struct {
	mu   sync.Mutex
	refs map[uuid.UUID]*models.Reference
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{refs: make(map[uuid.UUID]*models.Reference)}
}

func (f *fakeReferenceRepo) put(ref *models.Reference) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ref
	f.refs[ref.ID] = &cp
}

func (f *fakeReferenceRepo) Create(ctx context.Context, ref *models.Reference) error {
	f.put(ref)
	return nil
}

func (f *fakeReferenceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *ref
	return &cp, nil
}

func (f *fakeReferenceRepo) GetByCallID(ctx context.Context, callID string) (*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range f.refs {
		if ref.CallID != nil && *ref.CallID == callID {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeReferenceRepo) GetLatestByPhone(ctx context.Context, phone string) (*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ref := range f.refs {
		if ref.Phone == phone {
			cp := *ref
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeReferenceRepo) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reference
	for _, ref := range f.refs {
		if ref.CandidateID == candidateID {
			cp := *ref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReferenceRepo) ListDueForDispatch(ctx context.Context, candidateID uuid.UUID, now time.Time) ([]*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reference
	for _, ref := range f.refs {
		if ref.CandidateID != candidateID {
			continue
		}
		if ref.Status != models.ReferenceStatusPending && ref.Status != models.ReferenceStatusScheduled {
			continue
		}
		if ref.ScheduledTime != nil && ref.ScheduledTime.After(now) {
			continue
		}
		cp := *ref
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeReferenceRepo) ListStaleCalling(ctx context.Context, cutoff time.Time) ([]*models.Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Reference
	for _, ref := range f.refs {
		if ref.Status == models.ReferenceStatusCalling && ref.CallPlacedAt != nil && ref.CallPlacedAt.Before(cutoff) {
			cp := *ref
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeReferenceRepo) TransitionAtomic(
	ctx context.Context,
	id uuid.UUID,
	from []models.ReferenceStatusType,
	mutate func(*models.Reference) error,
) (*models.Reference, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref, ok := f.refs[id]
	if !ok {
		return nil, false, utils.ErrNotFound
	}

	eligible := false
	for _, s := range from {
		if ref.Status == s {
			eligible = true
			break
		}
	}
	if !eligible {
		cp := *ref
		return &cp, false, nil
	}

	cp := *ref
	if err := mutate(&cp); err != nil {
		return nil, false, err
	}
	cp.RowVersion++
	cp.UpdatedAt = time.Now()
	f.refs[id] = &cp

	out := cp
	return &out, true, nil
}

func (f *fakeReferenceRepo) UpdateIfVersion(ctx context.Context, ref *models.Reference, expected int64) (pgconn.CommandTag, error) {
	return pgconn.CommandTag("UPDATE 1"), nil
}

func (f *fakeReferenceRepo) UpdateWithRetry(ctx context.Context, id uuid.UUID, mutate func(*models.Reference) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[id]
	if !ok {
		return utils.ErrNotFound
	}
	cp := *ref
	if err := mutate(&cp); err != nil {
		return err
	}
	cp.RowVersion++
	f.refs[id] = &cp
	return nil
}

func (f *fakeReferenceRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refs, id)
	return nil
}

type fakeCandidateRepo struct {
	mu         sync.Mutex
	candidates map[uuid.UUID]*models.Candidate
	statusSets []models.CandidateStatusType
}

func newFakeCandidateRepo() *fakeCandidateRepo {
	return &fakeCandidateRepo{candidates: make(map[uuid.UUID]*models.Candidate)}
}

func (f *fakeCandidateRepo) Create(ctx context.Context, c *models.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *c
	f.candidates[c.ID] = &cp
	return nil
}

func (f *fakeCandidateRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCandidateRepo) ListByUser(ctx context.Context, userID uuid.UUID, status *models.CandidateStatusType) ([]*models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Candidate
	for _, c := range f.candidates {
		if c.UserID != userID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeCandidateRepo) Update(ctx context.Context, c *models.Candidate) error {
	return f.Create(ctx, c)
}

func (f *fakeCandidateRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.CandidateStatusType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.candidates[id]
	if !ok {
		return utils.ErrNotFound
	}
	c.Status = status
	f.statusSets = append(f.statusSets, status)
	return nil
}

func (f *fakeCandidateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.candidates, id)
	return nil
}

type fakeJobRepo struct {
	jobs map[uuid.UUID]*models.Job
}

func newFakeJobRepo() *fakeJobRepo { return &fakeJobRepo{jobs: make(map[uuid.UUID]*models.Job)} }

func (f *fakeJobRepo) Create(ctx context.Context, j *models.Job) error {
	cp := *j
	f.jobs[j.ID] = &cp
	return nil
}

func (f *fakeJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobRepo) ListByCandidate(ctx context.Context, candidateID uuid.UUID) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if j.CandidateID == candidateID {
			cp := *j
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) PrimaryForCandidate(ctx context.Context, candidateID uuid.UUID) (*models.Job, error) {
	for _, j := range f.jobs {
		if j.CandidateID == candidateID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

type fakeUserRepo struct {
	users map[uuid.UUID]*models.User
	creds map[uuid.UUID]models.ProviderCredentials
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users: make(map[uuid.UUID]*models.User),
		creds: make(map[uuid.UUID]models.ProviderCredentials),
	}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) UpdateSettings(ctx context.Context, user *models.User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetCredentials(ctx context.Context, id uuid.UUID) (models.ProviderCredentials, error) {
	return f.creds[id], nil
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (f *fakeAuditRepo) Create(ctx context.Context, entry *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*models.AuditLog(nil), f.entries...), nil
}

func (f *fakeAuditRepo) countAction(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

type fakeDispatcher struct {
	mu       sync.Mutex
	placed   int
	failWith error
	result   *CallResult
}

func (f *fakeDispatcher) PlaceCall(ctx context.Context, ref *models.Reference, candidate *models.Candidate, job *models.Job, creds models.ProviderCredentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.placed++
	return "call-" + ref.ID.String(), nil
}

func (f *fakeDispatcher) GetCallResult(ctx context.Context, callID string, creds models.ProviderCredentials) (*CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.result != nil {
		return f.result, nil
	}
	return &CallResult{CallID: callID, Outcome: models.CallOutcomeInProgress}, nil
}

type fakeSMS struct {
	mu       sync.Mutex
	sent     []string
	bodies   []string
	failWith error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string, creds models.ProviderCredentials) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	f.sent = append(f.sent, to)
	f.bodies = append(f.bodies, body)
	return "SM" + uuid.NewString(), nil
}

func (f *fakeSMS) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeReplyParser struct {
	mu     sync.Mutex
	bodies []string
	when   *time.Time
	err    error
}

func (f *fakeReplyParser) ParseCallbackTime(ctx context.Context, body, timezone string, now time.Time) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return f.when, f.err
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	calls  int
	result *AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, transcript string, claims ClaimSet) (*AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------

type outreachFixture struct {
	svc        *OutreachService
	refRepo    *fakeReferenceRepo
	candRepo   *fakeCandidateRepo
	jobRepo    *fakeJobRepo
	userRepo   *fakeUserRepo
	auditRepo  *fakeAuditRepo
	dispatcher *fakeDispatcher
	sms        *fakeSMS
	analyzer   *fakeAnalyzer
	parser     *fakeReplyParser

	user      *models.User
	candidate *models.Candidate
}

func newOutreachFixture(t *testing.T, withTwilio bool) *outreachFixture {
	t.Helper()

	f := &outreachFixture{
		refRepo:    newFakeReferenceRepo(),
		candRepo:   newFakeCandidateRepo(),
		jobRepo:    newFakeJobRepo(),
		userRepo:   newFakeUserRepo(),
		auditRepo:  &fakeAuditRepo{},
		dispatcher: &fakeDispatcher{},
		sms:        &fakeSMS{},
		parser:     &fakeReplyParser{},
		analyzer: &fakeAnalyzer{result: &AnalysisResult{
			EmploymentConfirmed: boolPtr(true),
			DatesAccurate:       boolPtr(true),
			TitleConfirmed:      boolPtr(true),
			WouldRehire:         boolPtr(true),
			OverallSentiment:    "neutral",
			Summary:             "Strong reference.",
		}},
	}

	f.user = &models.User{ID: uuid.New(), Email: "owner@example.com", Timezone: "UTC"}
	creds := models.ProviderCredentials{VapiAPIKey: "vapi-key", VapiPhoneNumberID: "pn-1"}
	if withTwilio {
		f.user.TwilioAccountSID = "enc:AC123"
		creds.TwilioAccountSID = "AC123"
		creds.TwilioAuthToken = "token"
		creds.TwilioPhoneNumber = "+15550001111"
	}
	f.userRepo.users[f.user.ID] = f.user
	f.userRepo.creds[f.user.ID] = creds

	f.candidate = &models.Candidate{
		ID:     uuid.New(),
		UserID: f.user.ID,
		Name:   "Jane Doe",
		Status: models.CandidateStatusIntake,
	}
	f.candRepo.candidates[f.candidate.ID] = f.candidate

	f.jobRepo.Create(context.Background(), &models.Job{
		ID:          uuid.New(),
		CandidateID: f.candidate.ID,
		Company:     "Acme Corp",
		Title:       "Engineer",
	})

	f.svc = NewOutreachService(
		f.refRepo, f.candRepo, f.jobRepo, f.userRepo, f.auditRepo,
		f.dispatcher, f.sms, f.analyzer, f.parser, nil,
	)
	return f
}

func (f *outreachFixture) addReference(status models.ReferenceStatusType) *models.Reference {
	ref := &models.Reference{
		ID:          uuid.New(),
		CandidateID: f.candidate.ID,
		Name:        "John Smith",
		Phone:       "+15551234567",
		Status:      status,
	}
	ref.RowVersion = 1
	f.refRepo.put(ref)
	return ref
}

func (f *outreachFixture) addCallingReference(callID string) *models.Reference {
	ref := f.addReference(models.ReferenceStatusCalling)
	now := time.Now().Add(-time.Minute)
	f.refRepo.UpdateWithRetry(context.Background(), ref.ID, func(r *models.Reference) error {
		r.CallID = &callID
		r.CallPlacedAt = &now
		r.CallAttempts = 1
		return nil
	})
	out, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	return out
}

// ---------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------

func TestScheduleReferenceRejectsPastTime(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusPending)

	_, err := f.svc.ScheduleReference(context.Background(), f.user.ID, ref.ID, time.Now().Add(-time.Hour), "")
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestScheduleReferenceRejectsCompleted(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusCompleted)

	_, err := f.svc.ScheduleReference(context.Background(), f.user.ID, ref.ID, time.Now().Add(time.Hour), "")
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestScheduleReferenceSetsTimeAndStatus(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusPending)
	when := time.Now().Add(2 * time.Hour)

	updated, err := f.svc.ScheduleReference(context.Background(), f.user.ID, ref.ID, when, "America/New_York")
	if err != nil {
		t.Fatalf("ScheduleReference: %v", err)
	}
	if updated.Status != models.ReferenceStatusScheduled {
		t.Errorf("status = %s, want scheduled", updated.Status)
	}
	if updated.ScheduledTime == nil || !updated.ScheduledTime.Equal(when) {
		t.Errorf("scheduled time not persisted")
	}
	if updated.Timezone != "America/New_York" {
		t.Errorf("timezone = %q", updated.Timezone)
	}
}

func TestScheduleReferenceWrongTenant(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusPending)

	_, err := f.svc.ScheduleReference(context.Background(), uuid.New(), ref.ID, time.Now().Add(time.Hour), "")
	if !errors.Is(err, utils.ErrAccessDenied) {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestStartOutreachDispatchesDueReferences(t *testing.T) {
	f := newOutreachFixture(t, false)
	f.addReference(models.ReferenceStatusPending)
	f.addReference(models.ReferenceStatusPending)

	// One scheduled in the future; must not be dialed yet.
	future := f.addReference(models.ReferenceStatusScheduled)
	when := time.Now().Add(24 * time.Hour)
	f.refRepo.UpdateWithRetry(context.Background(), future.ID, func(r *models.Reference) error {
		r.ScheduledTime = &when
		return nil
	})

	dispatched, err := f.svc.StartOutreach(context.Background(), f.user.ID, f.candidate.ID)
	if err != nil {
		t.Fatalf("StartOutreach: %v", err)
	}
	if dispatched != 2 {
		t.Errorf("dispatched = %d, want 2", dispatched)
	}
	if f.dispatcher.placed != 2 {
		t.Errorf("provider calls placed = %d, want 2", f.dispatcher.placed)
	}

	c, _ := f.candRepo.GetByID(context.Background(), f.candidate.ID)
	if c.Status != models.CandidateStatusInProgress {
		t.Errorf("candidate status = %s, want in_progress", c.Status)
	}

	refs, _ := f.refRepo.ListByCandidate(context.Background(), f.candidate.ID)
	for _, r := range refs {
		if r.ID == future.ID {
			if r.Status != models.ReferenceStatusScheduled {
				t.Errorf("future reference dispatched early")
			}
			continue
		}
		if r.Status != models.ReferenceStatusCalling {
			t.Errorf("reference status = %s, want calling", r.Status)
		}
		if r.CallAttempts != 1 {
			t.Errorf("call attempts = %d, want 1", r.CallAttempts)
		}
		if r.CallID == nil || r.CallPlacedAt == nil {
			t.Error("call bookkeeping missing")
		}
	}
}

func TestStartOutreachIdempotent(t *testing.T) {
	f := newOutreachFixture(t, false)
	f.addReference(models.ReferenceStatusPending)

	if _, err := f.svc.StartOutreach(context.Background(), f.user.ID, f.candidate.ID); err != nil {
		t.Fatalf("first StartOutreach: %v", err)
	}
	dispatched, err := f.svc.StartOutreach(context.Background(), f.user.ID, f.candidate.ID)
	if err != nil {
		t.Fatalf("second StartOutreach: %v", err)
	}
	if dispatched != 0 {
		t.Errorf("second sweep dispatched = %d, want 0", dispatched)
	}
	if f.dispatcher.placed != 1 {
		t.Errorf("provider calls placed = %d, want 1", f.dispatcher.placed)
	}
}

func TestStartOutreachRequiresVapiCredentials(t *testing.T) {
	f := newOutreachFixture(t, false)
	f.userRepo.creds[f.user.ID] = models.ProviderCredentials{}
	f.addReference(models.ReferenceStatusPending)

	_, err := f.svc.StartOutreach(context.Background(), f.user.ID, f.candidate.ID)
	if !errors.Is(err, utils.ErrMissingProviderCredentials) {
		t.Fatalf("err = %v, want ErrMissingProviderCredentials", err)
	}
	if f.dispatcher.placed != 0 {
		t.Error("call placed without credentials")
	}
}

func TestHandleCallResultAnswered(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:     "call-1",
		Outcome:    models.CallOutcomeAnswered,
		Transcript: longTranscript,
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Score == nil || *got.Score != 100 {
		t.Errorf("score = %v, want 100", got.Score)
	}
	if got.Transcript != longTranscript {
		t.Error("transcript not persisted")
	}
	if got.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if got.Summary != "Strong reference." {
		t.Errorf("summary = %q", got.Summary)
	}

	// Sole reference terminal: the candidate is done.
	c, _ := f.candRepo.GetByID(context.Background(), f.candidate.ID)
	if c.Status != models.CandidateStatusCompleted {
		t.Errorf("candidate status = %s, want completed", c.Status)
	}
}

func TestHandleCallResultDuplicateIsNoOp(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")

	res := &CallResult{CallID: "call-1", Outcome: models.CallOutcomeAnswered, Transcript: longTranscript}
	if err := f.svc.HandleCallResult(context.Background(), res); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := f.svc.HandleCallResult(context.Background(), res); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if f.analyzer.callCount() != 1 {
		t.Errorf("analyzer invoked %d times, want 1", f.analyzer.callCount())
	}
	if n := f.auditRepo.countAction("reference.call_answered"); n != 1 {
		t.Errorf("accepted transitions = %d, want 1", n)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
}

func TestHandleCallResultConcurrentDeliveries(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")
	res := &CallResult{CallID: "call-1", Outcome: models.CallOutcomeAnswered, Transcript: longTranscript}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.svc.HandleCallResult(context.Background(), res)
		}()
	}
	wg.Wait()

	if n := f.auditRepo.countAction("reference.call_answered"); n != 1 {
		t.Errorf("accepted transitions = %d, want exactly 1", n)
	}
	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.Score == nil || *got.Score != 100 {
		t.Errorf("score = %v, want 100", got.Score)
	}
}

func TestHandleCallResultNoAnswerFallsBackToSMS(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:      "call-1",
		Outcome:     models.CallOutcomeNoAnswer,
		EndedReason: "customer-did-not-answer",
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusSMSSent {
		t.Fatalf("status = %s, want sms_sent", got.Status)
	}
	if !got.SMSSent || got.SMSSentAt == nil {
		t.Error("sms bookkeeping missing")
	}
	if f.sms.count() != 1 {
		t.Errorf("sms sent %d times, want 1", f.sms.count())
	}

	// Redelivery must not send a second text.
	if err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:  "call-1",
		Outcome: models.CallOutcomeNoAnswer,
	}); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if f.sms.count() != 1 {
		t.Errorf("sms sent %d times after redelivery, want 1", f.sms.count())
	}
}

func TestHandleCallResultSMSSendFailureStaysNoAnswer(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addCallingReference("call-1")
	f.sms.failWith = errors.New("twilio 30007")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:      "call-1",
		Outcome:     models.CallOutcomeNoAnswer,
		EndedReason: "customer-did-not-answer",
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusNoAnswer {
		t.Fatalf("status = %s, want no_answer", got.Status)
	}
	if got.SMSSent || got.SMSSentAt != nil {
		t.Error("sms marked sent after a failed send")
	}

	// Once Twilio recovers the follow-up endpoint can still text them.
	f.sms.failWith = nil
	if err := f.svc.SendFollowUpSMS(context.Background(), f.user.ID, ref.ID); err != nil {
		t.Fatalf("SendFollowUpSMS after recovery: %v", err)
	}
	if f.sms.count() != 1 {
		t.Errorf("sms sent %d times, want 1", f.sms.count())
	}
}

func TestHandleCallResultBusyFallsBackToSMS(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:      "call-1",
		Outcome:     models.CallOutcomeBusy,
		EndedReason: "customer-busy",
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusSMSSent {
		t.Errorf("status = %s, want sms_sent", got.Status)
	}
	if f.sms.count() != 1 {
		t.Errorf("sms sent %d times, want 1", f.sms.count())
	}
}

func TestHandleCallResultNoAnswerWithoutTwilio(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:  "call-1",
		Outcome: models.CallOutcomeNoAnswer,
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusNoAnswer {
		t.Errorf("status = %s, want no_answer", got.Status)
	}
	if f.sms.count() != 0 {
		t.Errorf("sms sent %d times, want 0", f.sms.count())
	}
}

func TestHandleCallResultUnusableTranscriptBecomesNoAnswer(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")
	f.analyzer.err = utils.ErrUnusableTranscript

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:     "call-1",
		Outcome:    models.CallOutcomeAnswered,
		Transcript: "Hello?",
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusNoAnswer {
		t.Errorf("status = %s, want no_answer", got.Status)
	}
	if got.Score != nil {
		t.Error("score set for unusable transcript")
	}
}

func TestHandleCallResultAnalyzerFailureKeepsCalling(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")
	f.analyzer.err = utils.ErrExternalServiceFailure

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:     "call-1",
		Outcome:    models.CallOutcomeAnswered,
		Transcript: longTranscript,
	})
	if err == nil {
		t.Fatal("expected error from analyzer failure")
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusCalling {
		t.Errorf("status = %s, want calling (poller retries)", got.Status)
	}
	if got.Transcript != longTranscript {
		t.Error("transcript not stashed for retry")
	}
}

func TestHandleCallResultFailed(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:      "call-1",
		Outcome:     models.CallOutcomeFailed,
		EndedReason: "twilio-connection-error",
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestHandleCallResultInProgressIgnored(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addCallingReference("call-1")

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:  "call-1",
		Outcome: models.CallOutcomeInProgress,
	})
	if err != nil {
		t.Fatalf("HandleCallResult: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusCalling {
		t.Errorf("status = %s, want calling", got.Status)
	}
}

func TestHandleCallResultUnknownCallDropped(t *testing.T) {
	f := newOutreachFixture(t, false)

	err := f.svc.HandleCallResult(context.Background(), &CallResult{
		CallID:  "call-unknown",
		Outcome: models.CallOutcomeAnswered,
	})
	if err != nil {
		t.Fatalf("unknown call should be dropped, got %v", err)
	}
}

func TestRetryReference(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusNoAnswer)
	f.refRepo.UpdateWithRetry(context.Background(), ref.ID, func(r *models.Reference) error {
		r.CallAttempts = 1
		return nil
	})

	updated, err := f.svc.RetryReference(context.Background(), f.user.ID, ref.ID)
	if err != nil {
		t.Fatalf("RetryReference: %v", err)
	}
	if updated.Status != models.ReferenceStatusScheduled {
		t.Errorf("status = %s, want scheduled", updated.Status)
	}
	if updated.ScheduledTime != nil {
		t.Error("retry should clear the scheduled time")
	}
}

func TestRetryReferenceExhaustedAttempts(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusFailed)
	f.refRepo.UpdateWithRetry(context.Background(), ref.ID, func(r *models.Reference) error {
		r.CallAttempts = models.MaxCallAttempts
		return nil
	})

	_, err := f.svc.RetryReference(context.Background(), f.user.ID, ref.ID)
	if !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestRetryReferenceCompletedRejected(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusCompleted)

	_, err := f.svc.RetryReference(context.Background(), f.user.ID, ref.ID)
	if !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSendFollowUpSMSOncePerReference(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addReference(models.ReferenceStatusNoAnswer)

	if err := f.svc.SendFollowUpSMS(context.Background(), f.user.ID, ref.ID); err != nil {
		t.Fatalf("SendFollowUpSMS: %v", err)
	}
	if f.sms.count() != 1 {
		t.Fatalf("sms sent %d times, want 1", f.sms.count())
	}

	err := f.svc.SendFollowUpSMS(context.Background(), f.user.ID, ref.ID)
	if !errors.Is(err, utils.ErrValidation) {
		t.Fatalf("second send: err = %v, want ErrValidation", err)
	}
	if f.sms.count() != 1 {
		t.Errorf("sms sent %d times after duplicate request, want 1", f.sms.count())
	}
}

func TestSendFollowUpSMSUsesTenantTemplate(t *testing.T) {
	f := newOutreachFixture(t, true)
	f.user.SMSTemplate = "Custom text about {{candidate_first_name}}"
	f.userRepo.users[f.user.ID] = f.user
	ref := f.addReference(models.ReferenceStatusNoAnswer)

	if err := f.svc.SendFollowUpSMS(context.Background(), f.user.ID, ref.ID); err != nil {
		t.Fatalf("SendFollowUpSMS: %v", err)
	}
	if f.sms.count() != 1 {
		t.Fatalf("sms sent %d times, want 1", f.sms.count())
	}
	if got := f.sms.bodies[0]; got != "Custom text about Jane" {
		t.Errorf("body = %q, want template substitution applied", got)
	}
}

func TestHandleSMSReplyReschedulesWhenTimeParses(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addReference(models.ReferenceStatusSMSSent)

	when := time.Now().Add(26 * time.Hour).UTC()
	f.parser.when = &when

	if err := f.svc.HandleSMSReply(context.Background(), ref, f.candidate, "tomorrow at 2pm works"); err != nil {
		t.Fatalf("HandleSMSReply: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusScheduled {
		t.Fatalf("status = %s, want scheduled", got.Status)
	}
	if got.ScheduledTime == nil || !got.ScheduledTime.Equal(when) {
		t.Errorf("scheduled time = %v, want %v", got.ScheduledTime, when)
	}
	if !strings.Contains(got.Notes, "tomorrow at 2pm works") {
		t.Errorf("reply not recorded in notes: %q", got.Notes)
	}
}

func TestHandleSMSReplyWithoutTimeOnlyRecordsNote(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addReference(models.ReferenceStatusSMSSent)

	if err := f.svc.HandleSMSReply(context.Background(), ref, f.candidate, "please stop texting me"); err != nil {
		t.Fatalf("HandleSMSReply: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusSMSSent {
		t.Errorf("status = %s, want sms_sent", got.Status)
	}
	if !strings.Contains(got.Notes, "please stop texting me") {
		t.Errorf("reply not recorded in notes: %q", got.Notes)
	}
}

func TestHandleSMSReplyIgnoresPastTime(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addReference(models.ReferenceStatusNoAnswer)

	when := time.Now().Add(-2 * time.Hour).UTC()
	f.parser.when = &when

	if err := f.svc.HandleSMSReply(context.Background(), ref, f.candidate, "yesterday at noon"); err != nil {
		t.Fatalf("HandleSMSReply: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if got.Status != models.ReferenceStatusNoAnswer {
		t.Errorf("status = %s, want no_answer", got.Status)
	}
}

func TestHandleSMSReplyParserFailureKeepsNote(t *testing.T) {
	f := newOutreachFixture(t, true)
	ref := f.addReference(models.ReferenceStatusSMSSent)
	f.parser.err = errors.New("openai down")

	if err := f.svc.HandleSMSReply(context.Background(), ref, f.candidate, "call after 5"); err != nil {
		t.Fatalf("HandleSMSReply: %v", err)
	}

	got, _ := f.refRepo.GetByID(context.Background(), ref.ID)
	if !strings.Contains(got.Notes, "call after 5") {
		t.Errorf("reply not recorded in notes: %q", got.Notes)
	}
	if got.Status != models.ReferenceStatusSMSSent {
		t.Errorf("status = %s, want sms_sent", got.Status)
	}
}

func TestDispatchCallRejectsTerminal(t *testing.T) {
	f := newOutreachFixture(t, false)
	ref := f.addReference(models.ReferenceStatusCompleted)

	err := f.svc.DispatchCall(context.Background(), ref, f.candidate, nil, models.ProviderCredentials{VapiAPIKey: "k", VapiPhoneNumberID: "p"})
	if !errors.Is(err, utils.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}
