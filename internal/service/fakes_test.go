package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/autenticador/accounts-api/internal/models"
	"github.com/autenticador/accounts-api/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository keyed by email, with per-method
// error injection and call counters.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
	calls map[string]int

	listErr   error
	getErr    error
	createErr error
	updateErr error
	deleteErr error
	countErr  error
}

func newFakeUserRepo(seed ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users: make(map[string]*models.User),
		calls: make(map[string]int),
	}
	for _, u := range seed {
		cp := *u
		r.users[u.Email] = &cp
	}
	return r
}

func (r *fakeUserRepo) called(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *fakeUserRepo) List(ctx context.Context) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["List"]++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["GetByEmail"]++
	if r.getErr != nil {
		return nil, r.getErr
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["GetByUsername"]++
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Create"]++
	if r.createErr != nil {
		return r.createErr
	}
	if _, exists := r.users[user.Email]; exists {
		return repository.ErrConflict
	}
	cp := *user
	r.users[user.Email] = &cp
	return nil
}

func (r *fakeUserRepo) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["UpdatePasswordByEmail"]++
	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.users[email]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) DeleteByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["DeleteByEmail"]++
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	if _, ok := r.users[email]; !ok {
		return false, nil
	}
	delete(r.users, email)
	return true, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Count"]++
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.users), nil
}

// alwaysTakenUserRepo reports every username as taken, for probe-bound tests
type alwaysTakenUserRepo struct {
	fakeUserRepo
	probes int
}

func (r *alwaysTakenUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes++
	return &models.User{Username: username}, nil
}

// fakeRecordRepo is an in-memory RecordRepository keyed by record ID
type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[string]*models.DataRecord
	calls   map[string]int

	listErr   error
	createErr error
	updateErr error
	deleteErr error
	countErr  error
}

func newFakeRecordRepo(seed ...*models.DataRecord) *fakeRecordRepo {
	r := &fakeRecordRepo{
		records: make(map[string]*models.DataRecord),
		calls:   make(map[string]int),
	}
	for _, rec := range seed {
		cp := *rec
		r.records[rec.RecordID] = &cp
	}
	return r
}

func (r *fakeRecordRepo) called(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

func (r *fakeRecordRepo) List(ctx context.Context) ([]models.DataRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["List"]++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]models.DataRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordID < out[j].RecordID })
	return out, nil
}

func (r *fakeRecordRepo) Create(ctx context.Context, record *models.DataRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Create"]++
	if r.createErr != nil {
		return r.createErr
	}
	cp := *record
	r.records[record.RecordID] = &cp
	return nil
}

func (r *fakeRecordRepo) Update(ctx context.Context, id, key, value string) (*models.DataRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Update"]++
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	rec, ok := r.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	rec.Key = key
	rec.Value = value
	cp := *rec
	return &cp, nil
}

func (r *fakeRecordRepo) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Delete"]++
	if r.deleteErr != nil {
		return false, r.deleteErr
	}
	if _, ok := r.records[id]; !ok {
		return false, nil
	}
	delete(r.records, id)
	return true, nil
}

func (r *fakeRecordRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls["Count"]++
	if r.countErr != nil {
		return 0, r.countErr
	}
	return len(r.records), nil
}

// fakeSessionStore keeps the session snapshot and reset marker in memory
type fakeSessionStore struct {
	mu           sync.Mutex
	currentUser  *models.User
	pendingReset string
	saveErr      error
	loadErr      error
	clearCalls   int
}

func (s *fakeSessionStore) SaveUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.currentUser = user
	return nil
}

func (s *fakeSessionStore) LoadUser(ctx context.Context) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.currentUser, nil
}

func (s *fakeSessionStore) ClearUser(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUser = nil
	return nil
}

func (s *fakeSessionStore) SetPendingResetEmail(ctx context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReset = email
	return nil
}

func (s *fakeSessionStore) PendingResetEmail(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingReset
}

func (s *fakeSessionStore) ClearPendingResetEmail(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingReset = ""
	s.clearCalls++
}

// fakeMailer records dispatches and can be forced to fail
type fakeMailer struct {
	mu            sync.Mutex
	verifications []string
	resets        []string
	resetTargets  []string
	failAll       bool
}

var errMailerDown = errors.New("smtp relay unavailable")

func (m *fakeMailer) SendVerification(ctx context.Context, email, name, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errMailerDown
	}
	m.verifications = append(m.verifications, email)
	return nil
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, email, redirectURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errMailerDown
	}
	m.resets = append(m.resets, email)
	m.resetTargets = append(m.resetTargets, redirectURL)
	return nil
}
