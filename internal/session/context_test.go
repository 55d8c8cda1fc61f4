package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autenticador/accounts-api/internal/models"
)

// fakeAuthOps returns canned results and records the last request
type fakeAuthOps struct {
	loginResult    *models.AuthResult
	registerResult *models.AuthResult
	logoutResult   models.Result
}

func (f *fakeAuthOps) Login(ctx context.Context, req models.LoginRequest) *models.AuthResult {
	return f.loginResult
}

func (f *fakeAuthOps) Register(ctx context.Context, req models.RegisterRequest) *models.AuthResult {
	return f.registerResult
}

func (f *fakeAuthOps) Logout(ctx context.Context) models.Result {
	return f.logoutResult
}

// fakeUserOps counts List calls so refresh-per-mutation can be asserted
type fakeUserOps struct {
	mu           sync.Mutex
	listCalls    int
	list         []models.User
	createResult *models.UserResult
	deleteResult models.Result
	lastGuard    string
}

func (f *fakeUserOps) List(ctx context.Context) []models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list
}

func (f *fakeUserOps) Create(ctx context.Context, req models.CreateUserRequest) *models.UserResult {
	return f.createResult
}

func (f *fakeUserOps) Delete(ctx context.Context, email, currentUserEmail string) models.Result {
	f.mu.Lock()
	f.lastGuard = currentUserEmail
	f.mu.Unlock()
	return f.deleteResult
}

func (f *fakeUserOps) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

type fakeRecordOps struct {
	mu           sync.Mutex
	listCalls    int
	list         []models.DataRecord
	createResult *models.RecordResult
	updateResult *models.RecordResult
	deleteResult models.Result
}

func (f *fakeRecordOps) List(ctx context.Context) []models.DataRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return f.list
}

func (f *fakeRecordOps) Create(ctx context.Context, key, value string) *models.RecordResult {
	return f.createResult
}

func (f *fakeRecordOps) Update(ctx context.Context, id, key, value string) *models.RecordResult {
	return f.updateResult
}

func (f *fakeRecordOps) Delete(ctx context.Context, id string) models.Result {
	return f.deleteResult
}

func (f *fakeRecordOps) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testStore backs the session store with an unreachable Redis endpoint; the
// subscription fan-out is in-process and works regardless, and the context
// treats a failed snapshot load as an anonymous session.
func testStore() *Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "localhost:0",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewStore(rdb, testLogger())
}

func newTestContext(auth *fakeAuthOps, users *fakeUserOps, records *fakeRecordOps) (*Context, *Store) {
	store := testStore()
	c := NewContext(auth, users, records, store, testLogger())
	return c, store
}

func TestInit_LoadsBothListsAndFlipsReady(t *testing.T) {
	users := &fakeUserOps{list: []models.User{{UserID: "u1"}}}
	records := &fakeRecordOps{list: []models.DataRecord{{RecordID: "r1"}, {RecordID: "r2"}}}
	c, _ := newTestContext(&fakeAuthOps{}, users, records)

	assert.False(t, c.Ready())

	c.Init(context.Background())
	defer c.Close()

	assert.True(t, c.Ready())
	assert.Len(t, c.ManagedUsers(), 1)
	assert.Len(t, c.ManagedRecords(), 2)
	assert.Equal(t, 1, users.calls())
	assert.Equal(t, 1, records.calls())
	assert.Nil(t, c.CurrentUser())
}

func TestSnapshotsAreCopies(t *testing.T) {
	users := &fakeUserOps{list: []models.User{{UserID: "u1", Name: "Original"}}}
	c, _ := newTestContext(&fakeAuthOps{}, users, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	snapshot := c.ManagedUsers()
	snapshot[0].Name = "Mutated"

	assert.Equal(t, "Original", c.ManagedUsers()[0].Name, "callers must not be able to mutate shared state")
}

func TestLogin_AdoptsUserOnSuccessOnly(t *testing.T) {
	user := &models.User{UserID: "u1", Email: "user@example.com"}
	auth := &fakeAuthOps{loginResult: &models.AuthResult{Result: models.Ok("ok"), User: user}}
	c, _ := newTestContext(auth, &fakeUserOps{}, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	result := c.Login(context.Background(), models.LoginRequest{})
	require.True(t, result.Success)
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "user@example.com", c.CurrentUser().Email)

	auth.loginResult = &models.AuthResult{Result: models.Fail("no")}
	c.Login(context.Background(), models.LoginRequest{})
	assert.NotNil(t, c.CurrentUser(), "a failed login leaves the current user untouched")
}

func TestLogout_ClearsCurrentUser(t *testing.T) {
	auth := &fakeAuthOps{
		loginResult:  &models.AuthResult{Result: models.Ok("ok"), User: &models.User{UserID: "u1"}},
		logoutResult: models.Ok("bye"),
	}
	c, _ := newTestContext(auth, &fakeUserOps{}, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	c.Login(context.Background(), models.LoginRequest{})
	require.NotNil(t, c.CurrentUser())

	c.Logout(context.Background())
	assert.Nil(t, c.CurrentUser())
}

func TestMutations_RefreshAffectedListExactlyOnceOnSuccess(t *testing.T) {
	users := &fakeUserOps{
		createResult: &models.UserResult{Result: models.Ok("created")},
		deleteResult: models.Ok("deleted"),
	}
	records := &fakeRecordOps{
		createResult: &models.RecordResult{Result: models.Ok("created")},
		updateResult: &models.RecordResult{Result: models.Ok("updated")},
		deleteResult: models.Ok("deleted"),
	}
	c, _ := newTestContext(&fakeAuthOps{}, users, records)
	c.Init(context.Background())
	defer c.Close()

	baseUsers := users.calls()
	baseRecords := records.calls()

	c.CreateUser(context.Background(), models.CreateUserRequest{})
	assert.Equal(t, baseUsers+1, users.calls())
	assert.Equal(t, baseRecords, records.calls(), "user mutations never touch the record list")

	c.DeleteUser(context.Background(), "x@example.com", "admin@example.com")
	assert.Equal(t, baseUsers+2, users.calls())

	c.CreateRecord(context.Background(), "k", "v")
	c.UpdateRecord(context.Background(), "r1", "k", "v")
	c.DeleteRecord(context.Background(), "r1")
	assert.Equal(t, baseRecords+3, records.calls())
	assert.Equal(t, baseUsers+2, users.calls())
}

func TestMutations_NoRefreshOnFailure(t *testing.T) {
	users := &fakeUserOps{createResult: &models.UserResult{Result: models.Fail("nope")}}
	records := &fakeRecordOps{deleteResult: models.Fail("nope")}
	c, _ := newTestContext(&fakeAuthOps{}, users, records)
	c.Init(context.Background())
	defer c.Close()

	baseUsers := users.calls()
	baseRecords := records.calls()

	c.CreateUser(context.Background(), models.CreateUserRequest{})
	c.DeleteRecord(context.Background(), "r1")

	assert.Equal(t, baseUsers, users.calls())
	assert.Equal(t, baseRecords, records.calls())
}

func TestRegister_RefreshesUsersAndAdoptsNewUser(t *testing.T) {
	user := &models.User{UserID: "u9", Email: "new@example.com"}
	auth := &fakeAuthOps{registerResult: &models.AuthResult{Result: models.Ok("ok"), User: user}}
	users := &fakeUserOps{}
	c, _ := newTestContext(auth, users, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	base := users.calls()
	c.Register(context.Background(), models.RegisterRequest{})

	assert.Equal(t, base+1, users.calls())
	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "new@example.com", c.CurrentUser().Email)
}

func TestDeleteUser_GuardFallsBackToCurrentSession(t *testing.T) {
	auth := &fakeAuthOps{loginResult: &models.AuthResult{
		Result: models.Ok("ok"),
		User:   &models.User{UserID: "u1", Email: "admin@example.com"},
	}}
	users := &fakeUserOps{deleteResult: models.Ok("deleted")}
	c, _ := newTestContext(auth, users, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	c.Login(context.Background(), models.LoginRequest{})
	c.DeleteUser(context.Background(), "victim@example.com", "")

	users.mu.Lock()
	guard := users.lastGuard
	users.mu.Unlock()
	assert.Equal(t, "admin@example.com", guard)
}

func TestAuthEvents_PropagateToContext(t *testing.T) {
	c, store := newTestContext(&fakeAuthOps{}, &fakeUserOps{}, &fakeRecordOps{})
	c.Init(context.Background())
	defer c.Close()

	store.publish(&models.User{UserID: "u1", Email: "evt@example.com"})

	assert.Eventually(t, func() bool {
		u := c.CurrentUser()
		return u != nil && u.Email == "evt@example.com"
	}, time.Second, 5*time.Millisecond)

	store.publish(nil)

	assert.Eventually(t, func() bool {
		return c.CurrentUser() == nil
	}, time.Second, 5*time.Millisecond)
}

func TestConsume_StaleEventNeverWins(t *testing.T) {
	c := NewContext(&fakeAuthOps{}, &fakeUserOps{}, &fakeRecordOps{}, testStore(), testLogger())

	newer := &models.User{UserID: "u2", Email: "newer@example.com"}
	older := &models.User{UserID: "u1", Email: "older@example.com"}

	events := make(chan Event, 2)
	events <- Event{Seq: 2, User: newer}
	events <- Event{Seq: 1, User: older}
	close(events)

	c.consume(events)

	require.NotNil(t, c.CurrentUser())
	assert.Equal(t, "newer@example.com", c.CurrentUser().Email)
}
