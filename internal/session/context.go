package session

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/autenticador/accounts-api/internal/metrics"
	"github.com/autenticador/accounts-api/internal/models"
)

// AuthOps is the slice of the auth service the context drives
type AuthOps interface {
	Login(ctx context.Context, req models.LoginRequest) *models.AuthResult
	Register(ctx context.Context, req models.RegisterRequest) *models.AuthResult
	Logout(ctx context.Context) models.Result
}

// UserOps is the slice of the user management service the context drives
type UserOps interface {
	List(ctx context.Context) []models.User
	Create(ctx context.Context, req models.CreateUserRequest) *models.UserResult
	Delete(ctx context.Context, email, currentUserEmail string) models.Result
}

// RecordOps is the slice of the record service the context drives
type RecordOps interface {
	List(ctx context.Context) []models.DataRecord
	Create(ctx context.Context, key, value string) *models.RecordResult
	Update(ctx context.Context, id, key, value string) *models.RecordResult
	Delete(ctx context.Context, id string) models.Result
}

// Context owns the process-wide session state: the current user and the
// cached managed-user and data-record lists. It is constructed once at
// startup with an explicit Init/Close lifecycle, hands out copies, and
// re-fetches the affected list after every successful mutation. That full
// reload is the only consistency mechanism.
type Context struct {
	auth    AuthOps
	users   UserOps
	records RecordOps
	store   *Store
	logger  *logrus.Logger

	mu          sync.RWMutex
	currentUser *models.User
	userList    []models.User
	recordList  []models.DataRecord
	ready       bool
	lastSeq     uint64

	cancelSub func()
}

func NewContext(auth AuthOps, users UserOps, records RecordOps, store *Store, logger *logrus.Logger) *Context {
	return &Context{
		auth:    auth,
		users:   users,
		records: records,
		store:   store,
		logger:  logger,
	}
}

// Init loads both lists concurrently, subscribes to auth-state changes and
// resolves the persisted session. Ready flips only after all of that.
func (c *Context) Init(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.RefreshUsers(ctx)
	}()
	go func() {
		defer wg.Done()
		c.RefreshRecords(ctx)
	}()
	wg.Wait()

	// Subscribe before the manual resolution so no state change emitted
	// during it can be missed
	events, cancel := c.store.Subscribe()
	c.cancelSub = cancel
	go c.consume(events)

	c.syncFromStore(ctx)

	c.mu.Lock()
	c.ready = true
	c.mu.Unlock()
}

// Close tears the auth-state subscription down
func (c *Context) Close() {
	if c.cancelSub != nil {
		c.cancelSub()
	}
}

// Ready reports whether Init has completed
func (c *Context) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// CurrentUser returns a copy of the authenticated user, nil when anonymous
func (c *Context) CurrentUser() *models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.currentUser == nil {
		return nil
	}
	out := *c.currentUser
	return &out
}

// ManagedUsers returns a copy of the cached user list
func (c *Context) ManagedUsers() []models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.User, len(c.userList))
	copy(out, c.userList)
	return out
}

// ManagedRecords returns a copy of the cached record list
func (c *Context) ManagedRecords() []models.DataRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.DataRecord, len(c.recordList))
	copy(out, c.recordList)
	return out
}

// RefreshUsers reloads the managed-user list
func (c *Context) RefreshUsers(ctx context.Context) {
	users := c.users.List(ctx)
	metrics.RecordListRefresh("users")
	c.mu.Lock()
	c.userList = users
	c.mu.Unlock()
}

// RefreshRecords reloads the data-record list
func (c *Context) RefreshRecords(ctx context.Context) {
	records := c.records.List(ctx)
	metrics.RecordListRefresh("records")
	c.mu.Lock()
	c.recordList = records
	c.mu.Unlock()
}

// Login authenticates and, on success, adopts the user as current
func (c *Context) Login(ctx context.Context, req models.LoginRequest) *models.AuthResult {
	result := c.auth.Login(ctx, req)
	if result.Success && result.User != nil {
		c.adopt(result.User)
	}
	return result
}

// Register creates an account; on success the user list is reloaded once
// before the result is returned and the new user becomes current
func (c *Context) Register(ctx context.Context, req models.RegisterRequest) *models.AuthResult {
	result := c.auth.Register(ctx, req)
	if result.Success {
		c.RefreshUsers(ctx)
	}
	if result.Success && result.User != nil {
		c.adopt(result.User)
	}
	return result
}

// Logout clears the session and the current user
func (c *Context) Logout(ctx context.Context) models.Result {
	result := c.auth.Logout(ctx)
	if result.Success {
		c.adopt(nil)
	}
	return result
}

// CreateUser provisions a managed profile; the user list is reloaded once on
// success before the result is returned
func (c *Context) CreateUser(ctx context.Context, req models.CreateUserRequest) *models.UserResult {
	result := c.users.Create(ctx, req)
	if result.Success {
		c.RefreshUsers(ctx)
	}
	return result
}

// DeleteUser removes a managed profile, guarding against self-deletion.
// When the caller's email is not supplied the current session's email is the
// guard.
func (c *Context) DeleteUser(ctx context.Context, email, currentEmail string) models.Result {
	if currentEmail == "" {
		if u := c.CurrentUser(); u != nil {
			currentEmail = u.Email
		}
	}

	result := c.users.Delete(ctx, email, currentEmail)
	if result.Success {
		c.RefreshUsers(ctx)
	}
	return result
}

// CreateRecord stores a data record; the record list is reloaded once on
// success
func (c *Context) CreateRecord(ctx context.Context, key, value string) *models.RecordResult {
	result := c.records.Create(ctx, key, value)
	if result.Success {
		c.RefreshRecords(ctx)
	}
	return result
}

// UpdateRecord rewrites a data record; the record list is reloaded once on
// success
func (c *Context) UpdateRecord(ctx context.Context, id, key, value string) *models.RecordResult {
	result := c.records.Update(ctx, id, key, value)
	if result.Success {
		c.RefreshRecords(ctx)
	}
	return result
}

// DeleteRecord removes a data record; the record list is reloaded once on
// success
func (c *Context) DeleteRecord(ctx context.Context, id string) models.Result {
	result := c.records.Delete(ctx, id)
	if result.Success {
		c.RefreshRecords(ctx)
	}
	return result
}

// adopt installs a user as current without sequencing constraints (direct
// outcome of a local mutation)
func (c *Context) adopt(user *models.User) {
	c.mu.Lock()
	c.currentUser = user
	c.mu.Unlock()
}

// syncFromStore resolves the persisted session snapshot. The load races any
// concurrently emitted auth-state event; the event wins.
func (c *Context) syncFromStore(ctx context.Context) {
	c.mu.RLock()
	seqBefore := c.lastSeq
	c.mu.RUnlock()

	user, err := c.store.LoadUser(ctx)
	if err != nil {
		c.logger.WithError(err).Error("Failed to resolve persisted session")
		user = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastSeq != seqBefore {
		// An auth-state event landed while we were loading; it is newer
		return
	}
	c.currentUser = user
}

// consume applies auth-state events in order; a stale event never overwrites
// a newer one
func (c *Context) consume(events <-chan Event) {
	for ev := range events {
		c.mu.Lock()
		if ev.Seq > c.lastSeq {
			c.lastSeq = ev.Seq
			c.currentUser = ev.User
		}
		c.mu.Unlock()
	}
}
