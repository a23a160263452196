package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func setupTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

type fakePublisher struct {
	mu       sync.Mutex
	expenses []*amqp.ExpenseMaterializedMessage
	invites  []*amqp.HouseholdInvitedMessage
	err      error
}

func (f *fakePublisher) PublishExpenseMaterialized(_ context.Context, msg *amqp.ExpenseMaterializedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.expenses = append(f.expenses, msg)
	return nil
}

func (f *fakePublisher) PublishHouseholdInvited(_ context.Context, msg *amqp.HouseholdInvitedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.invites = append(f.invites, msg)
	return nil
}

type testEnv struct {
	repo       *storage.SQLiteRepository
	users      *UserService
	households *HouseholdService
	setup      *SetupService
	ledger     *LedgerService
	publisher  *fakePublisher
	clock      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := setupTestRepo(t)
	pub := &fakePublisher{}
	env := &testEnv{repo: repo, publisher: pub, clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}

	env.users = NewUserService(repo, auth.BcryptHasher{Cost: 4})
	env.households = NewHouseholdService(repo, env.users, repo, pub, cache.NewLRU[uuid.UUID, uuid.UUID](16, time.Minute))
	env.households.now = func() time.Time { return env.clock }
	env.setup = NewSetupService(env.households, repo, repo)
	env.ledger = NewLedgerService(repo)
	return env
}

func (e *testEnv) register(t *testing.T, email string) core.User {
	t.Helper()
	u, err := e.users.Register(context.Background(), RegisterInput{Email: email, Password: "password123"})
	require.NoError(t, err)
	return u
}

func (e *testEnv) household(t *testing.T, owner core.User) core.Household {
	t.Helper()
	h, err := e.households.CreateHousehold(context.Background(), "Home", owner.ID)
	require.NoError(t, err)
	return h
}
