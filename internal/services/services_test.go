package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/tasktracker-be/internal/auth"
	"github.com/isdelr/tasktracker-be/internal/database"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.New(database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))
	return db
}

func newTestUserService(db *sqlx.DB) *UserService {
	return NewUserService(db, auth.NewPasswordHasher(bcrypt.MinCost))
}

func mustRegister(t *testing.T, users *UserService, name, email string) string {
	t.Helper()
	u, err := users.Register(context.Background(), name, email, "secret1")
	require.NoError(t, err)
	return u.ID
}

// clock hands out strictly increasing timestamps a minute apart.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type publication struct {
	userID  string
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []publication
}

func (n *recordingNotifier) Publish(userID string, message []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, publication{userID: userID, message: string(message)})
}

func (n *recordingNotifier) all() []publication {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]publication(nil), n.sent...)
}
