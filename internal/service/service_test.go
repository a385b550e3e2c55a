package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/cache"
	"github.com/olegiv/deptdocs/internal/membership"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/testutil"
)

type fixture struct {
	db        *sql.DB
	protected membership.Protected
	admin     model.Actor
	blobs     *blob.FSStore
	cache     *cache.MemoryCache
	metrics   *metrics.Metrics

	events      *EventService
	dashboard   *DashboardService
	departments *DepartmentService
	users       *UserService
	documents   *DocumentService
	auth        *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, res := testutil.ProvisionedDB(t)
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	mc := cache.NewMemoryCache(cache.MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mc.Close() })

	logger := testutil.TestLoggerSilent()
	m := metrics.New(prometheus.NewRegistry())

	f := &fixture{
		db:        db,
		protected: res.Departments,
		admin:     testutil.AdminActor(t, db),
		blobs:     blobs,
		cache:     mc,
		metrics:   m,
	}
	f.events = NewEventService(db, logger)
	f.dashboard = NewDashboardService(db, mc, time.Minute, m, logger)
	f.departments = NewDepartmentService(db, f.events, f.dashboard, m, logger)
	f.users = NewUserService(db, blobs, f.events, f.dashboard, m, logger)
	f.documents = NewDocumentService(db, blobs, f.events, f.dashboard, m, logger)
	f.auth = NewAuthService(db, f.events, m, logger)
	return f
}

// department creates a regular department as the admin.
func (f *fixture) department(t *testing.T, name string) model.Department {
	t.Helper()
	d, err := f.departments.Create(context.Background(), f.admin, DepartmentInput{Name: name})
	require.NoError(t, err)
	return d
}

// user creates a member with the given role and department and returns
// its actor.
func (f *fixture) user(t *testing.T, username string, role model.Role, deptID int64) model.Actor {
	t.Helper()
	m, err := f.users.Create(context.Background(), f.admin, UserInput{
		Username:        username,
		Role:            string(role),
		DepartmentID:    deptID,
		Password:        "secret-pass",
		PasswordConfirm: "secret-pass",
	})
	require.NoError(t, err)
	return model.ActorFor(m.User, m.Profile)
}

// viewer loads the current memberships of actor.
func (f *fixture) viewer(t *testing.T, actor model.Actor) Viewer {
	t.Helper()
	m, err := f.users.Get(context.Background(), actor.UserID)
	require.NoError(t, err)
	return ViewerFor(actor, m.Profile)
}

func (f *fixture) eventMessages(t *testing.T) []string {
	t.Helper()
	page, err := f.events.List(context.Background(), 1, 200)
	require.NoError(t, err)
	out := make([]string, 0, len(page.Events))
	for _, e := range page.Events {
		out = append(out, e.Message)
	}
	return out
}
