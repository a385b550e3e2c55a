package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/deptdocs/internal/blob"
	"github.com/olegiv/deptdocs/internal/cache"
	"github.com/olegiv/deptdocs/internal/membership"
	"github.com/olegiv/deptdocs/internal/metrics"
	"github.com/olegiv/deptdocs/internal/middleware"
	"github.com/olegiv/deptdocs/internal/model"
	"github.com/olegiv/deptdocs/internal/service"
	"github.com/olegiv/deptdocs/internal/session"
	"github.com/olegiv/deptdocs/internal/store"
	"github.com/olegiv/deptdocs/internal/testutil"
	"github.com/olegiv/deptdocs/internal/version"
)

const testPassword = "secret-pass"

// testApp is a fully wired router over a temporary database and upload
// directory.
type testApp struct {
	db        *sql.DB
	sm        *scs.SessionManager
	blobs     *blob.FSStore
	protected membership.Protected
	admin     model.Actor
	svc       Services
	lp        *middleware.LoginProtection
	cfg       RouterConfig
	router    http.Handler
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, res := testutil.ProvisionedDB(t)
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)
	mc := cache.NewMemoryCache(cache.MemoryOptions{DefaultTTL: time.Minute})
	t.Cleanup(func() { _ = mc.Close() })

	logger := testutil.TestLoggerSilent()
	m := metrics.New(prometheus.NewRegistry())

	events := service.NewEventService(db, logger)
	dashboard := service.NewDashboardService(db, mc, time.Minute, m, logger)
	svc := Services{
		Auth:        service.NewAuthService(db, events, m, logger),
		Documents:   service.NewDocumentService(db, blobs, events, dashboard, m, logger),
		Users:       service.NewUserService(db, blobs, events, dashboard, m, logger),
		Departments: service.NewDepartmentService(db, events, dashboard, m, logger),
		Dashboard:   dashboard,
		Events:      events,
	}

	lp := middleware.NewLoginProtection(middleware.LoginProtectionConfig{
		IPRateLimit:       1000,
		IPBurst:           1000,
		MaxFailedAttempts: 3,
		LockoutDuration:   time.Minute,
		AttemptWindow:     time.Minute,
	})
	t.Cleanup(lp.Close)

	sm := session.New(db, session.Options{})
	app := &testApp{
		db:        db,
		sm:        sm,
		blobs:     blobs,
		protected: res.Departments,
		admin:     testutil.AdminActor(t, db),
		svc:       svc,
		lp:        lp,
	}
	app.cfg = RouterConfig{
		DB:              db,
		Sessions:        sm,
		Blobs:           blobs,
		Version:         version.Info{Version: "v1.0.0-test"},
		Services:        svc,
		Metrics:         m,
		LoginProtection: lp,
		Security:        middleware.DefaultSecurityHeadersConfig(true),
		CSRF:            middleware.DefaultCSRFConfig(bytes.Repeat([]byte("k"), 32), true),
		RequestTimeout:  10 * time.Second,
	}
	app.router = NewRouter(app.cfg)
	return app
}

// routerWith builds a second router over the same database and sessions
// with cfg adjusted by edit.
func (a *testApp) routerWith(edit func(*RouterConfig)) http.Handler {
	cfg := a.cfg
	edit(&cfg)
	return NewRouter(cfg)
}

// department creates a regular department as the admin.
func (a *testApp) department(t *testing.T, name string) model.Department {
	t.Helper()
	d, err := a.svc.Departments.Create(context.Background(), a.admin, service.DepartmentInput{Name: name})
	require.NoError(t, err)
	return d
}

// user creates a member with testPassword.
func (a *testApp) user(t *testing.T, username string, role model.Role, deptID int64) model.Member {
	t.Helper()
	m, err := a.svc.Users.Create(context.Background(), a.admin, service.UserInput{
		Username:        username,
		Role:            string(role),
		DepartmentID:    deptID,
		Password:        testPassword,
		PasswordConfirm: testPassword,
	})
	require.NoError(t, err)
	return m.Member
}

// login signs in through the login route and returns the session cookies.
func (a *testApp) login(t *testing.T, username, password string) []*http.Cookie {
	t.Helper()
	rec := a.do(t, http.MethodPost, RouteLogin, jsonBody(t, Credentials{Username: username, Password: password}), "application/json", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

// loginAdmin signs in as the bootstrap admin.
func (a *testApp) loginAdmin(t *testing.T) []*http.Cookie {
	t.Helper()
	return a.login(t, store.DefaultAdminUsername, store.DefaultAdminPassword)
}

func (a *testApp) do(t *testing.T, method, path string, body io.Reader, contentType string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) getJSON(t *testing.T, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, http.MethodGet, path, nil, "", cookies)
}

func (a *testApp) sendJSON(t *testing.T, method, path string, v any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, method, path, jsonBody(t, v), "application/json", cookies)
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}

// decodeData unwraps the data member of a success response into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) *Meta {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
		Meta *Meta           `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, v))
	return resp.Meta
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) middleware.APIError {
	t.Helper()
	var body middleware.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

// documentForm builds a multipart upload body. An empty filename omits
// the file part.
type documentForm struct {
	title       string
	description string
	departments []int64
	filename    string
	content     string
}

func (f documentForm) encode(t *testing.T) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", f.title))
	if f.description != "" {
		require.NoError(t, mw.WriteField("description", f.description))
	}
	for _, id := range f.departments {
		require.NoError(t, mw.WriteField("target_departments", strconv.FormatInt(id, 10)))
	}
	if f.filename != "" {
		part, err := mw.CreateFormFile("file", f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testApp) upload(t *testing.T, method, path string, f documentForm, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := f.encode(t)
	return a.do(t, method, path, body, contentType, cookies)
}

func documentPath(id int64) string {
	return RouteAPI + "/documents/" + strconv.FormatInt(id, 10)
}

func jsonBodyRequest(t *testing.T, method, path string, v any) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, path, jsonBody(t, v))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func serve(a *testApp, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, r)
	return rec
}

// slowReader hands out at most chunk bytes per Read, sleeping first.
type slowReader struct {
	r     io.Reader
	chunk int
	pause time.Duration
}

func (s *slowReader) Read(p []byte) (int, error) {
	time.Sleep(s.pause)
	if len(p) > s.chunk {
		p = p[:s.chunk]
	}
	return s.r.Read(p)
}

// slowBlobs serves stored files through a slowReader.
type slowBlobs struct {
	blob.Store
	chunk int
	pause time.Duration
}

func (s slowBlobs) Open(ctx context.Context, ref blob.Ref) (io.ReadCloser, error) {
	rc, err := s.Store.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	return struct {
		io.Reader
		io.Closer
	}{&slowReader{r: rc, chunk: s.chunk, pause: s.pause}, rc}, nil
}
