package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"heeecker-lists-backend/pkg/config"
	"heeecker-lists-backend/pkg/database"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	cfg    *config.Config
	client *http.Client
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Environment:           "test",
		DBDriver:              database.DriverMemory,
		StorageTimeout:        time.Second,
		AppendMode:            config.AppendModeStrict,
		EnforceListOwnership:  true,
		RowRateLimitPerMinute: 1000,
		MaxBodyBytes:          1 << 20,
		AllowedOrigins:        []string{"*"},
		BaseURL:               "https://lists.example",
		LegalFile:             filepath.Join(t.TempDir(), "legal.txt"),
	}
	if mutate != nil {
		mutate(cfg)
	}
	srv := httptest.NewServer(NewRouter(cfg, database.NewMemoryDatabase(), zap.NewNop()))
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv, cfg: cfg, client: srv.Client()}
}

func (s *testServer) do(method, path string, body any) (int, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, r)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type createdSpace struct {
	SpaceID          string `json:"spaceId"`
	SpaceSharableURL string `json:"spaceSharableUrl"`
	SpaceAdminURL    string `json:"spaceAdminUrl"`
}

func tokenOf(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

// bootstrap creates a space and a guest list with a unique email column.
func (s *testServer) bootstrap(maxRowCount *int) (spaceID, listID, admin, shared string) {
	s.t.Helper()
	status, env := s.do(http.MethodPost, "/api/space", map[string]any{
		"name": "Summer party", "description": "bring cake", "createdBy": "ada", "ownerContactMail": "ada@example.org",
	})
	require.Equal(s.t, http.StatusOK, status)
	var created createdSpace
	require.NoError(s.t, json.Unmarshal(env.Data, &created))
	admin = tokenOf(s.t, created.SpaceAdminURL)
	shared = tokenOf(s.t, created.SpaceSharableURL)

	body := map[string]any{
		"name": "Guests",
		"columns": []map[string]any{
			{"name": "email", "required": true, "unique": true, "validationPattern": `[^@\s]+@[^@\s]+`},
			{"name": "name"},
		},
	}
	if maxRowCount != nil {
		body["maxRowCount"] = *maxRowCount
	}
	status, env = s.do(http.MethodPost, "/api/space/"+created.SpaceID+"/list?token="+admin, body)
	require.Equal(s.t, http.StatusOK, status, string(env.Data))
	var list struct {
		ID string `json:"id"`
	}
	require.NoError(s.t, json.Unmarshal(env.Data, &list))
	return created.SpaceID, list.ID, admin, shared
}

func TestSpaceLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	spaceID, listID, admin, shared := s.bootstrap(nil)

	status, env := s.do(http.MethodGet, "/api/space/"+spaceID+"?token="+admin, nil)
	require.Equal(t, http.StatusOK, status)
	var view map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "admin", view["tokenType"])
	assert.Equal(t, admin, view["adminUrlToken"])
	assert.Equal(t, shared, view["sharableAccessToken"])

	status, env = s.do(http.MethodGet, "/api/space/"+spaceID+"?token="+shared, nil)
	require.Equal(t, http.StatusOK, status)
	view = nil
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "shareable", view["tokenType"])
	assert.NotContains(t, view, "adminUrlToken")

	status, _ = s.do(http.MethodPost, "/api/space/"+spaceID+"/list?token="+shared, map[string]any{
		"name": "x", "columns": []map[string]any{{"name": "a"}},
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, env = s.do(http.MethodGet, "/api/space/"+spaceID+"/lists?token="+shared, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, fmt.Sprintf(`[{"id":%q,"name":"Guests"}]`, listID), string(env.Data))
}

func TestRowSubmission(t *testing.T) {
	s := newTestServer(t, nil)
	spaceID, listID, _, shared := s.bootstrap(nil)
	rowPath := "/api/space/" + spaceID + "/list/" + listID + "/row?token=" + shared

	status, env := s.do(http.MethodPost, rowPath, map[string]any{"email": "a@b.c", "ignored": "x"})
	require.Equal(t, http.StatusOK, status)
	var accepted struct {
		RowID int            `json:"rowId"`
		Row   map[string]any `json:"row"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &accepted))
	assert.Equal(t, 0, accepted.RowID)
	assert.Equal(t, "a@b.c", accepted.Row["email"])
	assert.Equal(t, "n/a", accepted.Row["name"])
	assert.NotContains(t, accepted.Row, "ignored")
	assert.Contains(t, accepted.Row, "_insertedAt")

	status, env = s.do(http.MethodPost, rowPath, map[string]any{"email": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Empty(t, env.Error.Details, "details are hidden by default")

	status, _ = s.do(http.MethodPost, rowPath, map[string]any{"email": 42})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = s.do(http.MethodGet, "/api/space/"+spaceID+"/list/"+listID+"?token="+shared, nil)
	require.Equal(t, http.StatusOK, status)
	var list struct {
		Rows []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Rows, 1)
}

func TestRowSubmissionExposesDetails(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.ExposeValidationDetails = true })
	spaceID, listID, _, shared := s.bootstrap(nil)

	status, env := s.do(http.MethodPost, "/api/space/"+spaceID+"/list/"+listID+"/row?token="+shared,
		map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"column":"email","reason":"PatternMismatch"}`, string(env.Error.Details))
}

func TestRowCeiling(t *testing.T) {
	s := newTestServer(t, nil)
	one := 1
	spaceID, listID, _, shared := s.bootstrap(&one)
	rowPath := "/api/space/" + spaceID + "/list/" + listID + "/row?token=" + shared

	status, _ := s.do(http.MethodPost, rowPath, map[string]any{"email": "a@b.c"})
	require.Equal(t, http.StatusOK, status)
	status, env := s.do(http.MethodPost, rowPath, map[string]any{"email": "b@b.c"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "LIST_FULL", env.Error.Code)
}

func TestAuthFailuresLookLikeMissingSpaces(t *testing.T) {
	s := newTestServer(t, nil)
	spaceID, listID, _, _ := s.bootstrap(nil)

	wrong, _ := s.do(http.MethodPost, "/api/space/"+spaceID+"/list/"+listID+"/row?token=guess", map[string]any{"email": "a@b.c"})
	missing, _ := s.do(http.MethodPost, "/api/space/"+database.NewID()+"/list/"+listID+"/row?token=guess", map[string]any{"email": "a@b.c"})
	assert.Equal(t, http.StatusNotFound, wrong)
	assert.Equal(t, wrong, missing)

	noToken, env := s.do(http.MethodGet, "/api/space/"+spaceID+"/lists", nil)
	assert.Equal(t, http.StatusBadRequest, noToken)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)

	badID, _ := s.do(http.MethodGet, "/api/space/not-a-uuid?token=x", nil)
	assert.Equal(t, http.StatusBadRequest, badID)
}

func TestPaddedTokenIsNotTheToken(t *testing.T) {
	s := newTestServer(t, nil)
	spaceID, _, admin, shared := s.bootstrap(nil)

	for _, token := range []string{"  " + admin + " ", admin + "\n", " " + shared} {
		status, env := s.do(http.MethodGet, "/api/space/"+spaceID+"?token="+url.QueryEscape(token), nil)
		assert.Equal(t, http.StatusNotFound, status, "%q", token)
		assert.Nil(t, env.Data)
	}

	status, _ := s.do(http.MethodGet, "/api/space/"+spaceID+"?token="+url.QueryEscape(admin), nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRowRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.RowRateLimitPerMinute = 2 })
	spaceID, listID, _, shared := s.bootstrap(nil)
	rowPath := "/api/space/" + spaceID + "/list/" + listID + "/row?token=" + shared

	for i := 0; i < 2; i++ {
		status, _ := s.do(http.MethodPost, rowPath, map[string]any{"email": fmt.Sprintf("u%d@b.c", i)})
		require.Equal(t, http.StatusOK, status)
	}
	status, env := s.do(http.MethodPost, rowPath, map[string]any{"email": "late@b.c"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)

	// reads are not limited
	status, _ = s.do(http.MethodGet, "/api/space/"+spaceID+"/lists?token="+shared, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestBodyLimits(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxBodyBytes = 512 })
	spaceID, listID, _, shared := s.bootstrap(nil)

	big := map[string]any{"email": "a@b.c", "name": string(bytes.Repeat([]byte("x"), 1024))}
	status, env := s.do(http.MethodPost, "/api/space/"+spaceID+"/list/"+listID+"/row?token="+shared, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)

	req, err := http.NewRequest(http.MethodPost, s.srv.URL+"/api/space", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndLegal(t *testing.T) {
	s := newTestServer(t, nil)

	status, env := s.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"db_status":"healthy"`)

	status, _ = s.do(http.MethodGet, "/api/legal", nil)
	assert.Equal(t, http.StatusNotFound, status)

	require.NoError(t, os.WriteFile(s.cfg.LegalFile, []byte("Imprint: Ada"), 0o644))
	resp, err := s.client.Get(s.srv.URL + "/api/legal")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Imprint: Ada", string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
}

func TestStaticFallback(t *testing.T) {
	public := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(public, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(public, "app.js"), []byte("console.log(1)"), 0o644))
	s := newTestServer(t, func(c *config.Config) { c.PublicDir = public })

	get := func(path string) (int, string) {
		resp, err := s.client.Get(s.srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	status, body := get("/app.js")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "console.log(1)", body)

	status, body = get("/space?spaceId=x&token=y")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "<html>app</html>", body)

	status, _ = get("/api/nope")
	assert.Equal(t, http.StatusNotFound, status)
}
