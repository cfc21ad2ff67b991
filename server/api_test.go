package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ecmdash/internal/cases"
	"ecmdash/internal/dashboard"
	"ecmdash/internal/identity"
	"ecmdash/internal/remote"
	"ecmdash/internal/session"
)

// memStore is an in-memory caseStore.
type memStore struct {
	mu     sync.Mutex
	cases  []cases.Detail
	users  map[string]User
	hashes map[string]string
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[string]User{}, hashes: map[string]string{}}
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) ListCases(context.Context) ([]cases.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []cases.Summary{}
	for _, c := range m.cases {
		out = append(out, c.Summary())
	}
	return out, nil
}

func (m *memStore) GetCase(_ context.Context, id int64) (cases.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.cases {
		if c.ID == id {
			return c, nil
		}
	}
	return cases.Detail{}, ErrNotFound
}

func (m *memStore) CreateCase(_ context.Context, d cases.Draft) (cases.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	now := time.Now().UTC().Format(time.RFC3339)
	c := cases.Detail{ID: m.nextID, Name: d.Name, TeamManager: d.TeamManager, Description: d.Description,
		Start: d.Start, End: d.End, Status: d.Status, CreatedAt: now, UpdatedAt: now}
	m.cases = append(m.cases, c)
	return c, nil
}

func (m *memStore) UpdateCase(_ context.Context, id int64, d cases.Detail) (cases.Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.cases {
		if c.ID == id {
			d.ID, d.CreatedAt = id, c.CreatedAt
			d.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
			m.cases[i] = d
			return d, nil
		}
	}
	return cases.Detail{}, ErrNotFound
}

func (m *memStore) CreateUser(_ context.Context, fullName, email, hash, role string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	if _, ok := m.users[key]; ok {
		return User{}, ErrEmailTaken
	}
	u := User{ID: int64(len(m.users) + 1), FullName: fullName, Email: key, Role: role, CreatedAt: time.Now()}
	m.users[key] = u
	m.hashes[key] = hash
	return u, nil
}

func (m *memStore) UserCreds(_ context.Context, email string) (User, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(email)
	u, ok := m.users[key]
	if !ok {
		return User{}, "", ErrNotFound
	}
	return u, m.hashes[key], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *api) {
	t.Helper()
	a := newAPI(newMemStore(), newTokens("test-secret", time.Hour), zap.NewNop())
	mux := http.NewServeMux()
	a.routes(mux)
	srv := httptest.NewServer(withLogging(zap.NewNop(), mux))
	t.Cleanup(srv.Close)
	return srv, a
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func register(t *testing.T, base, email, role string) {
	t.Helper()
	resp, _ := doJSON(t, http.MethodPost, base+"/register", "", map[string]string{
		"full_name": "Test User", "email": email, "password": "secret1",
		"confirm_password": "secret1", "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func login(t *testing.T, base, email string) string {
	t.Helper()
	resp, out := doJSON(t, http.MethodPost, base+"/api/auth/login", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tok, _ := out["token"].(string)
	require.NotEmpty(t, tok)
	return tok
}

func TestRegisterRules(t *testing.T) {
	srv, _ := newTestServer(t)
	base := map[string]string{
		"full_name": "Ada", "email": "ada@example.com", "password": "secret1",
		"confirm_password": "secret1", "role": "admin",
	}
	tests := []struct {
		name   string
		field  string
		value  string
		status int
		msg    string
	}{
		{"password mismatch", "password", "secret2", 400, "Passwords do not match."},
		{"missing name", "full_name", " ", 400, "All fields are required."},
		{"unknown role", "role", "owner", 400, "Unknown role."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := map[string]string{}
			for k, v := range base {
				body[k] = v
			}
			body[tt.field] = tt.value
			resp, out := doJSON(t, http.MethodPost, srv.URL+"/register", "", body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, out["error"])
		})
	}

	register(t, srv.URL, "ada@example.com", "admin")
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/register", "", base)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginIssuesToken(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv.URL, "ada@example.com", "moderator")

	tok := login(t, srv.URL, "ADA@example.com")
	id, err := identity.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, identity.RoleTeamMember, id.Role)
	assert.Equal(t, "ada@example.com", id.Email)

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong!"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid email or password.", out["error"])
}

func TestProtectedRoute(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv.URL, "ada@example.com", "user")
	tok := login(t, srv.URL, "ada@example.com")

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/auth/protected-route", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/auth/protected-route", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	old := newTokens("test-secret", time.Hour)
	old.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := old.Issue(User{ID: 1, Email: "ada@example.com", Role: "user"})
	require.NoError(t, err)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/auth/protected-route", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "expired")
}

func TestCaseWritesNeedAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv.URL, "tm@example.com", "user")
	tok := login(t, srv.URL, "tm@example.com")

	draft := map[string]string{"Name": "Audit", "TeamManager": "Alice", "Description": "d",
		"Start": "2024-01-01", "End": "2024-02-01", "Status": "CREATED"}
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/cases", tok, draft)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, out := doJSON(t, http.MethodGet, srv.URL+"/api/cases", tok, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{}, out["data"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/cases", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCaseValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv.URL, "ada@example.com", "admin")
	tok := login(t, srv.URL, "ada@example.com")

	resp, out := doJSON(t, http.MethodPost, srv.URL+"/api/cases", tok, map[string]string{
		"Name": "Audit", "TeamManager": "Alice", "Start": "2024-03-01", "End": "2024-02-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "End must not be before Start.", out["error"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/cases/42", tok, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/cases/abc", tok, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	a := newAPI(newMemStore(), newTokens("s", time.Hour), zap.NewNop())
	for i := 0; i < 3; i++ {
		assert.True(t, a.allow("1.2.3.4", "auth", 3, time.Minute))
	}
	assert.False(t, a.allow("1.2.3.4", "auth", 3, time.Minute))
	assert.True(t, a.allow("5.6.7.8", "auth", 3, time.Minute))
}

// The remote client and dashboard workflow against the real handlers.
func TestClientRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx := context.Background()
	sess := session.New(session.NewMemoryStore(), nil)
	client := remote.New(srv.URL, sess)
	accounts := dashboard.NewAccounts(client, sess, nil)

	require.NoError(t, accounts.Register(ctx, remote.Registration{
		FullName: "Ada", Email: "ada@example.com", Password: "secret1", ConfirmPassword: "secret1", Role: "admin",
	}))
	require.NoError(t, accounts.Login(ctx, "ada@example.com", "secret1"))
	assert.Equal(t, dashboard.Stay, dashboard.NewGate(sess, client, nil).Check(ctx))

	rec := dashboard.NewReconciler(client, nil)
	form := dashboard.NewCaseForm(client, rec, sess, nil)
	require.NoError(t, form.OpenCreate(ctx))
	*form.CreateDraft() = cases.Draft{Name: "Audit", TeamManager: "Alice", Description: "Q1",
		Start: cases.NewDate(2024, time.January, 1), End: cases.NewDate(2024, time.March, 1), Status: cases.StatusCreated}
	require.NoError(t, form.SubmitCreate(ctx))
	require.Len(t, rec.Cases(), 1)

	id := rec.Cases()[0].ID
	require.NoError(t, rec.Click(ctx, id))
	require.NoError(t, form.BeginEdit(ctx))
	form.EditDraft().Status = cases.StatusInProgress
	require.NoError(t, form.Save(ctx))

	got, err := client.GetCase(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, cases.StatusInProgress, got.Status)
	assert.NotEmpty(t, got.CreatedAt)

	require.NoError(t, accounts.Logout(ctx))
	assert.Equal(t, dashboard.RedirectLogin, dashboard.NewGate(sess, client, nil).Check(ctx))
}

func TestCaseEventsStream(t *testing.T) {
	srv, _ := newTestServer(t)
	register(t, srv.URL, "ada@example.com", "admin")
	tok := login(t, srv.URL, "ada@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := remote.New(srv.URL, remote.StaticToken(tok)).Events(ctx)
	require.NoError(t, err)

	// Events returns after the response headers, so the subscription exists
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/cases", tok, map[string]string{
		"Name": "Audit", "TeamManager": "Alice", "Description": "d",
		"Start": "2024-01-01", "End": "2024-02-01", "Status": "CREATED",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	select {
	case ev := <-events:
		assert.Equal(t, "case.created", ev.Type)
		assert.Equal(t, int64(1), ev.CaseID)
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}
}
