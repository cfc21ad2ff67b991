package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ecmdash/internal/cases"
	"ecmdash/internal/identity"
	"ecmdash/internal/remote"
	"ecmdash/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAPI records every call and serves canned cases.
type fakeAPI struct {
	mu       sync.Mutex
	calls    map[string]int
	list     []cases.Summary
	details  map[int64]cases.Detail
	listErr  error
	getErr   error
	writeErr error
	validErr error
	loginTok string
	loginErr error
	created  []cases.Draft
	updated  []cases.Detail
	regs     []remote.Registration
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		calls: map[string]int{},
		list:  []cases.Summary{{ID: 1, Name: "Vendor audit"}, {ID: 2, Name: "Data breach"}},
		details: map[int64]cases.Detail{
			1: {ID: 1, Name: "Vendor audit", TeamManager: "Alice", Status: cases.StatusCreated},
			2: {ID: 2, Name: "Data breach", TeamManager: "Bob", Status: cases.StatusInProgress},
		},
	}
}

func (f *fakeAPI) hit(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) ListCases(context.Context) ([]cases.Summary, error) {
	f.hit("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]cases.Summary(nil), f.list...), nil
}

func (f *fakeAPI) GetCase(_ context.Context, id int64) (cases.Detail, error) {
	f.hit("get")
	if f.getErr != nil {
		return cases.Detail{}, f.getErr
	}
	d, ok := f.details[id]
	if !ok {
		return cases.Detail{}, remote.ErrNotFound
	}
	return d, nil
}

func (f *fakeAPI) CreateCase(_ context.Context, d cases.Draft) error {
	f.hit("create")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.created = append(f.created, d)
	return nil
}

func (f *fakeAPI) UpdateCase(_ context.Context, id int64, d cases.Detail) error {
	f.hit("update")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.updated = append(f.updated, d)
	return nil
}

func (f *fakeAPI) Validate(context.Context) error {
	f.hit("validate")
	return f.validErr
}

func (f *fakeAPI) Login(context.Context, string, string) (string, error) {
	f.hit("login")
	return f.loginTok, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, r remote.Registration) error {
	f.hit("register")
	f.regs = append(f.regs, r)
	return nil
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, identity.Claims{Role: role, Email: "a@b.c"}).
		SignedString([]byte("test"))
	require.NoError(t, err)
	return tok
}

func signedIn(t *testing.T, role string) *session.Session {
	t.Helper()
	s := session.New(session.NewMemoryStore(), nil)
	require.NoError(t, s.Begin(context.Background(), token(t, role)))
	return s
}

func TestGateNoTokenRedirectsWithoutRequest(t *testing.T) {
	api := newFakeAPI()
	g := NewGate(session.New(session.NewMemoryStore(), nil), api, nil)

	assert.Equal(t, RedirectLogin, g.Check(context.Background()))
	assert.Zero(t, api.total())
}

func TestGateRejectedTokenRedirects(t *testing.T) {
	api := newFakeAPI()
	api.validErr = &remote.RejectionError{Status: 401}
	g := NewGate(signedIn(t, "admin"), api, nil)

	assert.Equal(t, RedirectLogin, g.Check(context.Background()))
	assert.Equal(t, 1, api.count("validate"))
	assert.Equal(t, 1, api.total())
}

func TestGateStartYieldsOnce(t *testing.T) {
	api := newFakeAPI()
	g := NewGate(signedIn(t, "user"), api, nil)

	ch := g.Start(context.Background())
	select {
	case d := <-ch:
		assert.Equal(t, Stay, d)
	case <-time.After(time.Second):
		t.Fatal("no decision")
	}
	_, open := <-ch
	assert.False(t, open)
}

func TestReconcilerRefreshFailureEmptiesList(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	ctx := context.Background()
	assert.NotNil(t, r.Cases(), "fresh reconciler")

	require.NoError(t, r.Refresh(ctx))
	assert.Len(t, r.Cases(), 2)

	api.listErr = errors.New("down")
	assert.Error(t, r.Refresh(ctx))
	assert.NotNil(t, r.Cases())
	assert.Empty(t, r.Cases())
}

func TestReconcilerEmptyListIsNotNil(t *testing.T) {
	api := newFakeAPI()
	api.list = nil
	r := NewReconciler(api, nil)

	require.NoError(t, r.Refresh(context.Background()))
	assert.NotNil(t, r.Cases())
	assert.Empty(t, r.Cases())
}

func TestReconcilerSwitchRows(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	ctx := context.Background()

	require.NoError(t, r.Click(ctx, 1))
	require.NoError(t, r.Click(ctx, 2))

	assert.Equal(t, Collapsed, r.State(1))
	assert.Equal(t, Expanded, r.State(2))
	d, ok := r.Expanded()
	require.True(t, ok)
	assert.Equal(t, "Data breach", d.Name)
}

func TestReconcilerCollapseThenRefetch(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	ctx := context.Background()

	require.NoError(t, r.Click(ctx, 1))
	require.NoError(t, r.Click(ctx, 1))
	assert.Equal(t, Collapsed, r.State(1))
	_, ok := r.Expanded()
	assert.False(t, ok)

	require.NoError(t, r.Click(ctx, 1))
	assert.Equal(t, Expanded, r.State(1))
	assert.Equal(t, 2, api.count("get"))
}

func TestReconcilerDropsStaleResult(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)

	ta, ok := r.Toggle(1)
	require.True(t, ok)
	tb, ok := r.Toggle(2)
	require.True(t, ok)
	assert.Equal(t, Loading, r.State(2))

	assert.True(t, r.Resolve(tb, api.details[2], nil))
	assert.False(t, r.Resolve(ta, api.details[1], nil))

	d, ok := r.Expanded()
	require.True(t, ok)
	assert.Equal(t, int64(2), d.ID)
	assert.Equal(t, Collapsed, r.State(1))
}

func TestReconcilerStaleAfterCollapse(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)

	tk, _ := r.Toggle(1)
	_, ok := r.Toggle(1)
	assert.False(t, ok)
	assert.False(t, r.Resolve(tk, api.details[1], nil))
	assert.Equal(t, Collapsed, r.State(1))
}

func TestReconcilerFetchErrorCollapses(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)

	err := r.Click(context.Background(), 99)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, Collapsed, r.State(99))
}

func TestFormCreateRequiresAdmin(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "moderator"), nil)

	assert.ErrorIs(t, f.OpenCreate(context.Background()), ErrForbidden)
	assert.False(t, f.CreateOpen())
}

func TestFormCreateEmptyFieldSendsNothing(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	require.NoError(t, f.OpenCreate(ctx))
	d := f.CreateDraft()
	d.Name = "Audit"
	d.TeamManager = "Alice"
	d.Start = cases.NewDate(2024, time.January, 1)
	d.End = cases.NewDate(2024, time.February, 1)

	err := f.SubmitCreate(ctx)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "Description", ve.Field)
	assert.Zero(t, api.total())
	assert.True(t, f.CreateOpen())
	assert.Equal(t, "Audit", f.CreateDraft().Name)
}

func TestFormCreateSuccessRefreshesAndCloses(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	require.NoError(t, f.OpenCreate(ctx))
	*f.CreateDraft() = cases.Draft{
		Name: "Audit", TeamManager: "Alice", Description: "Q1",
		Start: cases.NewDate(2024, time.January, 1), End: cases.NewDate(2024, time.February, 1),
		Status: cases.StatusCreated,
	}
	require.NoError(t, f.SubmitCreate(ctx))

	assert.Equal(t, 1, api.count("create"))
	assert.Equal(t, 1, api.count("list"))
	assert.False(t, f.CreateOpen())
	assert.Equal(t, cases.NewDraft(), *f.CreateDraft())
}

func TestFormCreateFailureKeepsDraft(t *testing.T) {
	api := newFakeAPI()
	api.writeErr = &remote.RejectionError{Status: 500}
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	require.NoError(t, f.OpenCreate(ctx))
	*f.CreateDraft() = cases.Draft{
		Name: "Audit", TeamManager: "Alice", Description: "Q1",
		Start: cases.NewDate(2024, time.January, 1), End: cases.NewDate(2024, time.February, 1),
		Status: cases.StatusCreated,
	}
	assert.Error(t, f.SubmitCreate(ctx))
	assert.True(t, f.CreateOpen())
	assert.Equal(t, "Audit", f.CreateDraft().Name)
	assert.Zero(t, api.count("list"))
}

func TestFormEditOptimisticSave(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	assert.ErrorIs(t, f.BeginEdit(ctx), ErrNothingExpanded)
	require.NoError(t, r.Click(ctx, 1))
	require.NoError(t, f.BeginEdit(ctx))

	f.EditDraft().Status = cases.StatusCompleted
	f.EditDraft().Description = "done"
	before, _ := r.Expanded()
	assert.Equal(t, cases.StatusCreated, before.Status)

	want := *f.EditDraft()
	require.NoError(t, f.Save(ctx))

	got, ok := r.Expanded()
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.False(t, f.Editing())
	assert.Equal(t, 1, api.count("list"))
	assert.Equal(t, 1, api.count("update"))
	assert.Equal(t, 1, api.count("get"))
}

func TestFormEditConfirmAfterSave(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	f.ConfirmAfterSave = true
	ctx := context.Background()

	require.NoError(t, r.Click(ctx, 2))
	require.NoError(t, f.BeginEdit(ctx))
	f.EditDraft().Name = "renamed locally"
	require.NoError(t, f.Save(ctx))

	got, _ := r.Expanded()
	assert.Equal(t, "Data breach", got.Name)
	assert.Equal(t, 2, api.count("get"))
}

func TestFormEditCancelKeepsDetail(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	require.NoError(t, r.Click(ctx, 1))
	require.NoError(t, f.BeginEdit(ctx))
	f.EditDraft().Name = "changed"
	f.Cancel()

	got, _ := r.Expanded()
	assert.Equal(t, "Vendor audit", got.Name)
	assert.ErrorIs(t, f.Save(ctx), ErrNotEditing)
	assert.Zero(t, api.count("update"))
}

func TestFormEditFailureStaysEditing(t *testing.T) {
	api := newFakeAPI()
	r := NewReconciler(api, nil)
	f := NewCaseForm(api, r, signedIn(t, "admin"), nil)
	ctx := context.Background()

	require.NoError(t, r.Click(ctx, 1))
	require.NoError(t, f.BeginEdit(ctx))
	api.writeErr = &remote.NetworkError{Op: "update case", Err: errors.New("refused")}
	f.EditDraft().Name = "changed"

	assert.Error(t, f.Save(ctx))
	assert.True(t, f.Editing())
	got, _ := r.Expanded()
	assert.Equal(t, "Vendor audit", got.Name)
}

func TestAccountsLoginStoresToken(t *testing.T) {
	api := newFakeAPI()
	api.loginTok = token(t, "admin")
	sess := session.New(session.NewMemoryStore(), nil)
	a := NewAccounts(api, sess, nil)
	ctx := context.Background()

	require.NoError(t, a.Login(ctx, " a@b.c ", "secret"))
	assert.Equal(t, identity.RoleAdmin, sess.Identity(ctx).Role)

	require.NoError(t, a.Logout(ctx))
	_, err := sess.Token(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAccountsLoginRejected(t *testing.T) {
	api := newFakeAPI()
	api.loginErr = &remote.RejectionError{Status: 401, Message: "Invalid credentials"}
	sess := session.New(session.NewMemoryStore(), nil)
	a := NewAccounts(api, sess, nil)

	err := a.Login(context.Background(), "a@b.c", "nope")
	assert.Equal(t, "Invalid credentials", UserMessage(err, LoginFailed))
	_, err = sess.Token(context.Background())
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestAccountsRegisterValidation(t *testing.T) {
	good := remote.Registration{
		FullName: "Ada", Email: "ada@example.com",
		Password: "secret1", ConfirmPassword: "secret1", Role: "admin",
	}
	tests := []struct {
		name  string
		edit  func(*remote.Registration)
		field string
	}{
		{"missing name", func(r *remote.Registration) { r.FullName = " " }, ""},
		{"mismatch", func(r *remote.Registration) { r.ConfirmPassword = "secret2" }, "confirm_password"},
		{"short", func(r *remote.Registration) { r.Password, r.ConfirmPassword = "abcde", "abcde" }, "password"},
		{"bad role", func(r *remote.Registration) { r.Role = "owner" }, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			a := NewAccounts(api, session.New(session.NewMemoryStore(), nil), nil)
			r := good
			tt.edit(&r)

			err := a.Register(context.Background(), r)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, api.total())
		})
	}

	api := newFakeAPI()
	a := NewAccounts(api, session.New(session.NewMemoryStore(), nil), nil)
	good.Role = " Moderator "
	require.NoError(t, a.Register(context.Background(), good))
	require.Len(t, api.regs, 1)
	assert.Equal(t, "moderator", api.regs[0].Role)
}

func TestUserMessageFallback(t *testing.T) {
	assert.Equal(t, RegistrationFailed, UserMessage(&remote.NetworkError{Op: "register", Err: errors.New("x")}, RegistrationFailed))
	assert.Equal(t, "Passwords do not match.", UserMessage(&ValidationError{Field: "x", Message: "Passwords do not match."}, ""))
}
