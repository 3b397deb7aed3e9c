package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync"
	"testing"

	"pdfqa/internal/models"
	"pdfqa/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- fakes ---

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User

	// createErr, when set, is returned by Create after the lookups passed;
	// it simulates a concurrent insert winning the race
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*models.User)}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicateUsername
		}
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	r.nextID++
	user.ID = r.nextID
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) find(match func(*models.User) bool) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Username == username })
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email })
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *fakeUserRepo) List(ctx context.Context, offset, limit int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*models.User
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		cp := *r.users[ids[i]]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

type fakeMailer struct {
	email string
	link  string
	err   error
}

func (m *fakeMailer) SendPasswordReset(ctx context.Context, email, link string) error {
	m.email, m.link = email, link
	return m.err
}

// --- helpers ---

func newTestAuth(t *testing.T, opts AuthOptions) (AuthService, *fakeUserRepo, *fakeMailer, *TokenManager) {
	t.Helper()
	repo := newFakeUserRepo()
	mailer := &fakeMailer{}
	tokens := newTestTokens(t)
	if opts.FrontendURL == "" {
		opts.FrontendURL = "https://app.example.com/"
	}
	return NewAuthService(repo, tokens, mailer, opts, zap.NewNop()), repo, mailer, tokens
}

func register(t *testing.T, svc AuthService, username, email, password string) *models.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{Username: username, Email: email, Password: password})
	require.NoError(t, err)
	return u
}

// --- tests ---

func TestRegister_StoresHashAndUserRole(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t, AuthOptions{})

	u := register(t, svc, "alice", "alice@example.com", "hunter2")
	assert.NotZero(t, u.ID)
	assert.Equal(t, models.RoleUser, u.Role)

	stored, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", stored.PasswordHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
}

func TestRegister_AdminNameDoesNotGrantAdmin(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})

	u := register(t, svc, "admin", "admin@example.com", "hunter2")
	assert.Equal(t, models.RoleUser, u.Role)

	res, err := svc.Login(context.Background(), "admin", "hunter2")
	require.NoError(t, err)
	claims, err := svc.VerifyToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, claims.Role)
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "a@example.com", Password: "pw"},
		{Username: "a", Password: "pw"},
		{Username: "a", Email: "not-an-email", Password: "pw"},
		{Username: "a", Email: "a@example.com"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}
}

func TestRegister_DuplicateUsernameAndEmail(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "pw")

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "alice@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_RaceLostAtInsertIsConflict(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t, AuthOptions{})
	repo.createErr = repository.ErrDuplicateEmail

	_, err := svc.Register(context.Background(), RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_PasswordTooLong(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: "bob", Email: "bob@example.com", Password: strings.Repeat("x", 257),
	})
	assert.ErrorIs(t, err, ErrInvalidPassword)
}

func TestRegister_RegistrationSecret(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{RegistrationSecret: "open-sesame"})
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw"})
	assert.ErrorIs(t, err, ErrSudoPasswordIncorrect)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw", SudoPassword: "nope"})
	assert.ErrorIs(t, err, ErrSudoPasswordIncorrect)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "pw", SudoPassword: "open-sesame"})
	assert.NoError(t, err)
}

func TestLogin(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	u := register(t, svc, "alice", "alice@example.com", "hunter2")

	res, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, models.UserView{ID: u.ID, Username: "alice", Email: "alice@example.com"}, res.User)

	claims, err := svc.VerifyToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	// the refresh token is not accepted as an access token
	_, err = svc.VerifyToken(res.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "hunter2")

	_, errWrongPassword := svc.Login(ctx, "alice", "wrong")
	_, errUnknownUser := svc.Login(ctx, "nobody", "hunter2")

	assert.ErrorIs(t, errWrongPassword, ErrLoginFailed)
	assert.ErrorIs(t, errUnknownUser, ErrLoginFailed)
	assert.Equal(t, errWrongPassword.Error(), errUnknownUser.Error())
}

func TestRefresh(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "hunter2")
	res, err := svc.Login(ctx, "alice", "hunter2")
	require.NoError(t, err)

	access, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	claims, err := svc.VerifyToken(access)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = svc.Refresh(ctx, res.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, svc.DeleteUser(ctx, "alice"))
	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdatePassword(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "old")

	assert.ErrorIs(t, svc.UpdatePassword(ctx, "alice", ""), ErrPasswordRequired)
	assert.ErrorIs(t, svc.UpdatePassword(ctx, "ghost", "new"), ErrUserNotFound)

	require.NoError(t, svc.UpdatePassword(ctx, "alice", "new"))
	_, err := svc.Login(ctx, "alice", "old")
	assert.ErrorIs(t, err, ErrLoginFailed)
	_, err = svc.Login(ctx, "alice", "new")
	assert.NoError(t, err)
}

func TestDeleteUser(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "pw")
	register(t, svc, "bob", "bob@example.com", "pw")

	require.NoError(t, svc.DeleteUser(ctx, "alice"))
	_, err := repo.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteUser(ctx, "alice"), ErrUserNotFound)

	require.NoError(t, svc.AdminDeleteUser(ctx, "root", "bob"))
	assert.ErrorIs(t, svc.AdminDeleteUser(ctx, "root", "bob"), ErrUserNotFound)
}

func TestListUsers_Pagination(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	for _, name := range []string{"u1", "u2", "u3", "u4", "u5"} {
		register(t, svc, name, name+"@example.com", "pw")
	}

	page, err := svc.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.PerPage)
	assert.EqualValues(t, 5, page.Total)
	assert.EqualValues(t, 2, page.MaxPage)
	require.Len(t, page.Users, 3)
	assert.Equal(t, "u1", page.Users[0].Username)

	page, err = svc.ListUsers(ctx, 2, 3)
	require.NoError(t, err)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "u4", page.Users[0].Username)

	page, err = svc.ListUsers(ctx, 9, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Users)

	page, err = svc.ListUsers(ctx, math.MaxInt, 3)
	require.NoError(t, err)
	assert.Empty(t, page.Users)
	assert.Equal(t, math.MaxInt, page.Page)
	assert.EqualValues(t, 2, page.MaxPage)

	page, err = svc.ListUsers(ctx, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, page.PerPage)
}

func TestRequestPasswordReset(t *testing.T) {
	svc, _, mailer, tokens := newTestAuth(t, AuthOptions{FrontendURL: "https://app.example.com/"})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "pw")

	require.NoError(t, svc.RequestPasswordReset(ctx, "alice@example.com"))
	assert.Equal(t, "alice@example.com", mailer.email)
	require.True(t, strings.HasPrefix(mailer.link, "https://app.example.com/password_reset/"))

	token := strings.TrimPrefix(mailer.link, "https://app.example.com/password_reset/")
	email, err := tokens.VerifyReset(token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	svc, _, mailer, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()

	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, "ghost@example.com"), ErrUserNotFound)
	assert.ErrorIs(t, svc.RequestPasswordReset(ctx, ""), ErrUserNotFound)
	assert.Empty(t, mailer.link)
}

func TestRequestPasswordReset_RelayFailure(t *testing.T) {
	svc, repo, mailer, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "pw")
	before, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)

	mailer.err = errors.New("relay down")
	err = svc.RequestPasswordReset(ctx, "alice@example.com")
	assert.ErrorIs(t, err, ErrMailRelay)

	after, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestResetPassword(t *testing.T) {
	svc, _, _, tokens := newTestAuth(t, AuthOptions{})
	ctx := context.Background()
	register(t, svc, "alice", "alice@example.com", "old")

	token, err := tokens.IssueReset("alice@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.ResetPassword(ctx, "garbage", "new"), ErrTokenInvalid)
	assert.ErrorIs(t, svc.ResetPassword(ctx, token, ""), ErrPasswordRequired)

	require.NoError(t, svc.ResetPassword(ctx, token, "new"))
	_, err = svc.Login(ctx, "alice", "new")
	assert.NoError(t, err)

	orphan, err := tokens.IssueReset("ghost@example.com")
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ResetPassword(ctx, orphan, "new"), ErrUserNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	svc, repo, _, _ := newTestAuth(t, AuthOptions{})
	ctx := context.Background()

	require.NoError(t, svc.EnsureAdmin(ctx, "", "", ""))
	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, svc.EnsureAdmin(ctx, "root", "root@example.com", "toor"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root", "root@example.com", "toor"))

	n, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	res, err := svc.Login(ctx, "root", "toor")
	require.NoError(t, err)
	claims, err := svc.VerifyToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	assert.Error(t, svc.EnsureAdmin(ctx, "other", "other@example.com", ""))
}
