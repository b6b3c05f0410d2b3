package service

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account-service/internal/domain"
	"account-service/internal/repository"
	"account-service/internal/repository/sqlite"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := sqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func newTestAuthService(t *testing.T, repo repository.UserRepository, clock *fakeClock) AuthService {
	t.Helper()

	svc, err := NewAuthService(repo, AuthConfig{
		Token:        TokenConfig{Secret: "test-secret", Now: clock.Now},
		PasswordCost: bcrypt.MinCost,
	}, quietLogger())
	require.NoError(t, err)
	return svc
}

func johnDoe() RegisterInput {
	return RegisterInput{
		Name:     "John Doe",
		Email:    "John@Example.com",
		Password: "password123",
		Age:      30,
	}
}

func TestAuthService_RegisterLoginValidate(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestAuthService(t, repo, newFakeClock())

	registered, err := svc.Register(ctx, johnDoe())
	require.NoError(t, err)
	assert.Equal(t, "john@example.com", registered.User.Email)
	assert.Empty(t, registered.User.PasswordHash)
	assert.NotEmpty(t, registered.User.ID)
	assert.NotEmpty(t, registered.Token)

	loggedIn, err := svc.Login(ctx, "john@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, loggedIn.Token)
	assert.Empty(t, loggedIn.User.PasswordHash)
	assert.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = svc.Login(ctx, "john@example.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	subject, err := svc.ValidateToken(loggedIn.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, subject)
}

func TestAuthService_RegisterStoresSaltedHash(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestAuthService(t, repo, newFakeClock())

	first := johnDoe()
	second := johnDoe()
	second.Email = "jane@example.com"

	_, err := svc.Register(ctx, first)
	require.NoError(t, err)
	_, err = svc.Register(ctx, second)
	require.NoError(t, err)

	a, err := repo.GetByEmail(ctx, "john@example.com")
	require.NoError(t, err)
	b, err := repo.GetByEmail(ctx, "jane@example.com")
	require.NoError(t, err)

	assert.NotEqual(t, "password123", a.PasswordHash)
	assert.NotEqual(t, a.PasswordHash, b.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("password123")))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(b.PasswordHash), []byte("password123")))
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	_, err := svc.Register(ctx, johnDoe())
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "john@example.com", "not-the-password")
	_, unknownEmail := svc.Login(ctx, "nobody@example.com", "password123")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, domain.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, "invalid credentials", unknownEmail.Error())
}

func TestAuthService_LoginNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	_, err := svc.Register(ctx, johnDoe())
	require.NoError(t, err)

	_, err = svc.Login(ctx, "  JOHN@example.COM ", "password123")
	assert.NoError(t, err)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	svc := newTestAuthService(t, repo, newFakeClock())

	_, err := svc.Register(ctx, johnDoe())
	require.NoError(t, err)

	again := johnDoe()
	again.Name = "Other John"
	again.Email = "JOHN@EXAMPLE.COM"
	_, err = svc.Register(ctx, again)
	assert.ErrorIs(t, err, domain.ErrConflict)

	users, err := repo.List(ctx, domain.UserFilter{})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "John Doe", users[0].Name)
}

func TestAuthService_RegisterAgeBoundaries(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	for i, tc := range []struct {
		age int
		ok  bool
	}{
		{0, false},
		{1, true},
		{120, true},
		{121, false},
	} {
		input := johnDoe()
		input.Email = "age" + string(rune('a'+i)) + "@example.com"
		input.Age = tc.age

		_, err := svc.Register(ctx, input)
		if tc.ok {
			assert.NoError(t, err, "age %d", tc.age)
		} else {
			assert.ErrorIs(t, err, domain.ErrValidation, "age %d", tc.age)
		}
	}
}

func TestAuthService_RegisterMissingFields(t *testing.T) {
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	_, err := svc.Register(context.Background(), RegisterInput{Name: "  "})
	require.Error(t, err)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, len(verr.Fields))
	for i, f := range verr.Fields {
		fields[i] = f.Field
	}
	assert.Equal(t, []string{"name", "email", "password", "age"}, fields)
}

func TestAuthService_RegisterPasswordRules(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	short := johnDoe()
	short.Password = "12345"
	_, err := svc.Register(ctx, short)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "password must be at least 6 characters")

	long := johnDoe()
	long.Password = string(make([]byte, MaxPasswordLength+1))
	_, err = svc.Register(ctx, long)
	assert.ErrorIs(t, err, domain.ErrValidation)

	exact := johnDoe()
	exact.Password = "123456"
	_, err = svc.Register(ctx, exact)
	assert.NoError(t, err)
}

func TestAuthService_RegisterPasswordCountsCharacters(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	short := johnDoe()
	short.Password = "ééé"
	_, err := svc.Register(ctx, short)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "password must be at least 6 characters")

	multibyte := johnDoe()
	multibyte.Password = "éééééé"
	_, err = svc.Register(ctx, multibyte)
	assert.NoError(t, err)

	// 36 two-byte runes hit the bcrypt byte limit exactly
	limit := johnDoe()
	limit.Email = "limit@example.com"
	limit.Password = strings.Repeat("é", 36)
	_, err = svc.Register(ctx, limit)
	assert.NoError(t, err)

	over := johnDoe()
	over.Email = "over@example.com"
	over.Password = strings.Repeat("é", 37)
	_, err = svc.Register(ctx, over)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_RegisterInvalidEmail(t *testing.T) {
	input := johnDoe()
	input.Email = "john-at-example"

	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())
	_, err := svc.Register(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_TokenExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	svc := newTestAuthService(t, newTestRepo(t), clock)

	registered, err := svc.Register(ctx, johnDoe())
	require.NoError(t, err)
	assert.True(t, clock.Now().Add(DefaultTokenTTL).Equal(registered.ExpiresAt))

	subject, err := svc.ValidateToken(registered.Token)
	require.NoError(t, err)
	assert.Equal(t, registered.User.ID, subject)

	clock.Advance(DefaultTokenTTL)
	_, err = svc.ValidateToken(registered.Token)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, "invalid credentials", err.Error())
}

func TestAuthService_ValidateTokenUniformError(t *testing.T) {
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := svc.ValidateToken(token)
		assert.Equal(t, domain.ErrInvalidCredentials, err)
	}
}

func TestAuthService_IssueToken(t *testing.T) {
	svc := newTestAuthService(t, newTestRepo(t), newFakeClock())

	token, _, err := svc.IssueToken(&domain.User{ID: "abc"})
	require.NoError(t, err)

	subject, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", subject)

	_, _, err = svc.IssueToken(nil)
	assert.Error(t, err)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) Init(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepo) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.User), args.Error(1)
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func TestAuthService_StoreFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk on fire")

	repo := new(mockUserRepo)
	repo.On("Create", ctx, mock.MatchedBy(func(u *domain.User) bool {
		return u.Email == "john@example.com" && u.PasswordHash != "" && u.PasswordHash != "password123"
	})).Return(nil, boom).Once()
	repo.On("GetByEmail", ctx, "john@example.com").Return(nil, boom).Once()

	svc := newTestAuthService(t, repo, newFakeClock())

	_, err := svc.Register(ctx, johnDoe())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Login(ctx, "john@example.com", "password123")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredentials)

	repo.AssertExpectations(t)
}

func TestAuthService_RequiresSecret(t *testing.T) {
	_, err := NewAuthService(new(mockUserRepo), AuthConfig{PasswordCost: bcrypt.MinCost}, quietLogger())
	assert.Error(t, err)
}

func TestAuthService_ExpiryIsReported(t *testing.T) {
	clock := newFakeClock()
	svc := newTestAuthService(t, newTestRepo(t), clock)

	_, expiresAt, err := svc.IssueToken(&domain.User{ID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, expiresAt.Sub(clock.Now()))
}
