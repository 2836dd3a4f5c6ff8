package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/civic-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var userColumns = []string{"id", "name", "email", "password", "role", "created_at", "updated_at"}

func newMockAuth(t *testing.T) (*AuthService, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:        "unit-test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: time.Hour,
	}
	return NewAuthService(db, cfg), mock
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newMockAuth(t)

	tests := []struct {
		name string
		req  dto.RegisterRequest
		msg  string
	}{
		{"missing name", dto.RegisterRequest{Email: "a@b.io", Password: "secret1"}, "Name is required"},
		{"long name", dto.RegisterRequest{Name: strings.Repeat("a", 61), Email: "a@b.io", Password: "secret1"}, "Name must be at most 60 characters"},
		{"missing email", dto.RegisterRequest{Name: "Ada", Password: "secret1"}, "Email is required"},
		{"bad email", dto.RegisterRequest{Name: "Ada", Email: "ada-at-home", Password: "secret1"}, "Email is invalid"},
		{"short password", dto.RegisterRequest{Name: "Ada", Email: "a@b.io", Password: "12345"}, "Password must be at least 6 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), &tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, tt.msg, err.Error())
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, mock := newMockAuth(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(uuid.New(), "Ada", "ada@example.com", "x", models.RoleCitizen, time.Now(), time.Now()))

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: " Ada@Example.com ", Password: "secret1",
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "User already exists with this email", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterLookupFailure(t *testing.T) {
	svc, mock := newMockAuth(t)
	cause := errors.New("connection refused")

	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(cause)

	_, err := svc.Register(context.Background(), &dto.RegisterRequest{
		Name: "Ada", Email: "ada@example.com", Password: "secret1",
	})
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, mock := newMockAuth(t)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := svc.Login(context.Background(), &dto.LoginRequest{Email: "ghost@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, mock := newMockAuth(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(uuid.New(), "Ada", "ada@example.com", string(hash), models.RoleCitizen, time.Now(), time.Now()))

	_, err = svc.Login(context.Background(), &dto.LoginRequest{Email: "ada@example.com", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshUnknownToken(t *testing.T) {
	svc, mock := newMockAuth(t)

	mock.ExpectQuery(`SELECT \* FROM "refresh_tokens" WHERE token_hash = \$1 AND revoked = false`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := svc.Refresh(context.Background(), &dto.RefreshRequest{RefreshToken: "nope"})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, mock := newMockAuth(t)

	mock.ExpectExec(`UPDATE "refresh_tokens" SET "revoked"=\$1,"revoked_at"=\$2 WHERE token_hash = \$3 AND revoked = false`).
		WithArgs(true, sqlmock.AnyArg(), hashToken("raw-token")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Logout(context.Background(), &dto.LogoutRequest{RefreshToken: "raw-token"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessTokenClaims(t *testing.T) {
	svc, _ := newMockAuth(t)
	user := &models.User{ID: uuid.New(), Email: "ada@example.com", Role: models.RoleAdmin}

	signed, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(*jwt.Token) (interface{}, error) {
		return []byte("unit-test-secret"), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	require.NoError(t, err)

	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["sub"])
	assert.Equal(t, "ada@example.com", claims["email"])
	assert.Equal(t, models.RoleAdmin, claims["role"])
}

func TestValidEmail(t *testing.T) {
	assert.True(t, validEmail("ada@example.com"))
	assert.False(t, validEmail("ada@localhost"))
	assert.False(t, validEmail("Ada <ada@example.com>"))
	assert.False(t, validEmail("no-at-sign"))
}
