package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/zafarze/gat-sub000/internal/models"
	appErrors "github.com/zafarze/gat-sub000/pkg/errors"
)

type memUsers struct {
	users   map[string]models.User
	schools map[string][]string
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &u, nil
}

func (m *memUsers) SchoolIDs(ctx context.Context, user *models.User) ([]string, error) {
	return m.schools[user.ID], nil
}

func newAuth(t *testing.T) (*AuthService, *memUsers) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &memUsers{
		users: map[string]models.User{
			"u-1": {ID: "u-1", Email: "teacher@school.tj", PasswordHash: string(hash), FullName: "Teacher", Role: models.RoleTeacher, Active: true},
			"u-2": {ID: "u-2", Email: "student@school.tj", PasswordHash: string(hash), Role: models.RoleStudent, StudentID: strRef("stu-1"), Active: true},
			"u-3": {ID: "u-3", Email: "gone@school.tj", PasswordHash: string(hash), Role: models.RoleTeacher},
		},
		schools: map[string][]string{"u-1": {schoolID, otherID}, "u-2": {schoolID}},
	}
	return NewAuthService(users, nil, nil, AuthConfig{AccessTokenSecret: "test-secret", Issuer: "gat-test"}), users
}

func TestLoginIssuesScopedToken(t *testing.T) {
	auth, _ := newAuth(t)

	resp, err := auth.Login(context.Background(), models.LoginRequest{Email: "teacher@school.tj", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, int64((24 * time.Hour).Seconds()), resp.ExpiresIn)
	assert.Equal(t, []string{schoolID, otherID}, resp.User.SchoolIDs)

	claims, err := auth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "gat-test", claims.Issuer)
	assert.Equal(t, models.AccessScope{SchoolIDs: []string{schoolID, otherID}}, models.ScopeForClaims(claims))
}

func TestLoginStudentCarriesStudentID(t *testing.T) {
	auth, _ := newAuth(t)

	resp, err := auth.Login(context.Background(), models.LoginRequest{Email: "student@school.tj", Password: "secret123"})
	require.NoError(t, err)
	claims, err := auth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.StudentID)
	assert.Equal(t, "stu-1", models.ScopeForClaims(claims).StudentID)
}

func TestLoginFailures(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	_, err := auth.Login(ctx, models.LoginRequest{Email: "teacher@school.tj", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = auth.Login(ctx, models.LoginRequest{Email: "nobody@school.tj", Password: "secret123"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = auth.Login(ctx, models.LoginRequest{Email: "gone@school.tj", Password: "secret123"})
	assert.True(t, errors.Is(err, appErrors.ErrInactiveAccount))

	_, err = auth.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestValidateTokenRejectsForeignSignatures(t *testing.T) {
	auth, _ := newAuth(t)

	other := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	signed, err := other.SignedString([]byte("someone-else"))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	signed, err = expired.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestMe(t *testing.T) {
	auth, _ := newAuth(t)

	info, err := auth.Me(context.Background(), "u-2")
	require.NoError(t, err)
	assert.Equal(t, "student@school.tj", info.Email)

	_, err = auth.Me(context.Background(), "u-404")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
