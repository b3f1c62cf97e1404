package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/pkg/config"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

type fakeStoreAssignments struct {
	assigned bool
}

func (f *fakeStoreAssignments) AssignedToStore(context.Context, string, string) (bool, error) {
	return f.assigned, nil
}

func newAuthServiceForTest(t *testing.T, assigned bool) (*AuthService, *models.Employee) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("4321"), bcrypt.MinCost)
	require.NoError(t, err)

	employee := activeEmployee("tech-1", models.RoleTechnician)
	employee.DisplayName = "Alice"
	employee.PINHash = string(hash)

	employees := &fakeEmployeeRepo{employees: map[string]*models.Employee{"tech-1": employee}}
	cfg := config.JWTConfig{
		Secret:     "test-secret",
		Issuer:     "salon-pos",
		Expiration: time.Hour,
	}
	return NewAuthService(employees, &fakeStoreAssignments{assigned: assigned}, cfg, nil, nil), employee
}

func TestLoginIssuesStoreScopedToken(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "tech-1",
		PIN:        "4321",
		StoreID:    "store-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, "Alice", resp.Employee.DisplayName)
	assert.Equal(t, models.TierTechnician, resp.Employee.Tier)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tech-1", claims.EmployeeID)
	assert.Equal(t, "store-1", claims.StoreID)
	assert.Equal(t, models.TierTechnician, claims.Tier)
	assert.True(t, claims.Roles.Has(models.RoleTechnician))
}

func TestLoginWrongPIN(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "tech-1",
		PIN:        "9999",
		StoreID:    "store-1",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginUnknownEmployeeLooksLikeWrongPIN(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "ghost",
		PIN:        "4321",
		StoreID:    "store-1",
	})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestLoginInactiveEmployee(t *testing.T) {
	svc, employee := newAuthServiceForTest(t, true)
	employee.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "tech-1",
		PIN:        "4321",
		StoreID:    "store-1",
	})
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLoginUnassignedStore(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, false)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "tech-1",
		PIN:        "4321",
		StoreID:    "store-2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestLoginValidatesPayload(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, true)

	_, err := svc.Login(context.Background(), models.LoginRequest{EmployeeID: "tech-1", PIN: "12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	svc, _ := newAuthServiceForTest(t, true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		EmployeeID: "tech-1",
		PIN:        "4321",
		StoreID:    "store-1",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
