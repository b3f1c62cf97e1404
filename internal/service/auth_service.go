package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/salon-pos-api/internal/models"
	"github.com/noah-isme/salon-pos-api/pkg/config"
	appErrors "github.com/noah-isme/salon-pos-api/pkg/errors"
)

// AuthService authenticates employees by PIN at a store terminal and issues
// store-scoped access tokens. The store is fixed into the token at login so
// every downstream operation carries an explicit (employee, store) context.
type AuthService struct {
	employees approvalEmployeeRepo
	stores    storeAssignmentReader
	jwtCfg    config.JWTConfig
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

type storeAssignmentReader interface {
	AssignedToStore(ctx context.Context, employeeID, storeID string) (bool, error)
}

// NewAuthService constructs the service.
func NewAuthService(employees approvalEmployeeRepo, stores storeAssignmentReader, jwtCfg config.JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		employees: employees,
		stores:    stores,
		jwtCfg:    jwtCfg,
		validate:  validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Login verifies the employee's PIN and store assignment and returns a
// signed access token. Unknown employees and wrong PINs are reported
// identically.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	employee, err := s.employees.FindByID(ctx, req.EmployeeID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load employee")
	}
	if !employee.Active {
		return nil, appErrors.ErrInactiveAccount
	}
	if err := bcrypt.CompareHashAndPassword([]byte(employee.PINHash), []byte(req.PIN)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	assigned, err := s.stores.AssignedToStore(ctx, req.EmployeeID, req.StoreID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check store assignment")
	}
	if !assigned {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "employee is not assigned to this store")
	}

	now := s.now()
	expiresAt := now.Add(s.jwtCfg.Expiration)
	claims := models.JWTClaims{
		EmployeeID:  employee.ID,
		StoreID:     req.StoreID,
		Tier:        employee.Roles.Tier(),
		Roles:       employee.Roles,
		DisplayName: employee.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   employee.ID,
			Issuer:    s.jwtCfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("employee logged in",
		zap.String("employee_id", employee.ID), zap.String("store_id", req.StoreID))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtCfg.Expiration.Seconds()),
		IssuedAt:    now,
		Employee: models.EmployeeInfo{
			ID:          employee.ID,
			DisplayName: employee.DisplayName,
			Roles:       employee.Roles,
			Tier:        employee.Roles.Tier(),
			StoreID:     req.StoreID,
		},
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return []byte(s.jwtCfg.Secret), nil
	}, jwt.WithIssuer(s.jwtCfg.Issuer))
	if err != nil || !token.Valid {
		return nil, appErrors.ErrUnauthorized
	}
	return claims, nil
}
