package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/bidmaster/bidmaster/config"
	"github.com/bidmaster/bidmaster/internal/types"
)

type MockAuthRepo struct {
	mock.Mock
}

func (m *MockAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByPhone(ctx context.Context, phone string) (*types.User, error) {
	args := m.Called(ctx, phone)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) GetUserByExternalUID(ctx context.Context, externalUID string) (*types.User, error) {
	args := m.Called(ctx, externalUID)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) CreateUser(ctx context.Context, params CreateUserParams) (*types.User, error) {
	args := m.Called(ctx, params)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, name, phone *string) (*types.User, error) {
	args := m.Called(ctx, userID, name, phone)
	user, _ := args.Get(0).(*types.User)
	return user, args.Error(1)
}

func (m *MockAuthRepo) PhoneTaken(ctx context.Context, phone string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, phone, excludeID)
	return args.Bool(0), args.Error(1)
}

var testJWTCfg = config.JWTConfig{
	SecretKey:      "test-secret",
	AccessTokenTTL: time.Hour,
	Issuer:         "bidmaster-api",
	Audience:       "bidmaster-app",
	ExternalIssuer: "accounts.example.com",
	ExternalSecret: "external-secret",
}

func newTestService(repo AuthRepo) *ServiceImpl {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	otp := NewOTPStore(config.OTPConfig{TTL: time.Minute, Digits: 6})
	return NewServiceImpl(repo, otp, &LogSMSSender{Logger: logger}, testJWTCfg, true, logger)
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(hash)
	return &s
}

func TestRegister_Success(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	created := &types.User{
		ID:     uuid.New(),
		Name:   "Ali",
		Role:   types.RoleSeller,
		Status: types.UserPending,
	}
	repo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
		return p.Name == "Ali" &&
			p.Phone != nil && *p.Phone == "+9647701234567" &&
			p.Role == types.RoleSeller &&
			p.Status == types.UserPending &&
			p.PasswordHash != nil
	})).Return(created, nil).Once()

	resp, err := svc.Register(ctx, RegisterRequest{
		Name:     "Ali",
		Phone:    "07701234567",
		Password: "secret123",
		Role:     "seller",
	})

	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, created, resp.User)
	repo.AssertExpectations(t)
}

func TestRegister_InvalidPhone(t *testing.T) {
	svc := newTestService(new(MockAuthRepo))

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ali",
		Phone:    "12345",
		Password: "secret123",
	})

	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestRegister_RejectsAdminRole(t *testing.T) {
	svc := newTestService(new(MockAuthRepo))

	_, err := svc.Register(context.Background(), RegisterRequest{
		Name:     "Ali",
		Phone:    "07701234567",
		Password: "secret123",
		Role:     "admin",
	})

	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestLogin_Success(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	canonical := "+9647701234567"
	user := &types.User{
		ID:           uuid.New(),
		Name:         "Ali",
		Phone:        &canonical,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleBuyer,
		Status:       types.UserApproved,
	}
	repo.On("GetUserByPhone", ctx, canonical).Return(user, nil).Once()

	resp, err := svc.Login(ctx, LoginRequest{Phone: "0770 123 4567", Password: "secret123"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTCfg.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "buyer", claims.Role)
	repo.AssertExpectations(t)
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	canonical := "+9647701234567"
	user := &types.User{
		ID:           uuid.New(),
		Phone:        &canonical,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleBuyer,
		Status:       types.UserApproved,
	}
	repo.On("GetUserByPhone", ctx, canonical).Return(user, nil).Once()

	_, err := svc.Login(ctx, LoginRequest{Phone: canonical, Password: "wrong"})

	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestLogin_AdminExcluded(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	email := "admin@example.com"
	user := &types.User{
		ID:           uuid.New(),
		Email:        &email,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleAdmin,
		Status:       types.UserApproved,
	}
	repo.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

	_, err := svc.Login(ctx, LoginRequest{Email: email, Password: "secret123"})

	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestLogin_BlockedAccount(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	canonical := "+9647701234567"
	user := &types.User{
		ID:           uuid.New(),
		Phone:        &canonical,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleBuyer,
		Status:       types.UserBlocked,
	}
	repo.On("GetUserByPhone", ctx, canonical).Return(user, nil).Once()

	_, err := svc.Login(ctx, LoginRequest{Phone: canonical, Password: "secret123"})

	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestAdminLogin_Success(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	email := "admin@example.com"
	user := &types.User{
		ID:           uuid.New(),
		Email:        &email,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleAdmin,
		Status:       types.UserApproved,
	}
	repo.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

	resp, err := svc.AdminLogin(ctx, LoginRequest{Email: email, Password: "secret123"})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	repo.AssertExpectations(t)
}

func TestAdminLogin_RejectsNonAdmin(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	email := "buyer@example.com"
	user := &types.User{
		ID:           uuid.New(),
		Email:        &email,
		PasswordHash: hashOf(t, "secret123"),
		Role:         types.RoleBuyer,
		Status:       types.UserApproved,
	}
	repo.On("GetUserByEmail", ctx, email).Return(user, nil).Once()

	_, err := svc.AdminLogin(ctx, LoginRequest{Email: email, Password: "secret123"})

	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestLogin_UnknownUser(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	repo.On("GetUserByPhone", ctx, "+9647701234567").Return(nil, types.ErrNotFound).Once()

	_, err := svc.Login(ctx, LoginRequest{Phone: "07701234567", Password: "secret123"})

	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestOTPFlow_CreatesUserOnFirstLogin(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	canonical := "+9647701234567"
	code, err := svc.SendOTP(ctx, "07701234567")
	require.NoError(t, err)
	require.Len(t, code, 6, "dev mode returns the issued code")

	created := &types.User{
		ID:     uuid.New(),
		Name:   "User 4567",
		Phone:  &canonical,
		Role:   types.RoleBuyer,
		Status: types.UserApproved,
	}
	repo.On("GetUserByPhone", ctx, canonical).Return(nil, types.ErrNotFound).Once()
	repo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
		return p.Phone != nil && *p.Phone == canonical && p.Role == types.RoleBuyer
	})).Return(created, nil).Once()

	resp, err := svc.VerifyOTP(ctx, "07701234567", code)

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	repo.AssertExpectations(t)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	canonical := "+9647701234567"
	code, err := svc.SendOTP(ctx, canonical)
	require.NoError(t, err)

	user := &types.User{ID: uuid.New(), Phone: &canonical, Role: types.RoleBuyer, Status: types.UserApproved}
	repo.On("GetUserByPhone", ctx, canonical).Return(user, nil).Once()

	_, err = svc.VerifyOTP(ctx, canonical, code)
	require.NoError(t, err)

	_, err = svc.VerifyOTP(ctx, canonical, code)
	assert.ErrorIs(t, err, types.ErrAuth, "a consumed code must not verify again")
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	svc := newTestService(new(MockAuthRepo))
	ctx := context.Background()

	_, err := svc.SendOTP(ctx, "+9647701234567")
	require.NoError(t, err)

	_, err = svc.VerifyOTP(ctx, "+9647701234567", "000000")
	assert.ErrorIs(t, err, types.ErrAuth)
}

func externalToken(t *testing.T, claims ExternalClaims) string {
	t.Helper()
	claims.Issuer = testJWTCfg.ExternalIssuer
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTCfg.ExternalSecret))
	require.NoError(t, err)
	return signed
}

func TestExternalLogin_ResolvesExistingUser(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	uid := "ext-uid-1"
	user := &types.User{ID: uuid.New(), Name: "Ali", ExternalUID: &uid, Role: types.RoleBuyer, Status: types.UserApproved}
	repo.On("GetUserByExternalUID", ctx, uid).Return(user, nil).Once()

	resp, err := svc.ExternalLogin(ctx, ExternalLoginRequest{
		IDToken: externalToken(t, ExternalClaims{UID: uid}),
	})

	require.NoError(t, err)
	assert.Equal(t, user, resp.User)
	repo.AssertExpectations(t)
}

func TestExternalLogin_CreatesUserOnFirstLogin(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()

	uid := "ext-uid-2"
	created := &types.User{ID: uuid.New(), Name: "Sara", ExternalUID: &uid, Role: types.RoleSeller, Status: types.UserApproved}
	repo.On("GetUserByExternalUID", ctx, uid).Return(nil, types.ErrNotFound).Once()
	repo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
		return p.ExternalUID != nil && *p.ExternalUID == uid &&
			p.Name == "Sara" && p.Role == types.RoleSeller
	})).Return(created, nil).Once()

	resp, err := svc.ExternalLogin(ctx, ExternalLoginRequest{
		IDToken: externalToken(t, ExternalClaims{UID: uid, Name: "Sara"}),
		Role:    "seller",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	repo.AssertExpectations(t)
}

func TestExternalLogin_BadSignature(t *testing.T) {
	svc := newTestService(new(MockAuthRepo))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ExternalClaims{UID: "x"})
	signed, err := token.SignedString([]byte("not-the-secret"))
	require.NoError(t, err)

	_, err = svc.ExternalLogin(context.Background(), ExternalLoginRequest{IDToken: signed})

	assert.ErrorIs(t, err, types.ErrAuth)
}

func TestUpdateProfile_PhoneConflict(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	newPhone := "07709998877"
	repo.On("PhoneTaken", ctx, "+9647709998877", userID).Return(true, nil).Once()

	_, err := svc.UpdateProfile(ctx, userID, UpdateProfileRequest{Phone: &newPhone})

	assert.ErrorIs(t, err, types.ErrConflict)
	repo.AssertExpectations(t)
}

func TestUpdateProfile_NormalizesPhone(t *testing.T) {
	repo := new(MockAuthRepo)
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	newPhone := "009647709998877"
	canonical := "+9647709998877"
	updated := &types.User{ID: userID, Phone: &canonical}
	repo.On("PhoneTaken", ctx, canonical, userID).Return(false, nil).Once()
	repo.On("UpdateProfile", ctx, userID, (*string)(nil), &canonical).Return(updated, nil).Once()

	user, err := svc.UpdateProfile(ctx, userID, UpdateProfileRequest{Phone: &newPhone})

	require.NoError(t, err)
	assert.Equal(t, canonical, *user.Phone)
	repo.AssertExpectations(t)
}
