package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/bidmaster/bidmaster/config"
	"github.com/bidmaster/bidmaster/internal/phone"
	"github.com/bidmaster/bidmaster/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

// Service handles registration, every login variant and profile management.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	AdminLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	SendOTP(ctx context.Context, rawPhone string) (string, error)
	VerifyOTP(ctx context.Context, rawPhone, code string) (*AuthResponse, error)
	ExternalLogin(ctx context.Context, req ExternalLoginRequest) (*AuthResponse, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*types.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*types.User, error)
}

type ServiceImpl struct {
	logger  *slog.Logger
	repo    AuthRepo
	otp     *OTPStore
	sms     SMSSender
	jwtCfg  config.JWTConfig
	devMode bool
}

func NewServiceImpl(repo AuthRepo, otp *OTPStore, sms SMSSender, jwtCfg config.JWTConfig, devMode bool, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:  logger,
		repo:    repo,
		otp:     otp,
		sms:     sms,
		jwtCfg:  jwtCfg,
		devMode: devMode,
	}
}

// Register creates a local password account. New accounts start out pending
// until an admin approves them.
func (s *ServiceImpl) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	l := s.logger.With(slog.String("method", "Register"))

	if req.Name == "" {
		return nil, fmt.Errorf("name is required: %w", types.ErrValidation)
	}
	if len(req.Password) < 6 {
		return nil, fmt.Errorf("password must be at least 6 characters: %w", types.ErrValidation)
	}
	canonical, ok := phone.Normalize(req.Phone)
	if !ok || !phone.IsValid(canonical) {
		return nil, fmt.Errorf("invalid Iraqi phone number: %w", types.ErrValidation)
	}

	role := types.RoleBuyer
	switch req.Role {
	case "", string(types.RoleBuyer):
	case string(types.RoleSeller):
		role = types.RoleSeller
	default:
		return nil, fmt.Errorf("role must be buyer or seller: %w", types.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	hashStr := string(hash)

	var email *string
	if req.Email != "" {
		email = &req.Email
	}

	user, err := s.repo.CreateUser(ctx, CreateUserParams{
		Name:         req.Name,
		Email:        email,
		Phone:        &canonical,
		PasswordHash: &hashStr,
		Role:         role,
		Status:       types.UserPending,
	})
	if err != nil {
		return nil, err
	}
	l.InfoContext(ctx, "User registered", slog.String("userID", user.ID.String()), slog.String("role", string(role)))

	return s.authResponse(user, "Registration successful")
}

// Login is the password variant of ResolveIdentity. Admin accounts are not
// resolvable on this path.
func (s *ServiceImpl) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Password == "" || (req.Phone == "" && req.Email == "") {
		return nil, fmt.Errorf("phone or email and password are required: %w", types.ErrValidation)
	}

	cred := Credential{Password: &PasswordCredential{
		Email:    req.Email,
		Password: req.Password,
	}}
	if req.Phone != "" {
		canonical, ok := phone.Normalize(req.Phone)
		if !ok {
			return nil, fmt.Errorf("invalid phone number: %w", types.ErrValidation)
		}
		cred.Password.Phone = canonical
	}

	user, err := s.resolveIdentity(ctx, cred, types.RoleBuyer)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user, "Login successful")
}

// AdminLogin authenticates the back-office console by email and password and
// only resolves admin accounts.
func (s *ServiceImpl) AdminLogin(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", types.ErrValidation)
	}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
		}
		return nil, err
	}
	if user.Role != types.RoleAdmin || user.PasswordHash == nil {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
	}

	return s.authResponse(user, "Login successful")
}

// SendOTP issues a one-time code for the phone and hands it to the SMS
// sender. In development mode the code is also returned so clients can
// auto-fill it.
func (s *ServiceImpl) SendOTP(ctx context.Context, rawPhone string) (string, error) {
	l := s.logger.With(slog.String("method", "SendOTP"))

	canonical, ok := phone.Normalize(rawPhone)
	if !ok || !phone.IsValid(canonical) {
		return "", fmt.Errorf("invalid Iraqi phone number: %w", types.ErrValidation)
	}

	code, err := s.otp.Issue(canonical)
	if err != nil {
		return "", err
	}
	if err := s.sms.SendCode(ctx, canonical, code); err != nil {
		l.ErrorContext(ctx, "Failed to deliver OTP", slog.Any("error", err))
		return "", fmt.Errorf("send otp: %w", err)
	}

	if s.devMode {
		return code, nil
	}
	return "", nil
}

// VerifyOTP consumes the code and logs the caller in, creating a buyer
// account on first sight of the phone number.
func (s *ServiceImpl) VerifyOTP(ctx context.Context, rawPhone, code string) (*AuthResponse, error) {
	l := s.logger.With(slog.String("method", "VerifyOTP"))

	canonical, ok := phone.Normalize(rawPhone)
	if !ok || !phone.IsValid(canonical) {
		return nil, fmt.Errorf("invalid Iraqi phone number: %w", types.ErrValidation)
	}
	if !s.otp.Verify(canonical, code) {
		return nil, fmt.Errorf("invalid or expired OTP: %w", types.ErrAuth)
	}

	user, err := s.repo.GetUserByPhone(ctx, canonical)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		user, err = s.repo.CreateUser(ctx, CreateUserParams{
			Name:   "User " + canonical[len(canonical)-4:],
			Phone:  &canonical,
			Role:   types.RoleBuyer,
			Status: types.UserApproved,
		})
		if err != nil {
			return nil, err
		}
		l.InfoContext(ctx, "User created via OTP login", slog.String("userID", user.ID.String()))
	}
	if user.Status == types.UserBlocked {
		return nil, fmt.Errorf("account is blocked: %w", types.ErrForbidden)
	}

	return s.authResponse(user, "OTP verified")
}

// ExternalLogin is the external-token variant of ResolveIdentity.
func (s *ServiceImpl) ExternalLogin(ctx context.Context, req ExternalLoginRequest) (*AuthResponse, error) {
	if req.IDToken == "" {
		return nil, fmt.Errorf("id_token is required: %w", types.ErrValidation)
	}

	role := types.RoleBuyer
	if req.Role == string(types.RoleSeller) {
		role = types.RoleSeller
	}

	user, err := s.resolveIdentity(ctx, Credential{ExternalToken: &req.IDToken}, role)
	if err != nil {
		return nil, err
	}
	return s.authResponse(user, "Login successful")
}

// resolveIdentity maps exactly one credential variant to a user record.
// The password variant only resolves existing accounts; the external-token
// variant creates the account on first login with createRole.
func (s *ServiceImpl) resolveIdentity(ctx context.Context, cred Credential, createRole types.UserRole) (*types.User, error) {
	switch {
	case cred.Password != nil:
		return s.resolvePassword(ctx, cred.Password)
	case cred.ExternalToken != nil:
		return s.resolveExternal(ctx, *cred.ExternalToken, createRole)
	default:
		return nil, fmt.Errorf("no credential supplied: %w", types.ErrValidation)
	}
}

func (s *ServiceImpl) resolvePassword(ctx context.Context, cred *PasswordCredential) (*types.User, error) {
	var (
		user *types.User
		err  error
	)
	if cred.Phone != "" {
		user, err = s.repo.GetUserByPhone(ctx, cred.Phone)
	} else {
		user, err = s.repo.GetUserByEmail(ctx, cred.Email)
	}
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
		}
		return nil, err
	}

	// Admin accounts never authenticate through the public login path.
	if user.Role == types.RoleAdmin {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
	}
	if user.PasswordHash == nil {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(cred.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", types.ErrAuth)
	}
	if user.Status == types.UserBlocked {
		return nil, fmt.Errorf("account is blocked: %w", types.ErrForbidden)
	}
	return user, nil
}

func (s *ServiceImpl) resolveExternal(ctx context.Context, idToken string, createRole types.UserRole) (*types.User, error) {
	l := s.logger.With(slog.String("method", "resolveExternal"))

	claims, err := s.verifyExternalToken(idToken)
	if err != nil {
		l.WarnContext(ctx, "External token rejected", slog.Any("error", err))
		return nil, fmt.Errorf("invalid identity token: %w", types.ErrAuth)
	}

	user, err := s.repo.GetUserByExternalUID(ctx, claims.UID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			return nil, err
		}
		params := CreateUserParams{
			Name:        claims.Name,
			ExternalUID: &claims.UID,
			Role:        createRole,
			Status:      types.UserApproved,
		}
		if params.Name == "" {
			params.Name = "User"
		}
		if claims.Email != "" {
			params.Email = &claims.Email
		}
		if claims.Phone != "" {
			if canonical, ok := phone.Normalize(claims.Phone); ok {
				params.Phone = &canonical
			}
		}
		user, err = s.repo.CreateUser(ctx, params)
		if err != nil {
			return nil, err
		}
		l.InfoContext(ctx, "User created via external login", slog.String("userID", user.ID.String()))
	}
	if user.Status == types.UserBlocked {
		return nil, fmt.Errorf("account is blocked: %w", types.ErrForbidden)
	}
	return user, nil
}

func (s *ServiceImpl) verifyExternalToken(idToken string) (*ExternalClaims, error) {
	claims := &ExternalClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtCfg.ExternalSecret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token invalid")
	}
	if s.jwtCfg.ExternalIssuer != "" && claims.Issuer != s.jwtCfg.ExternalIssuer {
		return nil, fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	if claims.UID == "" {
		claims.UID = claims.Subject
	}
	if claims.UID == "" {
		return nil, errors.New("token carries no subject")
	}
	return claims, nil
}

func (s *ServiceImpl) GetProfile(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

// UpdateProfile changes name and/or phone. A new phone is re-normalized and
// checked for uniqueness before the write.
func (s *ServiceImpl) UpdateProfile(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*types.User, error) {
	if req.Name == nil && req.Phone == nil {
		return nil, fmt.Errorf("nothing to update: %w", types.ErrValidation)
	}
	if req.Name != nil && *req.Name == "" {
		return nil, fmt.Errorf("name cannot be empty: %w", types.ErrValidation)
	}

	var newPhone *string
	if req.Phone != nil {
		canonical, ok := phone.Normalize(*req.Phone)
		if !ok || !phone.IsValid(canonical) {
			return nil, fmt.Errorf("invalid Iraqi phone number: %w", types.ErrValidation)
		}
		taken, err := s.repo.PhoneTaken(ctx, canonical, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("phone number already in use: %w", types.ErrConflict)
		}
		newPhone = &canonical
	}

	return s.repo.UpdateProfile(ctx, userID, req.Name, newPhone)
}

func (s *ServiceImpl) authResponse(user *types.User, message string) (*AuthResponse, error) {
	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		Success: true,
		Message: message,
		Token:   token,
		User:    user,
	}, nil
}

func (s *ServiceImpl) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	ttl := s.jwtCfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	claims := Claims{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Issuer:    s.jwtCfg.Issuer,
			Audience:  jwt.ClaimStrings{s.jwtCfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if user.Phone != nil {
		claims.Phone = *user.Phone
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtCfg.SecretKey))
}
