package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/passhash"
	"fueltracker/pkg/telemetry"
	"fueltracker/services/fuel-svc/internal/repository"
)

const (
	minPasswordLength = 8
	defaultRole       = "user"
)

// RegisterInput данные регистрации
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// UserInfo публичные данные пользователя
type UserInfo struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenPair пара токенов
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user,omitempty"`
}

// AuthService регистрация, вход и отзыв токенов
type AuthService struct {
	users     repository.UserRepository
	blacklist repository.TokenBlacklist
	tokens    *passhash.JWTManager
	audit     audit.Logger
}

// NewAuthService создаёт новый сервис аутентификации
func NewAuthService(
	users repository.UserRepository,
	blacklist repository.TokenBlacklist,
	tokens *passhash.JWTManager,
	auditLogger audit.Logger,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Get()
	}
	return &AuthService{
		users:     users,
		blacklist: blacklist,
		tokens:    tokens,
		audit:     auditLogger,
	}
}

// Register создаёт пользователя
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (user *UserInfo, err error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	b := audit.NewEntry().Action(audit.ActionRegister).User("", in.Email)
	defer func() {
		if user != nil {
			b.User(user.ID, user.Email).Resource(audit.ResourceUser, user.ID)
		}
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)), err))
	}()

	if err := validateRegister(in); err != nil {
		return nil, err
	}

	hash, err := passhash.HashPassword(in.Password)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to hash password")
	}

	u := &repository.User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Role:         defaultRole,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrUserAlreadyExists) {
			return nil, pkgerrors.NewWithField(pkgerrors.CodeAlreadyExists, "user with this email already exists", "email")
		}
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to create user")
	}

	telemetry.AddEvent(ctx, "user_registered", attribute.String("user_id", u.ID))
	logger.FromContext(ctx).Info("User registered", "user_id", u.ID)
	return toUserInfo(u), nil
}

// Login проверяет пароль и выдаёт пару токенов.
// Хэши старого формата пересчитываются при успешном входе.
func (s *AuthService) Login(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	b := audit.NewEntry().Action(audit.ActionLogin).User("", email)
	defer func() {
		if pair != nil {
			b.User(pair.User.ID, pair.User.Email)
		}
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)), err))
	}()

	invalid := pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid email or password")

	if email == "" || password == "" {
		return nil, invalid
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			telemetry.AddEvent(ctx, "user_not_found")
			return nil, invalid
		}
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to get user")
	}

	ok, err := passhash.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to verify password")
	}
	if !ok {
		telemetry.AddEvent(ctx, "invalid_password")
		return nil, invalid
	}

	if passhash.NeedsRehash(user.PasswordHash) {
		s.rehash(ctx, user, password)
	}

	return s.issue(user)
}

// Refresh выдаёт новую пару по refresh токену, старый токен отзывается
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument, "refresh token is required", "refresh_token")
	}

	revoked, err := s.blacklist.Contains(ctx, refreshToken)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to check blacklist")
	}
	if revoked {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token has been revoked")
	}

	_, claims, err := s.tokens.RefreshAccessToken(refreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnauthenticated, "invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid refresh token")
		}
		return nil, mapRepoError(err, "failed to get user")
	}

	if err := s.blacklist.Add(ctx, refreshToken, claims.ExpiresAt.Time); err != nil {
		// Токены уже выданы, старый refresh истечёт сам
		logger.FromContext(ctx).Warn("Failed to blacklist old refresh token", "error", err)
	}

	telemetry.AddEvent(ctx, "token_refreshed")
	return s.issue(user)
}

// Logout отзывает переданные токены
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "AuthService.Logout")
	defer span.End()

	b := audit.NewEntry().Action(audit.ActionLogout)
	defer func() {
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)), err))
	}()

	for _, tok := range []string{accessToken, refreshToken} {
		if tok == "" {
			continue
		}
		claims, err := s.tokens.ValidateToken(tok)
		if err != nil {
			// Невалидный токен и так не пройдёт проверку
			continue
		}
		b.User(claims.UserID, claims.Username)
		if err := s.blacklist.Add(ctx, tok, claims.ExpiresAt.Time); err != nil {
			telemetry.SetError(ctx, err)
			return mapRepoError(err, "failed to revoke token")
		}
	}

	telemetry.AddEvent(ctx, "user_logged_out")
	return nil
}

// Authenticate проверяет access токен для middleware
func (s *AuthService) Authenticate(ctx context.Context, token string) (*passhash.Claims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "authentication required")
	}

	revoked, err := s.blacklist.Contains(ctx, token)
	if err != nil {
		return nil, mapRepoError(err, "failed to check blacklist")
	}
	if revoked {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token has been revoked")
	}

	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeUnauthenticated, "invalid token")
	}
	return claims, nil
}

func (s *AuthService) issue(user *repository.User) (*TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to generate tokens")
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to generate tokens")
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.tokens.GetAccessTokenExpiry(),
		User:         toUserInfo(user),
	}, nil
}

func (s *AuthService) rehash(ctx context.Context, user *repository.User, password string) {
	hash, err := passhash.HashPassword(password)
	if err != nil {
		logger.FromContext(ctx).Warn("Password rehash failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		logger.FromContext(ctx).Warn("Password rehash not saved", "user_id", user.ID, "error", err)
	}
}

func validateRegister(in RegisterInput) error {
	v := pkgerrors.NewValidationErrors()

	email := strings.TrimSpace(in.Email)
	if email == "" {
		v.AddErrorWithField(pkgerrors.CodeRequired, "email is required", "email")
	} else if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		v.AddErrorWithField(pkgerrors.CodeInvalidArgument, "invalid email format", "email")
	}

	if utf8.RuneCountInString(in.Password) < minPasswordLength {
		v.AddErrorWithField(pkgerrors.CodeInvalidArgument, "password must be at least 8 characters", "password")
	}

	if utf8.RuneCountInString(in.Name) > 100 {
		v.AddErrorWithField(pkgerrors.CodeInvalidArgument, "name must be at most 100 characters", "name")
	}

	if appErr := v.AsError(); appErr != nil {
		return appErr
	}
	return nil
}

func toUserInfo(u *repository.User) *UserInfo {
	return &UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
