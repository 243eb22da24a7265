package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/psicopedagogiando/tienda/internal/common"
	"github.com/psicopedagogiando/tienda/internal/dbx"
	"github.com/psicopedagogiando/tienda/internal/server/auth"
	"github.com/psicopedagogiando/tienda/internal/server/config"
	"github.com/psicopedagogiando/tienda/internal/server/models"
	"github.com/psicopedagogiando/tienda/internal/server/repositories/repomanager"
)

// Countries offered at registration.
var Countries = []string{"Argentina", "Bolivia", "Brasil", "Chile", "Colombia", "España", "México", "Uruguay", "Otro"}

const birthDateLayout = "2006-01-02"

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type RegisterInput struct {
	Nombre          string
	Email           string
	Password        string
	Password2       string
	FechaNacimiento string
	Pais            string
	Telefono        string
	AceptaTerminos  bool
}

// ProfileUpdate lists the only fields an owner may change.
type ProfileUpdate struct {
	Email    string
	Telefono string
	Pais     string
}

// UserService handles accounts, sign-in and token rotation.
type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
	}
}

// Register creates a normal account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, common.RoleNormal)
}

// CreateAdmin creates an account with the admin role. It skips the terms
// check since it is only reachable from the operator CLI.
func (s *UserService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.AceptaTerminos = true
	if in.Pais == "" {
		in.Pais = "Otro"
	}
	return s.create(ctx, in, common.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, rol string) (*models.User, error) {
	u, err := s.validateRegistration(in)
	if err != nil {
		return nil, err
	}
	u.Rol = rol

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, common.ErrorInternal
	}
	u.PasswordHash = hash

	created, err := s.repomanager.Users(s.db).Create(ctx, u)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return created, nil
}

func (s *UserService) validateRegistration(in RegisterInput) (*models.User, error) {
	u := &models.User{
		Nombre:   strings.TrimSpace(in.Nombre),
		Telefono: strings.TrimSpace(in.Telefono),
		Pais:     in.Pais,
	}
	if u.Nombre == "" {
		return nil, common.Invalid("nombre", "required")
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	u.Email = email

	if len([]rune(in.Password)) < auth.MinPasswordLength {
		return nil, common.Invalid("password", fmt.Sprintf("must have at least %d characters", auth.MinPasswordLength))
	}
	if in.Password != in.Password2 {
		return nil, common.Invalid("password2", "passwords do not match")
	}
	if !in.AceptaTerminos {
		return nil, common.Invalid("acepta_terminos", "terms must be accepted")
	}
	if !slices.Contains(Countries, in.Pais) {
		return nil, common.Invalid("pais", "unknown country")
	}

	if in.FechaNacimiento != "" {
		d, err := time.Parse(birthDateLayout, in.FechaNacimiento)
		if err != nil {
			return nil, common.Invalid("fecha_nacimiento", "expected YYYY-MM-DD")
		}
		if d.After(s.now()) {
			return nil, common.Invalid("fecha_nacimiento", "must be in the past")
		}
		u.FechaNac = &d
	}
	return u, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", common.Invalid("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", common.Invalid("email", "invalid address")
	}
	return email, nil
}

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash = sync.OnceValue(func() string {
	h, _ := auth.HashPassword("not-a-real-password")
	return h
})

// Login verifies credentials and returns a new TokenPair.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			auth.CheckPassword(dummyHash(), password)
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}
	return s.generateTokenPair(ctx, user, s.db)
}

// RefreshToken validates a refresh token, rotates it transactionally, and
// returns a fresh TokenPair. Expired tokens yield ErrRefreshTokenExpired.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	hash := common.HashToken(refreshToken)

	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, hash)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if token.Expires.Before(s.now()) {
		return nil, common.ErrRefreshTokenExpired
	}

	var pair *TokenPair
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, hash); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}
		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("error loading token owner: %w", err)
		}
		var genErr error
		pair, genErr = s.generateTokenPair(ctx, user, tx)
		return genErr
	}); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes a refresh token. Unknown or empty tokens are ignored.
func (s *UserService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.repomanager.RefreshTokens(s.db).Delete(ctx, common.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("error deleting refresh token: %w", err)
	}
	return nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*models.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(Countries, in.Pais) {
		return nil, common.Invalid("pais", "unknown country")
	}
	return s.repomanager.Users(s.db).UpdateProfile(ctx, userID, email, strings.TrimSpace(in.Telefono), in.Pais)
}

// IsAdmin reads the role from the stored profile.
func (s *UserService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.Rol == common.RoleAdmin, nil
}

// Promote grants the admin role to an existing account.
func (s *UserService) Promote(ctx context.Context, email string) error {
	return s.repomanager.Users(s.db).SetRole(ctx, strings.ToLower(strings.TrimSpace(email)), common.RoleAdmin)
}

// PurgeExpiredTokens removes refresh tokens past their expiry.
func (s *UserService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx, s.now())
}

func (s *UserService) generateTokenPair(ctx context.Context, user *models.User, tx dbx.DBTX) (*TokenPair, error) {
	access, err := auth.GenerateToken(user.ID, user.Email, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.RefreshTokens(tx).Create(ctx, user.ID, common.HashToken(refresh), s.refreshTokenValidityDuration); err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
