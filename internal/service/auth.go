package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/deeplink"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/repository"
	"github.com/templui/campus/internal/session"
	"github.com/templui/campus/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid or expired confirmation link")
	ErrNoSession          = errors.New("not signed in")
)

const confirmationMessage = "Check your email for a confirmation link to finish creating your account."

// SessionStore persists the signed-in session between launches.
type SessionStore interface {
	Load() (*session.State, error)
	Save(state *session.State) error
	Clear() error
}

type SignUpInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Name            string
	Role            string
	Department      string
	Year            string
	Bio             string
	Phone           string
}

// SignUpResult distinguishes a usable session from an account that still
// has to confirm its email. The latter is not an error.
type SignUpResult struct {
	User                   *model.User
	Session                *model.Session
	NeedsEmailConfirmation bool
	Message                string
}

type AuthService struct {
	userRepository         repository.UserRepository
	profileRepository      repository.ProfileRepository
	tokenRepository        repository.TokenRepository
	emailService           *EmailService
	sessions               SessionStore
	jwtSecret              string
	jwtExpiry              time.Duration
	tokenEmailVerifyExpiry time.Duration
	deepLinkScheme         string
	autoConfirm            bool
}

func NewAuthService(
	userRepository repository.UserRepository,
	profileRepository repository.ProfileRepository,
	tokenRepository repository.TokenRepository,
	emailService *EmailService,
	sessions SessionStore,
	jwtSecret string,
	jwtExpiry time.Duration,
	tokenEmailVerifyExpiry time.Duration,
	deepLinkScheme string,
	autoConfirm bool,
) *AuthService {
	return &AuthService{
		userRepository:         userRepository,
		profileRepository:      profileRepository,
		tokenRepository:        tokenRepository,
		emailService:           emailService,
		sessions:               sessions,
		jwtSecret:              jwtSecret,
		jwtExpiry:              jwtExpiry,
		tokenEmailVerifyExpiry: tokenEmailVerifyExpiry,
		deepLinkScheme:         deepLinkScheme,
		autoConfirm:            autoConfirm,
	}
}

func (in SignUpInput) validate() error {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return err
	}
	if err := validation.ValidatePasswordConfirmation(in.Password, in.ConfirmPassword); err != nil {
		return err
	}
	if err := validation.ValidateName(in.Name); err != nil {
		return err
	}
	if err := validation.ValidateRole(in.Role); err != nil {
		return err
	}
	return validation.ValidatePhone(in.Phone)
}

// SignUp creates the account with its metadata. Unless auto-confirm is on,
// the account has no session until the emailed link is opened.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if err := in.validate(); err != nil {
		return nil, invalid(err)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Email:        in.Email,
		PasswordHash: &hash,
		Metadata: model.UserMetadata{
			Name:       strings.TrimSpace(in.Name),
			Role:       in.Role,
			Department: strings.TrimSpace(in.Department),
			Year:       strings.TrimSpace(in.Year),
			Bio:        strings.TrimSpace(in.Bio),
			Phone:      strings.TrimSpace(in.Phone),
		},
		CreatedAt: time.Now().UTC(),
	}

	err = s.userRepository.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperrors.Rejectedf("An account with this email already exists", ErrEmailAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user signed up", "user_id", user.ID, "email", user.Email, "role", user.Metadata.Role)

	if s.autoConfirm {
		sess, err := s.confirm(ctx, user)
		if err != nil {
			return nil, err
		}
		return &SignUpResult{User: user, Session: sess}, nil
	}

	err = s.sendConfirmation(ctx, user)
	if err != nil {
		return nil, err
	}

	return &SignUpResult{
		User:                   user,
		NeedsEmailConfirmation: !user.IsConfirmed(),
		Message:                confirmationMessage,
	}, nil
}

// sendConfirmation issues a fresh PKCE-bound code and mails the deep link.
// The verifier stays on this device.
func (s *AuthService) sendConfirmation(ctx context.Context, user *model.User) error {
	err := s.tokenRepository.DeleteByUserAndType(ctx, user.ID, model.TokenTypeEmailConfirm)
	if err != nil {
		slog.Warn("failed to delete old confirmation tokens", "error", err, "user_id", user.ID)
	}

	code, err := s.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	verifier := oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)

	token := &model.Token{
		UserID:        user.ID,
		Type:          model.TokenTypeEmailConfirm,
		Token:         code,
		CodeChallenge: &challenge,
		ExpiresAt:     time.Now().UTC().Add(s.tokenEmailVerifyExpiry),
	}
	err = s.tokenRepository.Create(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	state, err := s.sessions.Load()
	if err != nil {
		state = &session.State{}
	}
	state.PendingVerifier = verifier
	state.PendingEmail = user.Email
	err = s.sessions.Save(state)
	if err != nil {
		return fmt.Errorf("failed to save verifier: %w", err)
	}

	link := deeplink.AuthCallback(s.deepLinkScheme, code)
	err = s.emailService.SendConfirmationEmail(ctx, user.Email, link, user.Metadata.Name)
	if err != nil {
		slog.Error("failed to send confirmation email", "error", err, "email", user.Email)
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

// ResendConfirmation mails a new link to an unconfirmed account.
// Unknown and confirmed addresses succeed silently to prevent enumeration.
func (s *AuthService) ResendConfirmation(ctx context.Context, email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validation.ValidateEmail(email); err != nil {
		return invalid(err)
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		slog.Info("confirmation requested for non-existent email", "email", email)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.IsConfirmed() {
		return nil
	}

	return s.sendConfirmation(ctx, user)
}

// ExchangeCode completes sign-up from the deep link opened on this device.
func (s *AuthService) ExchangeCode(ctx context.Context, callbackURL string) (*model.Session, error) {
	code, err := deeplink.ParseAuthCallback(s.deepLinkScheme, callbackURL)
	if err != nil {
		var cbErr *deeplink.CallbackError
		if errors.As(err, &cbErr) {
			return nil, apperrors.Rejectedf(cbErr.Error(), err)
		}
		return nil, invalid(err)
	}

	state, err := s.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	// ConsumeToken atomically marks token as used (prevents race conditions)
	token, err := s.tokenRepository.ConsumeToken(ctx, code)
	if errors.Is(err, repository.ErrTokenNotFound) {
		return nil, apperrors.Rejectedf("This confirmation link is invalid or has expired", ErrInvalidCode)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume token: %w", err)
	}
	if token.Type != model.TokenTypeEmailConfirm {
		return nil, apperrors.Rejectedf("This confirmation link is invalid or has expired", ErrInvalidCode)
	}
	if token.CodeChallenge != nil && oauth2.S256ChallengeFromVerifier(state.PendingVerifier) != *token.CodeChallenge {
		slog.Warn("confirmation code used without matching verifier", "user_id", token.UserID)
		return nil, apperrors.Rejectedf("Open the confirmation link on the device you signed up with", ErrInvalidCode)
	}

	user, err := s.userRepository.ByID(ctx, token.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return s.confirm(ctx, user)
}

// confirm marks the email verified, materializes the profile from the
// sign-up metadata and starts a session.
func (s *AuthService) confirm(ctx context.Context, user *model.User) (*model.Session, error) {
	if !user.IsConfirmed() {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
		err := s.userRepository.MarkVerified(ctx, user)
		if err != nil {
			return nil, fmt.Errorf("failed to verify email: %w", err)
		}
	}

	created, err := s.ensureProfile(ctx, user)
	if err != nil {
		return nil, err
	}
	if created {
		err = s.emailService.SendWelcomeEmail(ctx, user.Email, user.Metadata.Name)
		if err != nil {
			slog.Warn("failed to send welcome email", "error", err, "email", user.Email)
		}
	}

	slog.Info("email confirmed", "user_id", user.ID, "email", user.Email)
	return s.startSession(user)
}

func (s *AuthService) ensureProfile(ctx context.Context, user *model.User) (bool, error) {
	_, err := s.profileRepository.ByID(ctx, user.ID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return false, fmt.Errorf("failed to get profile: %w", err)
	}

	meta := user.Metadata
	profile := &model.Profile{
		ID:         user.ID,
		Email:      user.Email,
		Name:       meta.Name,
		Role:       meta.Role,
		Department: optional(meta.Department),
		Year:       optional(meta.Year),
		Bio:        optional(meta.Bio),
		Phone:      optional(meta.Phone),
	}
	if profile.Role == "" {
		profile.Role = model.RoleStudent
	}

	err = s.profileRepository.Create(ctx, profile)
	if err != nil {
		return false, fmt.Errorf("failed to create profile: %w", err)
	}
	return true, nil
}

// SignIn authenticates with email and password and persists the session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid(err)
	}
	if password == "" {
		return nil, apperrors.Validationf("password is required")
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperrors.Rejectedf("Invalid email or password", ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !user.HasPassword() || s.ComparePassword(password, *user.PasswordHash) != nil {
		return nil, apperrors.Rejectedf("Invalid email or password", ErrInvalidCredentials)
	}

	if !user.IsConfirmed() {
		return nil, apperrors.Rejectedf("Confirm your email before signing in", ErrEmailNotVerified)
	}

	// accounts confirmed before their profile existed
	_, err = s.ensureProfile(ctx, user)
	if err != nil {
		return nil, err
	}

	return s.startSession(user)
}

func (s *AuthService) startSession(user *model.User) (*model.Session, error) {
	expiresAt := time.Now().Add(s.jwtExpiry)
	accessToken, err := s.GenerateJWT(user, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	sess := &model.Session{
		AccessToken: accessToken,
		ExpiresAt:   expiresAt.UTC(),
		UserID:      user.ID,
		Email:       user.Email,
	}

	err = s.sessions.Save(&session.State{Session: sess})
	if err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// Restore returns the persisted session if its token is still valid.
func (s *AuthService) Restore(ctx context.Context) (*model.Session, error) {
	state, err := s.sessions.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if state.Session == nil {
		return nil, apperrors.Rejectedf("Sign in to continue", ErrNoSession)
	}

	claims, err := s.VerifyJWT(state.Session.AccessToken)
	if err != nil {
		slog.Info("stored session rejected", "error", err)
		if clearErr := s.sessions.Clear(); clearErr != nil {
			slog.Warn("failed to clear session", "error", clearErr)
		}
		return nil, apperrors.Rejectedf("Your session has expired, sign in again", ErrNoSession)
	}

	userID, _ := claims["user_id"].(string)
	if userID != state.Session.UserID {
		return nil, apperrors.Rejectedf("Sign in to continue", ErrNoSession)
	}

	return state.Session, nil
}

func (s *AuthService) SignOut(ctx context.Context) error {
	err := s.sessions.Clear()
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	slog.Info("signed out")
	return nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateToken() (string, error) {
	bytes := make([]byte, 32)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func (s *AuthService) GenerateJWT(user *model.User, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
