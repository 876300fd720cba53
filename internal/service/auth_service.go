package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/ashgrove-labs/chat-service/internal/domain/errors"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
	"github.com/ashgrove-labs/chat-service/internal/infrastructure/security"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

const maxUsernameLength = 64

// AuthService handles registration, login, logout and session validation.
// Presence changes ride on the session lifecycle: the repository reports
// whether a mutation flipped the user's derived presence and this service
// turns flips into broadcast events.
type AuthService struct {
	userRepo        repository.UserRepository
	sessionRepo     repository.SessionRepository
	passwordService security.PasswordService
	tokenGenerator  security.TokenGenerator
	presenceCache   PresenceCache
	broadcaster     EventBroadcaster
	sessionTTL      time.Duration
	logger          *zap.Logger
}

// NewAuthService creates a new instance of AuthService.
func NewAuthService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	passwordService security.PasswordService,
	tokenGenerator security.TokenGenerator,
	presenceCache PresenceCache,
	broadcaster EventBroadcaster,
	sessionTTL time.Duration,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		sessionRepo:     sessionRepo,
		passwordService: passwordService,
		tokenGenerator:  tokenGenerator,
		presenceCache:   presenceCache,
		broadcaster:     broadcaster,
		sessionTTL:      sessionTTL,
		logger:          logger,
	}
}

// Register creates a new account. Usernames are case-sensitive and unique;
// a collision surfaces as ErrDuplicateIdentity.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(username) > maxUsernameLength || strings.ContainsAny(username, " \t\n") {
		return nil, domainErrors.ErrInvalidRequest
	}
	if password == "" {
		return nil, domainErrors.ErrInvalidRequest
	}

	hash, err := s.passwordService.HashPassword(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, domainErrors.ErrInternal
	}

	user := &models.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateIdentity) {
			metrics.RegistrationAttemptsTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		metrics.RegistrationAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to create user", zap.Error(err), zap.String("username", username))
		return nil, domainErrors.ErrStorageUnavailable
	}

	metrics.RegistrationAttemptsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("User registered", zap.String("user_id", user.ID.String()), zap.String("username", username))
	return user, nil
}

// Login verifies credentials and opens a new session. Each login is a new
// device session; existing sessions for the same user are untouched.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.Session, *models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
			return nil, nil, domainErrors.ErrInvalidCredentials
		}
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return nil, nil, domainErrors.ErrStorageUnavailable
	}

	ok, err := s.passwordService.CheckPasswordHash(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("Failed to verify password", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, nil, domainErrors.ErrInternal
	}
	if !ok {
		metrics.LoginAttemptsTotal.WithLabelValues("invalid").Inc()
		return nil, nil, domainErrors.ErrInvalidCredentials
	}

	token, err := s.tokenGenerator.Generate()
	if err != nil {
		s.logger.Error("Failed to generate session token", zap.Error(err))
		return nil, nil, domainErrors.ErrInternal
	}

	now := time.Now().UTC()
	session := &models.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	change, err := s.createSessionWithRetry(ctx, session)
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Failed to create session", zap.Error(err), zap.String("user_id", user.ID.String()))
		return nil, nil, domainErrors.ErrStorageUnavailable
	}

	metrics.LoginAttemptsTotal.WithLabelValues("ok").Inc()
	metrics.ActiveSessionsGauge.Inc()
	s.applyPresenceChange(ctx, change, user.Username)

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
		zap.Bool("presence_flipped", change != nil && change.Flipped),
	)
	return session, user, nil
}

// createSessionWithRetry retries the insert once on a transient failure so a
// blip does not bounce a correct login.
func (s *AuthService) createSessionWithRetry(ctx context.Context, session *models.Session) (*models.PresenceChange, error) {
	change, err := s.sessionRepo.Create(ctx, session)
	if err == nil {
		return change, nil
	}
	if errors.Is(err, domainErrors.ErrUserNotFound) {
		return nil, err
	}
	s.logger.Warn("Session create failed, retrying once", zap.Error(err))
	return s.sessionRepo.Create(ctx, session)
}

// Logout revokes exactly the presented session. With other device sessions
// still live the user stays online; only the last one flips them offline.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return err
	}
	user, err := s.userRepo.GetByID(ctx, session.UserID)
	if err != nil {
		return err
	}

	change, err := s.sessionRepo.Delete(ctx, token)
	if err != nil {
		return err
	}

	metrics.ActiveSessionsGauge.Dec()
	s.applyPresenceChange(ctx, change, user.Username)

	s.logger.Info("User logged out",
		zap.String("user_id", user.ID.String()),
		zap.Bool("presence_flipped", change != nil && change.Flipped),
	)
	return nil
}

// ValidateSession resolves a token to its user. Expired tokens surface as
// ErrSessionExpired, unknown ones as ErrSessionNotFound.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	session, err := s.sessionRepo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.Valid(time.Now().UTC()) {
		return nil, domainErrors.ErrSessionExpired
	}
	return s.userRepo.GetByID(ctx, session.UserID)
}

// applyPresenceChange updates the cache mirror and broadcasts a presence
// event when the mutation actually flipped the user's state.
func (s *AuthService) applyPresenceChange(ctx context.Context, change *models.PresenceChange, username string) {
	if change == nil {
		return
	}
	if s.presenceCache != nil {
		if change.Online {
			s.presenceCache.SetOnline(ctx, change.UserID)
		} else {
			s.presenceCache.SetOffline(ctx, change.UserID)
		}
	}
	if !change.Flipped || s.broadcaster == nil {
		return
	}

	kind := models.EventUserJoined
	if !change.Online {
		kind = models.EventUserLeft
	}
	s.broadcaster.Broadcast(ctx, models.NewPresenceEvent(kind, &models.PresenceEvent{
		UserID:   change.UserID,
		Username: username,
		At:       time.Now().UTC(),
	}))
}
