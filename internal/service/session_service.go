package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/domain/repository"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

// SessionService owns the periodic expiry sweep and the online roster. The
// sweep mirrors a logout for every expired session: sessions are removed,
// presence is recounted per user and flips are broadcast, so a user whose
// last session ages out goes offline without ever sending /logout.
type SessionService struct {
	sessionRepo   repository.SessionRepository
	userRepo      repository.UserRepository
	presenceCache PresenceCache
	broadcaster   EventBroadcaster
	interval      time.Duration
	logger        *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewSessionService creates a new instance of SessionService. interval <= 0
// disables the background sweep; SweepExpired can still be called directly.
func NewSessionService(
	sessionRepo repository.SessionRepository,
	userRepo repository.UserRepository,
	presenceCache PresenceCache,
	broadcaster EventBroadcaster,
	interval time.Duration,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessionRepo:   sessionRepo,
		userRepo:      userRepo,
		presenceCache: presenceCache,
		broadcaster:   broadcaster,
		interval:      interval,
		logger:        logger,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// StartSweeper runs the sweep loop until Stop is called or ctx is canceled.
func (s *SessionService) StartSweeper(ctx context.Context) {
	if s.interval <= 0 {
		close(s.doneCh)
		return
	}
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.SweepExpired(ctx)
			}
		}
	}()
	s.logger.Info("Session sweeper started", zap.Duration("interval", s.interval))
}

// Stop halts the sweep loop and waits for the current pass to finish.
func (s *SessionService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// SweepExpired removes expired sessions and broadcasts presence flips.
func (s *SessionService) SweepExpired(ctx context.Context) {
	now := time.Now().UTC()
	deleted, flipped, err := s.sessionRepo.DeleteExpired(ctx, now)
	if err != nil {
		s.logger.Error("Session sweep failed", zap.Error(err))
	}
	if deleted == 0 && len(flipped) == 0 {
		return
	}

	metrics.SessionsSweptTotal.Add(float64(deleted))
	metrics.ActiveSessionsGauge.Sub(float64(deleted))
	s.logger.Info("Session sweep completed",
		zap.Int64("sessions_deleted", deleted),
		zap.Int("users_flipped_offline", len(flipped)),
	)

	if s.presenceCache != nil && len(flipped) > 0 {
		// Cheaper to rebuild lazily than to patch per user after a bulk sweep.
		s.presenceCache.Invalidate(ctx)
	}
	if s.broadcaster == nil {
		return
	}
	for _, change := range flipped {
		user, err := s.userRepo.GetByID(ctx, change.UserID)
		if err != nil {
			s.logger.Warn("Skipping presence event for unknown user",
				zap.Error(err), zap.String("user_id", change.UserID.String()))
			continue
		}
		s.broadcaster.Broadcast(ctx, models.NewPresenceEvent(models.EventUserLeft, &models.PresenceEvent{
			UserID:   change.UserID,
			Username: user.Username,
			At:       now,
		}))
	}
}

// OnlineUsers returns the usernames of everyone currently online, cache
// first, database as fallback.
func (s *SessionService) OnlineUsers(ctx context.Context) ([]string, error) {
	if s.presenceCache != nil {
		if ids, ok := s.presenceCache.ListOnline(ctx); ok {
			names := make([]string, 0, len(ids))
			for _, id := range ids {
				user, err := s.userRepo.GetByID(ctx, id)
				if err != nil {
					continue
				}
				names = append(names, user.Username)
			}
			metrics.OnlineUsersGauge.Set(float64(len(names)))
			return names, nil
		}
	}

	users, err := s.userRepo.ListOnline(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
		if s.presenceCache != nil {
			s.presenceCache.SetOnline(ctx, u.ID)
		}
	}
	metrics.OnlineUsersGauge.Set(float64(len(names)))
	return names, nil
}

// AllUsers returns every registered username with their presence flag.
func (s *SessionService) AllUsers(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.ListAll(ctx)
}
