package service

import (
	"context"
	"log/slog"
	"strings"

	"wanderfeed/internal/middleware"
	"wanderfeed/internal/models"
	"wanderfeed/internal/observability"
	"wanderfeed/internal/repository"

	"github.com/google/uuid"
)

// IdentityService maps identity-provider subjects to local accounts.
type IdentityService struct {
	users repository.UserRepository
	now   Clock
}

func NewIdentityService(users repository.UserRepository, clock Clock) *IdentityService {
	if clock == nil {
		clock = systemClock
	}
	return &IdentityService{users: users, now: clock}
}

// ProvisionInput describes an identity seen for the first time.
type ProvisionInput struct {
	ExternalID  string
	Username    string
	Email       string
	DisplayName string
	AvatarURL   string
}

func fallbackUsername(in ProvisionInput) string {
	if u := strings.TrimSpace(in.Username); u != "" {
		return u
	}
	if at := strings.Index(in.Email, "@"); at > 0 {
		return in.Email[:at]
	}
	id := in.ExternalID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "traveler_" + id
}

// ResolveOrCreateUser returns the account bound to in.ExternalID, creating
// it on first sight. Concurrent first sightings converge on one row.
func (s *IdentityService) ResolveOrCreateUser(ctx context.Context, in ProvisionInput) (uuid.UUID, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return uuid.Nil, models.NewValidationError("external id is required")
	}

	if existing, err := s.users.GetByExternalID(ctx, in.ExternalID); err == nil {
		return existing.ID, nil
	} else if !models.IsNotFound(err) {
		return uuid.Nil, wrapErr(err)
	}

	username := fallbackUsername(in)
	display := strings.TrimSpace(in.DisplayName)
	if display == "" {
		display = username
	}
	ext := in.ExternalID
	user := &models.User{
		ExternalID:         &ext,
		Username:           username,
		Email:              strings.TrimSpace(in.Email),
		DisplayName:        display,
		ProfileImageURL:    in.AvatarURL,
		AllowMessages:      true,
		EmailNotifications: true,
		TravelStyle:        models.StringList{},
		LastActive:         s.now(),
	}
	created, err := s.users.InsertIfAbsentByExternalID(ctx, user)
	if err != nil {
		return uuid.Nil, wrapErr(err)
	}
	if created {
		middleware.Logger.InfoContext(ctx, "user provisioned",
			slog.String("user_id", user.ID.String()),
			slog.String("username", username),
		)
		return user.ID, nil
	}

	winner, err := s.users.GetByExternalID(ctx, in.ExternalID)
	if err != nil {
		return uuid.Nil, wrapErr(err)
	}
	return winner.ID, nil
}

// HandleIdentityEvent applies one lifecycle event. Unknown event types are
// acknowledged and ignored.
func (s *IdentityService) HandleIdentityEvent(ctx context.Context, ev models.IdentityEvent) (err error) {
	defer func() {
		observability.IdentityEventsTotal.WithLabelValues(ev.Type, observability.OutcomeOf(err)).Inc()
	}()

	if strings.TrimSpace(ev.Data.ID) == "" {
		return models.NewValidationError("identity event without user id")
	}

	switch ev.Type {
	case models.IdentityUserCreated:
		_, err = s.ResolveOrCreateUser(ctx, provisionFromEvent(ev.Data))
		return err
	case models.IdentityUserUpdated:
		return s.syncIdentity(ctx, ev.Data)
	case models.IdentityUserDeleted:
		return s.deactivate(ctx, ev.Data.ID)
	default:
		middleware.Logger.DebugContext(ctx, "ignoring identity event", slog.String("type", ev.Type))
		return nil
	}
}

func provisionFromEvent(d models.IdentityEventData) ProvisionInput {
	return ProvisionInput{
		ExternalID:  d.ID,
		Username:    d.Username,
		Email:       d.PrimaryEmail(),
		DisplayName: d.DisplayName(),
		AvatarURL:   d.ImageURL,
	}
}

func (s *IdentityService) syncIdentity(ctx context.Context, d models.IdentityEventData) error {
	user, err := s.users.GetByExternalID(ctx, d.ID)
	if models.IsNotFound(err) {
		_, err = s.ResolveOrCreateUser(ctx, provisionFromEvent(d))
		return err
	}
	if err != nil {
		return wrapErr(err)
	}

	err = s.users.UpdateIdentity(ctx, user.ID, repository.IdentityFields{
		Username:        d.Username,
		Email:           d.PrimaryEmail(),
		DisplayName:     d.DisplayName(),
		ProfileImageURL: d.ImageURL,
		LastActive:      s.now(),
	})
	if err != nil {
		return wrapErr(err)
	}
	s.users.InvalidateCache(ctx, user.ID)
	return nil
}

func (s *IdentityService) deactivate(ctx context.Context, externalID string) error {
	user, err := s.users.GetByExternalID(ctx, externalID)
	if models.IsNotFound(err) {
		middleware.Logger.InfoContext(ctx, "deactivation for unknown identity", slog.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return wrapErr(err)
	}
	if user.IsDeactivated() {
		return nil
	}
	if err := s.users.Deactivate(ctx, user.ID, s.now()); err != nil {
		return wrapErr(err)
	}
	s.users.InvalidateCache(ctx, user.ID)
	middleware.Logger.InfoContext(ctx, "user deactivated", slog.String("user_id", user.ID.String()))
	return nil
}
