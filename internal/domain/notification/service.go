package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/domain/identity"
)

// RecipientLister resolves a role to the enabled users holding it.
type RecipientLister interface {
	ListEnabledByRole(ctx context.Context, role string) ([]*identity.User, error)
}

// Publisher pushes a stored notification to the recipient's open
// connections.
type Publisher interface {
	PublishToUser(ctx context.Context, userID, eventType string, payload any) error
}

// EventCreated is the live event type for a new notification.
const EventCreated = "notification.created"

// Service delivers in-app notifications. Delivery is best effort: it runs
// after the change it reports has committed, so failures are logged and
// never returned to the caller of Notify.
type Service struct {
	repo       Repository
	templates  *TemplateEngine
	recipients RecipientLister
	publisher  Publisher
	logger     zerolog.Logger
}

func NewService(repo Repository, templates *TemplateEngine, recipients RecipientLister) *Service {
	return &Service{repo: repo, templates: templates, recipients: recipients, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l.With().Str("component", "notification").Logger() }

func (s *Service) SetPublisher(p Publisher) { s.publisher = p }

// Notify renders the template for kind and stores it for userID.
func (s *Service) Notify(ctx context.Context, userID, kind string, data map[string]string) {
	if userID == "" {
		return
	}
	title, message, err := s.templates.Render(kind, data)
	if err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Msg("render notification")
		return
	}
	n := &Notification{
		ID:      uuid.New().String(),
		UserID:  userID,
		Kind:    kind,
		Title:   title,
		Message: message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("user_id", userID).Msg("store notification")
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishToUser(ctx, userID, EventCreated, n); err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("push notification")
		}
	}
}

// NotifyRole sends the same notification to every enabled user with role.
func (s *Service) NotifyRole(ctx context.Context, role, kind string, data map[string]string) {
	users, err := s.recipients.ListEnabledByRole(ctx, role)
	if err != nil {
		s.logger.Error().Err(err).Str("role", role).Str("kind", kind).Msg("resolve notification recipients")
		return
	}
	for _, u := range users {
		s.Notify(ctx, u.ID, kind, data)
	}
}

func (s *Service) ListForUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	return s.repo.ListForUser(ctx, userID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
