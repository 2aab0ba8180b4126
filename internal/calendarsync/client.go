package calendarsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// defaultTokenLifetime is used when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// Outcome describes what a client call did. It is informational only.
type Outcome string

const (
	OutcomeSkipped Outcome = "skipped"
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeDeleted Outcome = "deleted"
	OutcomeCleared Outcome = "cleared"
	OutcomeFailed  Outcome = "failed"
)

// MeetingStore is the meeting persistence the client and dispatcher need.
type MeetingStore interface {
	GetByID(ctx context.Context, id string) (*models.Meeting, error)
	UpdateSyncState(ctx context.Context, id string, remoteEventID *string, syncedAt *time.Time) error
}

// UserStore is the user persistence the client and dispatcher need.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error
}

// GoogleClient creates, updates and removes Google Calendar events for meetings
// and keeps the owning user's access token fresh.
type GoogleClient struct {
	cfg        *config.Config
	meetings   MeetingStore
	users      UserStore
	httpClient *http.Client
	logger     logrus.FieldLogger
	now        func() time.Time
}

// ClientOption customizes a GoogleClient.
type ClientOption func(*GoogleClient)

// WithHTTPClient sets the transport used for token and calendar calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GoogleClient) { g.httpClient = c }
}

// WithLogger sets the logger for failure events.
func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(g *GoogleClient) { g.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ClientOption {
	return func(g *GoogleClient) { g.now = now }
}

// NewGoogleClient creates a client bound to the resolved configuration.
func NewGoogleClient(cfg *config.Config, meetings MeetingStore, users UserStore, opts ...ClientOption) *GoogleClient {
	g := &GoogleClient{
		cfg:        cfg,
		meetings:   meetings,
		users:      users,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logrus.StandardLogger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SyncMeeting creates the remote event for an unsynced meeting or patches the
// existing one. Only meetings read from storage are synced. The meeting's sync
// fields change only after the provider confirms the write.
func (g *GoogleClient) SyncMeeting(ctx context.Context, m *models.Meeting) Outcome {
	if !m.ShouldSync() {
		return OutcomeSkipped
	}
	// A meeting rebuilt from a task snapshot no longer exists locally and
	// must not be pushed.
	if !m.Persisted {
		return OutcomeSkipped
	}

	user := g.owner(ctx, m)
	if user == nil || !user.PrefersCalendarSync() {
		return OutcomeSkipped
	}
	if !g.EnsureValidAccessToken(ctx, user) {
		return OutcomeFailed
	}

	fields := logrus.Fields{"meeting_id": m.ID, "user_id": user.ID}

	svc, err := g.service(ctx, user)
	if err != nil {
		g.logger.WithFields(fields).WithError(err).Error("Failed to sync meeting to Google Calendar")
		return OutcomeFailed
	}

	calendarID := g.cfg.CalendarID(models.Value(user.CalendarID))
	event := BuildEvent(m, g.cfg.Timezone)

	outcome := OutcomeUpdated
	remoteID := models.Value(m.RemoteEventID)
	if remoteID != "" {
		_, err = svc.Events.Patch(calendarID, remoteID, event).Context(ctx).Do()
	} else {
		var created *calendar.Event
		created, err = svc.Events.Insert(calendarID, event).Context(ctx).Do()
		if err == nil && created.Id == "" {
			err = errors.New("provider returned an event without an id")
		}
		if err == nil {
			remoteID = created.Id
			outcome = OutcomeCreated
		}
	}
	if err != nil {
		g.logger.WithFields(fields).WithError(err).Error("Failed to sync meeting to Google Calendar")
		return OutcomeFailed
	}

	syncedAt := g.now()
	if err := g.persist(ctx, m, &remoteID, &syncedAt); err != nil {
		g.logger.WithFields(fields).WithError(err).Error("Failed to record calendar sync state")
		if outcome == OutcomeCreated && errors.Is(err, storage.ErrNotFound) {
			// The meeting was deleted while the event was being created.
			if err := svc.Events.Delete(calendarID, remoteID).Context(ctx).Do(); err != nil && !isGone(err) {
				g.logger.WithFields(fields).WithError(err).Warn("Failed to remove Google Calendar event")
			}
		}
		return OutcomeFailed
	}

	return outcome
}

// DeleteMeeting removes the remote event for the meeting. A meeting without a
// remote event is already consistent and only has its sync fields cleared.
func (g *GoogleClient) DeleteMeeting(ctx context.Context, m *models.Meeting) Outcome {
	if !m.HasRemoteEvent() {
		if err := g.persist(ctx, m, nil, nil); err != nil {
			g.logger.WithField("meeting_id", m.ID).WithError(err).Warn("Failed to clear calendar sync state")
			return OutcomeFailed
		}
		return OutcomeCleared
	}

	user := g.owner(ctx, m)
	if user == nil || !user.PrefersCalendarSync() {
		return OutcomeSkipped
	}
	if !g.EnsureValidAccessToken(ctx, user) {
		return OutcomeFailed
	}

	fields := logrus.Fields{"meeting_id": m.ID, "user_id": user.ID}

	svc, err := g.service(ctx, user)
	if err != nil {
		g.logger.WithFields(fields).WithError(err).Warn("Failed to remove Google Calendar event")
		return OutcomeFailed
	}

	calendarID := g.cfg.CalendarID(models.Value(user.CalendarID))
	err = svc.Events.Delete(calendarID, models.Value(m.RemoteEventID)).Context(ctx).Do()
	if err != nil && !isGone(err) {
		g.logger.WithFields(fields).WithError(err).Warn("Failed to remove Google Calendar event")
		return OutcomeFailed
	}

	if err := g.persist(ctx, m, nil, nil); err != nil {
		g.logger.WithFields(fields).WithError(err).Warn("Failed to clear calendar sync state")
		return OutcomeFailed
	}

	return OutcomeDeleted
}

// EnsureValidAccessToken makes sure the user holds an unexpired access token,
// exchanging the refresh token when needed. The new token is persisted and
// written onto u.
func (g *GoogleClient) EnsureValidAccessToken(ctx context.Context, u *models.User) bool {
	now := g.now()
	if u.HasValidAccessToken(now) {
		return true
	}
	if u.RefreshToken == "" {
		return false
	}

	conf := &oauth2.Config{
		ClientID:     g.cfg.Google.ClientID,
		ClientSecret: g.cfg.Google.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  g.cfg.Google.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	tok, err := conf.TokenSource(g.oauthContext(ctx), &oauth2.Token{RefreshToken: u.RefreshToken}).Token()
	if err != nil {
		g.logger.WithField("user_id", u.ID).WithError(err).Error("Failed to refresh Google access token")
		return false
	}

	expiresAt := now.Add(defaultTokenLifetime)
	switch {
	case tok.ExpiresIn > 0:
		expiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		expiresAt = tok.Expiry.UTC()
	}
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = u.RefreshToken
	}

	if err := g.users.UpdateTokens(ctx, u.ID, tok.AccessToken, refresh, expiresAt); err != nil {
		g.logger.WithField("user_id", u.ID).WithError(err).Error("Failed to store refreshed Google access token")
		return false
	}

	u.AccessToken = tok.AccessToken
	u.RefreshToken = refresh
	u.TokenExpiresAt = &expiresAt

	return u.HasValidAccessToken(now)
}

// owner returns the attached user or loads it by the meeting's user id.
func (g *GoogleClient) owner(ctx context.Context, m *models.Meeting) *models.User {
	if m.User != nil {
		return m.User
	}
	if m.UserID == "" {
		return nil
	}

	u, err := g.users.GetByID(ctx, m.UserID)
	if err != nil {
		g.logger.WithFields(logrus.Fields{"meeting_id": m.ID, "user_id": m.UserID}).
			WithError(err).Warn("Failed to load meeting owner")
		return nil
	}
	m.User = u
	return u
}

// persist writes the sync fields for stored meetings and mirrors them onto m.
func (g *GoogleClient) persist(ctx context.Context, m *models.Meeting, remoteEventID *string, syncedAt *time.Time) error {
	unchanged := remoteEventID == nil && syncedAt == nil && m.RemoteEventID == nil && m.SyncedAt == nil
	if m.Persisted && !unchanged {
		if err := g.meetings.UpdateSyncState(ctx, m.ID, remoteEventID, syncedAt); err != nil {
			return fmt.Errorf("updating sync state: %w", err)
		}
	}
	m.RemoteEventID = remoteEventID
	m.SyncedAt = syncedAt
	return nil
}

func (g *GoogleClient) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.httpClient)
}

func (g *GoogleClient) service(ctx context.Context, u *models.User) (*calendar.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: u.AccessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(g.oauthContext(ctx), ts)

	svc, err := calendar.NewService(ctx,
		option.WithHTTPClient(hc),
		option.WithEndpoint(g.cfg.Google.CalendarAPIURL),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return svc, nil
}

// isGone reports whether the provider says the event no longer exists.
func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
