package calendarsync

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/meeting-scheduler/backend/internal/config"
	"github.com/meeting-scheduler/backend/internal/storage"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

// recordedCall is one request seen by the fake provider.
type recordedCall struct {
	Method     string
	CalendarID string
	EventID    string
	Body       map[string]any
	Form       map[string]string
}

// fakeGoogle is an httptest server standing in for the token endpoint and the
// Calendar events API.
type fakeGoogle struct {
	*httptest.Server

	mu          sync.Mutex
	calls       []recordedCall
	tokenCalls  []recordedCall
	nextEventID string
	failStatus  int
	deleteCode  int
	tokenStatus int
	expiresIn   int
}

func newFakeGoogle(t *testing.T) *fakeGoogle {
	t.Helper()

	f := &fakeGoogle{nextEventID: "evt-1", expiresIn: 3600}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		form := map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}

		f.mu.Lock()
		f.tokenCalls = append(f.tokenCalls, recordedCall{Method: r.Method, Form: form})
		status, expiresIn := f.tokenStatus, f.expiresIn
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			io.WriteString(w, `{"error":"invalid_grant"}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-token",
			"token_type":   "Bearer",
			"expires_in":   expiresIn,
		})
	})

	mux.HandleFunc("POST /calendar/v3/calendars/{cal}/events", func(w http.ResponseWriter, r *http.Request) {
		call := f.record(r)
		if f.fail(w) {
			return
		}
		f.mu.Lock()
		id := f.nextEventID
		f.mu.Unlock()

		body := call.Body
		body["id"] = id
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("PATCH /calendar/v3/calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		call := f.record(r)
		if f.fail(w) {
			return
		}
		body := call.Body
		body["id"] = call.EventID
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("DELETE /calendar/v3/calendars/{cal}/events/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.fail(w) {
			return
		}
		f.mu.Lock()
		code := f.deleteCode
		f.mu.Unlock()
		if code == 0 {
			code = http.StatusNoContent
		}
		w.WriteHeader(code)
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGoogle) record(r *http.Request) recordedCall {
	call := recordedCall{
		Method:     r.Method,
		CalendarID: r.PathValue("cal"),
		EventID:    r.PathValue("id"),
		Body:       map[string]any{},
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&call.Body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	return call
}

func (f *fakeGoogle) fail(w http.ResponseWriter) bool {
	f.mu.Lock()
	status := f.failStatus
	f.mu.Unlock()
	if status == 0 {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, `{"error":{"code":500,"message":"backend error"}}`)
	return true
}

func (f *fakeGoogle) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func (f *fakeGoogle) TokenCalls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.tokenCalls...)
}

func (f *fakeGoogle) Config() *config.Config {
	return &config.Config{
		Timezone: time.UTC,
		Google: config.Google{
			ClientID:          "client-id",
			ClientSecret:      "client-secret",
			TokenURL:          f.URL + "/token",
			CalendarAPIURL:    f.URL + "/calendar/v3/",
			DefaultCalendarID: "primary",
		},
		Queue: config.Queue{Name: "default"},
	}
}

// memoryMeetings is an in-memory MeetingStore.
type memoryMeetings struct {
	mu       sync.Mutex
	meetings map[string]*models.Meeting
	writes   int
}

func newMemoryMeetings(ms ...*models.Meeting) *memoryMeetings {
	s := &memoryMeetings{meetings: map[string]*models.Meeting{}}
	for _, m := range ms {
		m.Persisted = true
		s.meetings[m.ID] = m.Clone()
	}
	return s
}

func (s *memoryMeetings) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return nil, nil
	}
	c := m.Clone()
	c.User = nil
	return c, nil
}

func (s *memoryMeetings) UpdateSyncState(ctx context.Context, id string, remoteEventID *string, syncedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meetings[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.writes++
	m.RemoteEventID = remoteEventID
	m.SyncedAt = syncedAt
	return nil
}

func (s *memoryMeetings) get(id string) *models.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meetings[id]
}

func (s *memoryMeetings) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.meetings, id)
}

func (s *memoryMeetings) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// memoryUsers is an in-memory UserStore.
type memoryUsers struct {
	mu           sync.Mutex
	users        map[string]*models.User
	tokenUpdates int
}

func newMemoryUsers(us ...*models.User) *memoryUsers {
	s := &memoryUsers{users: map[string]*models.User{}}
	for _, u := range us {
		c := *u
		s.users[u.ID] = &c
	}
	return s
}

func (s *memoryUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (s *memoryUsers) UpdateTokens(ctx context.Context, id, accessToken, refreshToken string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.tokenUpdates++
	u.AccessToken = accessToken
	u.RefreshToken = refreshToken
	u.TokenExpiresAt = &expiresAt
	return nil
}

func (s *memoryUsers) get(id string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func syncingUser() *models.User {
	return &models.User{
		ID:                  "user-1",
		Name:                "Ana",
		Email:               "ana@example.com",
		AccessToken:         "valid-token",
		RefreshToken:        "refresh-token",
		TokenExpiresAt:      ptr(testNow.Add(time.Hour)),
		CalendarSyncEnabled: true,
	}
}

func eligibleMeeting() *models.Meeting {
	return &models.Meeting{
		ID:                   "meeting-1",
		UserID:               "user-1",
		Title:                "Kickoff",
		Description:          ptr("Project kickoff"),
		Location:             ptr("Room A"),
		Visibility:           models.VisibilityPrivate,
		StartAt:              testNow.Add(24 * time.Hour),
		EndAt:                testNow.Add(25 * time.Hour),
		Status:               models.MeetingStatusConfirmed,
		ExternalContactEmail: ptr("a@b.com"),
		ExternalContactName:  ptr("Alex Client"),
	}
}

// memoryTasks is an in-memory TaskStore that hands out tasks in enqueue order.
type memoryTasks struct {
	mu         sync.Mutex
	tasks      []*models.SyncTask
	nextID     int64
	enqueueErr error
	claimErr   error
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{}
}

func (s *memoryTasks) Enqueue(ctx context.Context, t *models.SyncTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.nextID++
	t.ID = s.nextID
	t.Status = models.TaskStatusPending
	c := *t
	s.tasks = append(s.tasks, &c)
	return nil
}

func (s *memoryTasks) ClaimNext(ctx context.Context, queue string) (*models.SyncTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	for _, t := range s.tasks {
		if t.Queue == queue && t.Status == models.TaskStatusPending {
			t.Status = models.TaskStatusRunning
			t.Attempts++
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (s *memoryTasks) Complete(ctx context.Context, id int64) error {
	return s.finish(id, models.TaskStatusDone, nil)
}

func (s *memoryTasks) Fail(ctx context.Context, id int64, reason string) error {
	return s.finish(id, models.TaskStatusFailed, &reason)
}

func (s *memoryTasks) finish(id int64, status string, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			t.Status = status
			t.LastError = reason
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *memoryTasks) all() []*models.SyncTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.SyncTask, len(s.tasks))
	for i, t := range s.tasks {
		c := *t
		out[i] = &c
	}
	return out
}
