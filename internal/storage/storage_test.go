package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meeting-scheduler/backend/internal/storage/models"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(db))
	return db
}

func strPtr(s string) *string { return &s }

func createUser(t *testing.T, repo *UserRepository, id, email string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Name: id, Email: email}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestRunMigrations_IsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db))

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n))
	assert.Equal(t, 4, n)
	assert.Equal(t, "test.db", filepath.Base(db.Path()))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	u := &models.User{Name: "Ana", Email: "  Ana@Example.COM "}
	require.NoError(t, repo.Create(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ana@example.com", u.Email)

	byEmail, err := repo.GetByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	missing, err := repo.GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.Error(t, repo.Create(ctx, &models.User{Name: "Dup", Email: "ana@example.com"}))

	u.CalendarSyncEnabled = true
	u.CalendarID = strPtr("team@group.calendar.google.com")
	u.RefreshToken = "refresh"
	require.NoError(t, repo.UpdateCalendarSettings(ctx, u))

	expires := baseTime.Add(time.Hour)
	require.NoError(t, repo.UpdateTokens(ctx, u.ID, "access", "refresh-2", expires))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.CalendarSyncEnabled)
	assert.Equal(t, "team@group.calendar.google.com", models.Value(got.CalendarID))
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "refresh-2", got.RefreshToken)
	require.NotNil(t, got.TokenExpiresAt)
	assert.True(t, got.TokenExpiresAt.Equal(expires))

	assert.ErrorIs(t, repo.UpdateTokens(ctx, "nope", "a", "b", expires), ErrNotFound)

	createUser(t, repo, "zed", "zed@example.com")
	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Ana", users[0].Name)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMeetingRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	repo := NewMeetingRepository(db)
	createUser(t, users, "u1", "u1@example.com")
	createUser(t, users, "u2", "u2@example.com")

	m := &models.Meeting{
		UserID:               "u1",
		Title:                "Kickoff",
		Location:             strPtr("Room A"),
		Category:             strPtr("sales"),
		Visibility:           models.VisibilityTeam,
		StartAt:              baseTime.Add(500 * time.Millisecond),
		EndAt:                baseTime.Add(time.Hour),
		Status:               models.MeetingStatusConfirmed,
		ExternalContactEmail: strPtr("a@b.com"),
		ResponsibleIDs:       []string{"u2", "u1", "u2"},
	}
	require.NoError(t, repo.Create(ctx, m))
	assert.NotEmpty(t, m.ID)
	assert.True(t, m.Persisted)
	assert.Equal(t, baseTime, m.StartAt)

	got, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Persisted)
	assert.Equal(t, "Kickoff", got.Title)
	assert.Equal(t, "Room A", models.Value(got.Location))
	assert.Nil(t, got.Description)
	assert.True(t, got.StartAt.Equal(baseTime))
	assert.Equal(t, []string{"u1", "u2"}, got.ResponsibleIDs)

	got.Title = "Kickoff v2"
	got.ResponsibleIDs = []string{"u1"}
	got.RemoteEventID = strPtr("ignored")
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kickoff v2", got.Title)
	assert.Equal(t, []string{"u1"}, got.ResponsibleIDs)
	assert.Nil(t, got.RemoteEventID)

	syncedAt := baseTime.Add(2 * time.Hour)
	require.NoError(t, repo.UpdateSyncState(ctx, m.ID, strPtr("evt-1"), &syncedAt))
	got, _ = repo.GetByID(ctx, m.ID)
	assert.Equal(t, "evt-1", models.Value(got.RemoteEventID))
	assert.True(t, got.SyncedAt.Equal(syncedAt))

	synced, err := repo.Count(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	require.NoError(t, repo.UpdateSyncState(ctx, m.ID, nil, nil))
	got, _ = repo.GetByID(ctx, m.ID)
	assert.Nil(t, got.RemoteEventID)
	assert.Nil(t, got.SyncedAt)

	assert.ErrorIs(t, repo.UpdateSyncState(ctx, "nope", nil, nil), ErrNotFound)

	require.NoError(t, repo.Delete(ctx, m.ID))
	assert.ErrorIs(t, repo.Delete(ctx, m.ID), ErrNotFound)

	ids, err := repo.GetResponsibles(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	gone, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestMeetingRepository_ListAndCategories(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, NewUserRepository(db), "u1", "u1@example.com")
	createUser(t, NewUserRepository(db), "u2", "u2@example.com")
	repo := NewMeetingRepository(db)

	add := func(user, title, category, status string, start time.Time) {
		m := &models.Meeting{
			UserID:     user,
			Title:      title,
			Category:   models.OptionalString(category),
			Visibility: models.VisibilityPrivate,
			StartAt:    start,
			EndAt:      start.Add(time.Hour),
			Status:     status,
		}
		require.NoError(t, repo.Create(ctx, m))
	}
	add("u1", "B", "sales", models.MeetingStatusConfirmed, baseTime.Add(2*time.Hour))
	add("u1", "A", "", models.MeetingStatusPending, baseTime)
	add("u2", "C", "support", models.MeetingStatusConfirmed, baseTime.Add(48*time.Hour))

	all, err := repo.List(ctx, MeetingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "A", all[0].Title)
	assert.Equal(t, "B", all[1].Title)

	mine, err := repo.List(ctx, MeetingFilter{UserID: "u1", Status: models.MeetingStatusConfirmed})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "B", mine[0].Title)

	window, err := repo.List(ctx, MeetingFilter{From: baseTime.Add(30 * time.Minute), To: baseTime.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, window, 2)

	sales, err := repo.List(ctx, MeetingFilter{Category: "sales"})
	require.NoError(t, err)
	require.Len(t, sales, 1)

	categories, err := repo.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "support"}, categories)
}

func TestMeetingRepository_ListOverlapping(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepository(db)
	for _, id := range []string{"u1", "u2", "u3"} {
		createUser(t, users, id, id+"@example.com")
	}
	repo := NewMeetingRepository(db)

	existing := &models.Meeting{
		UserID:         "u1",
		Title:          "Existing",
		Location:       strPtr("Room A"),
		Visibility:     models.VisibilityPrivate,
		StartAt:        baseTime,
		EndAt:          baseTime.Add(time.Hour),
		Status:         models.MeetingStatusConfirmed,
		ResponsibleIDs: []string{"u1", "u2"},
	}
	require.NoError(t, repo.Create(ctx, existing))

	cancelled := &models.Meeting{
		UserID:         "u3",
		Title:          "Cancelled",
		Location:       strPtr("Room A"),
		Visibility:     models.VisibilityPrivate,
		StartAt:        baseTime,
		EndAt:          baseTime.Add(time.Hour),
		Status:         models.MeetingStatusCancelled,
		ResponsibleIDs: []string{"u3"},
	}
	require.NoError(t, repo.Create(ctx, cancelled))

	tests := []struct {
		name         string
		start, end   time.Time
		location     string
		responsibles []string
		exclude      string
		expect       int
	}{
		{"same room overlapping", baseTime.Add(30 * time.Minute), baseTime.Add(90 * time.Minute), "Room A", nil, "", 1},
		{"shared responsible", baseTime, baseTime.Add(time.Hour), "Room B", []string{"u2"}, "", 1},
		{"back to back", baseTime.Add(time.Hour), baseTime.Add(2 * time.Hour), "Room A", []string{"u1"}, "", 0},
		{"ends at start", baseTime.Add(-time.Hour), baseTime, "Room A", nil, "", 0},
		{"other room other people", baseTime, baseTime.Add(time.Hour), "Room B", []string{"u3"}, "", 0},
		{"excluded self", baseTime, baseTime.Add(time.Hour), "Room A", []string{"u1"}, existing.ID, 0},
		{"nothing to match", baseTime, baseTime.Add(time.Hour), "", nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := repo.ListOverlapping(ctx, tt.start, tt.end, tt.location, tt.responsibles, tt.exclude)
			require.NoError(t, err)
			assert.Len(t, found, tt.expect)
		})
	}
}

func TestMeetingRepository_DeletingOwnerCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, NewUserRepository(db), "u1", "u1@example.com")
	repo := NewMeetingRepository(db)

	m := &models.Meeting{
		UserID: "u1", Title: "T", Visibility: models.VisibilityPrivate,
		StartAt: baseTime, EndAt: baseTime.Add(time.Hour), Status: models.MeetingStatusPending,
	}
	require.NoError(t, repo.Create(ctx, m))

	_, err := db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", "u1")
	require.NoError(t, err)

	n, err := repo.Count(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestContactRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewContactRepository(db)

	ana := &models.ExternalContact{Name: "Ana Client", Email: " Ana@Acme.COM ", Company: strPtr("Acme")}
	bob := &models.ExternalContact{Name: "Bob Buyer", Email: "bob@globex.com", Phone: strPtr("+1 555 0100")}
	cleo := &models.ExternalContact{Name: "Cleo", Email: "cleo@initech.com", Company: strPtr("Acme Labs")}
	for _, c := range []*models.ExternalContact{bob, cleo, ana} {
		require.NoError(t, repo.Create(ctx, c))
		assert.NotEmpty(t, c.ID)
	}

	got, err := repo.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ana@acme.com", got.Email)
	assert.Equal(t, "Acme", models.Value(got.Company))
	assert.Nil(t, got.Phone)

	missing, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	names := func(list []models.ExternalContact) []string {
		out := []string{}
		for _, c := range list {
			out = append(out, c.Name)
		}
		return out
	}

	all, err := repo.Search(ctx, "", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Client", "Bob Buyer", "Cleo"}, names(all))

	byCompany, err := repo.Search(ctx, "ACME", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Client", "Cleo"}, names(byCompany))

	excluded, err := repo.Search(ctx, "acme", []string{ana.ID}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cleo"}, names(excluded))

	limited, err := repo.Search(ctx, "", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana Client"}, names(limited))

	none, err := repo.Search(ctx, "nobody", nil, 0)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	bob.Company = strPtr("Globex")
	require.NoError(t, repo.Update(ctx, bob))
	got, err = repo.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", models.Value(got.Company))
	assert.ErrorIs(t, repo.Update(ctx, &models.ExternalContact{ID: "missing", Name: "x", Email: "x@y.z"}), ErrNotFound)
}

func TestContactRepository_MeetingLinks(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	contacts := NewContactRepository(db)
	meetings := NewMeetingRepository(db)
	createUser(t, NewUserRepository(db), "u1", "u1@example.com")

	ana := &models.ExternalContact{Name: "Ana", Email: "ana@acme.com"}
	bob := &models.ExternalContact{Name: "Bob", Email: "bob@globex.com"}
	require.NoError(t, contacts.Create(ctx, ana))
	require.NoError(t, contacts.Create(ctx, bob))

	m := &models.Meeting{
		UserID:     "u1",
		Title:      "Kickoff",
		Visibility: models.VisibilityPrivate,
		StartAt:    baseTime,
		EndAt:      baseTime.Add(time.Hour),
		Status:     models.MeetingStatusPending,
		ContactIDs: []string{bob.ID, ana.ID},
	}
	require.NoError(t, meetings.Create(ctx, m))

	linked, err := contacts.ListForMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, linked, 2)
	assert.Equal(t, "Ana", linked[0].Name)
	assert.Equal(t, "Bob", linked[1].Name)

	got, err := meetings.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{ana.ID, bob.ID}, got.ContactIDs)

	got.ContactIDs = []string{ana.ID}
	require.NoError(t, meetings.Update(ctx, got))
	ids, err := meetings.GetContacts(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{ana.ID}, ids)

	require.NoError(t, contacts.Delete(ctx, ana.ID))
	assert.ErrorIs(t, contacts.Delete(ctx, ana.ID), ErrNotFound)

	list, err := meetings.List(ctx, MeetingFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].ContactIDs)

	require.NoError(t, meetings.Delete(ctx, m.ID))
	linked, err = contacts.ListForMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Empty(t, linked)
}

func enqueue(t *testing.T, repo *TaskRepository, queue, meetingID string) *models.SyncTask {
	t.Helper()
	task := &models.SyncTask{
		Queue:     queue,
		Action:    models.SyncActionSync,
		MeetingID: meetingID,
		UserID:    "u1",
		Payload:   `{"action":"sync"}`,
	}
	require.NoError(t, repo.Enqueue(context.Background(), task))
	return task
}

func TestTaskRepository_ClaimSerializesPerMeeting(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	first := enqueue(t, repo, "default", "m-1")
	second := enqueue(t, repo, "default", "m-1")
	other := enqueue(t, repo, "default", "m-2")
	enqueue(t, repo, "reports", "m-3")

	claimed, err := repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, models.TaskStatusRunning, claimed.Status)
	assert.Equal(t, 1, claimed.Attempts)
	assert.NotNil(t, claimed.StartedAt)

	// m-1 is running, so its second task waits.
	claimed, err = repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, other.ID, claimed.ID)

	claimed, err = repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	assert.Nil(t, claimed)

	require.NoError(t, repo.Complete(ctx, first.ID))

	claimed, err = repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)

	require.NoError(t, repo.Fail(ctx, second.ID, "boom"))
	failed, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusFailed, failed.Status)
	assert.Equal(t, "boom", models.Value(failed.LastError))
	assert.NotNil(t, failed.FinishedAt)

	assert.ErrorIs(t, repo.Complete(ctx, 9999), ErrNotFound)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		models.TaskStatusPending: 1,
		models.TaskStatusRunning: 1,
		models.TaskStatusDone:    1,
		models.TaskStatusFailed:  1,
	}, counts)
}

func TestTaskRepository_ReclaimAndPurge(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	clock := baseTime
	repo.SetClock(func() time.Time { return clock })

	stuck := enqueue(t, repo, "default", "m-1")
	_, err := repo.ClaimNext(ctx, "default")
	require.NoError(t, err)

	done := enqueue(t, repo, "default", "m-2")
	_, err = repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	require.NoError(t, repo.Complete(ctx, done.ID))

	n, err := repo.ReclaimStale(ctx, baseTime.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = repo.ReclaimStale(ctx, baseTime.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	reclaimed, err := repo.GetByID(ctx, stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, reclaimed.Status)
	assert.Nil(t, reclaimed.StartedAt)

	again, err := repo.ClaimNext(ctx, "default")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, stuck.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)

	n, err = repo.PurgeFinished(ctx, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	purged, err := repo.GetByID(ctx, done.ID)
	require.NoError(t, err)
	assert.Nil(t, purged)

	listed, err := repo.List(ctx, "", "", 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, stuck.ID, listed[0].ID)
}
