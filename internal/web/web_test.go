package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/internal/agenda"
	"taskflow/internal/config"
	"taskflow/internal/model"
	"taskflow/internal/store"
	"taskflow/internal/validate"
)

var testNow = time.Date(2024, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg *config.Config) (*Server, *agenda.Service) {
	t.Helper()
	clock := func() time.Time { return testNow }
	st, err := store.NewSQLiteStore(":memory:", store.WithLocation(time.UTC), store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	svc := agenda.NewService(st, time.UTC).WithClock(clock)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return NewServer(cfg, svc), svc
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func seed(t *testing.T, svc *agenda.Service, in validate.TaskInput) model.Task {
	t.Helper()
	task, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	return task
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestCreateTask(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/tasks",
		`{"title":"  write report ","dueDate":"2024-03-15T09:00","priority":"high","checklist":[{"text":"outline"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	got := decode[taskResponse](t, rec).Task
	assert.NotZero(t, got.ID)
	assert.Equal(t, "write report", got.Title)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, model.RecurrenceNone, got.Recurrence)
	assert.Equal(t, model.StatusPending, got.Status)
	require.Len(t, got.Checklist, 1)
	assert.NotEmpty(t, got.Checklist[0].ID)
}

func TestCreateTask_Invalid(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/tasks", `{"title":"","dueDate":"tomorrow","recurrence":"yearly"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.NotEmpty(t, resp.Error)

	fields := map[string]bool{}
	for _, f := range resp.Fields {
		fields[f.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["dueDate"])
	assert.True(t, fields["recurrence"])

	rec = do(t, h, http.MethodPost, "/api/tasks", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/tasks", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks(t *testing.T) {
	s, svc := newTestServer(t, nil)
	h := s.Handler()

	seed(t, svc, validate.TaskInput{Title: "this week", DueDate: "2024-03-13T12:00"})
	seed(t, svc, validate.TaskInput{Title: "habit", DueDate: "2024-01-01T07:00", Recurrence: "daily"})
	seed(t, svc, validate.TaskInput{Title: "next month", DueDate: "2024-04-20"})

	rec := do(t, h, http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[tasksResponse](t, rec)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), resp.Range.Start)
	assert.Equal(t, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), resp.Range.End)
	var titles []string
	for _, task := range resp.Tasks {
		titles = append(titles, task.Title)
	}
	assert.ElementsMatch(t, []string{"this week", "habit"}, titles)

	rec = do(t, h, http.MethodGet, "/api/tasks?view=month&date=2024-04-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[tasksResponse](t, rec).Tasks, 2)

	rec = do(t, h, http.MethodGet, "/api/tasks?view=year", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/tasks?date=14/03/2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks_ConfiguredDefaultView(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DefaultView = "day"
	s, _ := newTestServer(t, cfg)

	rec := do(t, s.Handler(), http.MethodGet, "/api/tasks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[tasksResponse](t, rec)
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), resp.Range.Start)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), resp.Range.End)
	assert.Empty(t, resp.Tasks)
	assert.NotNil(t, resp.Tasks)
}

func TestAgenda(t *testing.T) {
	s, svc := newTestServer(t, nil)
	task := seed(t, svc, validate.TaskInput{Title: "standup", DueDate: "2024-03-11T09:15", Recurrence: "weekdays"})

	rec := do(t, s.Handler(), http.MethodGet, "/api/agenda?view=week&date=2024-03-14", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	a := decode[agenda.Agenda](t, rec)

	assert.Equal(t, model.ViewWeek, a.View)
	require.Len(t, a.Days, 7)
	for i, d := range a.Days {
		if i < 5 {
			require.Len(t, d.Occurrences, 1, d.Key)
			assert.Equal(t, task.ID, d.Occurrences[0].TaskID)
		} else {
			assert.Empty(t, d.Occurrences, d.Key)
		}
	}
	assert.Equal(t, "2024-03-14", a.Days[3].Key)
	assert.True(t, a.Days[3].IsToday)
	assert.Equal(t, 1, a.Stats.Recurring)
}

func TestGetUpdateCompleteDelete(t *testing.T) {
	s, svc := newTestServer(t, nil)
	h := s.Handler()
	task := seed(t, svc, validate.TaskInput{Title: "draft", DueDate: "2024-03-15", EstimatedMinutes: intPtr(45)})
	path := "/api/tasks/" + itoa(task.ID)

	rec := do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "draft", decode[taskResponse](t, rec).Task.Title)

	rec = do(t, h, http.MethodPut, path, `{"title":"final","progress":50,"estimatedMinutes":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[taskResponse](t, rec).Task
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, 50, updated.Progress)
	assert.Nil(t, updated.EstimatedMinutes)
	assert.Equal(t, model.StatusPending, updated.Status)

	rec = do(t, h, http.MethodPut, path, `{"priority":"someday"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, path+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	done := decode[taskResponse](t, rec).Task
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)

	rec = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, rec))

	rec = do(t, h, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPut, path, `{"title":"ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskID_Invalid(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()
	for _, target := range []string{"/api/tasks/abc", "/api/tasks/0", "/api/tasks/-3"} {
		rec := do(t, h, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestCalendarFeed(t *testing.T) {
	s, svc := newTestServer(t, nil)
	seed(t, svc, validate.TaskInput{Title: "gym", DueDate: "2024-03-11T18:00", Recurrence: "weekly"})

	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/calendar")
	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "BEGIN:VCALENDAR"))
	assert.Contains(t, body, "SUMMARY:gym")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY")
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "me", Password: "s3cret"}
	s, _ := newTestServer(t, cfg)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `realm="taskflow"`)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.SetBasicAuth("me", "wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.SetBasicAuth("me", "s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSecureCompare(t *testing.T) {
	assert.True(t, secureCompare("abc", "abc"))
	assert.False(t, secureCompare("abc", "abd"))
	assert.False(t, secureCompare("abc", "abcd"))
}

func TestStartServer_StopsOnCancel(t *testing.T) {
	_, svc := newTestServer(t, nil)
	cfg := config.DefaultConfig()
	cfg.Listen = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, cfg, svc) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func intPtr(v int) *int { return &v }

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
