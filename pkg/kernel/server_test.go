package kernel

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
	"github.com/skaldhq/skald/internal/core/services"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[domain.JobID]domain.Job
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[domain.JobID]domain.Job)}
}

func (m *memJobStore) CreateJob(ctx context.Context, job domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (m *memJobStore) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var jobs []domain.Job
	for _, job := range m.jobs {
		if userID == "" || job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (m *memJobStore) UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus, resultKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.ID = id
	job.Status = status
	if resultKey != "" {
		job.ResultKey = &resultKey
	}
	m.jobs[id] = job
	return nil
}

func (m *memJobStore) CreateReport(ctx context.Context, id domain.JobID, userID, key string) error {
	return nil
}

type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{objects: make(map[string][]byte)}
}

func (m *memObjectStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = body
	return "http://store.local/" + key, nil
}

func (m *memObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return body, nil
}

func (m *memObjectStore) List(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *memJobStore, *memObjectStore, *services.ProgressStore, *services.EventBus) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	jobs := newMemJobStore()
	store := newMemObjectStore()
	progress := services.NewProgressStore(logger, time.Minute)
	events := services.NewEventBus(logger)
	scheduler := services.NewJobScheduler(logger, services.SchedulerConfig{MaxConcurrentJobs: 1})

	srv := NewServer(logger, scheduler, jobs, progress, events, store)
	return srv, jobs, store, progress, events
}

func TestCreateReport(t *testing.T) {
	srv, jobs, _, _, _ := newTestServer(t)

	body := strings.NewReader(`{"youtube_url":"https://youtu.be/abc123","user_id":"alice"}`)
	req := httptest.NewRequest("POST", "/api/v1/reports", body)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp["job_id"])
	assert.Equal(t, "pending", resp["status"])

	job, err := jobs.GetJob(context.Background(), domain.JobID(resp["job_id"]))
	require.NoError(t, err)
	assert.Equal(t, "alice", job.UserID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
}

func TestCreateReportValidation(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	req := httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(`{"user_id":"alice"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest("POST", "/api/v1/reports", strings.NewReader(`not json`))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProgress(t *testing.T) {
	srv, jobs, _, progress, _ := newTestServer(t)

	require.NoError(t, jobs.CreateJob(context.Background(), domain.Job{ID: "job-1", Status: domain.JobStatusRunning}))
	require.NoError(t, progress.SetProgress("job-1", 40, "structuring report"))

	req := httptest.NewRequest("GET", "/api/v1/reports/job-1/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Progress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, 40, p.Percent)
	assert.Equal(t, "structuring report", p.Message)
}

func TestGetProgressFallsBackToJobRecord(t *testing.T) {
	srv, jobs, _, _, _ := newTestServer(t)

	// No progress entry (expired), but the job record is terminal.
	require.NoError(t, jobs.CreateJob(context.Background(), domain.Job{ID: "job-1", Status: domain.JobStatusCompleted}))

	req := httptest.NewRequest("GET", "/api/v1/reports/job-1/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var p domain.Progress
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, 100, p.Percent)
}

func TestGetProgressUnknownJob(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/v1/reports/nope/progress", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport(t *testing.T) {
	srv, jobs, store, _, _ := newTestServer(t)
	ctx := context.Background()

	_, err := store.Put(ctx, "reports/alice/job-1_report.json", []byte(`{"format":"json","sections":[]}`), "application/json")
	require.NoError(t, err)
	require.NoError(t, jobs.CreateJob(ctx, domain.Job{ID: "job-1", UserID: "alice", Status: domain.JobStatusCompleted}))

	req := httptest.NewRequest("GET", "/api/v1/reports/job-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"format":"json","sections":[]}`, rec.Body.String())
}

func TestGetReportStillRunning(t *testing.T) {
	srv, jobs, _, _, _ := newTestServer(t)
	require.NoError(t, jobs.CreateJob(context.Background(), domain.Job{ID: "job-1", Status: domain.JobStatusRunning}))

	req := httptest.NewRequest("GET", "/api/v1/reports/job-1", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "running", resp["status"])
}

func TestListReports(t *testing.T) {
	srv, jobs, _, _, _ := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, jobs.CreateJob(ctx, domain.Job{ID: "a", UserID: "alice"}))
	require.NoError(t, jobs.CreateJob(ctx, domain.Job{ID: "b", UserID: "bob"}))

	req := httptest.NewRequest("GET", "/api/v1/reports?user_id=alice", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Jobs  []domain.Job `json:"jobs"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, domain.JobID("a"), resp.Jobs[0].ID)
}

func TestReportSSEStream(t *testing.T) {
	srv, jobs, _, _, events := newTestServer(t)
	require.NoError(t, jobs.CreateJob(context.Background(), domain.Job{ID: "job-1", Status: domain.JobStatusRunning}))

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/reports/job-1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: connected\n", line)

	// Publishing a terminal event ends the stream.
	go func() {
		// The subscription races with the handler; retry until delivered.
		for i := 0; i < 20; i++ {
			events.Publish(services.Event{JobID: "job-1", Type: services.EventPipelineCompleted, Data: "{}"})
			time.Sleep(10 * time.Millisecond)
		}
	}()

	deadline := time.After(3 * time.Second)
	done := make(chan string, 1)
	go func() {
		for {
			l, err := reader.ReadString('\n')
			if err != nil {
				done <- ""
				return
			}
			if strings.HasPrefix(l, "event: pipeline.completed") {
				done <- l
				return
			}
		}
	}()

	select {
	case l := <-done:
		assert.Contains(t, l, "pipeline.completed")
	case <-deadline:
		t.Fatal("timed out waiting for terminal SSE event")
	}
}

func TestPathMatching(t *testing.T) {
	assert.True(t, isReportPath("/api/v1/reports/abc"))
	assert.False(t, isReportPath("/api/v1/reports/"))
	assert.False(t, isReportPath("/api/v1/reports/abc/progress"))

	assert.True(t, isReportSubresourcePath("/api/v1/reports/abc/progress", "/progress"))
	assert.False(t, isReportSubresourcePath("/api/v1/reports//progress", "/progress"))
	assert.False(t, isReportSubresourcePath("/api/v1/reports/a/b/progress", "/progress"))
}
