package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/skaldhq/skald/internal/core/domain"
	"github.com/skaldhq/skald/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

// fakeTextGen returns canned responses per prompt prefix, or a fixed error.
type fakeTextGen struct {
	err       error
	response  string
	responses map[string]string // prompt-prefix -> response
	mu        sync.Mutex
	prompts   []string
}

func (f *fakeTextGen) GenerateText(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	for prefix, resp := range f.responses {
		if strings.HasPrefix(prompt, prefix) {
			return resp, nil
		}
	}
	return f.response, nil
}

type fakeImageGen struct {
	url string
	err error
}

func (f *fakeImageGen) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return f.url, f.err
}

type fakeCaptions struct {
	caption string
	err     error
}

func (f *fakeCaptions) FetchCaption(ctx context.Context, videoURL string) (string, error) {
	return f.caption, f.err
}

// fakeStore is an in-memory ports.ObjectStore.
type fakeStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	modTimes map[string]time.Time
	putErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:  make(map[string][]byte),
		modTimes: make(map[string]time.Time),
	}
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = body
	f.modTimes[key] = time.Now()
	return "http://store.local/" + key, nil
}

func (f *fakeStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return body, nil
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]ports.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var infos []ports.ObjectInfo
	for key, body := range f.objects {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, ports.ObjectInfo{
				Key:          key,
				Size:         int64(len(body)),
				LastModified: f.modTimes[key],
			})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fakeSandbox optionally deposits the artifact before returning.
type fakeSandbox struct {
	output        string
	err           error
	writeArtifact bool
}

func (f *fakeSandbox) Run(ctx context.Context, code, workDir string) (string, error) {
	if f.writeArtifact {
		if err := os.WriteFile(filepath.Join(workDir, "output.png"), []byte("png-bytes"), 0o644); err != nil {
			return "", err
		}
	}
	return f.output, f.err
}

// fakeJobStore records status transitions.
type fakeJobStore struct {
	mu       sync.Mutex
	jobs     map[domain.JobID]domain.Job
	statuses []domain.JobStatus
	reports  []string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[domain.JobID]domain.Job)}
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) GetJob(ctx context.Context, id domain.JobID) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobStore) ListJobs(ctx context.Context, userID string) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var jobs []domain.Job
	for _, job := range f.jobs {
		if userID == "" || job.UserID == userID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (f *fakeJobStore) UpdateStatus(ctx context.Context, id domain.JobID, status domain.JobStatus, resultKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	job := f.jobs[id]
	job.ID = id
	job.Status = status
	if resultKey != "" {
		job.ResultKey = &resultKey
	}
	f.jobs[id] = job
	return nil
}

func (f *fakeJobStore) CreateReport(ctx context.Context, id domain.JobID, userID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, key)
	return nil
}

func (f *fakeJobStore) lastStatus() domain.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statuses) == 0 {
		return ""
	}
	return f.statuses[len(f.statuses)-1]
}
