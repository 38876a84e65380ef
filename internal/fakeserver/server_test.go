package fakeserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentvibe/tui/internal/backend"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func resumes(t *testing.T, names ...string) []backend.FileRef {
	t.Helper()
	dir := t.TempDir()
	var out []backend.FileRef
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("content of "+n), 0o644))
		out = append(out, backend.FileRef{Path: p, Name: n})
	}
	return out
}

func newClient(url string) *backend.Client {
	var cfg backend.Config
	cfg.Server.BaseURL = url
	cfg.Submit.Timeout = 5 * time.Second
	return backend.NewClient(cfg, quietLogger())
}

type recorder struct {
	mu     sync.Mutex
	events []backend.ProgressEvent
}

func (r *recorder) handle(ev backend.ProgressEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []backend.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]backend.ProgressEvent(nil), r.events...)
}

func TestQueuedJobStreamsProgressToChannel(t *testing.T) {
	fs := New(Config{Mode: ModeQueued, PingInterval: 20 * time.Millisecond}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer fs.Close()

	rec := &recorder{}
	ch := backend.NewEventChannel(srv.URL, rec.handle, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	require.Eventually(t, func() bool { return fs.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	outcome, err := newClient(srv.URL).Analyze(context.Background(), backend.JobSubmission{
		Description: "Go developer",
		Files:       resumes(t, "a.pdf", "b.txt", "notes.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, backend.OutcomeQueued, outcome.Kind)
	assert.NotEmpty(t, outcome.JobID)
	assert.Equal(t, 2, outcome.TotalFiles)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "notes.png", outcome.Skipped[0].Filename)

	fs.Wait()
	require.Eventually(t, func() bool {
		evs := rec.snapshot()
		return len(evs) > 0 && evs[len(evs)-1].Category == backend.CategoryComplete
	}, 2*time.Second, 10*time.Millisecond)

	evs := rec.snapshot()
	// started, two events per file, complete
	require.Len(t, evs, 6)
	for _, ev := range evs {
		assert.Equal(t, outcome.JobID, ev.JobID)
		assert.False(t, ev.OccurredAt.IsZero())
	}
	assert.Equal(t, backend.CategoryInfo, evs[0].Category)
	assert.Contains(t, evs[1].Message, "a.pdf")
}

func TestUntaggedEventsOmitJobID(t *testing.T) {
	fs := New(Config{Untagged: true}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer fs.Close()

	rec := &recorder{}
	ch := backend.NewEventChannel(srv.URL, rec.handle, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	require.Eventually(t, func() bool { return fs.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	fs.Broadcast("J1", backend.CategoryWarning, "slow")
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	ev := rec.snapshot()[0]
	assert.Empty(t, ev.JobID)
	assert.Equal(t, backend.CategoryWarning, ev.Category)
}

func TestAnalyzeModes(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		check func(t *testing.T, o backend.JobOutcome, err error)
	}{
		{
			name: "sync",
			mode: ModeSync,
			check: func(t *testing.T, o backend.JobOutcome, err error) {
				require.NoError(t, err)
				assert.Equal(t, backend.OutcomeCompletedSync, o.Kind)
				assert.Equal(t, 2, o.ProcessedCount)
				assert.Len(t, o.Skipped, 1)
			},
		},
		{
			name: "no files",
			mode: ModeNoFiles,
			check: func(t *testing.T, o backend.JobOutcome, err error) {
				require.NoError(t, err)
				assert.Equal(t, backend.OutcomeNoFilesProcessed, o.Kind)
				assert.Len(t, o.Skipped, 3)
			},
		},
		{
			name: "error",
			mode: ModeError,
			check: func(t *testing.T, _ backend.JobOutcome, err error) {
				var appErr *backend.ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, http.StatusInternalServerError, appErr.StatusCode)
				assert.Equal(t, "Analysis service is unavailable", backend.Classify(err).Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := New(Config{}, quietLogger())
			fs.SetMode(tt.mode)
			srv := httptest.NewServer(fs)
			defer srv.Close()

			o, err := newClient(srv.URL).Analyze(context.Background(), backend.JobSubmission{
				Description: "role",
				Files:       resumes(t, "a.pdf", "b.docx", "c.exe"),
			})
			tt.check(t, o, err)
		})
	}
}

func TestOversizedUploadGetsHTML413(t *testing.T) {
	fs := New(Config{MaxUpload: 16}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()

	body := bytes.NewReader([]byte(strings.Repeat("x", 64)))
	resp, err := http.Post(srv.URL+"/api/analyze", "multipart/form-data; boundary=zz", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestSocketRejectsPollingTransport(t *testing.T) {
	fs := New(Config{}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer fs.Close()

	resp, err := http.Get(srv.URL + "/socket.io/?EIO=4&transport=polling")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	fs := New(Config{}, quietLogger())
	rec := httptest.NewRecorder()
	fs.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","clients":0}`, rec.Body.String())
}

func TestClientCountFollowsSubscribers(t *testing.T) {
	fs := New(Config{}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer fs.Close()

	first := backend.NewEventChannel(srv.URL, func(backend.ProgressEvent) {}, quietLogger())
	second := backend.NewEventChannel(srv.URL, func(backend.ProgressEvent) {}, quietLogger())
	require.NoError(t, first.Connect(context.Background()))
	require.NoError(t, second.Connect(context.Background()))
	require.Eventually(t, func() bool { return fs.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return fs.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, second.Close())
	require.Eventually(t, func() bool { return fs.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestBurstArrivesInEmitOrder(t *testing.T) {
	fs := New(Config{}, quietLogger())
	srv := httptest.NewServer(fs)
	defer srv.Close()
	defer fs.Close()

	rec := &recorder{}
	ch := backend.NewEventChannel(srv.URL, rec.handle, quietLogger())
	require.NoError(t, ch.Connect(context.Background()))
	defer ch.Close()
	require.Eventually(t, func() bool { return fs.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	const n = 50
	for i := 0; i < n; i++ {
		fs.Broadcast("J1", backend.CategoryProcessing, fmt.Sprintf("step %d", i))
	}
	require.Eventually(t, func() bool { return len(rec.snapshot()) == n }, 2*time.Second, 10*time.Millisecond)
	for i, ev := range rec.snapshot() {
		assert.Equal(t, fmt.Sprintf("step %d", i), ev.Message)
	}
}
