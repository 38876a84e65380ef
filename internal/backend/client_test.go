package backend

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testClient(url string, timeout time.Duration) *Client {
	var cfg Config
	cfg.Server.BaseURL = url
	cfg.Submit.Timeout = timeout
	return NewClient(cfg, quietLogger())
}

func tempResumes(t *testing.T, names ...string) []FileRef {
	t.Helper()
	dir := t.TempDir()
	var files []FileRef
	for _, n := range names {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte("body of "+n), 0o644))
		files = append(files, FileRef{Path: p, Name: n, Size: int64(len("body of " + n))})
	}
	return files
}

func jsonHandler(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestAnalyzeSendsMultipartForm(t *testing.T) {
	var (
		gotPath, gotDesc, gotReqID string
		gotFiles                   []string
		gotBodies                  []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReqID = r.Header.Get("X-Request-ID")
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotDesc = r.FormValue("job_description")
		for _, fh := range r.MultipartForm.File["resumes"] {
			gotFiles = append(gotFiles, fh.Filename)
			f, err := fh.Open()
			if assert.NoError(t, err) {
				b, _ := io.ReadAll(f)
				gotBodies = append(gotBodies, string(b))
				f.Close()
			}
		}
		jsonHandler(http.StatusOK, `{"job_id":"J1","status":"queued","total_files":2}`)(w, r)
	}))
	defer srv.Close()

	outcome, err := testClient(srv.URL+"/", time.Second).Analyze(context.Background(), JobSubmission{
		Description: "Senior Go engineer",
		Files:       tempResumes(t, "a.pdf", "b.docx"),
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/analyze", gotPath)
	assert.NotEmpty(t, gotReqID)
	assert.Equal(t, "Senior Go engineer", gotDesc)
	assert.Equal(t, []string{"a.pdf", "b.docx"}, gotFiles)
	assert.Equal(t, []string{"body of a.pdf", "body of b.docx"}, gotBodies)

	assert.Equal(t, JobOutcome{JobID: "J1", Kind: OutcomeQueued, TotalFiles: 2}, outcome)
}

func TestAnalyzeClassifiesResponses(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		check   func(t *testing.T, o JobOutcome, err error)
	}{
		{
			name:    "completed synchronously",
			handler: jsonHandler(http.StatusOK, `{"job_id":"J2","status":"completed","processed_files":[{"filename":"a.pdf"},{"filename":"b.pdf"}],"skipped_files":[{"filename":"c.png","reason":"Unsupported"}]}`),
			check: func(t *testing.T, o JobOutcome, err error) {
				require.NoError(t, err)
				assert.Equal(t, OutcomeCompletedSync, o.Kind)
				assert.Equal(t, "J2", o.JobID)
				assert.Equal(t, 2, o.ProcessedCount)
				assert.Equal(t, []SkippedFile{{Filename: "c.png", Reason: "Unsupported"}}, o.Skipped)
			},
		},
		{
			name:    "nothing processed",
			handler: jsonHandler(http.StatusOK, `{"job_id":"J3","status":"completed","processed_files":[],"skipped_files":[{"filename":"a.pdf","reason":"empty"},{"filename":"b.pdf","reason":"empty"}]}`),
			check: func(t *testing.T, o JobOutcome, err error) {
				require.NoError(t, err)
				assert.Equal(t, OutcomeNoFilesProcessed, o.Kind)
				assert.Len(t, o.Skipped, 2)
			},
		},
		{
			name:    "application error with message",
			handler: jsonHandler(http.StatusBadRequest, `{"error":"Job description is required"}`),
			check: func(t *testing.T, _ JobOutcome, err error) {
				var appErr *ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
				assert.Equal(t, "Job description is required", appErr.Message)
			},
		},
		{
			name:    "application error without message",
			handler: jsonHandler(http.StatusInternalServerError, `{}`),
			check: func(t *testing.T, _ JobOutcome, err error) {
				var appErr *ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, genericAnalysisError, appErr.Message)
				assert.Empty(t, appErr.JobID)
			},
		},
		{
			name:    "application error naming a job",
			handler: jsonHandler(http.StatusUnprocessableEntity, `{"job_id":"J9","error":"Analysis failed"}`),
			check: func(t *testing.T, _ JobOutcome, err error) {
				var appErr *ApplicationError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, "J9", appErr.JobID)
				assert.Equal(t, "Analysis failed", appErr.Message)
			},
		},
		{
			name: "gateway html 413",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				_, _ = io.WriteString(w, "<html>413 Request Entity Too Large</html>")
			},
			check: func(t *testing.T, _ JobOutcome, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.True(t, malformed.IsPayloadTooLarge())
				assert.Contains(t, malformed.Body, "413")
			},
		},
		{
			name: "non-json success",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.Header().Set("Content-Type", "text/plain")
				_, _ = io.WriteString(w, "ok")
			},
			check: func(t *testing.T, _ JobOutcome, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.False(t, malformed.IsPayloadTooLarge())
				assert.Equal(t, http.StatusOK, malformed.StatusCode)
			},
		},
		{
			name:    "json violating the schema",
			handler: jsonHandler(http.StatusOK, `{"job_id":"J4","total_files":"two"}`),
			check: func(t *testing.T, _ JobOutcome, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
				assert.Error(t, malformed.Err)
			},
		},
		{
			name:    "truncated json",
			handler: jsonHandler(http.StatusOK, `{"job_id":`),
			check: func(t *testing.T, _ JobOutcome, err error) {
				var malformed *MalformedResponseError
				require.ErrorAs(t, err, &malformed)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			o, err := testClient(srv.URL, 5*time.Second).Analyze(context.Background(), JobSubmission{
				Description: "role",
				Files:       tempResumes(t, "a.pdf"),
			})
			tt.check(t, o, err)
		})
	}
}

func TestAnalyzeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, 50*time.Millisecond).Analyze(context.Background(), JobSubmission{
		Files: tempResumes(t, "a.pdf"),
	})
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.After)
	assert.Equal(t, SeverityWarning, Classify(err).Severity)
}

func TestAnalyzeBoundsResponseBody(t *testing.T) {
	saved := maxResponseBytes
	maxResponseBytes = 1 << 10
	t.Cleanup(func() { maxResponseBytes = saved })

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, strings.Repeat("<p>gateway</p>", 4096))
	}))
	defer html.Close()

	_, err := testClient(html.URL, 5*time.Second).Analyze(context.Background(), JobSubmission{Files: tempResumes(t, "a.pdf")})
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, http.StatusBadGateway, malformed.StatusCode)
	assert.LessOrEqual(t, len(malformed.Body), bodyPrefixBytes)
	assert.True(t, strings.HasPrefix(malformed.Body, "<p>gateway</p>"))

	big := httptest.NewServer(jsonHandler(http.StatusOK,
		`{"job_id":"J1","status":"queued","total_files":1,"note":"`+strings.Repeat("x", 4096)+`"}`))
	defer big.Close()

	_, err = testClient(big.URL, 5*time.Second).Analyze(context.Background(), JobSubmission{Files: tempResumes(t, "a.pdf")})
	require.ErrorAs(t, err, &malformed)
	assert.Error(t, malformed.Err)
}

func TestAnalyzeWithoutFilesMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, time.Second).Analyze(context.Background(), JobSubmission{Description: "x"})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Zero(t, hits.Load())
}

func TestAnalyzeTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := testClient(url, time.Second).Analyze(context.Background(), JobSubmission{
		Files: tempResumes(t, "a.pdf"),
	})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, Classify(err).Message, "Error: ")
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.Equal(t, DefaultSubmitTimeout, c.Timeout())

	var cfg Config
	cfg.Server.BaseURL = "http://backend:5000/"
	assert.Equal(t, "http://backend:5000", NewClient(cfg, nil).BaseURL())
}

func TestIsJSON(t *testing.T) {
	assert.True(t, isJSON("application/json"))
	assert.True(t, isJSON("application/json; charset=utf-8"))
	assert.True(t, isJSON("application/problem+json"))
	assert.False(t, isJSON("text/html"))
	assert.False(t, isJSON(""))
	assert.False(t, isJSON(";;;"))
}
