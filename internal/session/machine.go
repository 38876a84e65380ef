// Package session reconciles a submission outcome with the progress stream
// into one user-facing state. A Machine is not safe for concurrent use; the
// caller drives it from a single loop and turns returned effects into timers
// and requests.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/talentvibe/tui/internal/backend"
)

// Phase is where the current submission stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhaseAwaitingCompletion
	PhaseSettled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhaseAwaitingCompletion:
		return "awaiting completion"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the phase ends the current submission.
func (p Phase) Terminal() bool { return p == PhaseSettled || p == PhaseFailed }

// Level tints the status message.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	}
	return "info"
}

// JobFilter decides which progress events reach the log.
type JobFilter string

const (
	// FilterStrict drops events tagged with a job other than the current one.
	FilterStrict JobFilter = "strict"
	// FilterLoose keeps every event.
	FilterLoose JobFilter = "loose"
)

// DefaultRedirectDelay is how long a settled job waits before navigation.
const DefaultRedirectDelay = 2000 * time.Millisecond

var (
	// ErrBusy rejects a submission while another is in flight or a redirect
	// is pending.
	ErrBusy = errors.New("a submission is already in progress")
	// ErrTornDown rejects any input after Teardown.
	ErrTornDown = errors.New("session has ended")
)

// Options configures a Machine.
type Options struct {
	RedirectDelay time.Duration
	Filter        JobFilter
}

// State is a snapshot of the session.
type State struct {
	Phase             Phase
	CurrentJobID      string
	Log               []backend.ProgressEvent
	RedirectScheduled bool
	Message           string
	Level             Level
	Outcome           *backend.JobOutcome
}

// EffectSubmit asks the caller to run the request for Job and report back
// with Generation.
type EffectSubmit struct {
	Generation uint64
	Job        backend.JobSubmission
}

// EffectRedirect asks the caller to call RedirectDue(Token) after Delay.
type EffectRedirect struct {
	Token uint64
	JobID string
	Delay time.Duration
}

// Machine owns one session's state.
type Machine struct {
	opts  Options
	state State

	generation uint64
	token      uint64 // live redirect, 0 when none
	issued     uint64 // last token handed out
	fired      bool
	tornDown   bool
}

// New returns an idle machine.
func New(opts Options) *Machine {
	if opts.RedirectDelay <= 0 {
		opts.RedirectDelay = DefaultRedirectDelay
	}
	if opts.Filter != FilterLoose {
		opts.Filter = FilterStrict
	}
	return &Machine{opts: opts}
}

// Renew tears m down and returns an idle machine with the same options.
// Generations and redirect tokens keep counting from m, so a result or timer
// issued by m is never accepted by the new machine.
func (m *Machine) Renew() *Machine {
	m.Teardown()
	return &Machine{opts: m.opts, generation: m.generation, issued: m.issued}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	s := m.state
	s.Log = append([]backend.ProgressEvent(nil), m.state.Log...)
	if m.state.Outcome != nil {
		o := *m.state.Outcome
		s.Outcome = &o
	}
	return s
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase { return m.state.Phase }

// Analyzing reports whether a request is in flight.
func (m *Machine) Analyzing() bool { return m.state.Phase == PhaseSubmitting }

// Submit starts a new submission. An empty file list fails with a
// *backend.ValidationError and leaves the phase untouched.
func (m *Machine) Submit(job backend.JobSubmission) (EffectSubmit, error) {
	if m.tornDown {
		return EffectSubmit{}, ErrTornDown
	}
	if m.state.Phase == PhaseSubmitting || m.state.RedirectScheduled {
		return EffectSubmit{}, ErrBusy
	}
	if len(job.Files) == 0 {
		err := &backend.ValidationError{Field: "resumes", Message: "no files selected"}
		m.fail(err)
		return EffectSubmit{}, err
	}

	m.generation++
	m.state = State{
		Phase:        PhaseSubmitting,
		CurrentJobID: m.state.CurrentJobID,
		Level:        LevelInfo,
	}
	return EffectSubmit{Generation: m.generation, Job: job}, nil
}

// Resolve applies a successful response for submission gen. A stale or
// duplicate result is ignored. The returned bool is true when a redirect
// must be scheduled.
func (m *Machine) Resolve(gen uint64, outcome backend.JobOutcome) (EffectRedirect, bool) {
	if !m.live(gen) {
		return EffectRedirect{}, false
	}
	o := outcome
	m.state.Outcome = &o
	m.recordJob(outcome.JobID)

	switch outcome.Kind {
	case backend.OutcomeQueued:
		m.state.Phase = PhaseAwaitingCompletion
		m.setMessage(LevelSuccess, fmt.Sprintf(
			"Analysis queued successfully for %d résumé(s). Processing in background.",
			outcome.TotalFiles)+m.redirectNote())
		return m.scheduleRedirect()

	case backend.OutcomeCompletedSync:
		m.state.Phase = PhaseSettled
		m.setMessage(LevelSuccess, fmt.Sprintf(
			"Analysis completed successfully! Processed %d résumé(s).",
			outcome.ProcessedCount)+m.redirectNote())
		return m.scheduleRedirect()
	}

	m.state.Phase = PhaseFailed
	m.setMessage(LevelWarning, fmt.Sprintf(
		"No résumés were processed. %d files were skipped.", len(outcome.Skipped)))
	return EffectRedirect{}, false
}

// Reject applies a failed request for submission gen.
func (m *Machine) Reject(gen uint64, err error) {
	if !m.live(gen) {
		return
	}
	var appErr *backend.ApplicationError
	if errors.As(err, &appErr) {
		m.recordJob(appErr.JobID)
	}
	m.fail(err)
}

// Observe feeds one progress event. Events are logged only while a
// submission is in flight or awaiting completion. A complete event for the
// current job settles it; the redirect still fires at most once.
func (m *Machine) Observe(ev backend.ProgressEvent) (EffectRedirect, bool) {
	if m.tornDown {
		return EffectRedirect{}, false
	}
	if m.state.Phase != PhaseSubmitting && m.state.Phase != PhaseAwaitingCompletion {
		return EffectRedirect{}, false
	}
	if !m.accepts(ev) {
		return EffectRedirect{}, false
	}
	m.state.Log = append(m.state.Log, ev)

	if ev.Category != backend.CategoryComplete || m.state.Phase != PhaseAwaitingCompletion {
		return EffectRedirect{}, false
	}
	if ev.JobID != "" && ev.JobID != m.state.CurrentJobID {
		return EffectRedirect{}, false
	}
	m.state.Phase = PhaseSettled
	return m.scheduleRedirect()
}

// RedirectDue reports the job to navigate to when token is the live,
// unfired redirect. It returns false for anything else.
func (m *Machine) RedirectDue(token uint64) (string, bool) {
	if m.tornDown || m.fired || token == 0 || token != m.token {
		return "", false
	}
	m.fired = true
	return m.state.CurrentJobID, true
}

// Teardown ends the session: a pending redirect never fires and in-flight
// results are discarded.
func (m *Machine) Teardown() {
	m.tornDown = true
	m.token = 0
	m.generation++
}

// TornDown reports whether Teardown was called.
func (m *Machine) TornDown() bool { return m.tornDown }

func (m *Machine) live(gen uint64) bool {
	return !m.tornDown && gen == m.generation && m.state.Phase == PhaseSubmitting
}

func (m *Machine) accepts(ev backend.ProgressEvent) bool {
	if m.opts.Filter == FilterLoose {
		return true
	}
	return ev.JobID == "" || m.state.CurrentJobID == "" || ev.JobID == m.state.CurrentJobID
}

// recordJob sets the current job once. A later, different id is ignored.
func (m *Machine) recordJob(id string) {
	if m.state.CurrentJobID == "" {
		m.state.CurrentJobID = id
	}
}

func (m *Machine) scheduleRedirect() (EffectRedirect, bool) {
	if m.state.RedirectScheduled || m.state.CurrentJobID == "" {
		return EffectRedirect{}, false
	}
	m.state.RedirectScheduled = true
	m.issued++
	m.token = m.issued
	return EffectRedirect{
		Token: m.token,
		JobID: m.state.CurrentJobID,
		Delay: m.opts.RedirectDelay,
	}, true
}

// redirectNote is appended to a success message when navigation will follow.
func (m *Machine) redirectNote() string {
	if m.state.CurrentJobID == "" || m.state.RedirectScheduled {
		return ""
	}
	return " Redirecting to job page..."
}

func (m *Machine) fail(err error) {
	c := backend.Classify(err)
	if m.state.Phase == PhaseSubmitting {
		m.state.Phase = PhaseFailed
	}
	level := LevelError
	if c.Severity == backend.SeverityWarning {
		level = LevelWarning
	}
	m.setMessage(level, c.Message)
}

func (m *Machine) setMessage(level Level, msg string) {
	m.state.Level = level
	m.state.Message = msg
}
