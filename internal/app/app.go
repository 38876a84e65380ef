package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/sirupsen/logrus"

	"github.com/talentvibe/tui/internal/backend"
	"github.com/talentvibe/tui/internal/obs"
	"github.com/talentvibe/tui/internal/session"
	"github.com/talentvibe/tui/internal/ui"
	"github.com/talentvibe/tui/internal/views/command"
	"github.com/talentvibe/tui/internal/views/files"
	"github.com/talentvibe/tui/internal/views/form"
	"github.com/talentvibe/tui/internal/views/jobview"
	"github.com/talentvibe/tui/internal/views/skipped"
)

const (
	connectTimeout  = 10 * time.Second
	shutdownTimeout = 3 * time.Second
	formRows        = 4
)

// Options are the command-line inputs of Run.
type Options struct {
	ConfigPath  string
	Description string
	Files       []string
}

// Run starts the TUI application.
func Run(opts Options) error {
	path := opts.ConfigPath
	if path == "" {
		path = backend.DefaultConfigPath(AppName)
	}
	cfg, err := backend.LoadConfig(path, AppName)
	if err != nil {
		return err
	}

	logFile, err := obs.OpenLogFile(cfg.Log.File)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()
	logger := obs.NewLogger(logFile, cfg.Log.Level)

	shutdown, err := obs.InitTracing(AppName + "-tui")
	if err != nil {
		logger.WithError(err).Warn("tracing.init_failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdown(ctx)
	}()

	if srv := obs.ServeMetrics(cfg.Metrics.Addr, func(err error) {
		logger.WithError(err).Warn("metrics.listen_failed")
	}); srv != nil {
		defer srv.Close()
	}

	// The handler only runs after Connect, which Init issues once p exists.
	var p *tea.Program
	ch := newChannel(cfg, func(ev backend.ProgressEvent) { p.Send(ProgressMsg{Event: ev}) }, logger)

	m := newModel(cfg, logger, backend.NewClient(cfg, logger), ch)
	m.form.SetValue(opts.Description)
	for _, path := range opts.Files {
		f, err := backend.FileRefFromPath(path, cfg.Files.Extensions)
		if err != nil {
			m.flash = err.Error()
			continue
		}
		m.setFiles(backend.MergeFiles(m.files, f))
	}

	p = tea.NewProgram(m)

	if cfg.Files.DropDir != "" {
		w, err := backend.NewWatcher(cfg.Files.DropDir, cfg.Files.Extensions, p, logger)
		if err != nil {
			logger.WithError(err).WithField("dir", cfg.Files.DropDir).Warn("watcher.start_failed")
		} else {
			defer w.Close()
		}
	}

	logger.WithFields(logrus.Fields{
		"server":  cfg.Server.BaseURL,
		"channel": cfg.Channel.Kind,
		"version": AppVersion,
	}).Info("tui.start")

	_, err = p.Run()
	if cerr := ch.Close(); cerr != nil {
		logger.WithError(cerr).Warn("channel.close_failed")
	}
	logger.Info("tui.exit")
	return err
}

func newChannel(cfg backend.Config, handler backend.Handler, logger *logrus.Logger) backend.Channel {
	if cfg.Channel.Kind == backend.ChannelKindNATS {
		return backend.NewNATSChannel(cfg.Channel.NATSURL, cfg.Channel.NATSSubject, handler, logger)
	}
	return backend.NewEventChannel(cfg.Server.BaseURL, handler, logger)
}

// viewMode identifies which view is active.
type viewMode int

const (
	viewFiles viewMode = iota
	viewSkipped
	viewJob
)

// channelState tracks the progress channel for the header.
type channelState int

const (
	channelConnecting channelState = iota
	channelUp
	channelDown
)

// model is the root application model.
type model struct {
	width    int
	height   int
	mode     viewMode
	prevMode viewMode
	ready    bool
	showHelp bool
	keys     KeyMap

	cfg     backend.Config
	logger  *logrus.Logger
	client  *backend.Client
	channel backend.Channel
	session *session.Machine

	channelState channelState
	flash        string
	files        []backend.FileRef
	dropped      []backend.FileRef

	filesView   files.Model
	skippedView skipped.Model
	jobView     jobview.Model
	form        form.Model
	commandView command.Model
	spinner     spinner.Model
}

func newModel(cfg backend.Config, logger *logrus.Logger, client *backend.Client, ch backend.Channel) model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = ui.StyleAccent

	m := model{
		mode:        viewFiles,
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		logger:      logger,
		client:      client,
		channel:     ch,
		filesView:   files.New(),
		skippedView: skipped.New(),
		jobView:     jobview.New(),
		form:        form.New(),
		commandView: command.New(),
		spinner:     sp,
	}
	m.session = session.New(m.sessionOptions())
	m.refreshStatus()
	m.skippedView.SetOutcome(nil)
	return m
}

func (m *model) sessionOptions() session.Options {
	return session.Options{
		RedirectDelay: m.cfg.Submit.RedirectDelay,
		Filter:        session.JobFilter(m.cfg.Channel.JobFilter),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.connectChannel(),
		m.loadDropDir(len(m.files) == 0),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layoutViews()
		return m, nil

	case ChannelReadyMsg:
		if msg.Err != nil {
			m.channelState = channelDown
			m.logger.WithError(msg.Err).Warn("channel.connect_failed")
			return m, nil
		}
		m.channelState = channelUp
		return m, nil

	case DropDirLoadedMsg:
		if msg.Err != nil {
			m.flash = msg.Err.Error()
			return m, nil
		}
		m.dropped = msg.Files
		m.commandView.SetAvailable(filePaths(msg.Files))
		if msg.Replace {
			m.setFiles(msg.Files)
		}
		return m, nil

	case backend.DropDirMsg:
		m.logger.WithFields(logrus.Fields{"path": msg.Path, "op": msg.Op.String()}).Debug("dropdir.changed")
		return m, m.loadDropDir(true)

	case FilesAddedMsg:
		m.setFiles(backend.MergeFiles(m.files, msg.Files...))
		if len(msg.Errs) > 0 {
			m.commandView.SetError(errors.Join(msg.Errs...))
		} else {
			m.flash = fmt.Sprintf("%d file(s) selected", len(m.files))
		}
		return m, nil

	case ProgressMsg:
		eff, ok := m.session.Observe(msg.Event)
		m.refreshStatus()
		if ok {
			return m, m.scheduleRedirect(eff)
		}
		return m, nil

	case SubmitResultMsg:
		return m.handleResult(msg)

	case RedirectMsg:
		jobID, ok := m.session.RedirectDue(msg.Token)
		if !ok {
			return m, nil
		}
		obs.RecordRedirect()
		m.logger.WithField("job_id", jobID).Info("redirect")
		m.openJob(jobID)
		return m, nil

	case spinner.TickMsg:
		if !m.session.Analyzing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshStatus()
		return m, cmd

	case command.ExecuteMsg:
		m.restorePreviousView()
		return m.execute(msg.Command)

	case tea.KeyPressMsg:
		// If command line has focus, let it handle keys first.
		if m.commandView.Focused() {
			var cmd tea.Cmd
			m.commandView, cmd = m.commandView.Update(msg)
			if !m.commandView.Focused() {
				m.restorePreviousView()
			}
			return m, cmd
		}
		if m.form.Focused() {
			var cmd tea.Cmd
			m.form, cmd = m.form.Update(msg)
			if !m.form.Focused() {
				m.focusCurrentView()
			}
			return m, cmd
		}
		return m.handleKey(msg)
	}

	if m.form.Focused() {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m.updateActiveView(msg)
}

func (m model) handleResult(msg SubmitResultMsg) (tea.Model, tea.Cmd) {
	log := m.logger.WithField("generation", msg.Generation)
	if msg.Err != nil {
		m.session.Reject(msg.Generation, msg.Err)
		log.WithError(msg.Err).Info("submit.failed")
		m.refreshStatus()
		return m, nil
	}

	eff, ok := m.session.Resolve(msg.Generation, msg.Outcome)
	log.WithFields(logrus.Fields{
		"job_id":  msg.Outcome.JobID,
		"outcome": msg.Outcome.Kind.String(),
	}).Info("submit.resolved")
	m.refreshStatus()
	if ok {
		return m, m.scheduleRedirect(eff)
	}
	if msg.Outcome.Kind != backend.OutcomeNoFilesProcessed && msg.Outcome.JobID == "" {
		log.Warn("submit.missing_job_id")
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	// Job view has its own key handling.
	if m.mode == viewJob {
		switch {
		case key.Matches(msg, m.keys.Back), msg.String() == "q":
			m.closeJob()
			return m, nil
		case msg.String() == "ctrl+c":
			return m.quit()
		}
		var cmd tea.Cmd
		m.jobView, cmd = m.jobView.Update(msg)
		return m, cmd
	}

	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Back) {
			m.showHelp = false
			return m, nil
		}
		if msg.String() != "ctrl+c" {
			return m, nil
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Tab):
		switch m.mode {
		case viewFiles:
			m.mode = viewSkipped
			m.filesView.Blur()
			m.skippedView.Focus()
		case viewSkipped:
			m.mode = viewFiles
			m.skippedView.Blur()
			m.filesView.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.Edit):
		m.filesView.Blur()
		m.skippedView.Blur()
		return m, m.form.Focus()

	case key.Matches(msg, m.keys.Remove):
		if m.mode == viewFiles {
			if f := m.filesView.SelectedFile(); f != nil {
				m.removeFiles([]string{f.Path})
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if id := m.session.State().CurrentJobID; id != "" {
			m.openJob(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Command):
		m.prevMode = m.mode
		m.filesView.Blur()
		m.skippedView.Blur()
		return m, m.commandView.Focus()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadDropDir(true)

	case key.Matches(msg, m.keys.Back):
		m.flash = ""
		m.commandView.ClearResult()
		return m, nil
	}

	return m.updateActiveView(msg)
}

func (m model) execute(c command.Command) (tea.Model, tea.Cmd) {
	m.logger.WithField("command", c.Raw).Debug("command")
	switch c.Name {
	case command.CmdSubmit:
		return m.submit()
	case command.CmdAdd:
		return m, m.addFiles(c.Args)
	case command.CmdRemove:
		m.removeFiles(c.Args)
	case command.CmdClear:
		m.setFiles(nil)
		m.flash = "selection cleared"
	case command.CmdJob:
		m.openJob(c.Args[0])
	case command.CmdHelp:
		m.showHelp = true
	case command.CmdQuit:
		return m.quit()
	}
	return m, nil
}

// submit snapshots the form and selection into a JobSubmission and starts it.
func (m model) submit() (tea.Model, tea.Cmd) {
	job := backend.JobSubmission{
		Description: strings.TrimSpace(m.form.Value()),
		Files:       append([]backend.FileRef(nil), m.files...),
	}
	eff, err := m.session.Submit(job)
	m.refreshStatus()
	if err != nil {
		var valErr *backend.ValidationError
		if !errors.As(err, &valErr) {
			m.flash = err.Error()
		}
		m.logger.WithError(err).Info("submit.rejected")
		return m, nil
	}

	m.flash = ""
	m.skippedView.SetOutcome(nil)
	m.logger.WithFields(logrus.Fields{
		"generation": eff.Generation,
		"files":      len(job.Files),
	}).Info("submit.start")
	return m, tea.Batch(m.analyze(eff), m.spinner.Tick)
}

func (m *model) quit() (tea.Model, tea.Cmd) {
	m.session.Teardown()
	return *m, tea.Quit
}

// openJob navigates to the job detail view.
func (m *model) openJob(jobID string) {
	if m.mode != viewJob {
		m.prevMode = m.mode
	}
	m.mode = viewJob
	m.filesView.Blur()
	m.skippedView.Blur()
	m.form.Blur()
	m.jobView.Show(jobID, m.session.State())
}

// closeJob leaves the job view. After a redirect the upload form starts a
// fresh session, as if it were opened again.
func (m *model) closeJob() {
	m.jobView.Hide()
	if m.session.State().RedirectScheduled {
		m.session = m.session.Renew()
		m.skippedView.SetOutcome(nil)
		m.refreshStatus()
	}
	m.mode = m.prevMode
	if m.mode == viewJob {
		m.mode = viewFiles
	}
	m.focusCurrentView()
}

func (m *model) setFiles(fs []backend.FileRef) {
	m.files = fs
	m.filesView.SetFiles(fs)
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	m.commandView.SetSelected(names)
}

func (m *model) removeFiles(names []string) {
	fs := m.files
	removed := 0
	for _, n := range names {
		var ok bool
		if fs, ok = backend.RemoveFile(fs, n); ok {
			removed++
		}
	}
	m.setFiles(fs)
	m.flash = fmt.Sprintf("removed %d file(s)", removed)
}

// refreshStatus pushes the session state into every view showing it.
func (m *model) refreshStatus() {
	st := m.session.State()
	m.filesView.SetStatus(st, m.spinner.View())
	if st.Outcome != nil {
		m.skippedView.SetOutcome(st.Outcome)
	}
	if m.jobView.Active() {
		m.jobView.Refresh(st)
	}
	if st.CurrentJobID != "" {
		m.commandView.SetJobIDs([]string{st.CurrentJobID})
	}
}

func (m *model) restorePreviousView() {
	if m.mode != viewJob {
		m.mode = m.prevMode
	}
	m.focusCurrentView()
}

func (m *model) focusCurrentView() {
	switch m.mode {
	case viewFiles:
		m.filesView.Focus()
	case viewSkipped:
		m.skippedView.Focus()
	}
}

func (m model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case viewFiles:
		var cmd tea.Cmd
		m.filesView, cmd = m.filesView.Update(msg)
		return m, cmd
	case viewSkipped:
		var cmd tea.Cmd
		m.skippedView, cmd = m.skippedView.Update(msg)
		return m, cmd
	case viewJob:
		var cmd tea.Cmd
		m.jobView, cmd = m.jobView.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() tea.View {
	var v tea.View
	v.AltScreen = true

	if !m.ready {
		v.SetContent("Loading...")
		return v
	}

	var b strings.Builder

	// Help overlay.
	if m.showHelp {
		v.SetContent(m.renderHelpOverlay())
		return v
	}

	// Full-screen job view (no header/footer).
	if m.mode == viewJob {
		b.WriteString(m.jobView.View())
		b.WriteByte('\n')
		b.WriteString(ui.StyleDim.Render(" esc back  │  j/k scroll  │  ctrl+c quit"))
		v.SetContent(b.String())
		return v
	}

	// Header (2 lines: title + bar).
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')

	b.WriteString(m.form.View())
	b.WriteByte('\n')

	menuHeight := m.commandView.MenuHeight()
	contentHeight := m.contentHeight() - menuHeight
	if contentHeight < 5 {
		contentHeight = 5
	}
	m.filesView.SetSize(m.width, contentHeight)
	m.skippedView.SetSize(m.width, contentHeight)

	// Main content area.
	if resultView := m.commandView.ViewResult(); resultView != "" {
		b.WriteString(resultView)
	} else {
		switch m.mode {
		case viewFiles:
			b.WriteString(m.filesView.View())
		case viewSkipped:
			b.WriteString(m.skippedView.View())
		}
	}

	// Bottom: command input (with menu) or help line.
	b.WriteByte('\n')
	if m.commandView.Focused() {
		b.WriteString(m.commandView.ViewInput())
	} else {
		b.WriteString(m.renderHelpLine())
	}

	v.SetContent(b.String())
	return v
}

func (m *model) renderHeader() string {
	title := ui.StyleHeader.Render(fmt.Sprintf(" %s ", AppName))

	st := m.session.State()
	phase := ui.PhaseIcon(st.Phase) + " " + ui.StyleAccent.Render(st.Phase.String())

	var channelStr string
	switch m.channelState {
	case channelUp:
		channelStr = ui.StyleDim.Render("progress: ") + ui.StyleActive.Render("live")
	case channelDown:
		channelStr = ui.StyleDim.Render("progress: ") + ui.StyleInactive.Render("offline")
	default:
		channelStr = ui.StyleDim.Render("progress: connecting")
	}

	stats := ui.StyleDim.Render(fmt.Sprintf(
		"server: %s   files: %d   skipped: %d",
		m.cfg.Server.BaseURL, len(m.files), m.skippedView.Count(),
	))

	sep := ui.StyleDim.Render("   ")
	header := lipgloss.JoinHorizontal(lipgloss.Center,
		title, sep, phase, sep, channelStr, sep, stats,
	)

	bar := strings.Repeat("━", m.width)
	return header + "\n" + ui.StyleDim.Render(bar)
}

func (m *model) renderHelpLine() string {
	var parts []string
	switch m.mode {
	case viewFiles:
		parts = []string{"↑↓ navigate", "e describe", "x remove", "ctrl+s analyze", "/ command", "tab skipped", "q quit"}
	case viewSkipped:
		parts = []string{"↑↓ navigate", "ctrl+s analyze", "tab files", "/ command", "q quit"}
	}
	if m.form.Focused() {
		parts = []string{"type the job description", "esc done"}
	}
	line := ui.StyleDim.Render(" " + strings.Join(parts, "  │  "))
	if m.flash != "" {
		line += ui.StyleDim.Render("  │  ") + ui.StyleAccent.Render(m.flash)
	}
	return line
}

func (m *model) renderHelpOverlay() string {
	title := ui.StyleHeader.Render(fmt.Sprintf(" %s help ", AppName))
	help := `
  Navigation
    ↑/↓, j/k        Navigate list
    tab             Switch files ↔ skipped
    enter           Open the current job
    esc             Back / dismiss
    q, ctrl+c       Quit

  Upload
    e               Edit the job description (esc to finish)
    x, delete       Remove the selected résumé
    ctrl+s          Analyze
    ctrl+l          Rescan the drop folder

  Command Line
    /               Open command line
    enter           Execute command
    tab             Tab completion
    ↑/↓             Pick a completion, or recall earlier lines
    esc             Close command line

  Commands
    submit          Analyze the selection
    add <path>...   Add résumé files
    remove <name>   Remove a résumé
    clear           Clear the selection
    job <id>        Open a job's detail view
    help            Show this screen
    quit            Quit

  ` + ui.StyleDim.Render("Press ? to close")
	return title + "\n" + help
}

// contentHeight is what remains for the main view below the header and form.
func (m *model) contentHeight() int {
	h := m.height - 2 - m.form.Height() - 1
	if h < 5 {
		h = 5
	}
	return h
}

func (m *model) layoutViews() {
	m.form.SetSize(m.width, formRows)
	viewHeight := m.contentHeight()
	m.filesView.SetSize(m.width, viewHeight)
	m.skippedView.SetSize(m.width, viewHeight)
	m.commandView.SetSize(m.width, viewHeight)
	m.jobView.SetSize(m.width, m.height-1) // full height minus help line
}

// --- Commands ---

func (m *model) connectChannel() tea.Cmd {
	ch := m.channel
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		return ChannelReadyMsg{Err: ch.Connect(ctx)}
	}
}

func (m *model) loadDropDir(replace bool) tea.Cmd {
	dir, exts := m.cfg.Files.DropDir, m.cfg.Files.Extensions
	if dir == "" {
		return nil
	}
	return func() tea.Msg {
		fs, err := backend.ListDropDir(dir, exts)
		return DropDirLoadedMsg{Files: fs, Replace: replace, Err: err}
	}
}

func (m *model) addFiles(paths []string) tea.Cmd {
	exts := m.cfg.Files.Extensions
	return func() tea.Msg {
		var msg FilesAddedMsg
		for _, p := range paths {
			f, err := backend.FileRefFromPath(p, exts)
			if err != nil {
				msg.Errs = append(msg.Errs, err)
				continue
			}
			msg.Files = append(msg.Files, f)
		}
		return msg
	}
}

// analyze runs the request. It is not cancelled on quit; its result is
// discarded by the session instead.
func (m *model) analyze(eff session.EffectSubmit) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		outcome, err := client.Analyze(context.Background(), eff.Job)
		return SubmitResultMsg{Generation: eff.Generation, Outcome: outcome, Err: err}
	}
}

func (m *model) scheduleRedirect(eff session.EffectRedirect) tea.Cmd {
	m.logger.WithFields(logrus.Fields{
		"job_id":   eff.JobID,
		"delay_ms": eff.Delay.Milliseconds(),
	}).Info("redirect.scheduled")
	return tea.Tick(eff.Delay, func(time.Time) tea.Msg {
		return RedirectMsg{Token: eff.Token}
	})
}

func filePaths(fs []backend.FileRef) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Path
	}
	return out
}
