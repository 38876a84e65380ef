package app

import "github.com/talentvibe/tui/internal/backend"

// ProgressMsg carries one event from the progress channel.
type ProgressMsg struct {
	Event backend.ProgressEvent
}

// SubmitResultMsg is sent when an analysis request returns.
type SubmitResultMsg struct {
	Generation uint64
	Outcome    backend.JobOutcome
	Err        error
}

// RedirectMsg is sent when a scheduled redirect delay elapses.
type RedirectMsg struct {
	Token uint64
}

// ChannelReadyMsg is sent once the progress channel connected or failed to.
type ChannelReadyMsg struct {
	Err error
}

// DropDirLoadedMsg is sent when the drop directory has been listed.
type DropDirLoadedMsg struct {
	Files []backend.FileRef
	// Replace makes the listing the new selection, as a drop does.
	Replace bool
	Err     error
}

// FilesAddedMsg is sent when paths given to add have been checked.
type FilesAddedMsg struct {
	Files []backend.FileRef
	Errs  []error
}
