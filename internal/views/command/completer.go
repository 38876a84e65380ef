package command

import (
	"sort"
	"strings"
)

// Candidate is a completion option with a description.
type Candidate struct {
	Value string // the text to insert
	Desc  string // short description
}

// Completer provides live completion for the command line.
type Completer struct {
	selected  []string
	available []string
	jobIDs    []string
}

// NewCompleter creates a completer.
func NewCompleter() *Completer {
	return &Completer{}
}

// SetSelected updates the names of the files currently selected.
func (c *Completer) SetSelected(names []string) {
	c.selected = names
}

// SetAvailable updates the paths offered to add.
func (c *Completer) SetAvailable(paths []string) {
	c.available = paths
}

// SetJobIDs updates the job ids known to this session.
func (c *Completer) SetJobIDs(ids []string) {
	c.jobIDs = ids
}

var descriptions = map[Name]string{
	CmdSubmit: "Submit the description and selected résumés",
	CmdAdd:    "Add a résumé file",
	CmdRemove: "Remove a selected résumé",
	CmdClear:  "Clear the selection",
	CmdJob:    "Open a job's detail view",
	CmdHelp:   "Show help",
	CmdQuit:   "Quit",
}

// Complete returns candidates for the current input.
func (c *Completer) Complete(input string) []Candidate {
	parts := strings.Fields(input)
	trailing := strings.HasSuffix(input, " ")

	// No input yet or partial first word: show commands.
	if len(parts) == 0 || (len(parts) == 1 && !trailing) {
		prefix := ""
		if len(parts) == 1 {
			prefix = parts[0]
		}
		return topLevelCandidates(prefix)
	}

	prefix := ""
	if !trailing {
		prefix = parts[len(parts)-1]
	}

	switch Name(parts[0]) {
	case CmdAdd:
		return dynamicCandidates(c.available, prefix, "drop folder")
	case CmdRemove:
		return dynamicCandidates(c.selected, prefix, "selected")
	case CmdJob:
		if len(parts) > 2 || (len(parts) == 2 && trailing) {
			return nil
		}
		return dynamicCandidates(c.jobIDs, prefix, "job")
	}
	return nil
}

func topLevelCandidates(prefix string) []Candidate {
	keys := make([]string, 0, len(descriptions))
	for k := range descriptions {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	var result []Candidate
	for _, k := range keys {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			result = append(result, Candidate{Value: k, Desc: descriptions[Name(k)]})
		}
	}
	return result
}

func dynamicCandidates(items []string, prefix, kind string) []Candidate {
	var result []Candidate
	for _, item := range items {
		if prefix == "" || strings.HasPrefix(item, prefix) {
			result = append(result, Candidate{Value: item, Desc: kind})
		}
	}
	return result
}
