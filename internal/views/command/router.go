package command

import (
	"fmt"
	"strings"
)

// Name identifies a command-bar command.
type Name string

const (
	CmdSubmit Name = "submit"
	CmdAdd    Name = "add"
	CmdRemove Name = "remove"
	CmdClear  Name = "clear"
	CmdJob    Name = "job"
	CmdHelp   Name = "help"
	CmdQuit   Name = "quit"
)

// Command is a parsed command-bar input.
type Command struct {
	Name Name
	Args []string
	Raw  string
}

// arity is the number of required arguments per command. -1 means one or more.
var arity = map[Name]int{
	CmdSubmit: 0,
	CmdAdd:    -1,
	CmdRemove: -1,
	CmdClear:  0,
	CmdJob:    1,
	CmdHelp:   0,
	CmdQuit:   0,
}

// aliases map short forms to commands.
var aliases = map[string]Name{
	"s":  CmdSubmit,
	"a":  CmdAdd,
	"rm": CmdRemove,
	"q":  CmdQuit,
}

// Parse turns input into a Command or reports why it cannot run.
func Parse(input string) (Command, error) {
	input = strings.TrimSpace(input)
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	name := Name(parts[0])
	if alias, ok := aliases[parts[0]]; ok {
		name = alias
	}
	want, ok := arity[name]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q (try help)", parts[0])
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	switch {
	case want < 0 && len(args) == 0:
		return Command{}, fmt.Errorf("%s needs at least one argument", name)
	case want >= 0 && len(args) != want:
		return Command{}, fmt.Errorf("%s takes %d argument(s), got %d", name, want, len(args))
	}
	return Command{Name: name, Args: args, Raw: input}, nil
}
