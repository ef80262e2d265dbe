package tui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/wppcrm/internal/tui/views"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':'). Aliases
// resolve to their full name.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	return cmd
}

var aliases = map[string]string{
	"q": "quit",
	"h": "help",
	"s": "search",
	"c": "chat",
	"l": "label",
	"r": "reload",
}

// commands lists every ':' command in help order.
var commands = []struct {
	name  string
	usage string
	desc  string
	args  bool
}{
	{"chat", "chat <name|number>", "Open a conversation", true},
	{"search", "search <query>", "Search message history", false},
	{"label", "label <name>", "Show conversations with a label", false},
	{"labels", "labels", "List labels", false},
	{"reload", "reload", "Reload conversations and status", false},
	{"auth", "auth", "Pair with a QR code", false},
	{"pair", "pair <phone>", "Pair with a phone code", true},
	{"logout", "logout", "Unlink this session", false},
	{"help", "help", "Show this help", false},
	{"quit", "quit", "Quit", false},
}

// Validate reports an unknown command or missing arguments.
func (c Command) Validate() error {
	for _, k := range commands {
		if k.name != c.Name {
			continue
		}
		if k.args && c.Args == "" {
			return fmt.Errorf("usage: :%s", k.usage)
		}
		return nil
	}
	return fmt.Errorf("unknown command %q", c.Name)
}

func commandNames() []string {
	out := make([]string, 0, len(commands))
	for _, k := range commands {
		out = append(out, k.name)
	}
	return out
}

func commandHelp() []views.CommandHelp {
	out := make([]views.CommandHelp, 0, len(commands))
	for _, k := range commands {
		out = append(out, views.CommandHelp{Usage: k.usage, Description: k.desc})
	}
	return out
}
