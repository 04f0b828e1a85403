package tui

import "strings"

// Command names accepted by the ':' prompt and the composer.
const (
	CmdQuit    = "quit"
	CmdLogout  = "logout"
	CmdHelp    = "help"
	CmdRefresh = "refresh"
	CmdOpen    = "open"
	CmdSearch  = "search"
	CmdImage   = "image"
)

var aliases = map[string]string{
	"q":   CmdQuit,
	"h":   CmdHelp,
	"r":   CmdRefresh,
	"o":   CmdOpen,
	"s":   CmdSearch,
	"img": CmdImage,
}

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	if full, ok := aliases[cmd.Name]; ok {
		cmd.Name = full
	}
	return cmd
}

// ParseComposer reports whether composer text is a slash command, e.g.
// "/image ~/cat.png". A leading "//" sends a literal slash.
func ParseComposer(text string) (Command, bool) {
	trimmed := strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(trimmed, "/")
	if !ok || rest == "" || strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, " ") {
		return Command{}, false
	}
	return ParseCommand(rest), true
}

// UnescapeComposer strips the escape from "//text".
func UnescapeComposer(text string) string {
	if rest, ok := strings.CutPrefix(strings.TrimSpace(text), "//"); ok {
		return "/" + rest
	}
	return text
}
