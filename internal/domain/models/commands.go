package models

import (
	"net/url"
	"strings"
)

// CommandType enumerates the slash commands users can type instead of pressing menu buttons.
type CommandType string

const (
	CommandQuery    CommandType = "query"
	CommandAdd      CommandType = "add"
	CommandInbound  CommandType = "inbound"
	CommandOutbound CommandType = "outbound"
	CommandEdit     CommandType = "edit"
	CommandHelp     CommandType = "help"
	CommandCancel   CommandType = "cancel"
	CommandUnknown  CommandType = "unknown"
)

// Command represents a parsed slash command extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// IsCommand reports whether a text message should be parsed as a slash command.
func IsCommand(message string) bool {
	return strings.HasPrefix(strings.TrimSpace(message), "/")
}

// ParseCommand derives a Command instance from a slash-prefixed message.
func ParseCommand(message string) Command {
	normalized := strings.TrimSpace(strings.ToLower(message))
	cmd := Command{Type: CommandUnknown, Raw: message}

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 || !strings.HasPrefix(tokens[0], "/") {
		return cmd
	}

	head := strings.TrimPrefix(tokens[0], "/")
	switch head {
	case string(CommandQuery), "search", "find":
		cmd.Type = CommandQuery
	case string(CommandAdd), "new":
		cmd.Type = CommandAdd
	case string(CommandInbound), "in":
		cmd.Type = CommandInbound
	case string(CommandOutbound), "out":
		cmd.Type = CommandOutbound
	case string(CommandEdit), "records", "mine":
		cmd.Type = CommandEdit
	case string(CommandHelp), "menu", "start":
		cmd.Type = CommandHelp
	case string(CommandCancel), "stop":
		cmd.Type = CommandCancel
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}

// ActionPostback converts a command into its top-level action postback.
// Unknown commands keep their own name so the engine can answer that the
// action is not available.
func (c Command) ActionPostback() (string, bool) {
	if c.Type != CommandUnknown && c.Type != "" {
		return ActionPrefix + string(c.Type), true
	}
	tokens := strings.Fields(strings.ToLower(c.Raw))
	if len(tokens) == 0 {
		return "", false
	}
	head := strings.TrimPrefix(tokens[0], "/")
	if head == "" {
		return "", false
	}
	return ActionPrefix + url.QueryEscape(head), true
}
