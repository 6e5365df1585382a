package interaction

import (
	"errors"
	"fmt"
)

// Command is a slash command this service registers and answers.
type Command struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Reply       string `json:"-" yaml:"reply"`
}

// FallbackCommand names the command whose reply answers unrecognized names.
const FallbackCommand = "bmsinfo"

var builtinCommands = []Command{
	{
		Name:        "bmsinfo",
		Description: "BMS 정보 저장소 URL을 출력합니다.",
		Reply:       "븜스 입문용 정보 저장소입니다! https://sites.google.com/view/remilegi-bms",
	},
	{
		Name:        "카페",
		Description: "카페 접속용 URL을 출력합니다.",
		Reply:       "사좋돌아 https://sadoljoa.co.kr",
	},
}

// Commands returns a copy of the built-in command set.
func Commands() []Command {
	out := make([]Command, len(builtinCommands))
	copy(out, builtinCommands)
	return out
}

// ReplyTable resolves command names to reply text. It is immutable once built.
type ReplyTable struct {
	replies  map[string]string
	fallback string
}

// NewReplyTable builds a table from commands. fallback must name one of them.
func NewReplyTable(commands []Command, fallback string) (*ReplyTable, error) {
	if len(commands) == 0 {
		return nil, errors.New("reply table needs at least one command")
	}

	replies := make(map[string]string, len(commands))
	for i, c := range commands {
		if c.Name == "" {
			return nil, fmt.Errorf("command[%d]: name is required", i)
		}
		if _, dup := replies[c.Name]; dup {
			return nil, fmt.Errorf("command %q defined twice", c.Name)
		}
		replies[c.Name] = c.Reply
	}

	text, ok := replies[fallback]
	if !ok {
		return nil, fmt.Errorf("fallback command %q is not defined", fallback)
	}

	return &ReplyTable{replies: replies, fallback: text}, nil
}

// DefaultReplyTable returns the table for the built-in commands.
func DefaultReplyTable() *ReplyTable {
	t, err := NewReplyTable(builtinCommands, FallbackCommand)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the reply for name, or the fallback text with known=false.
func (t *ReplyTable) Lookup(name string) (text string, known bool) {
	if text, ok := t.replies[name]; ok {
		return text, true
	}
	return t.fallback, false
}

// Len returns the number of named entries.
func (t *ReplyTable) Len() int {
	return len(t.replies)
}
