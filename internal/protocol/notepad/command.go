package notepad

import (
	"strings"
	"unicode/utf8"

	"github.com/marmos91/dittopad/pkg/store"
)

// Command names, as reported in logs and metrics.
const (
	NameSave   = "SAVE"
	NameLoad   = "LOAD"
	NameList   = "LS"
	NameExit   = "EXIT"
	NameAppend = "APPEND"
)

// Command is one parsed client message. The concrete types are Save, Load,
// List, Exit and Append; no other type implements it.
type Command interface {
	// Name returns the command keyword, or NameAppend for text.
	Name() string

	isCommand()
}

// Save writes the buffer to Filename.
type Save struct {
	Filename string
}

// Load replaces the buffer with Filename's content. An empty Filename
// means the argument was missing.
type Load struct {
	Filename string
}

// List lists the user's files.
type List struct{}

// Exit ends the session.
type Exit struct{}

// Append adds Text plus a newline to the buffer.
type Append struct {
	Text string
}

func (Save) Name() string   { return NameSave }
func (Load) Name() string   { return NameLoad }
func (List) Name() string   { return NameList }
func (Exit) Name() string   { return NameExit }
func (Append) Name() string { return NameAppend }

func (Save) isCommand()   {}
func (Load) isCommand()   {}
func (List) isCommand()   {}
func (Exit) isCommand()   {}
func (Append) isCommand() {}

// Decode turns raw socket bytes into a trimmed message. Each maximal
// invalid UTF-8 subsequence becomes one U+FFFD, so two stray bytes give
// two replacement characters.
func Decode(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r != utf8.RuneError || size > 1 {
			b.Write(raw[:size])
			raw = raw[size:]
			continue
		}
		b.WriteRune(utf8.RuneError)
		raw = raw[invalidPrefixLen(raw):]
	}
	return strings.TrimSpace(b.String())
}

// invalidPrefixLen returns how many bytes of an invalid sequence at the
// start of raw form its maximal subpart: a lead byte followed by the
// continuation bytes it would accept, cut short before completion.
func invalidPrefixLen(raw []byte) int {
	lead := raw[0]
	lo, hi := byte(0x80), byte(0xBF)
	var width int
	switch {
	case lead >= 0xC2 && lead <= 0xDF:
		width = 2
	case lead == 0xE0:
		width, lo = 3, 0xA0
	case lead == 0xED:
		width, hi = 3, 0x9F
	case lead >= 0xE1 && lead <= 0xEF:
		width = 3
	case lead == 0xF0:
		width, lo = 4, 0x90
	case lead == 0xF4:
		width, hi = 4, 0x8F
	case lead >= 0xF1 && lead <= 0xF3:
		width = 4
	default:
		return 1
	}

	n := 1
	for n < width && n < len(raw) {
		c := raw[n]
		if n == 1 && (c < lo || c > hi) {
			break
		}
		if n > 1 && (c < 0x80 || c > 0xBF) {
			break
		}
		n++
	}
	return n
}

// Parse classifies a decoded message. It never fails: anything that is not
// a command is text to append. An empty message appends an empty line.
func Parse(message string) Command {
	fields := strings.Fields(message)
	if len(fields) == 0 {
		return Append{Text: message}
	}

	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case NameSave:
		if arg == "" {
			arg = store.DefaultFilename
		}
		return Save{Filename: arg}
	case NameLoad:
		return Load{Filename: arg}
	case NameList:
		return List{}
	case NameExit:
		return Exit{}
	default:
		return Append{Text: message}
	}
}
