package notepad

import (
	"bytes"
	"strings"
)

// Fixed server messages.
const (
	PromptUsername = "Enter your username: "
	UsernameTaken  = "Username already taken. Try again.\n"
	Welcome        = "\n--- Virtual Notepad ---\nType to edit. Send 'SAVE' to save. Send 'EXIT' to quit.\n\n"

	FileSaved    = "\n[file saved]\n"
	FileNotFound = "\n[Error: File Not Found]\n"
	LoadUsage    = "\n[Usage: LOAD filename.txt]\n"
	ListFailed   = "\n[Error: Could not list files]\n"

	// clearScreen erases the terminal and homes the cursor.
	clearScreen = "\x1B[2J\x1B[H"
	frameHeader = "--- Virtual Notepad ---\n"
)

// FileLoaded returns the confirmation for a successful LOAD.
func FileLoaded(filename string) string {
	return "\n[File '" + filename + "' Loaded]\n"
}

// Listing formats LS output: every name followed by a newline. No entries
// produce an empty string.
func Listing(names []string) string {
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte('\n')
	}
	return b.String()
}

// AppendFrame writes the redraw sent after each appended line to dst.
func AppendFrame(dst *bytes.Buffer, buffer string) {
	dst.Grow(len(clearScreen) + len(frameHeader) + len(buffer) + 1)
	dst.WriteString(clearScreen)
	dst.WriteString(frameHeader)
	dst.WriteString(buffer)
	dst.WriteByte('\n')
}

// Frame returns the redraw for buffer.
func Frame(buffer string) string {
	var b bytes.Buffer
	AppendFrame(&b, buffer)
	return b.String()
}
