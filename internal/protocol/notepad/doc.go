// Package notepad implements the wire format of the notepad protocol.
//
// The protocol is free-form text over a TCP stream. There is no framing:
// every successful read from the socket is one message. Messages are
// decoded as UTF-8, with invalid sequences replaced by U+FFFD, and trimmed
// of surrounding whitespace.
//
// After the username exchange every message is either a command, selected
// by its first whitespace-separated token, or a line of text to append:
//
//	SAVE [filename]   write the buffer (default notepad.txt) and clear it
//	LOAD filename     replace the buffer with the file's content
//	LS                list the user's files
//	EXIT              release the username and close
//	anything else     append to the buffer and redraw
//
// Keywords are case-sensitive. Tokens after the first argument are ignored.
package notepad
