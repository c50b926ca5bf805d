package notepad

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"save default", "SAVE", Save{Filename: "notepad.txt"}},
		{"save named", "SAVE notes.txt", Save{Filename: "notes.txt"}},
		{"save extra tokens ignored", "SAVE a b c", Save{Filename: "a"}},
		{"save tab separated", "SAVE\tx.txt", Save{Filename: "x.txt"}},
		{"load named", "LOAD notes.txt", Load{Filename: "notes.txt"}},
		{"load missing argument", "LOAD", Load{}},
		{"load extra tokens ignored", "LOAD a.txt b.txt", Load{Filename: "a.txt"}},
		{"list", "LS", List{}},
		{"list with argument", "LS ignored", List{}},
		{"exit", "EXIT", Exit{}},
		{"exit trailing", "EXIT now", Exit{}},
		{"lowercase is text", "save", Append{Text: "save"}},
		{"prefix is text", "SAVED the day", Append{Text: "SAVED the day"}},
		{"keyword later is text", "please SAVE", Append{Text: "please SAVE"}},
		{"plain text", "hello world", Append{Text: "hello world"}},
		{"empty", "", Append{Text: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestCommandNames(t *testing.T) {
	assert.Equal(t, "SAVE", Save{}.Name())
	assert.Equal(t, "LOAD", Load{}.Name())
	assert.Equal(t, "LS", List{}.Name())
	assert.Equal(t, "EXIT", Exit{}.Name())
	assert.Equal(t, "APPEND", Append{}.Name())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"trims newline", []byte("alice\r\n"), "alice"},
		{"trims surrounding space", []byte("  SAVE x.txt \n"), "SAVE x.txt"},
		{"keeps inner space", []byte("a  b"), "a  b"},
		{"only whitespace", []byte(" \r\n\t"), ""},
		{"invalid utf8 replaced", []byte{'h', 0xff, 'i', '\n'}, "h�i"},
		{"adjacent invalid bytes", []byte{'a', 0xff, 0xfe, 'b'}, "a\uFFFD\uFFFDb"},
		{"truncated sequence is one replacement", []byte{'a', 0xe2, 0x82, 'b'}, "a\uFFFDb"},
		{"surrogate bytes", []byte{0xed, 0xa0, 0x80}, "\uFFFD\uFFFD\uFFFD"},
		{"trailing lead byte", []byte("ok\xf0\x9f"), "ok\uFFFD"},
		{"literal replacement kept", []byte("x\uFFFDy"), "x\uFFFDy"},
		{"valid multibyte", []byte("zoë\n"), "zoë"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decode(tt.raw))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "\n[File 'notes.txt' Loaded]\n", FileLoaded("notes.txt"))
	assert.Equal(t, "x.txt\ny.txt\n", Listing([]string{"x.txt", "y.txt"}))
	assert.Equal(t, "", Listing(nil))
	assert.Equal(t, "\x1B[2J\x1B[H--- Virtual Notepad ---\na\nb\n\n", Frame("a\nb\n"))
}

func TestAppendFrameReusesBuffer(t *testing.T) {
	var b bytes.Buffer
	AppendFrame(&b, "one\n")
	first := b.String()

	b.Reset()
	AppendFrame(&b, "one\n")
	assert.Equal(t, first, b.String())
}
