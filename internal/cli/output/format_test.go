package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "table", want: FormatTable},
		{input: "", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "  yaml ", want: FormatYAML},
		{input: "xml", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type session struct {
	Username string `json:"username" yaml:"username"`
	Port     int    `json:"port" yaml:"port"`
}

func TestPrinterFormats(t *testing.T) {
	data := session{Username: "alice", Port: 8080}

	var buf bytes.Buffer
	require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(data))
	assert.Contains(t, buf.String(), `"username": "alice"`)

	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(data))
	assert.Contains(t, buf.String(), "username: alice")
	assert.Contains(t, buf.String(), "port: 8080")

	// Not a TableRenderer, so table falls back to JSON.
	buf.Reset()
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data))
	assert.Contains(t, buf.String(), `"port": 8080`)

	buf.Reset()
	table := NewTable("Username")
	table.AddRow("alice")
	require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(table))
	assert.Contains(t, buf.String(), "USERNAME")

	assert.Error(t, NewPrinter(&buf, Format("xml"), false).Print(data))
}

func TestPrinterStatusLines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("saved")
	p.Warning("careful")
	p.Error("failed")
	assert.Equal(t, "saved\ncareful\nfailed\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Success("ok")
	assert.Equal(t, "\033[32mok\033[0m\n", buf.String())

	d := DefaultPrinter()
	assert.Equal(t, FormatTable, d.Format())
	assert.True(t, d.ColorEnabled())
}
