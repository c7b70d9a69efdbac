package resolvconf

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTolerant(t *testing.T) {
	input := strings.NewReader(`
; a comment
nameserver 8.8.8.8
nameserver 2001:4860:4860::8888
search example.com corp.example.com
domain example.com
options timeout:3 attempts:1 rotate ndots:2 edns0
made-up-directive foo
`)
	s, err := Parse(input, false)
	require.NoError(t, err)
	require.Equal(t, []net.IP{net.ParseIP("8.8.8.8"), net.ParseIP("2001:4860:4860::8888")}, s.Nameservers)
	require.Equal(t, []string{"example.com", "corp.example.com"}, s.Search)
	require.Equal(t, "example.com", s.Domain)
	require.Equal(t, 3, s.Timeout)
	require.Equal(t, 1, s.Attempts)
	require.True(t, s.Rotate)
	require.Equal(t, 2, s.Ndots)
	require.True(t, s.EDNS0)
}

func TestParseStrictRejectsUnknownDirective(t *testing.T) {
	input := strings.NewReader("made-up-directive foo\n")
	_, err := Parse(input, true)
	require.Error(t, err)
}

func TestParseStrictRejectsUnknownOption(t *testing.T) {
	input := strings.NewReader("options bogus-option\n")
	_, err := Parse(input, true)
	require.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	s, err := Parse(strings.NewReader(""), false)
	require.NoError(t, err)
	require.Equal(t, 1, s.Timeout)
	require.Equal(t, 2, s.Attempts)
	require.False(t, s.Rotate)
}
