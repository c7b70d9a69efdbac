package hostsfile

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	input := strings.NewReader(`
# comment line
127.0.0.1 localhost
1.2.3.4 foo.local  foo   # trailing comment
::1 localhost ip6-localhost

not-an-ip bogus
`)
	records, err := Parse(input)
	require.NoError(t, err)
	require.Len(t, records, 3)

	require.True(t, records[0].Addr.Equal(net.ParseIP("127.0.0.1")))
	require.Equal(t, []string{"localhost"}, records[0].Names)

	require.True(t, records[1].Addr.Equal(net.ParseIP("1.2.3.4")))
	require.Equal(t, []string{"foo.local", "foo"}, records[1].Names)

	require.True(t, records[2].Addr.Equal(net.ParseIP("::1")))
	require.Equal(t, []string{"localhost", "ip6-localhost"}, records[2].Names)
}

func TestParseEmpty(t *testing.T) {
	records, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, records)
}
