package dnscore

import (
	"net"
	"strings"

	"github.com/miekg/dns"

	"github.com/asyncdns/dnscore/hostsfile"
)

// HostsTable is the read-only, immutable-after-load map from name to
// records described in spec.md §3. Per spec.md §4.1, only query_reverse
// may answer locally from it (reverseLookup); forward queries always go
// out over the network, and the table's forward direction serves only as
// the NXDOMAIN-rewrite existence check (exists) that remoteLookup.report
// consults — it never hands back an address itself.
//
// Grounded on the teacher library's HostsDB (blocklistdb-hosts.go), pared
// down from its per-address-family record shape to the set this module
// actually needs: "is this name known at all" plus the reverse map.
type HostsTable struct {
	names   map[string]struct{} // canonical (lowercase, no trailing dot) known names
	reverse map[string][]string // net.IP.String() form of the address -> fully-qualified names
}

// NewHostsTable builds a HostsTable from parsed hosts-file records.
func NewHostsTable(records []hostsfile.Record) *HostsTable {
	t := &HostsTable{
		names:   make(map[string]struct{}),
		reverse: make(map[string][]string),
	}
	for _, r := range records {
		for _, name := range r.Names {
			t.names[canonicalName(name)] = struct{}{}
			t.reverse[r.Addr.String()] = append(t.reverse[r.Addr.String()], dns.Fqdn(name))
		}
	}
	return t
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, "."))
}

// exists reports whether the hosts table has a record for name. Used by
// remoteLookup.report's NXDOMAIN rewrite.
func (t *HostsTable) exists(name string) bool {
	_, ok := t.names[canonicalName(name)]
	return ok
}

// reverseLookup returns the names hosts associates with addr.
func (t *HostsTable) reverseLookup(addr net.IP) []string {
	return t.reverse[addr.String()]
}

// emptyHostsTable is used when no hosts file is configured: every query
// falls through to the nameservers, and the NXDOMAIN rewrite never fires.
func emptyHostsTable() *HostsTable {
	return &HostsTable{names: map[string]struct{}{}, reverse: map[string][]string{}}
}
