// Package hostsfile parses /etc/hosts syntax: whitespace-separated
// "<ip> <canonical> [<alias>...]" lines, "#" comments. It is a pure parser
// with no dependency on the resolver core — spec.md §6 specifies the
// hosts-file consumer only at this interface boundary.
package hostsfile

import (
	"bufio"
	"io"
	"net"
	"os"
	"strings"
)

// Record is a single hosts-file entry: one address and every name it
// answers for (the canonical name followed by any aliases on the line).
type Record struct {
	Addr  net.IP
	Names []string
}

// Load reads and parses the hosts file at path.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads hosts-file syntax from r.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}
		records = append(records, Record{Addr: ip, Names: fields[1:]})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
