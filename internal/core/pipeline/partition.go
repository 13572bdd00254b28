// Package pipeline contains the input handling stages of the fetch
// pipeline: URL list reading and per-host partitioning.
package pipeline

import (
	"bufio"
	"io"
	"net/url"
	"strings"

	"js-rec/internal/platform/netutil"
)

// Record es una URL candidata junto a su host de agrupación.
type Record struct {
	URL  string
	Host string
}

// Partition agrupa records por host preservando el orden relativo de
// entrada dentro de cada grupo.
type Partition struct {
	Hosts     map[string][]Record
	Order     []string
	Malformed int
}

// Total returns the number of well-formed records across all hosts.
func (p Partition) Total() int {
	n := 0
	for _, records := range p.Hosts {
		n += len(records)
	}
	return n
}

// ReadList reads candidate URLs from r: one per non-blank line, first
// whitespace-delimited token wins (upstream verify stages append status
// metadata after the URL).
func ReadList(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if idx := strings.IndexAny(line, " \t"); idx != -1 {
			line = line[:idx]
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// Group particiona la lista por host. URLs sin esquema reciben https
// por defecto; las que no se pueden atribuir a un host http(s) se
// excluyen y se cuentan como malformadas. Sin I/O de red, determinista.
func Group(rawURLs []string) Partition {
	part := Partition{Hosts: make(map[string][]Record)}

	for _, raw := range rawURLs {
		record, ok := normalize(raw)
		if !ok {
			part.Malformed++
			continue
		}
		if _, seen := part.Hosts[record.Host]; !seen {
			part.Order = append(part.Order, record.Host)
		}
		part.Hosts[record.Host] = append(part.Hosts[record.Host], record)
	}
	return part
}

func normalize(raw string) (Record, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Record{}, false
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Record{}, false
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return Record{}, false
	}

	host := netutil.HostKey(trimmed)
	if host == "" {
		return Record{}, false
	}
	return Record{URL: trimmed, Host: host}, true
}
