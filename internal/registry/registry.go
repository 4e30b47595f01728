// Package registry maps IANA protocol numbers, as they appear in flow log
// records, to lowercase protocol keywords.
package registry

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"FlowTagger/internal/errors"

	"github.com/google/gopacket/layers"
)

const (
	decimalColumn = "Decimal"
	keywordColumn = "Keyword"
)

// Registry is an immutable protocol number to keyword mapping. It is safe for
// concurrent readers.
type Registry struct {
	keywords map[string]string
}

// Load reads a protocol reference table with Decimal and Keyword columns.
// Rows whose Decimal is not a plain digit string, rows without a keyword, and
// repeated decimals are logged and skipped.
func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to open protocol table '%s'", path)
	}
	defer file.Close()

	return Parse(file, path)
}

// Parse reads a protocol reference table from r. name is used in messages.
func Parse(r io.Reader, name string) (*Registry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to read header of protocol table '%s'", name)
	}
	decimalIdx, keywordIdx := -1, -1
	for i, col := range header {
		switch col {
		case decimalColumn:
			decimalIdx = i
		case keywordColumn:
			keywordIdx = i
		}
	}
	if decimalIdx < 0 || keywordIdx < 0 {
		return nil, errors.Errorf(errors.KindConfig, "invalid headers in protocol table '%s': expected columns %s and %s, got %v",
			name, decimalColumn, keywordColumn, header)
	}

	keywords := make(map[string]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindConfig, "failed to parse protocol table '%s'", name)
		}

		decimal := strings.TrimSpace(field(row, decimalIdx))
		keyword := strings.ToLower(strings.TrimSpace(field(row, keywordIdx)))
		line, _ := reader.FieldPos(0)

		if !isDigits(decimal) || keyword == "" {
			slog.Warn("Skipping invalid protocol entry", "table", name, "line", line, "row", row)
			continue
		}
		if prev, dup := keywords[decimal]; dup {
			slog.Warn("Skipping duplicate protocol entry", "table", name, "line", line, "decimal", decimal, "kept", prev)
			continue
		}
		keywords[decimal] = keyword
	}

	if len(keywords) == 0 {
		return nil, errors.Errorf(errors.KindConfig, "no valid protocol mappings found in '%s'", name)
	}
	slog.Debug("Protocol table loaded", "table", name, "entries", len(keywords))
	return &Registry{keywords: keywords}, nil
}

// Builtin returns a registry derived from the IP protocol names known to
// gopacket. Keywords follow gopacket's naming (e.g. "icmpv4" for 1).
func Builtin() *Registry {
	keywords := make(map[string]string)
	for i := 0; i < 256; i++ {
		name := layers.IPProtocol(i).String()
		if name == "" || name == "UnknownIPProtocol" {
			continue
		}
		keywords[strconv.Itoa(i)] = strings.ToLower(name)
	}
	return &Registry{keywords: keywords}
}

// FromMap builds a registry from an in-memory mapping. Keys are used as is,
// keywords are lowercased.
func FromMap(m map[string]string) *Registry {
	keywords := make(map[string]string, len(m))
	for k, v := range m {
		keywords[k] = strings.ToLower(v)
	}
	return &Registry{keywords: keywords}
}

// Lookup returns the keyword for a protocol number.
func (r *Registry) Lookup(number string) (string, bool) {
	keyword, ok := r.keywords[number]
	return keyword, ok
}

// Len returns the number of known protocol numbers.
func (r *Registry) Len() int {
	return len(r.keywords)
}

func field(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
