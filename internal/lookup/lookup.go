// Package lookup loads the user supplied table that maps a destination port
// and protocol keyword to a classification tag.
package lookup

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"FlowTagger/internal/errors"
	"FlowTagger/internal/model"
)

// Header is the exact header row a lookup table must start with.
var Header = []string{"dstport", "protocol", "tag"}

// Table is an immutable (port, protocol) to tag mapping shared by all
// aggregation workers.
type Table struct {
	tags map[model.PortProtocol]string
}

// Load reads a lookup table from path.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to open lookup table '%s'", path)
	}
	defer file.Close()

	return Parse(file, path)
}

// Parse reads a lookup table from r. The header must equal Header, column
// order included. Protocols are lowercased; a repeated (port, protocol) pair
// replaces the earlier tag.
func Parse(r io.Reader, name string) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, errors.KindConfig, "failed to read header of lookup table '%s'", name)
	}
	if !slices.Equal(header, Header) {
		return nil, errors.Errorf(errors.KindConfig, "invalid headers in lookup table '%s': expected %v, got %v", name, Header, header)
	}

	tags := make(map[model.PortProtocol]string)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindConfig, "failed to parse lookup table '%s'", name)
		}
		if len(row) < len(Header) {
			line, _ := reader.FieldPos(0)
			slog.Warn("Skipping lookup row with missing fields", "table", name, "line", line, "fields", len(row))
			continue
		}
		// trailing extra fields are ignored
		tags[model.PortProtocol{Port: row[0], Protocol: strings.ToLower(row[1])}] = row[2]
	}

	if len(tags) == 0 {
		return nil, errors.Errorf(errors.KindConfig, "lookup table '%s' is empty", name)
	}
	slog.Debug("Lookup table loaded", "table", name, "entries", len(tags))
	return &Table{tags: tags}, nil
}

// FromMap builds a table from an in-memory mapping. Protocols are lowercased.
func FromMap(m map[model.PortProtocol]string) *Table {
	tags := make(map[model.PortProtocol]string, len(m))
	for k, v := range m {
		tags[model.PortProtocol{Port: k.Port, Protocol: strings.ToLower(k.Protocol)}] = v
	}
	return &Table{tags: tags}
}

// Tag returns the tag for a port and lowercase protocol keyword.
func (t *Table) Tag(port, protocol string) (string, bool) {
	tag, ok := t.tags[model.PortProtocol{Port: port, Protocol: protocol}]
	return tag, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.tags)
}
