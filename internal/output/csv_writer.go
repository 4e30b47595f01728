package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"FlowTagger/internal/errors"
	"FlowTagger/internal/model"
)

// Section and column headers of the per-file CSV artifact.
const (
	TagSectionTitle          = "Tag Counts"
	PortProtocolSectionTitle = "Tagged Port/Protocol Combination Counts"
	outputSuffix             = "_output.csv"
)

var (
	tagHeader          = []string{"Tag", "Count"}
	portProtocolHeader = []string{"Port", "Protocol", "Count"}
)

// CSVWriter writes one <base name>_output.csv artifact per flow log file into
// a directory. It implements the model.Writer interface.
type CSVWriter struct {
	dir string
}

// NewCSVWriter creates a writer for dir. The directory must exist.
func NewCSVWriter(dir string) *CSVWriter {
	return &CSVWriter{dir: dir}
}

// Name returns the writer type.
func (w *CSVWriter) Name() string {
	return "csv"
}

// OutputPath returns the artifact path for a flow log source path.
func (w *CSVWriter) OutputPath(source string) string {
	return filepath.Join(w.dir, filepath.Base(source)+outputSuffix)
}

// Write creates or truncates the artifact of result.Source.
func (w *CSVWriter) Write(_ context.Context, result *model.FileResult) error {
	path := w.OutputPath(result.Source)
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, errors.KindData, "failed to create output file '%s'", path)
	}

	if err := WriteCSV(file, result); err != nil {
		file.Close()
		return errors.Wrapf(err, errors.KindData, "failed to write output file '%s'", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, errors.KindData, "failed to close output file '%s'", path)
	}
	return nil
}

// Close is a no-op; files are closed after each write.
func (w *CSVWriter) Close() error {
	return nil
}

// WriteCSV writes the two-section artifact for result to out. The
// port/protocol section is omitted when no pair was matched.
func WriteCSV(out io.Writer, result *model.FileResult) error {
	cw := csv.NewWriter(out)
	cw.UseCRLF = true

	rows := [][]string{{TagSectionTitle}, tagHeader}
	result.Tags.Each(func(tag string, n uint64) {
		rows = append(rows, []string{tag, strconv.FormatUint(n, 10)})
	})

	if result.PortProtocols.Len() > 0 {
		rows = append(rows, []string{}, []string{PortProtocolSectionTitle}, portProtocolHeader)
		result.PortProtocols.Each(func(key model.PortProtocol, n uint64) {
			rows = append(rows, []string{key.Port, key.Protocol, strconv.FormatUint(n, 10)})
		})
	}

	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}
	return nil
}

// ReadCSV parses an artifact written by CSVWriter back into counters. Only
// Source, Tags and PortProtocols of the returned result are set.
func ReadCSV(path string) (*model.FileResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file '%s': %w", path, err)
	}
	defer file.Close()

	return ParseCSV(file, path)
}

// ParseCSV is ReadCSV over a reader.
func ParseCSV(r io.Reader, source string) (*model.FileResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse '%s': %w", source, err)
	}

	result := model.NewFileResult(source)
	if len(records) < 2 || !slices.Equal(records[0], []string{TagSectionTitle}) || !slices.Equal(records[1], tagHeader) {
		return nil, fmt.Errorf("'%s' does not start with the tag count section", source)
	}

	i := 2
	for ; i < len(records) && len(records[i]) == len(tagHeader); i++ {
		n, err := strconv.ParseUint(records[i][1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tag count on row %d of '%s': %w", i+1, source, err)
		}
		result.Tags.Add(records[i][0], n)
	}
	if i == len(records) {
		return result, nil
	}

	if len(records)-i < 2 || !slices.Equal(records[i], []string{PortProtocolSectionTitle}) || !slices.Equal(records[i+1], portProtocolHeader) {
		return nil, fmt.Errorf("unexpected row %v in '%s'", records[i], source)
	}
	for i += 2; i < len(records); i++ {
		if len(records[i]) != len(portProtocolHeader) {
			return nil, fmt.Errorf("unexpected row %v in '%s'", records[i], source)
		}
		n, err := strconv.ParseUint(records[i][2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid port/protocol count on row %d of '%s': %w", i+1, source, err)
		}
		result.PortProtocols.Add(model.PortProtocol{Port: records[i][0], Protocol: records[i][1]}, n)
	}
	return result, nil
}
