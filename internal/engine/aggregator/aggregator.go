// Package aggregator counts the classifications of every line of a flow log
// file.
package aggregator

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"FlowTagger/internal/engine/classifier"
	"FlowTagger/internal/errors"
	"FlowTagger/internal/lookup"
	"FlowTagger/internal/model"
	"FlowTagger/internal/registry"
)

// maxLineSize bounds a single flow log line. Longer lines are skipped as
// malformed; v2 records are well under 1 KiB.
const maxLineSize = 1 << 20

// AggregateFile opens path and aggregates its lines.
func AggregateFile(path string, table *lookup.Table, reg *registry.Registry) (*model.FileResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindData, "failed to open flow log '%s'", path)
	}
	defer file.Close()

	return Aggregate(file, path, table, reg)
}

// Aggregate reads r line by line, in order, and counts tags and matched
// port/protocol pairs. Skipped lines are logged and only show up in the
// result's Stats. It fails when r cannot be read or when no line could be
// counted.
func Aggregate(r io.Reader, source string, table *lookup.Table, reg *registry.Registry) (*model.FileResult, error) {
	result := model.NewFileResult(source)

	reader := bufio.NewReaderSize(r, 64*1024)

	lineNo := 0
	for {
		line, oversized, err := readLine(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindData, "failed to read flow log '%s' at line %d", source, lineNo+1)
		}
		lineNo++
		result.Stats.Lines++

		if oversized {
			result.Stats.Skipped[model.SkipMalformed]++
			slog.Warn("Skipping oversized record", "file", source, "line", lineNo, "limit", maxLineSize)
			continue
		}

		res := classifier.Classify(line, table, reg)
		switch res.Outcome {
		case classifier.Matched:
			result.Tags.Inc(res.Tag)
			result.PortProtocols.Inc(res.Key)
			result.Stats.Matched++
		case classifier.Untagged:
			result.Tags.Inc(res.Tag)
			result.Stats.Untagged++
		default:
			result.Stats.Skipped[res.Reason]++
			logSkip(source, lineNo, line, res)
		}
	}

	if result.Tags.Len() == 0 {
		return nil, errors.Errorf(errors.KindData, "no valid flow log entries found in '%s' (%d lines, %d skipped)",
			source, result.Stats.Lines, result.Stats.TotalSkipped())
	}

	result.CompletedAt = time.Now().UTC()
	return result, nil
}

// readLine returns the next line of r without its line ending. A line longer
// than maxLineSize is consumed entirely and reported as oversized with an
// empty text. io.EOF is returned only when no more lines remain.
func readLine(r *bufio.Reader) (string, bool, error) {
	var (
		buf       []byte
		oversized bool
		started   bool
	)
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && started {
				return string(buf), oversized, nil
			}
			return "", false, err
		}
		started = true
		if !oversized {
			if len(buf)+len(chunk) > maxLineSize {
				oversized = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			if oversized {
				return "", true, nil
			}
			return string(buf), false, nil
		}
	}
}

// logSkip reports a skipped line. NODATA/SKIPDATA records are expected and
// logged at info, everything else at warn.
func logSkip(source string, lineNo int, line string, res classifier.Result) {
	attrs := []any{"file", source, "line", lineNo, "reason", res.Reason.String()}
	if res.Detail != "" {
		attrs = append(attrs, "value", res.Detail)
	}
	attrs = append(attrs, "record", strings.TrimSpace(line))

	switch res.Reason {
	case model.SkipNoData:
		slog.Info("Skipping record without data", attrs...)
	case model.SkipMalformed:
		slog.Warn("Skipping malformed record", attrs...)
	case model.SkipUnsupportedVersion:
		slog.Warn("Skipping record with unsupported version", attrs...)
	default:
		slog.Warn("Skipping record with unknown protocol", attrs...)
	}
}
