package model

import "time"

// UntaggedTag is the tag assigned to records whose (port, protocol) pair has
// no lookup table entry.
const UntaggedTag = "Untagged"

// PortProtocol identifies a destination port and lowercase protocol keyword
// pair, e.g. {"443", "tcp"}.
type PortProtocol struct {
	Port     string
	Protocol string
}

// SkipReason explains why a flow log line contributed nothing to the counts.
type SkipReason int

const (
	SkipMalformed SkipReason = iota
	SkipUnsupportedVersion
	SkipNoData
	SkipUnknownProtocol
)

// SkipReasons lists every reason in declaration order.
var SkipReasons = []SkipReason{SkipMalformed, SkipUnsupportedVersion, SkipNoData, SkipUnknownProtocol}

func (r SkipReason) String() string {
	switch r {
	case SkipMalformed:
		return "malformed"
	case SkipUnsupportedVersion:
		return "unsupported-version"
	case SkipNoData:
		return "no-data"
	case SkipUnknownProtocol:
		return "unknown-protocol"
	default:
		return "unknown"
	}
}

// LineStats summarizes how the lines of one file were classified.
type LineStats struct {
	Lines    uint64
	Matched  uint64
	Untagged uint64
	Skipped  map[SkipReason]uint64
}

// TotalSkipped returns the number of lines skipped for any reason.
func (s LineStats) TotalSkipped() uint64 {
	var n uint64
	for _, c := range s.Skipped {
		n += c
	}
	return n
}

// FileResult is the aggregation of a single flow log file.
type FileResult struct {
	RunID         string
	Source        string
	Tags          *Counter[string]
	PortProtocols *Counter[PortProtocol]
	Stats         LineStats
	CompletedAt   time.Time
}

// NewFileResult returns an empty result for source.
func NewFileResult(source string) *FileResult {
	return &FileResult{
		Source:        source,
		Tags:          NewCounter[string](),
		PortProtocols: NewCounter[PortProtocol](),
		Stats:         LineStats{Skipped: make(map[SkipReason]uint64)},
	}
}
