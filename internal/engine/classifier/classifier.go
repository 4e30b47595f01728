// Package classifier turns one VPC flow log v2 record into a classification:
// a matched tag with its port/protocol pair, the Untagged sentinel, or a skip.
package classifier

import (
	"strings"

	"FlowTagger/internal/lookup"
	"FlowTagger/internal/model"
	"FlowTagger/internal/registry"
)

// Field positions of the default VPC flow log v2 format:
// version account-id interface-id srcaddr dstaddr srcport dstport protocol
// packets bytes start end action log-status
const (
	FieldCount       = 14
	versionField     = 0
	dstPortField     = 6
	protocolField    = 7
	SupportedVersion = "2"
	statusNoData     = "NODATA"
	statusSkipData   = "SKIPDATA"
)

// Outcome is the kind of a classification result.
type Outcome int

const (
	Skipped Outcome = iota
	Untagged
	Matched
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Untagged:
		return "untagged"
	default:
		return "skipped"
	}
}

// Result is the classification of a single line. Tag is set for Matched and
// Untagged; Key only for Matched; Reason and Detail only for Skipped.
type Result struct {
	Outcome Outcome
	Tag     string
	Key     model.PortProtocol
	Reason  model.SkipReason
	// Detail carries the offending value of a skipped line (version, status
	// or protocol number).
	Detail string
}

// Classify applies the classification rules to line. The first rule that
// applies decides the result:
//  1. a field count other than 14 is malformed
//  2. a version other than "2" is unsupported
//  3. NODATA and SKIPDATA records carry no traffic
//  4. a protocol number missing from the registry is unknown
//  5. otherwise the (port, protocol) pair is looked up, defaulting to Untagged
func Classify(line string, table *lookup.Table, reg *registry.Registry) Result {
	fields := strings.Fields(line)
	if len(fields) != FieldCount {
		return Result{Outcome: Skipped, Reason: model.SkipMalformed}
	}

	version := fields[versionField]
	port := fields[dstPortField]
	protocolNum := fields[protocolField]
	status := fields[len(fields)-1]

	if version != SupportedVersion {
		return Result{Outcome: Skipped, Reason: model.SkipUnsupportedVersion, Detail: version}
	}
	if status == statusNoData || status == statusSkipData {
		return Result{Outcome: Skipped, Reason: model.SkipNoData, Detail: status}
	}

	protocol, ok := reg.Lookup(protocolNum)
	if !ok {
		return Result{Outcome: Skipped, Reason: model.SkipUnknownProtocol, Detail: protocolNum}
	}

	tag, ok := table.Tag(port, protocol)
	if !ok {
		tag = model.UntaggedTag
	}
	if tag == model.UntaggedTag {
		return Result{Outcome: Untagged, Tag: tag}
	}
	return Result{
		Outcome: Matched,
		Tag:     tag,
		Key:     model.PortProtocol{Port: port, Protocol: protocol},
	}
}
