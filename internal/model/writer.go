package model

import "context"

// Writer defines a generic interface for persisting the result of one
// aggregated flow log file.
type Writer interface {
	// Name identifies the writer in logs.
	Name() string

	// Write persists result. Implementations must be safe for concurrent use;
	// the batch coordinator calls Write from several workers at once.
	Write(ctx context.Context, result *FileResult) error

	// Close releases connections held by the writer.
	Close() error
}
