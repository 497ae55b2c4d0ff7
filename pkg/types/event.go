// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Event is one unit of job progress produced by a delivery mode and
// consumed once by the aggregator. The set of implementations is closed.
type Event interface {
	isEvent()
}

// Submitted reports the identifier the service assigned to the job.
type Submitted struct {
	JobID string
}

// Planning reports that the service is planning its research.
type Planning struct {
	Note string
}

// WebSearch reports a search or other tool step on the service side.
type WebSearch struct {
	Note string
}

// ContentChunk is an incremental piece of report text. Chunks are applied
// in arrival order.
type ContentChunk struct {
	Text string
}

// SourcesBatch carries sources reported so far.
type SourcesBatch struct {
	Sources []Source
}

// Snapshot is the full accumulated state returned by one status poll. It
// replaces previously buffered content.
type Snapshot struct {
	Content string
	Sources []Source
}

// Done marks successful completion.
type Done struct {
	ElapsedSeconds float64
}

// Error marks a failure reported by the service.
type Error struct {
	Message string
}

func (Submitted) isEvent() {}
func (Planning) isEvent() {}
func (WebSearch) isEvent() {}
func (ContentChunk) isEvent() {}
func (SourcesBatch) isEvent() {}
func (Snapshot) isEvent() {}
func (Done) isEvent() {}
func (Error) isEvent() {}
