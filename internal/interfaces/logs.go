package interfaces

// LogSentinel is the exact line that terminates every job log stream.
const LogSentinel = "[END]"

// CodePrefix marks log lines that carry generated code fragments.
const CodePrefix = "CODE:"

// LogHub fans job progress lines out to any number of subscribers while
// retaining full per-job history for late joiners.
//
// Publish never blocks on slow subscribers; a subscriber whose buffer is full
// misses that line. Subscribe replays history before live lines and the
// returned channel is closed once the stream's terminal sentinel has been
// delivered. Close publishes the sentinel and detaches subscribers; it is
// idempotent per job.
type LogHub interface {
	Open(jobID string)
	Publish(jobID, line string)
	PublishCode(jobID, fragment string)
	Subscribe(jobID string) (<-chan string, func())
	Close(jobID string)
	History(jobID string) []string
	Drop(jobID string)
}
