package follow

// Kind distinguishes data records from the inline condition notices the
// engine emits alongside them.
type Kind int

const (
	// KindData carries payload bytes from a source, normally one
	// newline-terminated line (the initial pass may emit a trailing
	// unterminated line or, in byte mode, raw chunks).
	KindData Kind = iota
	// KindTruncated reports that the source shrank below the consumed
	// offset; reading restarted from the beginning.
	KindTruncated
	// KindRotated reports that the file at the watched path was replaced by
	// a different file; reading continues from the new file's start.
	KindRotated
	// KindUnavailable reports that the source became unreadable or vanished.
	KindUnavailable
	// KindRestored reports that a previously unavailable source reappeared
	// and is being followed again.
	KindRestored
)

// String returns the notice name for logging.
func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindTruncated:
		return "truncated"
	case KindRotated:
		return "rotated"
	case KindUnavailable:
		return "unavailable"
	case KindRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Record is one ordered chunk of engine output, tagged with the source path
// so a multiplexing sink can prefix headers on source change. Data is only
// set for KindData.
type Record struct {
	Path string
	Kind Kind
	Data []byte
}

// Sink consumes records in the order the engine produces them. A sink error
// aborts the run; a slow sink delays the current tick but never drops
// records within it.
type Sink interface {
	Emit(rec Record) error
}
