package midi

import "fmt"

// ParseErrorStage identifies where in the MIR pipeline a non-fatal parse
// error occurred, for logging context.
type ParseErrorStage string

const (
	StageByteStream ParseErrorStage = "byte_stream"
	StageUMP        ParseErrorStage = "ump"
	StageMPE        ParseErrorStage = "mpe"
)

// ParseError wraps a non-fatal MIDI parse problem: the event in question is
// skipped and the stream continues, per spec.md §7. It exists so callers
// that do want to observe skipped events (metrics, debug logging) can, via
// errors.As, without MIR itself treating the condition as fatal.
type ParseError struct {
	Stage ParseErrorStage
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("midi: %s: %v", e.Stage, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }
