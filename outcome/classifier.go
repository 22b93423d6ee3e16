// Package outcome turns terminal operation statuses into outcomes and pulls a
// human readable message out of raw execution traces.
package outcome

import (
	"regexp"
	"strings"

	"github.com/mohitkumar/txflow/model"
)

const (
	MaxRawMessageLength   = 300
	DefaultFailureMessage = "transaction failed"
)

var (
	conditionFailedRegex = regexp.MustCompile(`error: (?:pre|post)-condition failed: (.+?)(?:\n|$)`)
	errorLineRegex       = regexp.MustCompile(`error: (.+?)(?:\n| {2}-->|$)`)
)

// Classify maps a status to an outcome. The second return value is false while the
// status is not terminal. It is a pure function of its input.
func Classify(status model.OperationStatus) (model.Outcome, bool) {
	switch status.Phase {
	case model.PHASE_SEALED:
		if status.ExecutionCode == 0 {
			return model.Success(status.Events), true
		}
		return model.Failure(ExtractMessage(status.RawErrorTrace)), true
	case model.PHASE_EXPIRED:
		return model.Expired(), true
	default:
		return model.Outcome{}, false
	}
}

// ExtractMessage applies, in order: condition failure message, first error line,
// then the raw trace cut to MaxRawMessageLength runes.
func ExtractMessage(trace string) string {
	if strings.TrimSpace(trace) == "" {
		return DefaultFailureMessage
	}
	if m := conditionFailedRegex.FindStringSubmatch(trace); m != nil {
		if msg := strings.TrimSpace(m[1]); msg != "" {
			return msg
		}
	}
	if m := errorLineRegex.FindStringSubmatch(trace); m != nil {
		if msg := strings.TrimSpace(m[1]); msg != "" {
			return msg
		}
	}
	return truncate(trace, MaxRawMessageLength)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
