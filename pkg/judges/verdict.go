package judges

import (
	"fmt"
	"strings"
)

// Verdict represents judge classification of submission outcome.
type Verdict int

const (
	// Pending means that submission is queued, compiling or running.
	Pending Verdict = iota
	CompileError
	RuntimeError
	WrongAnswer
	TimeLimitExceeded
	MemoryLimitExceeded
	PresentationError
	RestrictedFunction
	Accepted
	// Unknown is terminal verdict that has no better classification.
	Unknown
)

var verdictNames = [...]string{
	Pending:             "pending",
	CompileError:        "compile_error",
	RuntimeError:        "runtime_error",
	WrongAnswer:         "wrong_answer",
	TimeLimitExceeded:   "time_limit_exceeded",
	MemoryLimitExceeded: "memory_limit_exceeded",
	PresentationError:   "presentation_error",
	RestrictedFunction:  "restricted_function",
	Accepted:            "accepted",
	Unknown:             "unknown",
}

var verdictTitles = [...]string{
	Pending:             "Pending",
	CompileError:        "Compilation Error",
	RuntimeError:        "Runtime Error",
	WrongAnswer:         "Wrong Answer",
	TimeLimitExceeded:   "Time Limit Exceeded",
	MemoryLimitExceeded: "Memory Limit Exceeded",
	PresentationError:   "Presentation Error",
	RestrictedFunction:  "Restricted Function",
	Accepted:            "Accepted",
	Unknown:             "Unknown",
}

// IsTerminal returns true if verdict will never change.
func (v Verdict) IsTerminal() bool {
	return v != Pending && v.valid()
}

// String returns short name of verdict.
func (v Verdict) String() string {
	if !v.valid() {
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
	return verdictNames[v]
}

// Title returns human-readable verdict name.
func (v Verdict) Title() string {
	if !v.valid() {
		return v.String()
	}
	return verdictTitles[v]
}

func (v Verdict) MarshalText() ([]byte, error) {
	if !v.valid() {
		return nil, fmt.Errorf("invalid verdict %d", int(v))
	}
	return []byte(verdictNames[v]), nil
}

func (v *Verdict) UnmarshalText(data []byte) error {
	name := strings.ToLower(string(data))
	for i, n := range verdictNames {
		if n == name {
			*v = Verdict(i)
			return nil
		}
	}
	return fmt.Errorf("unknown verdict %q", string(data))
}

// ParseVerdict parses verdict from its short name.
func ParseVerdict(s string) (Verdict, error) {
	var v Verdict
	err := v.UnmarshalText([]byte(s))
	return v, err
}

func (v Verdict) valid() bool {
	return v >= Pending && v <= Unknown
}
