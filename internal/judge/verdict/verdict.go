// Package verdict defines the closed set of outcomes a judged submission can reach.
package verdict

// Verdict represents the final classification of a judged submission.
// The declaration order follows check precedence in the classifier, not severity.
type Verdict string

const (
	Pending       Verdict = "Pending"
	Accepted      Verdict = "Accepted"
	CompileError  Verdict = "CompileError"
	WrongAnswer   Verdict = "WrongAnswer"
	TimeExceeded  Verdict = "TimeExceeded"
	SpaceExceeded Verdict = "SpaceExceeded"
	RuntimeError  Verdict = "RuntimeError"

	// RestrictedFunction and ExtensionError are reserved for a sandbox-policy
	// layer. No check in the current pipeline produces them.
	RestrictedFunction Verdict = "RestrictedFunction"
	ExtensionError     Verdict = "ExtensionError"
)

// Terminal reports whether v is a final verdict. A submission stays Pending
// until judging completes and holds a terminal verdict forever after.
func (v Verdict) Terminal() bool {
	return v != Pending && v.Valid()
}

// Valid reports whether v is a member of the enumeration.
func (v Verdict) Valid() bool {
	switch v {
	case Pending, Accepted, CompileError, WrongAnswer, TimeExceeded,
		SpaceExceeded, RuntimeError, RestrictedFunction, ExtensionError:
		return true
	}
	return false
}
