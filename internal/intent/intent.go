// Package intent holds the command vocabulary of the assistant: the closed
// intent and target sets, transcript normalization, the keyword fast path and
// validation of results returned by the model classifier.
package intent

import (
	"fmt"
	"slices"
)

// Intent is the kind of command the user asked for.
type Intent string

const (
	OpenApp     Intent = "open_app"
	OpenWebsite Intent = "open_website"
	GetTime     Intent = "get_time"
	GetDate     Intent = "get_date"
	Search      Intent = "search"
	None        Intent = "none"

	// Stop is produced only by the fast path when a stop phrase is heard.
	// It is not part of the allow-list, so the model can never return it.
	Stop Intent = "stop"
)

// Target is the object of an intent. For Search it carries the free-form query.
type Target string

const (
	Notepad    Target = "notepad"
	Calculator Target = "calculator"
	YouTube    Target = "youtube"
	Google     Target = "google"
	NoTarget   Target = ""
)

// AllowedIntents is the set the model classifier may answer with.
var AllowedIntents = []Intent{OpenApp, OpenWebsite, GetTime, GetDate, Search, None}

// AllowedTargets is the set of fixed targets the model classifier may answer with.
var AllowedTargets = []Target{Notepad, Calculator, YouTube, Google, NoTarget}

// DefaultMinConfidence is the confidence floor below which a model answer is rejected.
const DefaultMinConfidence = 0.5

// Action is a resolved (intent, target) pair ready for dispatch.
type Action struct {
	Intent Intent
	Target Target
}

func (a Action) String() string {
	if a.Target == NoTarget {
		return string(a.Intent)
	}
	return fmt.Sprintf("%s/%s", a.Intent, a.Target)
}

// Outcome tells how a classification attempt ended.
type Outcome int

const (
	// OutcomeClassified means the model answered with a well-formed object.
	OutcomeClassified Outcome = iota
	// OutcomeTransportError covers connection failures, timeouts and HTTP errors.
	OutcomeTransportError
	// OutcomeParseError means the model answered but not with the expected JSON.
	OutcomeParseError
	// OutcomeUnavailable means the call was skipped (circuit open or no brain configured).
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeClassified:
		return "classified"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeParseError:
		return "parse_error"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is the answer of the model classifier.
// Failed results always carry Intent None, an empty Target and zero Confidence.
type Result struct {
	Intent     Intent
	Target     Target
	Confidence float64
	Outcome    Outcome
	Err        error
}

// Failure builds the neutral result for a classifier failure.
func Failure(outcome Outcome, err error) Result {
	return Result{Intent: None, Target: NoTarget, Outcome: outcome, Err: err}
}

// Failed reports whether the classifier could not produce an answer.
func (r Result) Failed() bool {
	return r.Outcome != OutcomeClassified
}

// Action returns the (intent, target) pair of the result.
func (r Result) Action() Action {
	return Action{Intent: r.Intent, Target: r.Target}
}

// Verdict is the decision taken on a classifier result before dispatch.
type Verdict int

const (
	Accepted Verdict = iota
	// Unsure: classifier failure, or intent/target outside the allow-lists.
	Unsure
	// LowConfidence: a valid answer under the confidence floor.
	LowConfidence
)

func (v Verdict) String() string {
	switch v {
	case Accepted:
		return "accepted"
	case Unsure:
		return "unsure"
	case LowConfidence:
		return "low_confidence"
	default:
		return "unknown"
	}
}

// Validate checks a classifier result against the allow-lists and the
// confidence floor. Search targets are free-form queries and skip the
// target allow-list; every other intent must use one of AllowedTargets.
func Validate(r Result, minConfidence float64) Verdict {
	if r.Failed() {
		return Unsure
	}
	if !slices.Contains(AllowedIntents, r.Intent) {
		return Unsure
	}
	if r.Intent != Search && !slices.Contains(AllowedTargets, r.Target) {
		return Unsure
	}
	if r.Confidence < minConfidence {
		return LowConfidence
	}
	return Accepted
}
