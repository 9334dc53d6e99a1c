// Package policy decides, per turn, whether knowledge retrieval runs at all
// or the turn escalates to the safety path. One classification pass, at most
// one retrieval, no retry loops.
package policy

import (
	"strings"

	"github.com/seedling-ai/companion/internal/model"
)

// State is a phase of the per-turn routing state machine.
type State string

const (
	StateAwaitInput State = "await_input"
	StateClassify   State = "classify"
	StateRoute      State = "route"
	StateRespond    State = "respond"
)

// Route is the outcome of the routing decision.
type Route string

const (
	// RouteEmpathy responds supportively without consulting the corpus.
	RouteEmpathy Route = "empathy"
	// RouteRetrieve responds supportively grounded in retrieved knowledge.
	RouteRetrieve Route = "retrieve"
	// RouteEscalate surfaces fixed safety resources. Retrieval is forbidden
	// on this path.
	RouteEscalate Route = "escalate"
)

// Decision is the result of one pass through the state machine.
type Decision struct {
	Route          Route                `json:"route"`
	Reason         string               `json:"reason"`
	Classification model.Classification `json:"classification"`
}

// SafetyResources is the fixed, pre-approved text surfaced on escalation.
// It is intentionally static: the escalation path must not depend on any
// network service or generated content.
const SafetyResources = "You matter, and you don't have to face this alone. " +
	"If you are in immediate danger, call your local emergency number. " +
	"You can reach a crisis counselor any time: dial or text 988 (US), " +
	"call 116 123 (UK & ROI, Samaritans), or find an international helpline " +
	"at https://findahelpline.com. Talking to someone you trust can help too."

// DefaultCrisisIntensity: classifier intensities above this (0..10 scale)
// escalate regardless of phrasing.
const DefaultCrisisIntensity = 7.0

// selfHarmPhrases routes to escalation on match, whatever the classifier
// said. Matching is deliberately recall-heavy: a false escalation shows
// resources, a miss hides them.
var selfHarmPhrases = []string{
	"kill myself",
	"end my life",
	"end it all",
	"suicide",
	"self-harm",
	"self harm",
	"hurt myself",
	"harm myself",
	"don't want to live",
	"do not want to live",
	"not worth living",
	"better off dead",
	"自杀",
	"不想活",
	"活不下去",
	"伤害自己",
	"结束生命",
}

// helpSeekingPhrases signal an explicit ask for a method or solution;
// these route to retrieval independent of emotional intensity.
var helpSeekingPhrases = []string{
	"how do i",
	"how can i",
	"how to",
	"what should i do",
	"what can i do",
	"any advice",
	"help me",
	"is there a way",
	"any tips",
	"怎么办",
	"怎么样才能",
	"如何",
	"有什么方法",
	"有什么建议",
}

// helpTopicKeywords mark how-to territory even without a question form.
var helpTopicKeywords = []string{
	"cope with",
	"deal with",
	"manage my",
	"technique",
	"exercise for",
	"method",
	"缓解",
	"应对",
	"调节",
}

// Policy routes a classified turn. The zero value is not usable; construct
// with New so thresholds come from configuration, not inline literals.
type Policy struct {
	crisisIntensity float64
}

// New creates a Policy with the given crisis threshold; values <= 0 take
// the default.
func New(crisisIntensity float64) *Policy {
	if crisisIntensity <= 0 {
		crisisIntensity = DefaultCrisisIntensity
	}
	return &Policy{crisisIntensity: crisisIntensity}
}

// Decide performs the single routing pass for one turn:
// AWAIT_INPUT -> CLASSIFY (already done by the caller) -> ROUTE.
// The escalation rule is absolute: self-harm phrasing or intensity above
// the crisis threshold short-circuits every other rule.
func (p *Policy) Decide(text string, cls model.Classification) Decision {
	lower := strings.ToLower(text)

	if phrase := matchAny(lower, selfHarmPhrases); phrase != "" {
		return Decision{
			Route:          RouteEscalate,
			Reason:         "self-harm phrasing: " + phrase,
			Classification: cls,
		}
	}
	if cls.Intensity > p.crisisIntensity {
		return Decision{
			Route:          RouteEscalate,
			Reason:         "intensity above crisis threshold",
			Classification: cls,
		}
	}

	if phrase := matchAny(lower, helpSeekingPhrases); phrase != "" {
		return Decision{
			Route:          RouteRetrieve,
			Reason:         "help-seeking phrasing: " + phrase,
			Classification: cls,
		}
	}
	if phrase := matchAny(lower, helpTopicKeywords); phrase != "" {
		return Decision{
			Route:          RouteRetrieve,
			Reason:         "how-to keyword: " + phrase,
			Classification: cls,
		}
	}

	// Purely expressive language: respond with empathy only, even when the
	// intensity is high but below the crisis threshold.
	return Decision{
		Route:          RouteEmpathy,
		Reason:         "no explicit ask",
		Classification: cls,
	}
}

func matchAny(text string, phrases []string) string {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return p
		}
	}
	return ""
}
