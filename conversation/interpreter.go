package conversation

import (
	"fmt"
	"strings"

	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

// EmergencyRating is the self-rating at or above which a companion session
// is treated as an emergency.
const EmergencyRating = 8

type EmergencyResources struct {
	SuicidePrevention string `json:"suicide_prevention"`
	CrisisText        string `json:"crisis_text"`
	Emergency         string `json:"emergency"`
	NationalHelpline  string `json:"national_helpline"`
}

var DefaultResources = EmergencyResources{
	SuicidePrevention: "988",
	CrisisText:        "Text HOME to 741741",
	Emergency:         "911",
	NationalHelpline:  "1-800-662-4357",
}

// Result is the interpreted model output for one turn.
type Result struct {
	Text      string
	Emergency bool
	Resources *EmergencyResources
}

type Interpreter struct {
	resources EmergencyResources
}

func NewInterpreter(resources EmergencyResources) *Interpreter {
	return &Interpreter{resources: resources}
}

// Apply turns raw model output into the reply and records the exchange in
// the session history. The emergency check only runs on the turn that starts
// free chat.
func (in *Interpreter) Apply(s *Session, msg, raw string, action Action) Result {
	res := Result{Text: strings.TrimSpace(raw)}

	if action.Kind == ActionBeginFreeChat && s.Topic == TopicFriendlyCompanion {
		if rating, ok := SelfRating(s.Answers); ok && rating >= EmergencyRating {
			resources := in.resources
			res.Emergency = true
			res.Resources = &resources
			s.flagEmergency()
		}
	}

	s.appendExchange(msg, res.Text)
	return res
}

// Record adds an exchange that did not come from the model.
func (in *Interpreter) Record(s *Session, msg, reply string) {
	s.appendExchange(msg, reply)
}

// Fold joins streamed chunks with single spaces and trims the result once.
func Fold(chunks []string) string {
	return strings.TrimSpace(strings.Join(chunks, " "))
}

// SelfRating extracts the companion self-rating. An answer starting with a
// number uses it; otherwise the last standalone number counts once any
// "/10" or "out of 10" scale has been dropped.
func SelfRating(answers Answers) (int, bool) {
	answer, ok := answers.Get(RatingQuestion)
	if !ok {
		return 0, false
	}
	if n, ok := leadingInt(answer); ok {
		return n, true
	}
	return lastInt(ratingScalePattern.ReplaceAllString(answer, ""))
}

// EmergencyNotice renders the resources for channels that show plain text.
func EmergencyNotice(r EmergencyResources) string {
	return fmt.Sprintf("%s\n\n- Suicide & Crisis Lifeline: %s\n- Crisis Text Line: %s\n- Emergency: %s\n- National Helpline: %s",
		modelapi.EMERGENCY_NOTICE, r.SuicidePrevention, r.CrisisText, r.Emergency, r.NationalHelpline)
}
