package conversation

import (
	"strings"

	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

// BuildPrompt renders the model input for a BeginFreeChat or Continue turn.
// The session must already have been advanced by the machine. Other actions
// never reach the model and get an empty prompt.
//
// The output depends only on its arguments.
func BuildPrompt(s *Session, msg string, action Action, image *modelapi.Image) modelapi.Prompt {
	var b strings.Builder

	switch action.Kind {
	case ActionBeginFreeChat:
		writeSeed(&b, s)
	case ActionContinue:
		writeContinuation(&b, s, msg)
	default:
		return modelapi.Prompt{}
	}

	return modelapi.Prompt{Text: b.String(), Image: image}
}

func writeSeed(b *strings.Builder, s *Session) {
	b.WriteString(s.Topic.Persona())
	b.WriteString("\n\n")

	b.WriteString(s.Topic.dataHeading())
	b.WriteByte('\n')
	for _, a := range s.Answers.All() {
		b.WriteString("- ")
		b.WriteString(a.Question)
		b.WriteString(": ")
		b.WriteString(a.Answer)
		b.WriteByte('\n')
	}

	if s.Topic == TopicHealthAnalysis {
		assessment := AssessHealth(s.Answers)
		b.WriteString("\nAnalysis Results:\n")
		b.WriteString("- BMI: " + assessment.bmiText() + "\n")
		b.WriteString("- Identified Risks: " + assessment.risksText() + "\n")
		if len(assessment.Recommendations) > 0 {
			b.WriteString("- Recommendations: " + strings.Join(assessment.Recommendations, "; ") + "\n")
		}
	}

	b.WriteByte('\n')
	b.WriteString(s.Topic.directive())
}

func writeContinuation(b *strings.Builder, s *Session, msg string) {
	if len(s.History) == 0 {
		b.WriteString(s.Topic.Persona())
		b.WriteString("\n\n")
	}
	for _, m := range s.History {
		b.WriteString(speaker(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteByte('\n')
	}
	b.WriteString("User: ")
	b.WriteString(msg)
	b.WriteString("\nAssistant:")
}

func speaker(r Role) string {
	if r == RoleAssistant {
		return "Assistant"
	}
	return "User"
}
