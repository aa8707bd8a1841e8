package conversation

import (
	"fmt"

	"github.com/surya-d-naidu/HealthCareBot/modelapi"
)

type Topic string

const (
	TopicHealthAnalysis    Topic = "healthAnalysis"
	TopicFriendlyCompanion Topic = "friendlyCompanion"
	TopicEmergencySupport  Topic = "emergencySupport"
)

var Topics = []Topic{TopicHealthAnalysis, TopicFriendlyCompanion, TopicEmergencySupport}

func ParseTopic(s string) (Topic, error) {
	for _, t := range Topics {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown topic %q", ErrInvalidInput, s)
}

func (t Topic) Valid() bool {
	_, err := ParseTopic(string(t))
	return err == nil
}

// Persona is the role preamble that opens every prompt for the topic.
func (t Topic) Persona() string {
	switch t {
	case TopicHealthAnalysis:
		return modelapi.HEALTH_ANALYSIS_PERSONA
	case TopicFriendlyCompanion:
		return modelapi.FRIENDLY_COMPANION_PERSONA
	default:
		return modelapi.EMERGENCY_SUPPORT_PERSONA
	}
}

func (t Topic) directive() string {
	if t == TopicHealthAnalysis {
		return modelapi.HEALTH_ANALYSIS_DIRECTIVE
	}
	return modelapi.FRIENDLY_COMPANION_DIRECTIVE
}

func (t Topic) dataHeading() string {
	if t == TopicHealthAnalysis {
		return "Health Data:"
	}
	return "User's Current State:"
}
