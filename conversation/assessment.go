package conversation

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	weightQuestion        = "What's your weight (in kg)?"
	heightQuestion        = "What's your height (in cm)?"
	bloodPressureQuestion = "What's your typical blood pressure (systolic/diastolic)?"
	heartRateQuestion     = "What's your typical heart rate?"
)

const (
	maxSystolic   = 180
	maxDiastolic  = 120
	minHeartRate  = 40
	maxHeartRate  = 180
	obeseBMI      = 30.0
	overweightBMI = 25.0
)

// Assessment is a rule-based reading of the health intake answers.
type Assessment struct {
	BMI             float64
	HasBMI          bool
	Risks           []string
	Recommendations []string
}

// AssessHealth derives BMI, risks and recommendations from the intake answers.
// Answers that do not parse are skipped.
func AssessHealth(answers Answers) Assessment {
	var a Assessment

	weight, okW := leadingFloat(answerOf(answers, weightQuestion))
	height, okH := leadingFloat(answerOf(answers, heightQuestion))
	if okW && okH && height > 0 {
		meters := height / 100
		a.BMI = math.Round(weight/(meters*meters)*10) / 10
		a.HasBMI = true
		if a.BMI >= obeseBMI {
			a.Risks = append(a.Risks, "obesity")
		}
		if a.BMI >= overweightBMI {
			a.Risks = append(a.Risks, "overweight")
		}
	}

	if bp := answerOf(answers, bloodPressureQuestion); bp != "" {
		systolic, diastolic, _ := strings.Cut(bp, "/")
		sys, okS := leadingInt(systolic)
		dia, okD := leadingInt(diastolic)
		if (okS && sys > maxSystolic) || (okD && dia > maxDiastolic) {
			a.Risks = append(a.Risks, "high blood pressure")
		}
	}

	if hr, ok := leadingInt(answerOf(answers, heartRateQuestion)); ok && hr != 0 {
		if hr < minHeartRate || hr > maxHeartRate {
			a.Risks = append(a.Risks, "abnormal heart rate")
		}
	}

	if a.hasRisk("obesity") || a.hasRisk("overweight") {
		a.Recommendations = append(a.Recommendations,
			"Consider consulting with a nutritionist for personalized dietary advice",
			"Aim for regular physical activity, starting with moderate exercise",
		)
	}
	if a.hasRisk("high blood pressure") {
		a.Recommendations = append(a.Recommendations,
			"Monitor blood pressure regularly",
			"Consider reducing sodium intake",
			"Consult with a healthcare provider for proper management",
		)
	}
	return a
}

func (a Assessment) hasRisk(risk string) bool {
	for _, r := range a.Risks {
		if r == risk {
			return true
		}
	}
	return false
}

func (a Assessment) bmiText() string {
	if !a.HasBMI {
		return "unknown"
	}
	return strconv.FormatFloat(a.BMI, 'f', 1, 64)
}

func (a Assessment) risksText() string {
	if len(a.Risks) == 0 {
		return "No major risks identified"
	}
	return strings.Join(a.Risks, ", ")
}

func answerOf(answers Answers, question string) string {
	v, _ := answers.Get(question)
	return v
}

var (
	leadingIntPattern   = regexp.MustCompile(`^\s*[+-]?\d+`)
	leadingFloatPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)`)
	integerPattern      = regexp.MustCompile(`\b\d+\b`)
	// ratingScalePattern matches a "/10" or "out of 10" scale after a rating.
	ratingScalePattern = regexp.MustCompile(`(?i)\s*(?:/|\bout\s+of)\s*10\b`)
)

// leadingInt reads the integer a string starts with, ignoring leading
// whitespace and anything after the digits.
func leadingInt(s string) (int, bool) {
	m := leadingIntPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(m))
	return n, err == nil
}

func leadingFloat(s string) (float64, bool) {
	m := leadingFloatPattern.FindString(s)
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(m), 64)
	return f, err == nil
}

// lastInt returns the last standalone integer in s.
func lastInt(s string) (int, bool) {
	all := integerPattern.FindAllString(s, -1)
	if len(all) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(all[len(all)-1])
	return n, err == nil
}
