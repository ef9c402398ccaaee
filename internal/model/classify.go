package model

import (
	"fmt"
	"math"

	"github.com/glucolumin/glucolumin/internal/signal"
)

// Classification is the clinical bucket for a glucose estimate.
type Classification string

const (
	ClassHypoglycemia Classification = "Hypoglycemia"
	ClassNormal       Classification = "Normal"
	ClassPreDiabetic  Classification = "Pre-Diabetic"
	ClassHigh         Classification = "High"
	ClassCritical     Classification = "Critical"
)

// Classifications lists the five buckets.
func Classifications() []Classification {
	return []Classification{
		ClassHypoglycemia, ClassNormal, ClassPreDiabetic, ClassHigh, ClassCritical,
	}
}

// advice is the static advisory text keyed by classification.
var advice = map[Classification]string{
	ClassHypoglycemia: "Eat fast-acting carbs immediately",
	ClassNormal:       "Maintain balanced diet",
	ClassPreDiabetic:  "Reduce sugar intake",
	ClassHigh:         "Avoid white carbs/sugar",
	ClassCritical:     "Consult doctor immediately",
}

// Classify maps a glucose estimate in mg/dL to its clinical bucket and
// advisory text. Boundaries, evaluated in order:
//
//	         < 70   Hypoglycemia
//	 70 ≤ v ≤ 100   Normal
//	100 < v ≤ 125   Pre-Diabetic
//	125 < v ≤ 200   High
//	      v > 200   Critical
func Classify(glucoseMgDl float64) (Classification, string, error) {
	if math.IsNaN(glucoseMgDl) || math.IsInf(glucoseMgDl, 0) {
		return "", "", fmt.Errorf("%w: non-finite glucose value", signal.ErrSignalProcessing)
	}

	var class Classification
	switch {
	case glucoseMgDl < 70:
		class = ClassHypoglycemia
	case glucoseMgDl <= 100:
		class = ClassNormal
	case glucoseMgDl <= 125:
		class = ClassPreDiabetic
	case glucoseMgDl <= 200:
		class = ClassHigh
	default:
		class = ClassCritical
	}
	return class, advice[class], nil
}
