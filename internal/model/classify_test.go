package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		glucose float64
		want    Classification
	}{
		{40, ClassHypoglycemia},
		{69.9, ClassHypoglycemia},
		{70, ClassNormal},
		{85, ClassNormal},
		{100, ClassNormal},
		{100.1, ClassPreDiabetic},
		{125, ClassPreDiabetic},
		{125.1, ClassHigh},
		{160, ClassHigh},
		{200, ClassHigh},
		{200.1, ClassCritical},
		{400, ClassCritical},
	}

	for _, c := range cases {
		class, tip, err := Classify(c.glucose)
		require.NoError(t, err, "glucose %v", c.glucose)
		assert.Equal(t, c.want, class, "glucose %v", c.glucose)
		assert.Equal(t, advice[c.want], tip, "glucose %v", c.glucose)
	}
}

func TestClassifyAdviceText(t *testing.T) {
	_, tip, err := Classify(65)
	require.NoError(t, err)
	assert.Equal(t, "Eat fast-acting carbs immediately", tip)

	_, tip, err = Classify(250)
	require.NoError(t, err)
	assert.Equal(t, "Consult doctor immediately", tip)
}

func TestClassifyNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, _, err := Classify(v)
		assert.Error(t, err, "value %v", v)
	}
}

func TestEveryClassificationHasAdvice(t *testing.T) {
	for _, class := range Classifications() {
		assert.NotEmpty(t, advice[class], "classification %s", class)
	}
}
