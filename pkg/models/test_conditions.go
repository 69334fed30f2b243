package models

import "time"

// TestCondition is one energy-validation condition produced by energy correction.
// A model passes the condition when the objective flux on Media stays at or
// below Threshold.
type TestCondition struct {
	ID        string  `json:"id"`
	Media     *Media  `json:"media"`
	Objective string  `json:"objective"`
	Threshold float64 `json:"threshold"`
	Observed  float64 `json:"observed"`
	Expected  float64 `json:"expected"`
}

// TestConditions is the cached energy-correction artifact of a model.
type TestConditions struct {
	ModelID    string           `json:"model_id"`
	Template   string           `json:"template"`
	Conditions []*TestCondition `json:"conditions"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Len returns the number of conditions, tolerating a nil receiver.
func (tc *TestConditions) Len() int {
	if tc == nil {
		return 0
	}
	return len(tc.Conditions)
}
