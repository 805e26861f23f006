package recaptcha

// Outcome is the result of one assessment. It is transient: evaluated
// by the handler, logged, never persisted.
type Outcome struct {
	Valid  bool
	Score  float64
	Action string
	Reason string
}

// Accepted reports whether the submission passes the gate: the token
// must be valid and the risk score must meet the threshold.
func (o *Outcome) Accepted(threshold float64) bool {
	return o.Valid && o.Score >= threshold
}
