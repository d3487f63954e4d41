package model

import "go.uber.org/zap"

// Outcome is the result of a best-effort side effect (push delivery, notification
// cleanup, edge removal on block, cascade steps). It never fails the parent
// operation; the caller logs it and moves on.
type Outcome struct {
	Step    string `json:"step"`
	Err     error  `json:"-"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Done returns a successful outcome for step.
func Done(step string) Outcome { return Outcome{Step: step} }

// Failed returns a failed outcome for step. A nil err yields a successful outcome.
func Failed(step string, err error) Outcome { return Outcome{Step: step, Err: err} }

// Skip marks a step that had nothing to do, e.g. an unconfigured collaborator.
func Skip(step string) Outcome { return Outcome{Step: step, Skipped: true} }

func (o Outcome) OK() bool { return o.Err == nil }

// Log writes failed outcomes at warn level. Successful ones are logged at debug.
func (o Outcome) Log(logger *zap.Logger, fields ...zap.Field) {
	if o.Err != nil {
		logger.Warn("best-effort step failed", append(fields, zap.String("step", o.Step), zap.Error(o.Err))...)
		return
	}
	logger.Debug("best-effort step", append(fields, zap.String("step", o.Step), zap.Bool("skipped", o.Skipped))...)
}

// ErrorString returns the error text, or "" on success.
func (o Outcome) ErrorString() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// StepReport is the JSON form of an Outcome.
type StepReport struct {
	Step    string `json:"step"`
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report converts the outcome for a response body.
func (o Outcome) Report() StepReport {
	return StepReport{Step: o.Step, OK: o.OK(), Skipped: o.Skipped, Error: o.ErrorString()}
}

// AccountDeletionResponse is returned by DELETE /me.
type AccountDeletionResponse struct {
	UserID string       `json:"userId"`
	Steps  []StepReport `json:"steps"`
	Failed int          `json:"failed"`
}
