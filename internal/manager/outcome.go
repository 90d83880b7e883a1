package manager

// Outcome tags every return path of the watering procedure.
type Outcome int

const (
	OutcomeOk Outcome = iota
	OutcomeAboveLimit
	OutcomeMissingMoisture
	OutcomeTankMissing
	OutcomeTankEmpty
	OutcomeArmMissing
	OutcomePositionNotConfirmed
	OutcomePumpError
	OutcomeArmError
	OutcomeBusy
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeAboveLimit:
		return "above_limit"
	case OutcomeMissingMoisture:
		return "missing_moisture"
	case OutcomeTankMissing:
		return "tank_missing"
	case OutcomeTankEmpty:
		return "tank_empty"
	case OutcomeArmMissing:
		return "arm_missing"
	case OutcomePositionNotConfirmed:
		return "position_not_confirmed"
	case OutcomePumpError:
		return "pump_error"
	case OutcomeArmError:
		return "arm_error"
	case OutcomeBusy:
		return "busy"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Success reports whether the procedure left the zone in a good state.
// Skipped runs count as successful.
func (o Outcome) Success() bool {
	return o == OutcomeOk || o == OutcomeAboveLimit || o == OutcomeBusy
}

// alerting outcomes are pushed to the operator.
func (o Outcome) alerting() bool {
	switch o {
	case OutcomeTankEmpty, OutcomePositionNotConfirmed, OutcomePumpError, OutcomeArmError:
		return true
	}
	return false
}
