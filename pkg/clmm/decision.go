package clmm

// waitDecision builds a WAIT decision. Every wait path must carry a
// non-empty reason for observability (spec §4.11).
func waitDecision(flow IntentFlow, reason string, patch DecisionPatch) Decision {
	return Decision{
		Intent: Intent{Flow: flow, Stage: StageWait, Reason: reason},
		Patch:  patch,
	}
}

func transitionTo(state ControllerState) *ControllerState {
	s := state
	return &s
}

func ptrF64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool      { return &v }
func ptrStr(v string) *string   { return &v }

// lowestLPExecutorID returns the lexicographically smallest id among views.
func lowestLPExecutorID(views []LPView) string {
	if len(views) == 0 {
		return ""
	}
	lowest := views[0].ExecutorID
	for _, v := range views[1:] {
		if v.ExecutorID < lowest {
			lowest = v.ExecutorID
		}
	}
	return lowest
}
