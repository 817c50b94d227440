package domain

// AllowedTransitions is keyed by the current status; the value lists the
// statuses a payment may move to from there. Terminal statuses map to nil.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
	StatusCompleted:  nil,
	StatusFailed:     nil,
	StatusCancelled:  nil,
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func CanTransition(from, to Status) bool {
	for _, next := range AllowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &IllegalTransitionError{From: from, To: to}
	}
	return nil
}
