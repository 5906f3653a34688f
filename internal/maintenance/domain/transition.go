package domain

var allowedTransitions = map[PaymentStatus]map[PaymentStatus]struct{}{
	StatusPending: {
		StatusPaid:    {},
		StatusOverdue: {},
	},
	StatusPaid: {
		StatusVerified: {},
	},
	StatusOverdue: {
		StatusPaid: {},
	},
}

// CanTransition reports whether a payment may move from one status to another.
// Verified is terminal.
func CanTransition(from, to PaymentStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusVerified:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodCheque, MethodUPIIMPS, MethodBankTransfer:
		return true
	}
	return false
}
