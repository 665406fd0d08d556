package model

type PlanChangeState string

const (
	PlanChangeInitiated          PlanChangeState = "INITIATED"
	PlanChangeDowngradeCommitted PlanChangeState = "DOWNGRADE_COMMITTED"
	PlanChangeAwaitingPayment    PlanChangeState = "AWAITING_PAYMENT"
	PlanChangeUpgradeCommitted   PlanChangeState = "UPGRADE_COMMITTED"
	PlanChangeFailed             PlanChangeState = "FAILED"
)

var planChangeNext = map[PlanChangeState][]PlanChangeState{
	PlanChangeInitiated:          {PlanChangeDowngradeCommitted, PlanChangeAwaitingPayment, PlanChangeFailed},
	PlanChangeAwaitingPayment:    {PlanChangeUpgradeCommitted, PlanChangeFailed},
	PlanChangeDowngradeCommitted: nil,
	PlanChangeUpgradeCommitted:   nil,
	PlanChangeFailed:             nil,
}

func (s PlanChangeState) CanTransition(to PlanChangeState) bool {
	for _, n := range planChangeNext[s] {
		if n == to {
			return true
		}
	}
	return false
}

// PlanChangeStateOf derives the attempt state from its persisted payment row.
func PlanChangeStateOf(p *SubscriptionPayment) PlanChangeState {
	if p == nil {
		return PlanChangeInitiated
	}
	switch {
	case p.PaymentType == PaymentTypeDowngrade:
		return PlanChangeDowngradeCommitted
	case p.Status == PaymentStatusCompleted:
		return PlanChangeUpgradeCommitted
	case p.Status == PaymentStatusFailed:
		return PlanChangeFailed
	default:
		return PlanChangeAwaitingPayment
	}
}

// PlanChangeKind classifies a move from currentPrice to requestedPrice.
// Lateral moves are treated as downgrades.
func PlanChangeKind(currentPrice, requestedPrice int64) PaymentType {
	if requestedPrice > currentPrice {
		return PaymentTypeUpgrade
	}
	return PaymentTypeDowngrade
}
