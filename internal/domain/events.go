package domain

// UserBalanceUpdated is a full-state balance snapshot published whenever a
// user's ledger row changes. It is not a delta: consumers overwrite their
// replica with these values. Version lets them drop stale redeliveries.
type UserBalanceUpdated struct {
	UserID        string  `json:"user_id"`
	Balance       float64 `json:"balance"`
	LockedBalance float64 `json:"locked_balance"`
	Version       int64   `json:"version"`
}

// NewBalanceFact snapshots a user's ledger state for publication.
func NewBalanceFact(u *User) *UserBalanceUpdated {
	return &UserBalanceUpdated{
		UserID:        u.ID,
		Balance:       u.Balance,
		LockedBalance: u.LockedBalance,
		Version:       u.BalanceVersion,
	}
}

// SyncDecision is what the balance mirror handler tells the consumer loop
// to do with a delivery.
type SyncDecision int

const (
	// SyncAck acknowledges the delivery; the message is done.
	SyncAck SyncDecision = iota
	// SyncRequeue negatively acknowledges with requeue for redelivery.
	SyncRequeue
	// SyncDeadLetter routes the payload to the dead-letter exchange and acks.
	SyncDeadLetter
)

func (d SyncDecision) String() string {
	switch d {
	case SyncAck:
		return "ack"
	case SyncRequeue:
		return "requeue"
	case SyncDeadLetter:
		return "dead_letter"
	default:
		return "unknown"
	}
}
