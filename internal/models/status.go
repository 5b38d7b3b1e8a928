package models

// MessageStatus is the delivery state of a message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusViewed    MessageStatus = "VIEWED"
)

var statusRank = map[MessageStatus]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusViewed:    2,
}

// AdvanceStatus applies next to cur and reports whether the status actually
// moved forward. Status only ever advances SENT -> DELIVERED -> VIEWED, so
// duplicate or out-of-order confirmations collapse to no-ops.
func AdvanceStatus(cur, next MessageStatus) (MessageStatus, bool) {
	curRank, ok := statusRank[cur]
	if !ok {
		curRank = 0
	}
	nextRank, ok := statusRank[next]
	if !ok || nextRank <= curRank {
		return cur, false
	}
	return next, true
}

// PresenceStatus is a user's connection state.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceOffline PresenceStatus = "offline"
)
