package models

import "time"

// UserState is the matchmaking state of a user
type UserState string

const (
	StateWaiting UserState = "WAITING"
	StatePaired  UserState = "PAIRED"
)

// Decision is a participant's answer to a proposed pair
type Decision string

const (
	DecisionAccept  Decision = "ACCEPT"
	DecisionDecline Decision = "DECLINE"
)

// Valid reports whether d is ACCEPT or DECLINE
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// Outcome is the result of submitting a decision
type Outcome string

const (
	OutcomeExpired        Outcome = "EXPIRED"
	OutcomeWaitingOther   Outcome = "WAITING_OTHER"
	OutcomeMatchConfirmed Outcome = "MATCH_CONFIRMED"
	OutcomeCancelled      Outcome = "CANCELLED"
)

// Terminal reports whether the outcome destroys the pair
func (o Outcome) Terminal() bool {
	return o == OutcomeMatchConfirmed || o == OutcomeCancelled
}

// User represents a user known to the presence registry
type User struct {
	ID       string    `json:"id"`
	Cell     string    `json:"cell"`
	State    UserState `json:"state"`
	LastSeen time.Time `json:"last_seen"`
	PairID   string    `json:"pair_id,omitempty"`
}

// Pair represents two users pending a mutual accept/decline
type Pair struct {
	ID        string              `json:"id"`
	UserAID   string              `json:"user_a_id"`
	UserBID   string              `json:"user_b_id"`
	Decisions map[string]Decision `json:"-"`
	CreatedAt time.Time           `json:"created_at"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// HasParticipant reports whether userID is one of the two pair members
func (p *Pair) HasParticipant(userID string) bool {
	return p.UserAID == userID || p.UserBID == userID
}

// PartnerOf returns the other participant, or "" if userID is not a member
func (p *Pair) PartnerOf(userID string) string {
	switch userID {
	case p.UserAID:
		return p.UserBID
	case p.UserBID:
		return p.UserAID
	}
	return ""
}

// PairView is the read-only projection of a live pair returned to clients.
// Decision values are withheld; only whether each side has answered.
type PairView struct {
	ID        string    `json:"id"`
	UserAID   string    `json:"user_a_id"`
	UserBID   string    `json:"user_b_id"`
	ADecided  bool      `json:"user_a_decided"`
	BDecided  bool      `json:"user_b_decided"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PairRecord is a pair lifecycle entry written to the history store
type PairRecord struct {
	ID         string     `json:"id"`
	UserAID    string     `json:"user_a_id"`
	UserBID    string     `json:"user_b_id"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Outcome    *Outcome   `json:"outcome,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
