package services

import (
	"time"

	"meetup-backend/internal/models"

	"github.com/google/uuid"
)

// DefaultPairTTL is the window both participants have to answer
const DefaultPairTTL = 2 * time.Minute

// LedgerOptions controls how the pairing ledger validates and expires pairs
type LedgerOptions struct {
	// TTL sets ExpiresAt relative to creation; zero means DefaultPairTTL.
	TTL time.Duration
	// EnforceExpiry makes pairs past ExpiresAt behave as already gone.
	EnforceExpiry bool
	// StrictDecisions rejects non-members and values other than ACCEPT/DECLINE.
	StrictDecisions bool
}

// Ledger owns every live pair and resolves the two-party decision protocol.
// It is not safe for concurrent use; MatchmakingService serializes access.
type Ledger struct {
	pairs map[string]*models.Pair
	opts  LedgerOptions
	newID func() string
}

// NewLedger creates an empty pairing ledger
func NewLedger(opts LedgerOptions) *Ledger {
	if opts.TTL <= 0 {
		opts.TTL = DefaultPairTTL
	}
	return &Ledger{
		pairs: make(map[string]*models.Pair),
		opts:  opts,
		newID: func() string { return uuid.New().String() },
	}
}

// Create opens a pair between two users and marks both PAIRED in reg
func (l *Ledger) Create(reg *Registry, userAID, userBID string, now time.Time) *models.Pair {
	pair := &models.Pair{
		ID:        l.newID(),
		UserAID:   userAID,
		UserBID:   userBID,
		Decisions: make(map[string]models.Decision, 2),
		CreatedAt: now,
		ExpiresAt: now.Add(l.opts.TTL),
	}
	l.pairs[pair.ID] = pair

	reg.MarkPaired(userAID, pair.ID)
	reg.MarkPaired(userBID, pair.ID)

	return pair
}

// Live returns the pair if it exists and, when expiry is enforced, has not expired
func (l *Ledger) Live(pairID string, now time.Time) (*models.Pair, bool) {
	pair, ok := l.pairs[pairID]
	if !ok {
		return nil, false
	}
	if l.expired(pair, now) {
		return pair, false
	}
	return pair, true
}

// Decide records a decision and resolves the pair if the protocol allows it.
// On a terminal outcome both users are released in reg and the pair is removed.
// The returned pair is nil unless the outcome is terminal or an expired pair
// was reclaimed.
func (l *Ledger) Decide(reg *Registry, pairID, userID string, decision models.Decision, now time.Time) (models.Outcome, *models.Pair, error) {
	pair, live := l.Live(pairID, now)
	if pair == nil {
		return models.OutcomeExpired, nil, nil
	}
	if !live {
		l.Close(reg, pair.ID)
		return models.OutcomeExpired, pair, nil
	}

	if l.opts.StrictDecisions {
		if !pair.HasParticipant(userID) {
			return "", nil, ErrNotParticipant
		}
		if !decision.Valid() {
			return "", nil, ErrInvalidDecision
		}
	}

	pair.Decisions[userID] = decision

	outcome := Resolve(pair)
	if outcome.Terminal() {
		l.Close(reg, pair.ID)
		return outcome, pair, nil
	}
	return outcome, nil, nil
}

// Resolve evaluates the decision predicate: any DECLINE cancels, two ACCEPTs
// confirm, anything else keeps waiting.
func Resolve(pair *models.Pair) models.Outcome {
	a := pair.Decisions[pair.UserAID]
	b := pair.Decisions[pair.UserBID]

	if a == models.DecisionAccept && b == models.DecisionAccept {
		return models.OutcomeMatchConfirmed
	}
	if a == models.DecisionDecline || b == models.DecisionDecline {
		return models.OutcomeCancelled
	}
	return models.OutcomeWaitingOther
}

// Close releases both participants back to WAITING and drops the pair.
// It is a no-op for unknown pairs.
func (l *Ledger) Close(reg *Registry, pairID string) {
	pair, ok := l.pairs[pairID]
	if !ok {
		return
	}
	reg.Release(pair.UserAID, pair.ID)
	reg.Release(pair.UserBID, pair.ID)
	delete(l.pairs, pairID)
}

// Expired lists pairs past their deadline. Always empty when expiry is not enforced.
func (l *Ledger) Expired(now time.Time) []*models.Pair {
	if !l.opts.EnforceExpiry {
		return nil
	}
	var out []*models.Pair
	for _, pair := range l.pairs {
		if l.expired(pair, now) {
			out = append(out, pair)
		}
	}
	return out
}

// Len returns the number of live pairs
func (l *Ledger) Len() int {
	return len(l.pairs)
}

func (l *Ledger) expired(pair *models.Pair, now time.Time) bool {
	return l.opts.EnforceExpiry && !now.Before(pair.ExpiresAt)
}

func viewOf(pair *models.Pair) *models.PairView {
	_, aDecided := pair.Decisions[pair.UserAID]
	_, bDecided := pair.Decisions[pair.UserBID]
	return &models.PairView{
		ID:        pair.ID,
		UserAID:   pair.UserAID,
		UserBID:   pair.UserBID,
		ADecided:  aDecided,
		BDecided:  bDecided,
		CreatedAt: pair.CreatedAt,
		ExpiresAt: pair.ExpiresAt,
	}
}
