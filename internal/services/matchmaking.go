package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"meetup-backend/internal/metrics"
	"meetup-backend/internal/models"

	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrNotParticipant  = errors.New("user is not a participant of this pair")
	ErrInvalidDecision = errors.New("decision must be ACCEPT or DECLINE")
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Options configures a MatchmakingService
type Options struct {
	PairTTL         time.Duration
	PresenceTTL     time.Duration
	EnforceExpiry   bool
	StrictDecisions bool
	Clock           Clock
	History         HistoryRecorder
	Metrics         *metrics.Metrics
}

// MatchmakingService owns the presence registry and the pairing ledger.
// Every exported operation runs as a single critical section under mu, so
// candidate selection, pair creation and the state flip of both users can
// never interleave with another report or decision.
type MatchmakingService struct {
	mu       sync.Mutex
	registry *Registry
	ledger   *Ledger

	presenceTTL time.Duration
	clock       Clock
	history     HistoryRecorder
	metrics     *metrics.Metrics
}

// NewMatchmakingService creates a matchmaking service with empty state
func NewMatchmakingService(opts Options) *MatchmakingService {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	return &MatchmakingService{
		registry: NewRegistry(),
		ledger: NewLedger(LedgerOptions{
			TTL:             opts.PairTTL,
			EnforceExpiry:   opts.EnforceExpiry,
			StrictDecisions: opts.StrictDecisions,
		}),
		presenceTTL: opts.PresenceTTL,
		clock:       clock,
		history:     opts.History,
		metrics:     opts.Metrics,
	}
}

// PresenceResult is the answer to a presence report
type PresenceResult struct {
	Status models.UserState
	PairID string
}

// LeaveResult describes what removing a user did
type LeaveResult struct {
	Found bool
	// PairID, PartnerID and Outcome are set when the user was in a pair that
	// got closed.
	PairID    string
	PartnerID string
	Outcome   models.Outcome
}

// SweepResult counts what a sweep reclaimed
type SweepResult struct {
	ExpiredPairs int
	EvictedUsers int
}

// ReportPresence refreshes a user's location and, if it is waiting, pairs it
// with the longest-waiting user in the same cell.
//
// Zero coordinates are rejected along with missing ones; a position exactly
// on the equator or the prime meridian cannot be reported.
func (s *MatchmakingService) ReportPresence(ctx context.Context, userID string, lat, lng float64) (*PresenceResult, error) {
	if userID == "" || falsy(lat) || falsy(lng) {
		return nil, ErrInvalidPayload
	}
	cell := CellID(lat, lng)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	user := s.registry.Touch(userID, cell, now)

	if user.State == models.StatePaired {
		pair, live := s.ledger.Live(user.PairID, now)
		if live {
			s.metrics.ObservePresence(string(models.StatePaired))
			return &PresenceResult{Status: models.StatePaired, PairID: pair.ID}, nil
		}
		if pair != nil {
			s.closePair(ctx, pair, models.OutcomeExpired, now)
		} else {
			s.registry.Release(userID, user.PairID)
		}
	}

	partner := s.registry.Candidate(userID, cell)
	if partner == nil {
		s.metrics.ObservePresence(string(models.StateWaiting))
		return &PresenceResult{Status: models.StateWaiting}, nil
	}

	pair := s.ledger.Create(s.registry, userID, partner.ID, now)

	s.metrics.ObservePairCreated()
	s.metrics.ObservePresence(string(models.StatePaired))
	if s.history != nil {
		s.history.PairCreated(recordOf(pair))
	}

	log.Ctx(ctx).Info().
		Str("pair_id", pair.ID).
		Str("user_a_id", pair.UserAID).
		Str("user_b_id", pair.UserBID).
		Str("cell", cell).
		Msg("Pair created")

	return &PresenceResult{Status: models.StatePaired, PairID: pair.ID}, nil
}

// Decide records a participant's decision and resolves the pair when possible.
// Unknown or already resolved pairs yield OutcomeExpired, never an error.
func (s *MatchmakingService) Decide(ctx context.Context, pairID, userID string, decision models.Decision) (models.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	outcome, closed, err := s.ledger.Decide(s.registry, pairID, userID, decision, now)
	if err != nil {
		return "", err
	}

	if closed != nil {
		s.afterClose(ctx, closed, outcome, now)
	}
	s.metrics.ObserveDecision(string(outcome))

	return outcome, nil
}

// Leave removes a user from the registry. A pair the user was part of is
// cancelled and the partner goes back to WAITING.
func (s *MatchmakingService) Leave(ctx context.Context, userID string) LeaveResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.registry.Get(userID)
	if !ok {
		return LeaveResult{}
	}

	result := LeaveResult{Found: true}
	if user.State == models.StatePaired {
		now := s.clock.Now()
		if pair, live := s.ledger.Live(user.PairID, now); pair != nil {
			result.PairID = pair.ID
			result.PartnerID = pair.PartnerOf(userID)
			result.Outcome = models.OutcomeCancelled
			if !live {
				result.Outcome = models.OutcomeExpired
			}
			s.closePair(ctx, pair, result.Outcome, now)
		}
	}

	s.registry.Remove(userID)

	log.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("pair_id", result.PairID).
		Str("partner_id", result.PartnerID).
		Msg("User left")

	return result
}

// PairStatus returns a view of a live pair
func (s *MatchmakingService) PairStatus(ctx context.Context, pairID string) (*models.PairView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	pair, live := s.ledger.Live(pairID, now)
	if !live {
		if pair != nil {
			s.closePair(ctx, pair, models.OutcomeExpired, now)
		}
		return nil, false
	}
	return viewOf(pair), true
}

// Sweep expires overdue pairs and evicts users that stopped reporting
func (s *MatchmakingService) Sweep(ctx context.Context) SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var result SweepResult

	for _, pair := range s.ledger.Expired(now) {
		s.closePair(ctx, pair, models.OutcomeExpired, now)
		result.ExpiredPairs++
	}

	if s.presenceTTL > 0 {
		for _, userID := range s.registry.StaleWaiting(now.Add(-s.presenceTTL)) {
			s.registry.Remove(userID)
			result.EvictedUsers++
		}
		s.metrics.ObserveEvicted(result.EvictedUsers)
	}

	return result
}

// Stats returns the number of known users, waiting users and live pairs
func (s *MatchmakingService) Stats() (users, waiting, pairs int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, waiting = s.registry.Counts()
	return users, waiting, s.ledger.Len()
}

// closePair must be called with mu held
func (s *MatchmakingService) closePair(ctx context.Context, pair *models.Pair, outcome models.Outcome, now time.Time) {
	s.ledger.Close(s.registry, pair.ID)
	s.afterClose(ctx, pair, outcome, now)
}

func (s *MatchmakingService) afterClose(ctx context.Context, pair *models.Pair, outcome models.Outcome, now time.Time) {
	s.metrics.ObservePairResolved(string(outcome))
	if s.history != nil {
		rec := recordOf(pair)
		rec.Outcome = &outcome
		rec.ResolvedAt = &now
		s.history.PairResolved(rec)
	}

	log.Ctx(ctx).Info().
		Str("pair_id", pair.ID).
		Str("outcome", string(outcome)).
		Msg("Pair resolved")
}

func recordOf(pair *models.Pair) models.PairRecord {
	return models.PairRecord{
		ID:        pair.ID,
		UserAID:   pair.UserAID,
		UserBID:   pair.UserBID,
		CreatedAt: pair.CreatedAt,
		ExpiresAt: pair.ExpiresAt,
	}
}

// falsy mirrors the truthiness check clients were built against: 0 and NaN
// count as missing.
func falsy(v float64) bool {
	return v == 0 || math.IsNaN(v)
}
