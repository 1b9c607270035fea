package services

import (
	"math"
	"strconv"
	"time"

	"meetup-backend/internal/models"
)

// cellScale turns degrees into hundredths of a degree (~1.1km at the equator)
const cellScale = 100

// CellID returns the grid bucket key for a coordinate pair.
// Two positions share a cell iff floor(lat*100) and floor(lng*100) both match.
// The floored values stay float64 so coordinates beyond the int64 range
// still get distinct keys.
func CellID(lat, lng float64) string {
	return cellKey(lat) + ":" + cellKey(lng)
}

func cellKey(v float64) string {
	return strconv.FormatFloat(math.Floor(v*cellScale), 'f', -1, 64)
}

type registryEntry struct {
	user models.User
	seq  uint64
}

// Registry holds the state of every known user, indexed by cell.
// It is not safe for concurrent use; MatchmakingService serializes access.
type Registry struct {
	users   map[string]*registryEntry
	cells   map[string]map[string]*registryEntry
	nextSeq uint64
}

// NewRegistry creates an empty presence registry
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]*registryEntry),
		cells: make(map[string]map[string]*registryEntry),
	}
}

// Touch registers userID if unknown (as WAITING) and refreshes its cell and
// last-seen time. The returned pointer stays valid until the user is removed.
func (r *Registry) Touch(userID, cell string, now time.Time) *models.User {
	entry, ok := r.users[userID]
	if !ok {
		r.nextSeq++
		entry = &registryEntry{
			user: models.User{
				ID:    userID,
				Cell:  cell,
				State: models.StateWaiting,
			},
			seq: r.nextSeq,
		}
		r.users[userID] = entry
		r.index(entry)
	} else if entry.user.Cell != cell {
		r.unindex(entry)
		entry.user.Cell = cell
		r.index(entry)
	}

	entry.user.LastSeen = now
	return &entry.user
}

// Get looks up a user by ID
func (r *Registry) Get(userID string) (*models.User, bool) {
	entry, ok := r.users[userID]
	if !ok {
		return nil, false
	}
	return &entry.user, true
}

// Candidate returns the longest-waiting WAITING user in cell other than
// userID, or nil. Equal last-seen times fall back to registration order.
func (r *Registry) Candidate(userID, cell string) *models.User {
	var best *registryEntry
	for id, entry := range r.cells[cell] {
		if id == userID || entry.user.State != models.StateWaiting {
			continue
		}
		if best == nil || older(entry, best) {
			best = entry
		}
	}
	if best == nil {
		return nil
	}
	return &best.user
}

func older(a, b *registryEntry) bool {
	if a.user.LastSeen.Equal(b.user.LastSeen) {
		return a.seq < b.seq
	}
	return a.user.LastSeen.Before(b.user.LastSeen)
}

// MarkPaired flips a user to PAIRED with the given pair
func (r *Registry) MarkPaired(userID, pairID string) {
	if entry, ok := r.users[userID]; ok {
		entry.user.State = models.StatePaired
		entry.user.PairID = pairID
	}
}

// Release returns a user to WAITING if it still points at pairID
func (r *Registry) Release(userID, pairID string) {
	entry, ok := r.users[userID]
	if !ok || entry.user.PairID != pairID {
		return
	}
	entry.user.State = models.StateWaiting
	entry.user.PairID = ""
}

// Remove deletes a user and returns its last state
func (r *Registry) Remove(userID string) (models.User, bool) {
	entry, ok := r.users[userID]
	if !ok {
		return models.User{}, false
	}
	r.unindex(entry)
	delete(r.users, userID)
	return entry.user, true
}

// StaleWaiting lists WAITING users last seen before cutoff
func (r *Registry) StaleWaiting(cutoff time.Time) []string {
	var ids []string
	for id, entry := range r.users {
		if entry.user.State == models.StateWaiting && entry.user.LastSeen.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Counts returns the number of known users and how many of them are waiting
func (r *Registry) Counts() (total, waiting int) {
	for _, entry := range r.users {
		if entry.user.State == models.StateWaiting {
			waiting++
		}
	}
	return len(r.users), waiting
}

func (r *Registry) index(entry *registryEntry) {
	bucket, ok := r.cells[entry.user.Cell]
	if !ok {
		bucket = make(map[string]*registryEntry)
		r.cells[entry.user.Cell] = bucket
	}
	bucket[entry.user.ID] = entry
}

func (r *Registry) unindex(entry *registryEntry) {
	bucket, ok := r.cells[entry.user.Cell]
	if !ok {
		return
	}
	delete(bucket, entry.user.ID)
	if len(bucket) == 0 {
		delete(r.cells, entry.user.Cell)
	}
}
