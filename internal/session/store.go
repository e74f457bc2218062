// Package session holds per-session discovery state: the ordered batches a
// session has produced, cumulative per-item feedback, and running counters.
// State is partitioned by session; each session carries its own lock, so
// unrelated sessions never contend.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Rating bucket thresholds on the fixed 1–5 scale.
const (
	RatingMin      = 1
	RatingMax      = 5
	likedThreshold = 4
	dislikedCutoff = 2
)

// ErrSessionNotFound is returned for unknown session identifiers. It is a
// client-visible condition, never fatal to the process.
var ErrSessionNotFound = errors.New("session not found")

// Recommendation is a single discovered item. Its URL doubles as the item
// key. Approach and MediaType are opaque tags owned by the settings
// registry; the engine never validates them against a fixed set. Key
// uniqueness is not enforced here: duplicates across batches are legal and
// deduplicated at the presentation layer.
type Recommendation struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Reason    string            `json:"reason"`
	MediaType string            `json:"media_type"`
	Approach  string            `json:"approach"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Pairing is a small contextual suggestion accompanying a batch.
type Pairing struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url,omitempty"`
}

// Batch is the output of one round. Immutable once appended.
type Batch struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	Recommendations []Recommendation `json:"recommendations"`
	Pairings        []Pairing        `json:"pairings"`
}

// Stats are the session's running counters. Liked/Disliked reflect the
// current rating of each item, not the history of re-ratings.
type Stats struct {
	Shown    int `json:"shown"`
	Liked    int `json:"liked"`
	Disliked int `json:"disliked"`
}

// Session is one discovery session's accumulated state. All mutation goes
// through Store methods, which hold the session lock.
type Session struct {
	ID string

	mu          sync.Mutex
	batches     []Batch
	feedback    map[string]int
	stats       Stats
	lastBatchID int64

	// lastSentProfile is the profile-diff checkpoint: the document text as
	// of the last delta actually sent to the agent.
	lastSentProfile string
}

// Store is the partitioned session registry. The registry lock only guards
// the map; per-session state is guarded by the session's own lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns it.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:       uuid.New().String(),
		feedback: make(map[string]int),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for id, or ErrSessionNotFound.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Invalidate drops a session. There is no automatic expiry; lifecycle is the
// caller's concern.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// AppendBatch stamps the batch with a monotonic time-derived identifier and
// appends it to the session. Batches are never reordered or mutated after
// this point. Shown counts grow by the batch's recommendation count.
func (s *Session) AppendBatch(b Batch) Batch {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= s.lastBatchID {
		id = s.lastBatchID + 1
	}
	s.lastBatchID = id

	b.ID = id
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	s.batches = append(s.batches, b)
	s.stats.Shown += len(b.Recommendations)
	return b
}

// RecordFeedback upserts the rating for an item key. Re-rating subtracts the
// old rating's bucket contribution before adding the new one, atomically, so
// counters never transiently double-count.
func (s *Session) RecordFeedback(key string, rating int) error {
	if rating < RatingMin || rating > RatingMax {
		return fmt.Errorf("rating %d out of range %d-%d", rating, RatingMin, RatingMax)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.feedback[key]; ok {
		s.applyBucket(old, -1)
	}
	s.feedback[key] = rating
	s.applyBucket(rating, +1)
	return nil
}

func (s *Session) applyBucket(rating, delta int) {
	switch {
	case rating >= likedThreshold:
		s.stats.Liked += delta
	case rating <= dislikedCutoff:
		s.stats.Disliked += delta
	}
}

// Stats returns a copy of the running counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Batches returns the session's batches in insertion (= round) order.
func (s *Session) Batches() []Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// Feedback returns a copy of the cumulative item-key → rating map.
func (s *Session) Feedback() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.feedback))
	for k, v := range s.feedback {
		out[k] = v
	}
	return out
}

// ProfileCheckpoint returns the profile text as of the last sent delta.
func (s *Session) ProfileCheckpoint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSentProfile
}

// AdvanceProfileCheckpoint records that current has been sent to the agent.
// Called only after a delta was actually included in a round, so a retried
// round recomputes the same delta instead of drifting.
func (s *Session) AdvanceProfileCheckpoint(current string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSentProfile = current
}
