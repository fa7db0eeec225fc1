// Package quiz holds the in-memory stores the dispatcher reads and mutates:
// the user/score table and the immutable question catalog. Both are loaded
// once at startup; score and asked-question mutations live only as long as
// the process.
package quiz

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrUnknownUser   = errors.New("user does not exist")
	ErrWrongPassword = errors.New("wrong password")
)

// UserRecord tracks one registered user's credentials and play state.
type UserRecord struct {
	Username string
	Password string
	Score    int
	// Asked holds the id of every resolved answer in order. It is append
	// only and deliberately keeps duplicates: the quota counts resolved
	// answers, not distinct questions.
	Asked []int
}

// UserStore is a concurrency-safe map of username to UserRecord. Insertion
// order is retained so that ranking ties resolve the same way every time.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*UserRecord
	order []string
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]*UserRecord)}
}

// Add registers a user with a zero score and no asked questions. Adding an
// existing username is a no-op.
func (s *UserStore) Add(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return
	}
	s.users[username] = &UserRecord{Username: username, Password: password}
	s.order = append(s.order, username)
}

// Authenticate validates a username/password combination.
func (s *UserStore) Authenticate(username, password string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUnknownUser
	}
	if user.Password != password {
		return ErrWrongPassword
	}
	return nil
}

// Score returns the user's current score.
func (s *UserStore) Score(username string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return 0, false
	}
	return user.Score, true
}

// AddScore increases the user's score by points. Scores only ever increase.
func (s *UserStore) AddScore(username string, points int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[username]; ok {
		user.Score += points
	}
}

// RecordAsked appends a resolved question id to the user's asked list.
func (s *UserStore) RecordAsked(username string, questionID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.users[username]; ok {
		user.Asked = append(user.Asked, questionID)
	}
}

// AskedCount returns the number of answers the user has resolved.
func (s *UserStore) AskedCount(username string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		return 0
	}
	return len(user.Asked)
}

// Ranking is one row of the highscore table.
type Ranking struct {
	Username string
	Score    int
}

// Rankings returns every user ordered by descending score. Ties keep the
// store's insertion order.
func (s *UserStore) Rankings() []Ranking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rankings := make([]Ranking, 0, len(s.order))
	for _, username := range s.order {
		user := s.users[username]
		rankings = append(rankings, Ranking{Username: user.Username, Score: user.Score})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	return rankings
}

// Len returns the number of registered users.
func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
