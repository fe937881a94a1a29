package services

import (
	"sync"
)

// ListingLocks serializes admissions and settlement per listing. The lock
// spans the highest-bid read through the committed write, so two callers
// can never admit against the same stale floor.
type ListingLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewListingLocks() *ListingLocks {
	return &ListingLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Lock acquires the mutex for listingID and returns its unlock func.
func (l *ListingLocks) Lock(listingID string) func() {
	l.mu.Lock()
	lock, exists := l.locks[listingID]
	if !exists {
		lock = &sync.Mutex{}
		l.locks[listingID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
