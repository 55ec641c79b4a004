// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager hands out per-session locks so concurrent chats against the
// same conversation file serialize their read-modify-write cycles.
type LockManager struct {
	sessionLocks  map[string]*lockInfo
	globalLock    sync.RWMutex
	cleanupTicker *time.Ticker
}

type lockInfo struct {
	mutex    *sync.RWMutex
	lastUsed time.Time
}

// NewLockManager creates the manager and starts its idle-lock cleaner.
func NewLockManager() *LockManager {
	lm := &LockManager{
		sessionLocks: make(map[string]*lockInfo),
	}

	lm.startCleanup()
	return lm
}

// GetSessionLock returns the lock for a session, creating it on first use.
func (lm *LockManager) GetSessionLock(sessionID string) *sync.RWMutex {
	lm.globalLock.RLock()
	if info, exists := lm.sessionLocks[sessionID]; exists {
		lm.globalLock.RUnlock()
		info.lastUsed = time.Now()
		return info.mutex
	}
	lm.globalLock.RUnlock()

	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// Double check under the write lock.
	if info, exists := lm.sessionLocks[sessionID]; exists {
		info.lastUsed = time.Now()
		return info.mutex
	}

	lock := &sync.RWMutex{}
	lm.sessionLocks[sessionID] = &lockInfo{
		mutex:    lock,
		lastUsed: time.Now(),
	}
	return lock
}

// ExecuteWithSessionLock runs fn while holding the session's write lock.
func (lm *LockManager) ExecuteWithSessionLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// ExecuteWithSessionReadLock runs fn while holding the session's read lock.
func (lm *LockManager) ExecuteWithSessionReadLock(sessionID string, fn func() error) error {
	lock := lm.GetSessionLock(sessionID)
	lock.RLock()
	defer lock.RUnlock()
	return fn()
}

func (lm *LockManager) startCleanup() {
	lm.cleanupTicker = time.NewTicker(5 * time.Minute)
	go func() {
		for range lm.cleanupTicker.C {
			lm.cleanupUnusedLocks()
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	const maxLocks = 200
	const lockTimeout = 30 * time.Minute

	// Only clean when the map has grown past the ceiling, and then only
	// locks idle past the timeout.
	if len(lm.sessionLocks) > maxLocks {
		now := time.Now()
		for sessionID, info := range lm.sessionLocks {
			if now.Sub(info.lastUsed) > lockTimeout {
				delete(lm.sessionLocks, sessionID)
			}
		}
	}
}
