package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionMetaKey returns the cache key for a session's lookup metadata.
func (r *CacheKeyStruct) SessionMetaKey(sessionID int64) string {
	return fmt.Sprintf("session:%d:meta", sessionID)
}

// SessionQuestionLockKey returns the lock key guarding answer submission
// for one question of one session.
func (r *CacheKeyStruct) SessionQuestionLockKey(sessionID, questionID int64) string {
	return fmt.Sprintf("session:%d:q:%d:lock", sessionID, questionID)
}

var CacheKey = NewCacheKeyStruct()
