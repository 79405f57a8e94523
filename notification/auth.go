package notification

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxUnlockFailures = 3
	lockoutDuration   = 5 * time.Minute
	sessionDuration   = 10 * time.Minute
)

// ErrWrongPassword is returned for a failed unlock attempt that did not
// trigger a lockout
var ErrWrongPassword = errors.New("wrong password")

// LockedError reports that a chat exhausted its unlock attempts
type LockedError struct {
	Until time.Time
}

// Error implements the error interface
func (e *LockedError) Error() string {
	return fmt.Sprintf("too many failed attempts, locked until %s", e.Until.Format(time.TimeOnly))
}

// chatAuth tracks the unlock state of a single chat
type chatAuth struct {
	failures      int
	lockedUntil   time.Time
	unlockedUntil time.Time
}

// Auth guards sensitive commands behind a bcrypt password. Each chat
// unlocks its own time-limited session; consecutive failures lock the
// chat out for a cooldown period.
type Auth struct {
	mu    sync.Mutex
	hash  []byte
	chats map[int64]*chatAuth
	now   func() time.Time
}

// NewAuth creates an authenticator for the given bcrypt password hash
func NewAuth(passwordHash string) *Auth {
	return &Auth{
		hash:  []byte(passwordHash),
		chats: make(map[int64]*chatAuth),
		now:   time.Now,
	}
}

// Unlock verifies the password for a chat and opens a session on
// success, returning the session expiry. The third consecutive failure
// locks the chat out; further attempts return a *LockedError until the
// cooldown passes.
func (a *Auth) Unlock(chatID int64, password string) (time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	chat := a.chat(chatID)

	if now.Before(chat.lockedUntil) {
		return time.Time{}, &LockedError{Until: chat.lockedUntil}
	}

	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		chat.failures++
		if chat.failures >= maxUnlockFailures {
			chat.failures = 0
			chat.lockedUntil = now.Add(lockoutDuration)
			return time.Time{}, &LockedError{Until: chat.lockedUntil}
		}
		return time.Time{}, ErrWrongPassword
	}

	chat.failures = 0
	chat.lockedUntil = time.Time{}
	chat.unlockedUntil = now.Add(sessionDuration)

	return chat.unlockedUntil, nil
}

// Unlocked reports whether the chat has an active session
func (a *Auth) Unlocked(chatID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	chat, ok := a.chats[chatID]
	return ok && a.now().Before(chat.unlockedUntil)
}

func (a *Auth) chat(chatID int64) *chatAuth {
	chat, ok := a.chats[chatID]
	if !ok {
		chat = &chatAuth{}
		a.chats[chatID] = chat
	}
	return chat
}
