package connection

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrStateNotFound = errors.New("oauth state not found or expired")

const stateBytes = 32

// State binds an OAuth round trip to the user that started it.
type State struct {
	Value     string    `json:"value"`
	UserID    string    `json:"userId"`
	TenantID  uuid.UUID `json:"tenantId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func NewState(userID string, tenantID uuid.UUID, now time.Time, ttl time.Duration) (*State, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return &State{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		UserID:    userID,
		TenantID:  tenantID,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (s *State) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// StateStore holds pending states. Consume must look up and delete in one
// atomic step so a state value can succeed at most once.
type StateStore interface {
	Save(ctx context.Context, s *State) error
	Consume(ctx context.Context, value string, now time.Time) (*State, error)
}
