package session

import (
	"context"
	"errors"

	"github.com/caremesh-ai/triage/pkg/common/models"
)

var ErrNotFound = errors.New("session not found")

// Store owns every Session. Agents operate on sessions by id only, so the
// backing store can be swapped without touching agent code. Implementations
// must serialize snapshots; they never observe the in-memory RawText of a
// turn because that field is excluded from serialization.
type Store interface {
	Load(ctx context.Context, sessionID string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
