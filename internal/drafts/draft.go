package drafts

import (
	"context"
	"errors"
	"time"

	"github.com/alimatrix/alimatrix/internal/form"
)

// KeyPrefix namespaces every stored draft.
const KeyPrefix = "alimatrix-form:"

var (
	ErrNotFound = errors.New("draft not found")
	ErrCorrupt  = errors.New("draft unreadable")
)

type Meta struct {
	LastUpdated time.Time `json:"lastUpdated"`
	FormVersion string    `json:"formVersion"`
}

// Draft is the in-progress answer blob of one session.
type Draft struct {
	FormData form.FormData `json:"formData"`
	Meta     Meta          `json:"meta"`
}

// envelope is the stored layout: {"state": {"formData": ..., "meta": ...}}.
type envelope struct {
	State Draft `json:"state"`
}

// Empty returns a fresh draft.
func Empty() Draft {
	return Draft{FormData: form.FormData{}, Meta: Meta{FormVersion: form.CurrentVersion}}
}

// Repository persists drafts by session id.
type Repository interface {
	// Load returns ErrNotFound when nothing is stored and ErrCorrupt when
	// the stored value cannot be decoded.
	Load(ctx context.Context, sid string) (Draft, error)
	Save(ctx context.Context, sid string, d Draft) error
	Clear(ctx context.Context, sid string) error
}

func key(sid string) []byte {
	return []byte(KeyPrefix + sid)
}
