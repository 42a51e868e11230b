package notification

import (
	"context"
	"sync"
	"time"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
)

type repoMemory struct {
	mu    sync.RWMutex
	items []*Notification
}

func NewRepoMemory() Repository {
	return &repoMemory{}
}

func (r *repoMemory) Create(_ context.Context, n *Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.CreatedAt = time.Now().UTC()
	cp := *n
	r.items = append(r.items, &cp)
	return nil
}

func (r *repoMemory) ListForUser(_ context.Context, userID string, unreadOnly bool) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Notification
	for i := len(r.items) - 1; i >= 0; i-- {
		n := r.items[i]
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (r *repoMemory) MarkRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.items {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return apperror.NotFound("notification", id)
}

func (r *repoMemory) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	marked := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			n.Read = true
			marked++
		}
	}
	return marked, nil
}
