package staffing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ayurclinic/clinic/internal/platform/apperror"
)

type leaveRepoMemory struct {
	mu     sync.RWMutex
	leaves []*Leave
}

func NewLeaveRepoMemory() LeaveRepository {
	return &leaveRepoMemory{}
}

func (r *leaveRepoMemory) Create(_ context.Context, l *Leave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.CreatedAt = time.Now().UTC()
	cp := *l
	r.leaves = append(r.leaves, &cp)
	return nil
}

func (r *leaveRepoMemory) GetByID(_ context.Context, id string) (*Leave, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.leaves {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("leave", id)
}

func (r *leaveRepoMemory) GetForUpdate(ctx context.Context, id string) (*Leave, error) {
	return r.GetByID(ctx, id)
}

func (r *leaveRepoMemory) Update(_ context.Context, l *Leave) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.leaves {
		if existing.ID == l.ID {
			existing.Status = l.Status
			existing.EmergencyCoverRequired = l.EmergencyCoverRequired
			existing.ReviewedBy = l.ReviewedBy
			existing.ReviewedAt = l.ReviewedAt
			return nil
		}
	}
	return apperror.NotFound("leave", l.ID)
}

func (r *leaveRepoMemory) filter(keep func(*Leave) bool) []*Leave {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Leave
	for _, l := range r.leaves {
		if keep(l) {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FromDate.Before(out[j].FromDate) })
	return out
}

func (r *leaveRepoMemory) List(_ context.Context, f LeaveFilter) ([]*Leave, error) {
	return r.filter(func(l *Leave) bool {
		return (f.UserID == "" || l.UserID == f.UserID) && (f.Status == "" || l.Status == f.Status)
	}), nil
}

func (r *leaveRepoMemory) ListApprovedOverlapping(_ context.Context, start, end time.Time) ([]*Leave, error) {
	return r.filter(func(l *Leave) bool {
		return l.Status == LeaveApproved && l.Overlaps(start, end)
	}), nil
}
