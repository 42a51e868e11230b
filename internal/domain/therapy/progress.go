package therapy

import (
	"math"
	"time"
)

// averageProgress is the rounded mean progress over every session of a
// therapy. Sessions the patient did not attend count with their own
// progress, which defaults to 0.
func averageProgress(sessions []*Session) int {
	if len(sessions) == 0 {
		return 0
	}
	sum := 0
	for _, s := range sessions {
		sum += s.ProgressPercent
	}
	return int(math.Round(float64(sum) / float64(len(sessions))))
}

// advance applies a newly recorded session to t. The first session moves a
// scheduled therapy to ONGOING; an average of 100 completes it and stamps
// the end date once. COMPLETED is never left. It reports whether this call
// completed the therapy.
func advance(t *Therapy, sessions []*Session, now time.Time) bool {
	avg := averageProgress(sessions)
	t.ProgressPercent = avg

	if t.Status == StatusScheduled {
		t.Status = StatusOngoing
	}
	if avg >= 100 && t.Status != StatusCompleted {
		t.Status = StatusCompleted
		end := now.UTC()
		t.EndDate = &end
		return true
	}
	return false
}
