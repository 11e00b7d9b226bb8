package daystore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/wolfman30/chatrisk/internal/transcript"
)

// MergeResult counts what a Merge did to the stored collection.
type MergeResult struct {
	Added     int
	Refreshed int
	// KeptVerdicts is the number of fresh records whose stored verdict was
	// kept in place of the new one.
	KeptVerdicts int
	// Retained is the number of stored records absent from fresh that were
	// left untouched.
	Retained int
}

// Merge folds a freshly classified batch into the day's collection under the
// day lock. A stored verdict is never replaced: once written, only review
// actions change it. Stored records missing from fresh are retained, and
// records new to the day are appended in fresh order.
func (s *Store) Merge(ctx context.Context, date string, fresh []transcript.Conversation) (MergeResult, error) {
	var res MergeResult
	if err := ValidateDate(date); err != nil {
		return res, err
	}
	err := s.withLock(ctx, date, func() error {
		stored, err := s.load(ctx, date)
		if err != nil && !errors.Is(err, ErrDayNotFound) {
			return err
		}
		var merged []transcript.Conversation
		merged, res = mergeDay(stored, fresh)
		return s.save(ctx, date, merged)
	})
	return res, err
}

func mergeDay(stored, fresh []transcript.Conversation) ([]transcript.Conversation, MergeResult) {
	var res MergeResult
	freshByID := make(map[transcript.ID]int, len(fresh))
	for i := range fresh {
		freshByID[fresh[i].ID] = i
	}

	out := make([]transcript.Conversation, 0, len(stored)+len(fresh))
	used := make(map[int]struct{}, len(fresh))
	for _, old := range stored {
		i, ok := freshByID[old.ID]
		if !ok {
			res.Retained++
			out = append(out, old)
			continue
		}
		used[i] = struct{}{}
		rec := fresh[i]
		if old.Analysis != nil {
			rec.Analysis = old.Analysis
			res.KeptVerdicts++
		}
		rec.Extra = mergeExtra(rec.Extra, old.Extra)
		res.Refreshed++
		out = append(out, rec)
	}
	for i := range fresh {
		if _, ok := used[i]; ok {
			continue
		}
		res.Added++
		out = append(out, fresh[i])
	}
	return out, res
}

func mergeExtra(fresh, old map[string]json.RawMessage) map[string]json.RawMessage {
	if len(old) == 0 {
		return fresh
	}
	out := make(map[string]json.RawMessage, len(fresh)+len(old))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}
