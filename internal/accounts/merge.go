package accounts

import "github.com/cleared-dev/bursar/internal/model"

// Dedupe removes duplicate accounts, first by ID and then by code. Of two
// duplicates the one with the larger absolute balance is kept; on a tie the
// first occurrence wins. The surviving record takes the position of the
// first occurrence. Children of a record dropped by code are re-pointed to
// the survivor. Dedupe is idempotent.
func Dedupe(list []model.Account) (kept, dropped []model.Account) {
	byID, droppedByID := dedupeBy(list, func(a model.Account) string { return a.ID })
	kept, droppedByCode := dedupeBy(byID, func(a model.Account) string { return a.Code })

	if len(droppedByCode) > 0 {
		survivor := make(map[string]string, len(kept))
		for _, a := range kept {
			survivor[a.Code] = a.ID
		}
		for _, d := range droppedByCode {
			to := survivor[d.Code]
			for i := range kept {
				if kept[i].ParentID == d.ID && to != kept[i].ID {
					kept[i].ParentID = to
				}
			}
		}
	}
	return kept, append(droppedByID, droppedByCode...)
}

// Merge combines a locally held chart with a freshly loaded remote one. The
// remote records come first so they win balance ties.
func Merge(local, remote []model.Account) (merged, dropped []model.Account) {
	all := make([]model.Account, 0, len(local)+len(remote))
	all = append(all, remote...)
	all = append(all, local...)
	return Dedupe(all)
}

func dedupeBy(list []model.Account, key func(model.Account) string) (kept, dropped []model.Account) {
	pos := make(map[string]int, len(list))
	for _, a := range list {
		k := key(a)
		i, seen := pos[k]
		if !seen {
			pos[k] = len(kept)
			kept = append(kept, a)
			continue
		}
		if a.Balance.Abs().GreaterThan(kept[i].Balance.Abs()) {
			dropped = append(dropped, kept[i])
			kept[i] = a
		} else {
			dropped = append(dropped, a)
		}
	}
	return kept, dropped
}
