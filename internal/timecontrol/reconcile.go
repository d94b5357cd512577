package timecontrol

import (
	"math/big"
	"time"
)

// Reconcile folds raw rows into one record per (worker, local day).
//
// When rows share a key the winner is chosen by preferID; on a tie the row seen
// later wins. Each kept record carries its normalized date so the output can be
// fed back through Reconcile unchanged.
func Reconcile(raw []Record, loc *time.Location) map[Key]Record {
	out, _ := fold(raw, loc)
	return out
}

// fold is Reconcile plus the number of raw rows seen per key.
func fold(raw []Record, loc *time.Location) (map[Key]Record, map[Key]int) {
	out := make(map[Key]Record, len(raw))
	seen := make(map[Key]int, len(raw))
	for _, r := range raw {
		day := NormalizeDateString(string(r.Date), loc)
		if day.IsZero() && r.EntryTime != nil {
			day = NormalizeDate(*r.EntryTime, loc)
		}
		if day.IsZero() || r.WorkerID == "" {
			continue
		}
		r = r.Clone()
		r.Date = day
		k := Key{WorkerID: r.WorkerID, Date: day}
		seen[k]++
		if cur, ok := out[k]; ok && preferID(cur.ID, r.ID) {
			continue
		}
		out[k] = r
	}
	return out, seen
}

// preferID reports whether the current id strictly beats the incoming one:
// any id beats none, and among two ids the greater wins.
func preferID(current, incoming string) bool {
	switch {
	case current == "":
		return false
	case incoming == "":
		return true
	}
	return compareIDs(current, incoming) > 0
}

// compareIDs compares numerically when both ids are integers, lexically otherwise.
func compareIDs(a, b string) int {
	if x, ok := new(big.Int).SetString(a, 10); ok {
		if y, ok := new(big.Int).SetString(b, 10); ok {
			return x.Cmp(y)
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
