// Package retention computes which backups a chain-aware retention policy
// would expire. It is a pure function over a Schedule and its Backups — no
// I/O, no clock reads beyond the `now` the caller supplies.
package retention

import (
	"sort"
	"time"

	"github.com/dbcalm/dbcalm/internal/db"
)

// unitDays maps a RetentionUnit to its day multiplier.
var unitDays = map[db.RetentionUnit]int{
	db.RetentionDays:   1,
	db.RetentionWeeks:  7,
	db.RetentionMonths: 30,
}

// Cutoff computes now - retention_value * (1|7|30 days), per
// retention_unit, for the given schedule. Returns the zero time and false
// if the schedule has no retention configured.
func Cutoff(s db.Schedule, now time.Time) (time.Time, bool) {
	if s.RetentionValue == nil || s.RetentionUnit == nil {
		return time.Time{}, false
	}
	days, ok := unitDays[*s.RetentionUnit]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-time.Duration(*s.RetentionValue) * time.Duration(days) * 24 * time.Hour), true
}

// chain is the ordered sequence starting at a full backup (from_backup_id
// == nil) and including every incremental descending from it.
type chain []db.Backup

func (c chain) allOlderThan(cutoff time.Time) bool {
	for _, b := range c {
		if !b.StartTime.Before(cutoff) {
			return false
		}
	}
	return true
}

// groupChains partitions backups (already ordered by start_time ascending)
// into chains: a new chain starts at every backup whose FromBackupID is
// nil; every following backup belongs to that chain until the next full.
func groupChains(backups []db.Backup) []chain {
	var chains []chain
	var current chain
	for _, b := range backups {
		if b.FromBackupID == nil {
			if len(current) > 0 {
				chains = append(chains, current)
			}
			current = chain{b}
			continue
		}
		current = append(current, b)
	}
	if len(current) > 0 {
		chains = append(chains, current)
	}
	return chains
}

// GetExpiredBackups returns the concatenation of every backup in every
// chain where ALL members are older than cutoff. A chain with any recent
// member is kept in its entirety.
func GetExpiredBackups(backups []db.Backup, cutoff time.Time) []db.Backup {
	sorted := make([]db.Backup, len(backups))
	copy(sorted, backups)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime.Before(sorted[j].StartTime) })

	var expired []db.Backup
	for _, c := range groupChains(sorted) {
		if c.allOlderThan(cutoff) {
			expired = append(expired, c...)
		}
	}
	return expired
}
