// Package report computes the admin overview figures from a finite slice of
// inspection records. Everything here is pure: callers pass in the records,
// the reference instant and the options, and get back a value. No clock reads,
// no I/O, no package state.
package report

import (
	"sort"
	"time"

	"github.com/tbourn/leaktrack-backend/internal/domain"
)

// Defaults applied by Options.normalize when a field is left zero.
const (
	DefaultWeek           = 7 * 24 * time.Hour
	DefaultDelayThreshold = 48 * time.Hour
	DefaultTopN           = 10
)

// Record is the flattened view of an inspection needed for aggregation.
type Record struct {
	ID            string
	Status        string
	Severity      string
	LeakageTypeID string // empty when the inspection has no leakage type
	LeakageCode   string
	LeakageName   string
	CreatedAt     time.Time
}

// Options tunes the windows used by Aggregate.
type Options struct {
	Location       *time.Location // calendar for "today" and "this month"; nil means UTC
	Week           time.Duration
	DelayThreshold time.Duration
	TopN           int
}

func (o Options) normalize() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Week <= 0 {
		o.Week = DefaultWeek
	}
	if o.DelayThreshold <= 0 {
		o.DelayThreshold = DefaultDelayThreshold
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}

// StatusCounts buckets records by stored status.
type StatusCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// LeakageFreeCounts counts severity None records per window.
type LeakageFreeCounts struct {
	Today int `json:"today"`
	Week  int `json:"week"`
	Month int `json:"month"`
}

// LeakageCount is one row of the top-leakages table.
type LeakageCount struct {
	LeakageTypeID string `json:"leakage_type_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Count         int    `json:"count"`
}

// Summary is the result of Aggregate.
type Summary struct {
	Status       StatusCounts      `json:"status"`
	LeakageFree  LeakageFreeCounts `json:"leakage_free"`
	DelayedCount int               `json:"delayed"`
	TopLeakages  []LeakageCount    `json:"top_leakages"`
}

// Windows holds the start instants of the leakage-free windows for now.
type Windows struct {
	TodayStart time.Time
	WeekStart  time.Time
	MonthStart time.Time
}

// WindowsAt returns the window starts for now under opts. The month window is
// widened to the week window when the rolling week reaches back into the
// previous month, so the three windows are always nested.
func WindowsAt(now time.Time, opts Options) Windows {
	opts = opts.normalize()
	local := now.In(opts.Location)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, opts.Location)
	week := now.Add(-opts.Week)
	month := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, opts.Location)
	if week.Before(month) {
		month = week
	}
	if week.After(today) {
		week = today
	}
	return Windows{TodayStart: today, WeekStart: week, MonthStart: month}
}

// IsDelayed reports whether an inspection is overdue for repair: it is still
// Pending and strictly older than threshold at now.
func IsDelayed(status string, createdAt, now time.Time, threshold time.Duration) bool {
	return status == domain.StatusPending && now.Sub(createdAt) > threshold
}

// Aggregate computes the overview Summary for records at now.
//
// Status buckets use exact string equality on the stored status, so a row
// stored as "Delayed" counts toward Total only. Leakage-free windows are
// half-open [start, now). Top leakages skip records without a leakage type and
// are ordered by count descending, ties in first-seen order.
func Aggregate(records []Record, now time.Time, opts Options) Summary {
	opts = opts.normalize()
	w := WindowsAt(now, opts)

	var s Summary
	s.Status.Total = len(records)

	type bucket struct {
		LeakageCount
		first int
	}
	byType := make(map[string]*bucket)

	for i, r := range records {
		switch r.Status {
		case domain.StatusPending:
			s.Status.Pending++
		case domain.StatusCompleted:
			s.Status.Completed++
		}

		if IsDelayed(r.Status, r.CreatedAt, now, opts.DelayThreshold) {
			s.DelayedCount++
		}

		if r.Severity == domain.SeverityNone && r.CreatedAt.Before(now) {
			if !r.CreatedAt.Before(w.TodayStart) {
				s.LeakageFree.Today++
			}
			if !r.CreatedAt.Before(w.WeekStart) {
				s.LeakageFree.Week++
			}
			if !r.CreatedAt.Before(w.MonthStart) {
				s.LeakageFree.Month++
			}
		}

		if r.LeakageTypeID == "" {
			continue
		}
		b, ok := byType[r.LeakageTypeID]
		if !ok {
			b = &bucket{
				LeakageCount: LeakageCount{LeakageTypeID: r.LeakageTypeID, Code: r.LeakageCode, Name: r.LeakageName},
				first:        i,
			}
			byType[r.LeakageTypeID] = b
		}
		b.Count++
	}

	buckets := make([]*bucket, 0, len(byType))
	for _, b := range byType {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].first < buckets[j].first
	})
	if len(buckets) > opts.TopN {
		buckets = buckets[:opts.TopN]
	}
	s.TopLeakages = make([]LeakageCount, 0, len(buckets))
	for _, b := range buckets {
		s.TopLeakages = append(s.TopLeakages, b.LeakageCount)
	}
	return s
}

// FromInspection flattens a stored inspection (with its LeakageType preloaded
// when present) into a Record.
func FromInspection(in domain.InspectionRecord) Record {
	r := Record{
		ID:        in.ID,
		Status:    in.Status,
		Severity:  in.Severity,
		CreatedAt: in.CreatedAt,
	}
	if in.LeakageTypeID != nil {
		r.LeakageTypeID = *in.LeakageTypeID
	}
	if in.LeakageType != nil {
		r.LeakageCode = in.LeakageType.Code
		r.LeakageName = in.LeakageType.Name
	}
	return r
}

// FromInspections maps FromInspection over a slice.
func FromInspections(in []domain.InspectionRecord) []Record {
	out := make([]Record, 0, len(in))
	for _, x := range in {
		out = append(out, FromInspection(x))
	}
	return out
}
