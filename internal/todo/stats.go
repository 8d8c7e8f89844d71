package todo

import (
	"math"
	"time"

	"github.com/ytakahashi/firetodo/internal/models"
)

const (
	// PageSize is the number of todos shown per page.
	PageSize = 5
	// UrgentDays is the distance to the deadline, in either direction, within
	// which an open todo counts as urgent.
	UrgentDays = 3
)

type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Incomplete int `json:"incomplete"`
	Urgent     int `json:"urgent"`
	NonUrgent  int `json:"nonUrgent"`
}

func ComputeStats(todos []Todo, now time.Time) Stats {
	s := Stats{Total: len(todos)}
	for _, t := range todos {
		if t.Completed {
			s.Completed++
		}
		if IsUrgent(t, now) {
			s.Urgent++
		}
	}
	s.Incomplete = s.Total - s.Completed
	s.NonUrgent = s.Total - s.Urgent
	return s
}

// IsUrgent reports whether an open todo's deadline is at most UrgentDays away
// from now, rounding the distance up to whole days. Past deadlines count too.
// The deadline is taken as midnight UTC; an unparsable deadline is never urgent.
func IsUrgent(t Todo, now time.Time) bool {
	if t.Completed {
		return false
	}
	deadline, err := time.Parse(models.DeadlineLayout, t.Deadline)
	if err != nil {
		return false
	}
	diff := deadline.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	days := math.Ceil(diff.Hours() / 24)
	return days <= UrgentDays
}

type Page struct {
	Number     int    `json:"page"`
	TotalPages int    `json:"totalPages"`
	Items      []Todo `json:"items"`
}

// Paginate returns page number (1-indexed) of todos. Pages outside the range
// are empty.
func Paginate(todos []Todo, number int) Page {
	p := Page{
		Number:     number,
		TotalPages: (len(todos) + PageSize - 1) / PageSize,
		Items:      []Todo{},
	}
	if number < 1 {
		return p
	}
	first := (number - 1) * PageSize
	if first >= len(todos) {
		return p
	}
	last := first + PageSize
	if last > len(todos) {
		last = len(todos)
	}
	p.Items = append(p.Items, todos[first:last]...)
	return p
}
