package todo_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/ytakahashi/firetodo/internal/todo"
)

func TestComputeStats_Urgency(t *testing.T) {
	today := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	a := todo.Todo{ID: "a", Deadline: "2024-01-12"}
	b := todo.Todo{ID: "b", Deadline: "2024-02-01"}
	c := todo.Todo{ID: "c", Deadline: "2024-01-11", Completed: true}

	assert.True(t, todo.IsUrgent(a, today))
	assert.False(t, todo.IsUrgent(b, today))
	assert.False(t, todo.IsUrgent(c, today))

	assert.Equal(t, todo.Stats{
		Total:      3,
		Completed:  1,
		Incomplete: 2,
		Urgent:     1,
		NonUrgent:  2,
	}, todo.ComputeStats([]todo.Todo{a, b, c}, today))
}

func TestIsUrgent_Boundaries(t *testing.T) {
	now := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		deadline string
		want     bool
	}{
		{"2024-01-10", true},
		{"2024-01-13", true},  // 2.375 days, rounds up to 3
		{"2024-01-14", false}, // 3.375 days, rounds up to 4
		{"2024-01-08", true},  // past, 2.625 days ago
		{"2024-01-07", false}, // past, 3.625 days ago
		{"not a date", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.deadline, func(t *testing.T) {
			assert.Equal(t, tt.want, todo.IsUrgent(todo.Todo{Deadline: tt.deadline}, now))
		})
	}
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, todo.Stats{}, todo.ComputeStats(nil, time.Now()))
}

func makeTodos(n int) []todo.Todo {
	todos := make([]todo.Todo, n)
	for i := range todos {
		todos[i] = todo.Todo{ID: fmt.Sprintf("t%02d", i), Text: fmt.Sprintf("todo %d", i)}
	}
	return todos
}

func TestPaginate(t *testing.T) {
	todos := makeTodos(12)

	first := todo.Paginate(todos, 1)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, todos[0:5], first.Items)

	third := todo.Paginate(todos, 3)
	assert.Equal(t, 3, third.TotalPages)
	assert.Len(t, third.Items, 2)
	assert.Equal(t, todos[10:12], third.Items)

	fourth := todo.Paginate(todos, 4)
	assert.Empty(t, fourth.Items)
	assert.NotNil(t, fourth.Items)

	assert.Empty(t, todo.Paginate(todos, 0).Items)
	assert.Empty(t, todo.Paginate(todos, -1).Items)
}

func TestPaginate_TotalPages(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 5: 1, 6: 2, 10: 2, 11: 3} {
		assert.Equal(t, want, todo.Paginate(makeTodos(n), 1).TotalPages, "n=%d", n)
	}
}
