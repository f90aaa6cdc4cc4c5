package domain

import (
	"strconv"
	"testing"
)

func benchTasks(n int) []Task {
	priorities := []Priority{PriorityUrgent, PriorityNormal, PriorityLow}
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{
			ID:       strconv.Itoa(i),
			Text:     "task " + strconv.Itoa(n-i),
			Category: DefaultCategories()[i%5],
			Priority: priorities[i%3],
			Position: n - i - 1,
		}
	}
	return tasks
}

func BenchmarkProjectPosition(b *testing.B) {
	tasks := benchTasks(500)
	v := DefaultView()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Project(tasks, v)
	}
}

func BenchmarkProjectName(b *testing.B) {
	tasks := benchTasks(500)
	v := View{SortBy: SortByName, Completion: ShowAll}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Project(tasks, v)
	}
}

func BenchmarkReorder(b *testing.B) {
	tasks := benchTasks(500)
	displayed := Project(tasks, DefaultView())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Reorder(tasks, displayed[0].ID, 0, len(displayed)-1, displayed)
	}
}
