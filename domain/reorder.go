package domain

// Reorder converts a drag gesture observed in a rendered view into new integer
// positions in the canonical set. from and to are indices into displayed, the
// view the gesture happened in.
//
// When the displayed view is the canonical sequence itself (same ids in the
// same order) the splice happens at the view indices directly. Any divergence,
// whether from filtering or sorting, resolves the dragged item and the drop
// target to canonical indices through their ids instead; a raw index splice
// against a reordered view would move the wrong element. If either id cannot
// be resolved the input is returned unchanged.
//
// The returned slice is a fresh copy whose Position fields are exactly 0..n-1
// in the new order.
func Reorder(canonical []Task, draggedID string, from, to int, displayed []Task) []Task {
	if sameSequence(canonical, displayed) {
		if from < 0 || from >= len(canonical) || to < 0 || to >= len(canonical) {
			return canonical
		}
		return renumber(splice(canonical, from, to))
	}

	if from < 0 || from >= len(displayed) || to < 0 || to >= len(displayed) {
		return canonical
	}

	index := make(map[string]int, len(canonical))
	for i, t := range canonical {
		index[t.ID] = i
	}

	src, ok := index[draggedID]
	if !ok {
		return canonical
	}
	dst, ok := index[displayed[to].ID]
	if !ok {
		return canonical
	}
	// Removing the source shifts everything after it left by one.
	if dst > src {
		dst--
	}
	return renumber(splice(canonical, src, dst))
}

// ChangedTasks returns the tasks in after whose position differs from their
// counterpart in before, so callers can push only what actually moved.
func ChangedTasks(before, after []Task) []Task {
	prev := make(map[string]int, len(before))
	for _, t := range before {
		prev[t.ID] = t.Position
	}
	var changed []Task
	for _, t := range after {
		if p, ok := prev[t.ID]; !ok || p != t.Position {
			changed = append(changed, t)
		}
	}
	return changed
}

func sameSequence(a, b []Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}

func splice(tasks []Task, from, to int) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]Task{moved}, out[to:]...)...)
	return out
}

func renumber(tasks []Task) []Task {
	for i := range tasks {
		tasks[i].Position = i
	}
	return tasks
}
