package task

// activeSet holds the tracked tasks in submission order. It is not safe for
// concurrent use; the Orchestrator guards it with its own mutex.
type activeSet struct {
	order []string
	tasks map[string]*MediaTask
}

func newActiveSet() *activeSet {
	return &activeSet{tasks: make(map[string]*MediaTask)}
}

func (s *activeSet) add(t *MediaTask) {
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
}

func (s *activeSet) get(taskID string) (*MediaTask, bool) {
	t, ok := s.tasks[taskID]
	return t, ok
}

func (s *activeSet) remove(taskID string) (*MediaTask, bool) {
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, false
	}
	delete(s.tasks, taskID)
	for i, id := range s.order {
		if id == taskID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return t, true
}

// removeAll empties the set and returns what it held, in order.
func (s *activeSet) removeAll() []*MediaTask {
	out := s.list()
	s.order = nil
	s.tasks = make(map[string]*MediaTask)
	return out
}

func (s *activeSet) list() []*MediaTask {
	out := make([]*MediaTask, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tasks[id])
	}
	return out
}

func (s *activeSet) inFlight() int {
	n := 0
	for _, t := range s.tasks {
		if t.IsInFlight() {
			n++
		}
	}
	return n
}

// allComplete reports whether the set is non-empty and every task finished
// successfully.
func (s *activeSet) allComplete() bool {
	if len(s.tasks) == 0 {
		return false
	}
	for _, t := range s.tasks {
		if t.Status != StatusComplete {
			return false
		}
	}
	return true
}

// referencesPath reports whether a task other than exceptID reads path.
func (s *activeSet) referencesPath(path, exceptID string) bool {
	for _, t := range s.tasks {
		if t.ID != exceptID && t.Source.Path == path {
			return true
		}
	}
	return false
}
