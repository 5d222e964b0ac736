package tasks

// AggregateTasks groups a flat record snapshot into main task + subtasks.
//
// Aggregates come out in first-seen key order. Subtasks keep arrival order;
// sorting by Order happens only when a list is opened for editing (see
// SubtaskList.Load). A subtask whose parent has not been seen yet gets a
// zero-value main task, replaced if the parent shows up later in the same
// pass. When two main-task records share an id, the last one wins.
func AggregateTasks(records []Task) []Aggregate {
	if len(records) == 0 {
		return []Aggregate{}
	}

	index := make(map[string]int, len(records))
	out := make([]Aggregate, 0, len(records))

	slot := func(key string) *Aggregate {
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, Aggregate{Key: key, Subtasks: []Task{}})
		}
		return &out[i]
	}

	for _, rec := range records {
		if rec.IsMain() {
			slot(rec.ID).MainTask = rec
			continue
		}
		agg := slot(rec.ParentID)
		agg.Subtasks = append(agg.Subtasks, rec)
	}
	return out
}
