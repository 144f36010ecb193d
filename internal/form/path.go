package form

// Path returns the ordered steps the draft has to go through. The branch
// step is only included once a valid branch is cached.
func Path(d FormData) []StepID {
	path := []StepID{StepWyborSciezki}
	if d.String(FieldSciezka) == SciezkaNieustalone {
		return append(path, StepKontakt)
	}
	path = append(path,
		StepFinansowanie,
		StepPodstawa,
		StepDzieci,
		StepCzasOpieki,
		StepKoszty,
		StepDochody,
	)
	if b, ok := ParseBranch(d.String(FieldWariant)); ok {
		path = append(path, b.Step())
	}
	return append(path, StepInformacje, StepKontakt)
}

func indexOf(path []StepID, id StepID) int {
	for i, s := range path {
		if s == id {
			return i
		}
	}
	return -1
}

// Guard decides whether step id may be entered. When it may not, redirect
// names the earliest step on the path that is still unanswered.
func Guard(d FormData, id StepID) (redirect StepID, ok bool) {
	if _, known := Lookup(id); !known {
		return StepWyborSciezki, false
	}
	path := Path(d)
	idx := indexOf(path, id)
	upstream := path
	if idx >= 0 {
		upstream = path[:idx]
	}
	for _, sid := range upstream {
		s, _ := Lookup(sid)
		if !s.Complete(d) {
			return sid, false
		}
	}
	if idx < 0 {
		// every step on the path is answered, but id is not one of them
		return path[len(path)-1], false
	}
	return id, true
}

// Next returns the step after id. done is true after the last step.
func Next(d FormData, id StepID) (next StepID, done bool) {
	if id == StepDochody && d.String(FieldSciezka) != SciezkaNieustalone {
		return DispatchBranch(d), false
	}
	path := Path(d)
	idx := indexOf(path, id)
	if idx < 0 {
		r, _ := Guard(d, id)
		return r, false
	}
	if idx == len(path)-1 {
		return "", true
	}
	return path[idx+1], false
}

// Prev returns the step before id, or ok=false on the first step.
func Prev(d FormData, id StepID) (prev StepID, ok bool) {
	path := Path(d)
	idx := indexOf(path, id)
	if idx <= 0 {
		return "", false
	}
	return path[idx-1], true
}

// PathComplete reports whether every step of the path is answered.
func PathComplete(d FormData) bool {
	for _, sid := range Path(d) {
		s, _ := Lookup(sid)
		if !s.Complete(d) {
			return false
		}
	}
	return true
}
