package curriculum

// CompleteProgress is the progress value at which a topic counts as completed.
const CompleteProgress = 100

// Topic is the smallest lesson unit of a curriculum.
type Topic struct {
	Name     string  `json:"name"`
	Content  any     `json:"content,omitempty"` // opaque lesson payload
	IsLocked bool    `json:"is_locked"`
	Progress float64 `json:"progress"`
}

// Completed reports whether the topic has reached full progress.
func (t *Topic) Completed() bool {
	return t.Progress >= CompleteProgress
}

// Unit is an ordered group of topics. Topic order defines the unlock sequence.
type Unit struct {
	Name     string   `json:"name"`
	Topics   []*Topic `json:"topics"`
	Progress float64  `json:"progress"`
}

// TopicIndex returns the position of the named topic, or -1.
func (u *Unit) TopicIndex(name string) int {
	for i, t := range u.Topics {
		if t.Name == name {
			return i
		}
	}
	return -1
}

// CompletedTopics counts topics with full progress.
func (u *Unit) CompletedTopics() int {
	n := 0
	for _, t := range u.Topics {
		if t.Completed() {
			n++
		}
	}
	return n
}

func (u *Unit) updateProgress() {
	u.Progress = percent(u.CompletedTopics(), len(u.Topics))
}

// Subject is a top-level curriculum branch (e.g., Mathematics).
type Subject struct {
	Name     string  `json:"name"`
	Icon     string  `json:"icon"`
	Color    string  `json:"color"`
	Units    []*Unit `json:"units"`
	Progress float64 `json:"progress"`
}

// TotalTopics counts topics across all units.
func (s *Subject) TotalTopics() int {
	n := 0
	for _, u := range s.Units {
		n += len(u.Topics)
	}
	return n
}

// CompletedTopics counts completed topics across all units.
func (s *Subject) CompletedTopics() int {
	n := 0
	for _, u := range s.Units {
		n += u.CompletedTopics()
	}
	return n
}

// UpdateProgress recomputes the subject progress and the progress of every unit.
func (s *Subject) UpdateProgress() {
	s.Progress = percent(s.CompletedTopics(), s.TotalTopics())
	for _, u := range s.Units {
		u.updateProgress()
	}
}

// Clone returns a deep copy of the subject. Topic content is shared.
func (s *Subject) Clone() Subject {
	out := *s
	out.Units = make([]*Unit, len(s.Units))
	for i, u := range s.Units {
		cu := u.Clone()
		out.Units[i] = &cu
	}
	return out
}

// Clone returns a deep copy of the unit.
func (u *Unit) Clone() Unit {
	out := *u
	out.Topics = make([]*Topic, len(u.Topics))
	for i, t := range u.Topics {
		ct := *t
		out.Topics[i] = &ct
	}
	return out
}

// TopicRef addresses one topic inside a graph.
type TopicRef struct {
	Subject string `json:"subject"`
	Unit    int    `json:"unit"`
	Topic   string `json:"topic"`
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
