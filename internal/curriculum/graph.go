package curriculum

import "log/slog"

// Graph is the loaded Subject → Unit → Topic tree. Its shape is fixed at
// load time; only topic lock and progress state change afterwards.
//
// A Graph is not safe for concurrent use.
type Graph struct {
	subjects []*Subject
	byName   map[string]*Subject
}

// Load builds a graph from a catalog. Exactly one topic starts unlocked:
// the first topic of the first unit of the first subject, in catalog order.
// Subjects or units without topics are skipped when finding it.
func Load(c Catalog) (*Graph, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{byName: make(map[string]*Subject, len(c.Subjects))}
	topics := 0
	first := true
	for _, sc := range c.Subjects {
		s := &Subject{
			Name:  NormalizeName(sc.Name),
			Icon:  sc.Icon,
			Color: sc.Color,
			Units: make([]*Unit, 0, len(sc.Units)),
		}
		for _, uc := range sc.Units {
			u := &Unit{Name: NormalizeName(uc.Name), Topics: make([]*Topic, 0, len(uc.Topics))}
			for _, name := range uc.Topics {
				u.Topics = append(u.Topics, &Topic{
					Name:     NormalizeName(name),
					IsLocked: !first,
				})
				first = false
			}
			s.Units = append(s.Units, u)
			topics += len(u.Topics)
		}
		g.subjects = append(g.subjects, s)
		g.byName[s.Name] = s
	}

	slog.Debug("curriculum graph built", "subjects", len(g.subjects), "topics", topics)
	return g, nil
}

// Subjects returns the subjects in configuration order.
func (g *Graph) Subjects() []*Subject {
	return g.subjects
}

// Subject looks up a subject by name.
func (g *Graph) Subject(name string) (*Subject, bool) {
	s, ok := g.byName[NormalizeName(name)]
	return s, ok
}

// Lookup resolves a topic reference.
func (g *Graph) Lookup(ref TopicRef) (*Subject, *Unit, int, bool) {
	s, ok := g.Subject(ref.Subject)
	if !ok || ref.Unit < 0 || ref.Unit >= len(s.Units) {
		return nil, nil, -1, false
	}
	u := s.Units[ref.Unit]
	idx := u.TopicIndex(NormalizeName(ref.Topic))
	if idx < 0 {
		return nil, nil, -1, false
	}
	return s, u, idx, true
}

// Complete marks the referenced topic as done, unlocks the next topic of
// the same unit and recomputes the subject's progress. It reports whether
// the reference resolved.
func (g *Graph) Complete(ref TopicRef) bool {
	s, u, idx, ok := g.Lookup(ref)
	if !ok {
		return false
	}
	u.Topics[idx].Progress = CompleteProgress
	if next := idx + 1; next < len(u.Topics) {
		u.Topics[next].IsLocked = false
	}
	s.UpdateProgress()
	return true
}

// Completed lists every completed topic, in graph order.
func (g *Graph) Completed() []TopicRef {
	var refs []TopicRef
	for _, s := range g.subjects {
		for i, u := range s.Units {
			for _, t := range u.Topics {
				if t.Completed() {
					refs = append(refs, TopicRef{Subject: s.Name, Unit: i, Topic: t.Name})
				}
			}
		}
	}
	return refs
}

// Restore replays completions saved by Completed. References that no longer
// resolve, e.g. after a catalog edit, are skipped.
func (g *Graph) Restore(refs []TopicRef) {
	for _, ref := range refs {
		if !g.Complete(ref) {
			slog.Debug("skipping stale topic reference",
				"subject", ref.Subject,
				"unit", ref.Unit,
				"topic", ref.Topic,
			)
		}
	}
}
