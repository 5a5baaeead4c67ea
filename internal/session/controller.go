// Package session drives one learner through the curriculum: selection of
// subject, unit and topic, topic completion, and the progress it earns.
package session

import (
	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/events"
	"github.com/pencilsharp/pencilsharp/internal/progress"
)

const noUnit = -1

// Config holds dependencies for a Controller.
type Config struct {
	Graph   *curriculum.Graph
	Tracker *progress.Tracker // defaults to a fresh tracker
}

// Controller owns one curriculum graph, one progress tracker and the
// current selection.
//
// Every method runs to completion synchronously and notifies observers
// before returning. Calls with unmet preconditions (unknown subject,
// out-of-range unit, locked or unknown topic, nothing selected) change
// nothing and notify nobody. A Controller is not safe for concurrent use;
// see Manager for a serialized multi-user host.
type Controller struct {
	graph   *curriculum.Graph
	tracker *progress.Tracker
	bus     events.Bus

	subject *curriculum.Subject
	unit    int
	topic   string

	version uint64
}

// SubjectProgress is the computed progress of a subject and its units.
type SubjectProgress struct {
	Subject  string         `json:"subject"`
	Progress float64        `json:"progress"`
	Units    []UnitProgress `json:"units"`
}

// UnitProgress is the computed progress of one unit.
type UnitProgress struct {
	Name     string  `json:"name"`
	Progress float64 `json:"progress"`
}

// NewController creates a controller with nothing selected.
func NewController(cfg Config) *Controller {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = progress.NewTracker(progress.TrackerConfig{})
	}
	return &Controller{
		graph:   cfg.Graph,
		tracker: tracker,
		unit:    noUnit,
	}
}

// AddObserver registers an observer for subject_changed, unit_changed,
// topic_changed and progress_updated. Observers must not call back into
// the controller while being notified.
func (c *Controller) AddObserver(o events.Observer) events.ObserverID {
	return c.bus.AddObserver(o)
}

// RemoveObserver unregisters an observer.
func (c *Controller) RemoveObserver(id events.ObserverID) bool {
	return c.bus.RemoveObserver(id)
}

// SelectSubject selects a subject by name and clears the unit and topic.
func (c *Controller) SelectSubject(name string) {
	s, ok := c.graph.Subject(name)
	if !ok {
		return
	}
	c.subject = s
	c.unit = noUnit
	c.topic = ""
	c.notify(events.SubjectChanged, s.Name)
}

// SelectUnit selects a unit of the current subject and clears the topic.
func (c *Controller) SelectUnit(index int) {
	if c.subject == nil || index < 0 || index >= len(c.subject.Units) {
		return
	}
	c.unit = index
	c.topic = ""
	c.notify(events.UnitChanged, index)
}

// SelectTopic selects an unlocked topic of the current unit. Locked and
// unknown topics are both ignored.
func (c *Controller) SelectTopic(name string) {
	u := c.currentUnit()
	if u == nil {
		return
	}
	idx := u.TopicIndex(curriculum.NormalizeName(name))
	if idx < 0 || u.Topics[idx].IsLocked {
		return
	}
	c.topic = u.Topics[idx].Name
	c.notify(events.TopicChanged, c.topic)
}

// CompleteCurrentTopic completes the selected topic, unlocks the next topic
// of the same unit, recomputes subject and unit progress, records the lesson
// and publishes the new progress.
func (c *Controller) CompleteCurrentTopic() {
	if c.subject == nil || c.unit == noUnit || c.topic == "" {
		return
	}
	ref := curriculum.TopicRef{Subject: c.subject.Name, Unit: c.unit, Topic: c.topic}
	if !c.graph.Complete(ref) {
		return
	}
	c.tracker.CompleteLesson(c.subject.Name)
	c.version++
	c.notify(events.ProgressUpdated, c.tracker.Progress())
}

// UpdateStreak applies the daily streak rule and publishes the new progress.
// It is never called implicitly by CompleteCurrentTopic.
func (c *Controller) UpdateStreak() {
	c.tracker.UpdateStreak()
	c.version++
	c.notify(events.ProgressUpdated, c.tracker.Progress())
}

// ResetDailyCount starts a new day for the daily lesson counter. The core
// never calls it; the host decides when a day ends.
func (c *Controller) ResetDailyCount() {
	c.tracker.ResetDailyCount()
	c.version++
	c.notify(events.ProgressUpdated, c.tracker.Progress())
}

// CurrentSubject returns a copy of the selected subject.
func (c *Controller) CurrentSubject() (curriculum.Subject, bool) {
	if c.subject == nil {
		return curriculum.Subject{}, false
	}
	return c.subject.Clone(), true
}

// CurrentUnit returns a copy of the selected unit and its index.
func (c *Controller) CurrentUnit() (curriculum.Unit, int, bool) {
	u := c.currentUnit()
	if u == nil {
		return curriculum.Unit{}, noUnit, false
	}
	return u.Clone(), c.unit, true
}

// CurrentTopic returns a copy of the selected topic.
func (c *Controller) CurrentTopic() (curriculum.Topic, bool) {
	u := c.currentUnit()
	if u == nil || c.topic == "" {
		return curriculum.Topic{}, false
	}
	idx := u.TopicIndex(c.topic)
	if idx < 0 {
		return curriculum.Topic{}, false
	}
	return *u.Topics[idx], true
}

// Progress returns a snapshot of the learner's progress.
func (c *Controller) Progress() progress.UserProgress {
	return c.tracker.Progress()
}

// Subjects returns copies of every subject in configuration order.
func (c *Controller) Subjects() []curriculum.Subject {
	subjects := c.graph.Subjects()
	out := make([]curriculum.Subject, 0, len(subjects))
	for _, s := range subjects {
		out = append(out, s.Clone())
	}
	return out
}

// SubjectProgress returns the computed progress of a subject and its units.
func (c *Controller) SubjectProgress(name string) (SubjectProgress, bool) {
	s, ok := c.graph.Subject(name)
	if !ok {
		return SubjectProgress{}, false
	}
	sp := SubjectProgress{
		Subject:  s.Name,
		Progress: s.Progress,
		Units:    make([]UnitProgress, 0, len(s.Units)),
	}
	for _, u := range s.Units {
		sp.Units = append(sp.Units, UnitProgress{Name: u.Name, Progress: u.Progress})
	}
	return sp, true
}

// State returns the persistable part of the session.
func (c *Controller) State() State {
	return State{
		Progress:  c.tracker.Progress(),
		Completed: c.graph.Completed(),
	}
}

// Version increases whenever the persistable State changes. Selection
// changes do not count.
func (c *Controller) Version() uint64 {
	return c.version
}

func (c *Controller) currentUnit() *curriculum.Unit {
	if c.subject == nil || c.unit == noUnit {
		return nil
	}
	return c.subject.Units[c.unit]
}

func (c *Controller) notify(eventType string, payload any) {
	c.bus.Notify(eventType, payload)
}
