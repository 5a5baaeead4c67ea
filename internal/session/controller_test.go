package session_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/pencilsharp/pencilsharp/internal/curriculum"
	"github.com/pencilsharp/pencilsharp/internal/events"
	"github.com/pencilsharp/pencilsharp/internal/progress"
	"github.com/pencilsharp/pencilsharp/internal/session"
)

type notification struct {
	eventType string
	payload   any
}

// recorder collects notifications in order.
type recorder struct {
	got []notification
}

func (r *recorder) Notify(eventType string, payload any) {
	r.got = append(r.got, notification{eventType, payload})
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.eventType)
	}
	return out
}

func mathCatalog() curriculum.Catalog {
	return curriculum.Catalog{Subjects: []curriculum.SubjectConfig{
		{
			Name:  "Math",
			Icon:  "🔢",
			Color: "#4CAF50",
			Units: []curriculum.UnitConfig{
				{Name: "U1", Topics: []string{"A", "B"}},
				{Name: "U2", Topics: []string{"C"}},
			},
		},
		{
			Name:  "Art",
			Icon:  "🎨",
			Color: "#9C27B0",
			Units: []curriculum.UnitConfig{{Name: "Colour", Topics: []string{"Red"}}},
		},
	}}
}

var fixedNow = time.Date(2026, 5, 4, 15, 0, 0, 0, time.UTC)

func newController(t *testing.T) (*session.Controller, *recorder) {
	t.Helper()
	g, err := curriculum.Load(mathCatalog())
	if err != nil {
		t.Fatalf("curriculum.Load() error = %v", err)
	}
	c := session.NewController(session.Config{
		Graph:   g,
		Tracker: progress.NewTracker(progress.TrackerConfig{Clock: func() time.Time { return fixedNow }}),
	})
	rec := &recorder{}
	c.AddObserver(rec)
	return c, rec
}

func TestController_EndToEnd(t *testing.T) {
	c, rec := newController(t)

	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")
	c.CompleteCurrentTopic()

	want := []string{events.SubjectChanged, events.UnitChanged, events.TopicChanged, events.ProgressUpdated}
	if !reflect.DeepEqual(rec.types(), want) {
		t.Fatalf("events = %v, want %v", rec.types(), want)
	}

	subject, _ := c.CurrentSubject()
	a := subject.Units[0].Topics[0]
	b := subject.Units[0].Topics[1]
	cTopic := subject.Units[1].Topics[0]
	if a.Progress != 100 {
		t.Errorf("A.Progress = %v, want 100", a.Progress)
	}
	if b.IsLocked {
		t.Error("B should be unlocked")
	}
	if !cTopic.IsLocked {
		t.Error("C should stay locked")
	}
	if subject.Units[0].Progress != 50 {
		t.Errorf("U1.Progress = %v, want 50", subject.Units[0].Progress)
	}
	if math.Abs(subject.Progress-100.0/3) > 1e-9 {
		t.Errorf("Math.Progress = %v, want 33.33", subject.Progress)
	}

	p := c.Progress()
	if p.XP != 10 || p.Points != 5 || p.LessonsCompletedToday != 1 {
		t.Errorf("XP/Points/Today = %d/%d/%d, want 10/5/1", p.XP, p.Points, p.LessonsCompletedToday)
	}
	if !p.HasAchievement(progress.AchievementFirstLesson) {
		t.Error("First Lesson achievement missing")
	}
	if p.SubjectProgress["Math"] != 5 {
		t.Errorf("SubjectProgress[Math] = %v, want 5", p.SubjectProgress["Math"])
	}

	payload, ok := rec.got[3].payload.(progress.UserProgress)
	if !ok {
		t.Fatalf("progress_updated payload is %T, want progress.UserProgress", rec.got[3].payload)
	}
	if payload.XP != 10 {
		t.Errorf("payload XP = %d, want 10", payload.XP)
	}
}

func TestController_EventPayloads(t *testing.T) {
	c, rec := newController(t)

	c.SelectSubject("Math")
	c.SelectUnit(1)

	if rec.got[0].payload != "Math" {
		t.Errorf("subject_changed payload = %v, want Math", rec.got[0].payload)
	}
	if rec.got[1].payload != 1 {
		t.Errorf("unit_changed payload = %v, want 1", rec.got[1].payload)
	}
}

func TestController_SilentNoOps(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *session.Controller)
		call  func(c *session.Controller)
	}{
		{
			name: "unknown subject",
			call: func(c *session.Controller) { c.SelectSubject("Biology") },
		},
		{
			name: "unit without subject",
			call: func(c *session.Controller) { c.SelectUnit(0) },
		},
		{
			name:  "unit out of range",
			setup: func(c *session.Controller) { c.SelectSubject("Math") },
			call:  func(c *session.Controller) { c.SelectUnit(2) },
		},
		{
			name:  "negative unit",
			setup: func(c *session.Controller) { c.SelectSubject("Math") },
			call:  func(c *session.Controller) { c.SelectUnit(-1) },
		},
		{
			name:  "topic without unit",
			setup: func(c *session.Controller) { c.SelectSubject("Math") },
			call:  func(c *session.Controller) { c.SelectTopic("A") },
		},
		{
			name:  "locked topic",
			setup: func(c *session.Controller) { c.SelectSubject("Math"); c.SelectUnit(0) },
			call:  func(c *session.Controller) { c.SelectTopic("B") },
		},
		{
			name:  "unknown topic",
			setup: func(c *session.Controller) { c.SelectSubject("Math"); c.SelectUnit(0) },
			call:  func(c *session.Controller) { c.SelectTopic("Z") },
		},
		{
			name:  "topic from another unit",
			setup: func(c *session.Controller) { c.SelectSubject("Math"); c.SelectUnit(1) },
			call:  func(c *session.Controller) { c.SelectTopic("A") },
		},
		{
			name:  "first topic of a later subject",
			setup: func(c *session.Controller) { c.SelectSubject("Art"); c.SelectUnit(0) },
			call:  func(c *session.Controller) { c.SelectTopic("Red") },
		},
		{
			name: "complete with nothing selected",
			call: func(c *session.Controller) { c.CompleteCurrentTopic() },
		},
		{
			name:  "complete without topic",
			setup: func(c *session.Controller) { c.SelectSubject("Math"); c.SelectUnit(0) },
			call:  func(c *session.Controller) { c.CompleteCurrentTopic() },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newController(t)
			if tt.setup != nil {
				tt.setup(c)
			}
			before := snapshot(c)
			notified := len(rec.got)

			tt.call(c)

			if len(rec.got) != notified {
				t.Errorf("observers notified %d times, want 0", len(rec.got)-notified)
			}
			if after := snapshot(c); !reflect.DeepEqual(before, after) {
				t.Errorf("state changed:\nbefore %+v\nafter  %+v", before, after)
			}
		})
	}
}

type controllerSnapshot struct {
	Subjects    []curriculum.Subject
	Progress    progress.UserProgress
	Subject     string
	UnitIndex   int
	Topic       string
	HasTopic    bool
	HasSelected bool
}

func snapshot(c *session.Controller) controllerSnapshot {
	s, hasSubject := c.CurrentSubject()
	_, idx, _ := c.CurrentUnit()
	topic, hasTopic := c.CurrentTopic()
	return controllerSnapshot{
		Subjects:    c.Subjects(),
		Progress:    c.Progress(),
		Subject:     s.Name,
		UnitIndex:   idx,
		Topic:       topic.Name,
		HasTopic:    hasTopic,
		HasSelected: hasSubject,
	}
}

func TestController_SelectionResetsChildren(t *testing.T) {
	c, _ := newController(t)

	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")

	c.SelectUnit(1)
	if _, ok := c.CurrentTopic(); ok {
		t.Error("SelectUnit should clear the topic")
	}

	c.SelectSubject("Art")
	if _, _, ok := c.CurrentUnit(); ok {
		t.Error("SelectSubject should clear the unit")
	}
}

func TestController_CompleteWalksUnit(t *testing.T) {
	c, _ := newController(t)

	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")
	c.CompleteCurrentTopic()
	c.SelectTopic("B")
	c.CompleteCurrentTopic()

	topic, ok := c.CurrentTopic()
	if !ok || topic.Name != "B" || topic.Progress != 100 {
		t.Errorf("CurrentTopic() = %+v, %v; want completed B", topic, ok)
	}

	// The unit boundary is never crossed.
	c.SelectUnit(1)
	c.SelectTopic("C")
	if _, ok := c.CurrentTopic(); ok {
		t.Error("C should still be locked")
	}

	sp, ok := c.SubjectProgress("Math")
	if !ok {
		t.Fatal("SubjectProgress(Math) not found")
	}
	if sp.Units[0].Progress != 100 || sp.Units[1].Progress != 0 {
		t.Errorf("unit progress = %+v, want [100 0]", sp.Units)
	}
	if math.Abs(sp.Progress-200.0/3) > 1e-9 {
		t.Errorf("subject progress = %v, want 66.67", sp.Progress)
	}
	if got := c.Progress().XP; got != 20 {
		t.Errorf("XP = %d, want 20", got)
	}
}

func TestController_RepeatCompletionRecordsAgain(t *testing.T) {
	c, rec := newController(t)
	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")

	c.CompleteCurrentTopic()
	c.CompleteCurrentTopic()

	if got := c.Progress().LessonsCompletedToday; got != 2 {
		t.Errorf("LessonsCompletedToday = %d, want 2", got)
	}
	if n := len(rec.got); n != 5 {
		t.Errorf("notifications = %d, want 5", n)
	}
}

func TestController_UpdateStreakNotifies(t *testing.T) {
	c, rec := newController(t)

	c.UpdateStreak()

	if len(rec.got) != 1 || rec.got[0].eventType != events.ProgressUpdated {
		t.Fatalf("events = %v, want [progress_updated]", rec.types())
	}
	if c.Version() != 1 {
		t.Errorf("Version() = %d, want 1", c.Version())
	}
}

func TestController_SelectionDoesNotBumpVersion(t *testing.T) {
	c, _ := newController(t)
	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")
	if c.Version() != 0 {
		t.Errorf("Version() = %d after selection, want 0", c.Version())
	}
}

func TestController_RemoveObserver(t *testing.T) {
	c, rec := newController(t)
	other := &recorder{}
	id := c.AddObserver(other)

	c.RemoveObserver(id)
	c.SelectSubject("Math")

	if len(other.got) != 0 {
		t.Error("removed observer was notified")
	}
	if len(rec.got) != 1 {
		t.Errorf("remaining observer notified %d times, want 1", len(rec.got))
	}
}

func TestController_SubjectProgressUnknown(t *testing.T) {
	c, _ := newController(t)
	if _, ok := c.SubjectProgress("Nope"); ok {
		t.Error("SubjectProgress(Nope) should not be found")
	}
}

func TestController_State(t *testing.T) {
	c, _ := newController(t)
	c.SelectSubject("Math")
	c.SelectUnit(0)
	c.SelectTopic("A")
	c.CompleteCurrentTopic()

	st := c.State()
	want := []curriculum.TopicRef{{Subject: "Math", Unit: 0, Topic: "A"}}
	if !reflect.DeepEqual(st.Completed, want) {
		t.Errorf("Completed = %v, want %v", st.Completed, want)
	}
	if st.Progress.XP != 10 {
		t.Errorf("Progress.XP = %d, want 10", st.Progress.XP)
	}
}
