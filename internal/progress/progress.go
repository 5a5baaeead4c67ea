// Package progress tracks account-level learning counters: experience,
// points, streaks, daily lesson count and achievements.
package progress

import (
	"fmt"
	"time"
)

const (
	DefaultDailyGoal    = 5
	LessonXP            = 10 // base experience per completed lesson
	SubjectProgressStep = 5
	MaxSubjectProgress  = 100
)

// Achievement names awarded by CheckAchievements.
const (
	AchievementFirstLesson = "First Lesson"
	AchievementPerfectDay  = "Perfect Day"
)

// Milestone is a streak length that earns a named achievement once.
type Milestone struct {
	Days int
	Name string
}

// StreakMilestones are evaluated in this order.
var StreakMilestones = []Milestone{
	{Days: 7, Name: "Week Warrior"},
	{Days: 30, Name: "Monthly Master"},
	{Days: 100, Name: "Centurion"},
}

// Achievement is an earned badge. Achievements are never changed once earned.
type Achievement struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earned_at"`
}

// UserProgress holds one learner's counters.
type UserProgress struct {
	XP                    int                `json:"xp"`
	Points                int                `json:"points"`
	Streak                int                `json:"streak"`
	DailyGoal             int                `json:"daily_goal"`
	LessonsCompletedToday int                `json:"lessons_completed_today"`
	LastActivityDate      time.Time          `json:"last_activity_date"`
	Achievements          []Achievement      `json:"achievements"`
	SubjectProgress       map[string]float64 `json:"subject_progress"`
}

// New returns zeroed progress whose last activity is today.
func New(today time.Time) UserProgress {
	return UserProgress{
		DailyGoal:        DefaultDailyGoal,
		LastActivityDate: startOfDay(today),
		Achievements:     []Achievement{},
		SubjectProgress:  map[string]float64{},
	}
}

// Clone returns a deep copy.
func (p UserProgress) Clone() UserProgress {
	out := p
	out.Achievements = append([]Achievement{}, p.Achievements...)
	out.SubjectProgress = make(map[string]float64, len(p.SubjectProgress))
	for k, v := range p.SubjectProgress {
		out.SubjectProgress[k] = v
	}
	return out
}

// HasAchievement reports whether an achievement with this name was ever earned.
func (p UserProgress) HasAchievement(name string) bool {
	for _, a := range p.Achievements {
		if a.Name == name {
			return true
		}
	}
	return false
}

// CountAchievements counts earned achievements with this name.
func (p UserProgress) CountAchievements(name string) int {
	n := 0
	for _, a := range p.Achievements {
		if a.Name == name {
			n++
		}
	}
	return n
}

func (p UserProgress) hasAchievementOn(name string, day time.Time) bool {
	for _, a := range p.Achievements {
		if a.Name == name && sameDay(a.EarnedAt.In(day.Location()), day) {
			return true
		}
	}
	return false
}

// TrackerConfig holds dependencies for a Tracker.
type TrackerConfig struct {
	Clock     func() time.Time // defaults to time.Now
	DailyGoal int              // used for fresh progress; defaults to DefaultDailyGoal
	Initial   *UserProgress    // restored progress; nil starts fresh
}

// Tracker applies progress rules to one UserProgress. It is not safe for
// concurrent use; callers serialize access the same way they serialize the
// session that owns it.
type Tracker struct {
	p   UserProgress
	now func() time.Time
}

// NewTracker creates a tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	var p UserProgress
	if cfg.Initial != nil {
		p = cfg.Initial.Clone()
	} else {
		p = New(now())
		if cfg.DailyGoal > 0 {
			p.DailyGoal = cfg.DailyGoal
		}
	}
	if p.DailyGoal <= 0 {
		p.DailyGoal = DefaultDailyGoal
	}

	return &Tracker{p: p, now: now}
}

// Progress returns a snapshot of the current progress.
func (t *Tracker) Progress() UserProgress {
	return t.p.Clone()
}

// AddXP adds experience and awards half of it, rounded down, as points.
// Points are halved per call, so AddXP(3) twice yields 2 points while
// AddXP(6) yields 3. Non-positive amounts are ignored so xp and points
// never decrease.
func (t *Tracker) AddXP(amount int) {
	if amount <= 0 {
		return
	}
	t.p.XP += amount
	t.p.Points += amount / 2
}

// UpdateStreak compares today with the last activity date: the next day
// extends the streak, a longer gap resets it to zero and the same day
// leaves it alone. The last activity date always becomes today.
func (t *Tracker) UpdateStreak() {
	today := startOfDay(t.now())
	switch gap := daysBetween(t.p.LastActivityDate, today); {
	case gap == 1:
		t.p.Streak++
	case gap > 1:
		t.p.Streak = 0
	}
	t.p.LastActivityDate = today
}

// CompleteLesson records one finished lesson in the named subject.
// It does not touch the streak; see UpdateStreak.
func (t *Tracker) CompleteLesson(subject string) {
	t.p.LessonsCompletedToday++
	t.AddXP(LessonXP)

	if t.p.SubjectProgress == nil {
		t.p.SubjectProgress = map[string]float64{}
	}
	t.p.SubjectProgress[subject] = min(MaxSubjectProgress, t.p.SubjectProgress[subject]+SubjectProgressStep)

	t.CheckAchievements()
}

// ResetDailyCount clears the daily lesson counter. Nothing calls it
// automatically; the host decides when a new day starts.
func (t *Tracker) ResetDailyCount() {
	t.p.LessonsCompletedToday = 0
}

// CheckAchievements awards every achievement whose rule now holds.
// Perfect Day can be earned once per calendar day; all others once ever.
func (t *Tracker) CheckAchievements() {
	now := t.now()

	if t.p.LessonsCompletedToday == 1 && !t.p.HasAchievement(AchievementFirstLesson) {
		t.award(AchievementFirstLesson, "Complete your first lesson", "🌟", now)
	}

	if t.p.LessonsCompletedToday >= t.p.DailyGoal && !t.p.hasAchievementOn(AchievementPerfectDay, now) {
		t.award(AchievementPerfectDay, fmt.Sprintf("Complete %d lessons in one day", t.p.DailyGoal), "🎯", now)
	}

	for _, m := range StreakMilestones {
		if t.p.Streak >= m.Days && !t.p.HasAchievement(m.Name) {
			t.award(m.Name, fmt.Sprintf("Maintain a %d-day streak", m.Days), "🔥", now)
		}
	}
}

func (t *Tracker) award(name, description, icon string, at time.Time) {
	t.p.Achievements = append(t.p.Achievements, Achievement{
		Name:        name,
		Description: description,
		Icon:        icon,
		EarnedAt:    at,
	})
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// daysBetween counts calendar days from a to b, ignoring clock time and DST.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
