// Package pomodoro is the timer state machine. The service persists a Machine per user
// and replays elapsed wall-clock seconds into it with Advance.
package pomodoro

import "fmt"

type Phase string

const (
	PhaseStudy     Phase = "study"
	PhaseBreak     Phase = "break"
	PhaseLongBreak Phase = "longBreak"
)

// LongBreakEvery is how many completed study phases earn a long break.
const LongBreakEvery = 4

const (
	DefaultStudyMinutes     = 25
	DefaultBreakMinutes     = 5
	DefaultLongBreakMinutes = 15
	MinMinutes              = 1
	MaxMinutes              = 180
)

type Settings struct {
	StudyMinutes     int  `json:"study_minutes"`
	BreakMinutes     int  `json:"break_minutes"`
	LongBreakMinutes int  `json:"long_break_minutes"`
	AutoStart        bool `json:"auto_start"`
}

func DefaultSettings() Settings {
	return Settings{
		StudyMinutes:     DefaultStudyMinutes,
		BreakMinutes:     DefaultBreakMinutes,
		LongBreakMinutes: DefaultLongBreakMinutes,
	}
}

func (s Settings) Validate() error {
	check := func(name string, v int) error {
		if v < MinMinutes || v > MaxMinutes {
			return fmt.Errorf("%s must be between %d and %d minutes", name, MinMinutes, MaxMinutes)
		}
		return nil
	}
	if err := check("study_minutes", s.StudyMinutes); err != nil {
		return err
	}
	if err := check("break_minutes", s.BreakMinutes); err != nil {
		return err
	}
	return check("long_break_minutes", s.LongBreakMinutes)
}

// Duration is the length of a phase in seconds.
func (s Settings) Duration(p Phase) int {
	switch p {
	case PhaseBreak:
		return s.BreakMinutes * 60
	case PhaseLongBreak:
		return s.LongBreakMinutes * 60
	default:
		return s.StudyMinutes * 60
	}
}

// Transition describes one phase change. Completed is false when the phase was skipped.
type Transition struct {
	From      Phase `json:"from"`
	To        Phase `json:"to"`
	Completed bool  `json:"completed"`
	// Seconds is the length of the phase that ended.
	Seconds int `json:"seconds"`
}

type Machine struct {
	Settings       Settings
	Phase          Phase
	TimeLeft       int
	Running        bool
	CompletedStudy int
}

func New(s Settings) *Machine {
	return &Machine{
		Settings: s,
		Phase:    PhaseStudy,
		TimeLeft: s.Duration(PhaseStudy),
	}
}

func ParsePhase(v string) (Phase, bool) {
	switch Phase(v) {
	case PhaseStudy, PhaseBreak, PhaseLongBreak:
		return Phase(v), true
	}
	return "", false
}

func (m *Machine) Start() { m.Running = true }

func (m *Machine) Pause() { m.Running = false }

// Reset stops the timer and rewinds the current phase.
func (m *Machine) Reset() {
	m.Running = false
	m.TimeLeft = m.Settings.Duration(m.Phase)
}

// ResetCycle returns to a fresh study phase and clears the long-break counter.
func (m *Machine) ResetCycle() {
	m.Running = false
	m.Phase = PhaseStudy
	m.CompletedStudy = 0
	m.TimeLeft = m.Settings.Duration(PhaseStudy)
}

// Tick advances one second while running. It returns the transition when the phase ends.
func (m *Machine) Tick() (Transition, bool) {
	if !m.Running {
		return Transition{}, false
	}
	if m.TimeLeft > 0 {
		m.TimeLeft--
	}
	if m.TimeLeft > 0 {
		return Transition{}, false
	}
	return m.finish(true), true
}

// Advance applies n ticks and returns every transition that happened, in order.
// A machine without auto-start stops after the first transition, so the rest is dropped.
func (m *Machine) Advance(n int) []Transition {
	var out []Transition
	for n > 0 && m.Running {
		if m.TimeLeft > n {
			m.TimeLeft -= n
			return out
		}
		n -= m.TimeLeft
		m.TimeLeft = 0
		out = append(out, m.finish(true))
	}
	return out
}

// Skip ends the current phase immediately. Skipping study does not count as a completion.
func (m *Machine) Skip() Transition {
	return m.finish(false)
}

// Next is the phase that follows the current one if it completes now.
func (m *Machine) Next() Phase {
	if m.Phase != PhaseStudy {
		return PhaseStudy
	}
	if (m.CompletedStudy+1)%LongBreakEvery == 0 {
		return PhaseLongBreak
	}
	return PhaseBreak
}

func (m *Machine) finish(completed bool) Transition {
	tr := Transition{From: m.Phase, Completed: completed, Seconds: m.Settings.Duration(m.Phase)}
	switch m.Phase {
	case PhaseStudy:
		if completed {
			m.CompletedStudy++
			if m.CompletedStudy%LongBreakEvery == 0 {
				m.Phase = PhaseLongBreak
			} else {
				m.Phase = PhaseBreak
			}
		} else {
			m.Phase = PhaseBreak
		}
	default:
		m.Phase = PhaseStudy
	}
	tr.To = m.Phase
	m.TimeLeft = m.Settings.Duration(m.Phase)
	if !m.Settings.AutoStart {
		m.Running = false
	}
	return tr
}
