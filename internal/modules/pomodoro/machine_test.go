package pomodoro

import "testing"

func tinySettings(auto bool) Settings {
	return Settings{StudyMinutes: 1, BreakMinutes: 1, LongBreakMinutes: 2, AutoStart: auto}
}

func TestFourthStudyLeadsToLongBreak(t *testing.T) {
	m := New(tinySettings(false))
	var phases []Phase
	for i := 0; i < 8; i++ {
		m.Start()
		tr := m.Advance(m.TimeLeft)
		if len(tr) != 1 {
			t.Fatalf("step %d: expected 1 transition, got %d", i, len(tr))
		}
		phases = append(phases, tr[0].To)
	}
	want := []Phase{PhaseBreak, PhaseStudy, PhaseBreak, PhaseStudy, PhaseBreak, PhaseStudy, PhaseLongBreak, PhaseStudy}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("transition %d = %s, want %s (all: %v)", i, phases[i], want[i], phases)
		}
	}
	if m.CompletedStudy != 4 {
		t.Fatalf("completed study = %d, want 4", m.CompletedStudy)
	}
}

func TestTickCountsDown(t *testing.T) {
	m := New(tinySettings(false))
	if _, ok := m.Tick(); ok {
		t.Fatalf("paused machine must not transition")
	}
	if m.TimeLeft != 60 {
		t.Fatalf("paused tick changed time: %d", m.TimeLeft)
	}
	m.Start()
	for i := 0; i < 59; i++ {
		if _, ok := m.Tick(); ok {
			t.Fatalf("early transition at tick %d", i)
		}
	}
	tr, ok := m.Tick()
	if !ok || tr.From != PhaseStudy || tr.To != PhaseBreak || !tr.Completed {
		t.Fatalf("unexpected transition %+v ok=%v", tr, ok)
	}
	if m.Running {
		t.Fatalf("machine without auto start should pause after a phase")
	}
	if m.TimeLeft != 60 {
		t.Fatalf("break should start full, got %d", m.TimeLeft)
	}
}

func TestAdvanceWithAutoStartCrossesPhases(t *testing.T) {
	m := New(tinySettings(true))
	m.Start()
	// study(60) break(60) study(60) break(60) study(60) break(60) study(60) -> longBreak, 10s into it
	tr := m.Advance(7*60 + 10)
	if len(tr) != 7 {
		t.Fatalf("expected 7 transitions, got %d", len(tr))
	}
	if tr[6].To != PhaseLongBreak {
		t.Fatalf("last transition to %s", tr[6].To)
	}
	if m.Phase != PhaseLongBreak || m.TimeLeft != 110 {
		t.Fatalf("phase=%s left=%d", m.Phase, m.TimeLeft)
	}
}

func TestSkipDoesNotCountStudy(t *testing.T) {
	m := New(tinySettings(false))
	for i := 0; i < 3; i++ {
		m.Skip() // study -> break
		m.Skip() // break -> study
	}
	if m.CompletedStudy != 0 {
		t.Fatalf("skips counted as completions: %d", m.CompletedStudy)
	}
	if tr := m.Skip(); tr.To != PhaseBreak || tr.Completed {
		t.Fatalf("unexpected skip transition %+v", tr)
	}
}

func TestNextPredictsLongBreak(t *testing.T) {
	m := New(tinySettings(false))
	m.CompletedStudy = 3
	if m.Next() != PhaseLongBreak {
		t.Fatalf("Next = %s", m.Next())
	}
	m.CompletedStudy = 4
	if m.Next() != PhaseBreak {
		t.Fatalf("Next = %s", m.Next())
	}
}

func TestResetAndSettings(t *testing.T) {
	m := New(DefaultSettings())
	m.Start()
	m.Advance(100)
	m.Reset()
	if m.Running || m.TimeLeft != 25*60 {
		t.Fatalf("reset left running=%v time=%d", m.Running, m.TimeLeft)
	}
	cases := []struct {
		s  Settings
		ok bool
	}{
		{DefaultSettings(), true},
		{Settings{StudyMinutes: 0, BreakMinutes: 5, LongBreakMinutes: 15}, false},
		{Settings{StudyMinutes: 25, BreakMinutes: 181, LongBreakMinutes: 15}, false},
		{Settings{StudyMinutes: 180, BreakMinutes: 1, LongBreakMinutes: 180}, true},
	}
	for i, tc := range cases {
		if err := tc.s.Validate(); (err == nil) != tc.ok {
			t.Fatalf("case %d: Validate err=%v", i, err)
		}
	}
}
