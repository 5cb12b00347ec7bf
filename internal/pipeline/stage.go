package pipeline

import "fmt"

// Stage names one step of a build.
type Stage string

const (
	StageReset       Stage = "reset"
	StageRelocate    Stage = "relocate"
	StageAllocate    Stage = "allocate-version"
	StageTemplate    Stage = "template-html"
	StageStyles      Stage = "compile-styles"
	StageDeps        Stage = "bundle-dependencies"
	StagePassthrough Stage = "copy-passthrough-files"
	StagePublish     Stage = "publish"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageReset,
	StageRelocate,
	StageAllocate,
	StageTemplate,
	StageStyles,
	StageDeps,
	StagePassthrough,
	StagePublish,
}

// State is the position of a build in its state machine. While running it
// holds the current stage's name.
type State string

const (
	StatePending State = "pending"
	StateDone    State = "done"
	StateFailed  State = "failed"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// machine enforces the linear order of Stages.
type machine struct {
	state State
	next  int
}

func newMachine() *machine {
	return &machine{state: StatePending}
}

// enter moves to stage, which must be the next stage in order.
func (m *machine) enter(stage Stage) error {
	if m.state.Terminal() {
		return fmt.Errorf("cannot enter %s: build already %s", stage, m.state)
	}
	if m.next >= len(Stages) || Stages[m.next] != stage {
		return fmt.Errorf("cannot enter %s from %s", stage, m.state)
	}
	m.state = State(stage)
	m.next++
	return nil
}

// finish moves to done once every stage has been entered.
func (m *machine) finish() error {
	if m.state.Terminal() {
		return fmt.Errorf("build already %s", m.state)
	}
	if m.next != len(Stages) {
		return fmt.Errorf("cannot finish from %s", m.state)
	}
	m.state = StateDone
	return nil
}

func (m *machine) fail() {
	m.state = StateFailed
}
