// Package quiz implements the multi-step assessment that sits between the
// landing page and enrollment.
//
// A Machine walks steps 1..N of a Catalog. Forward movement is gated on the
// current step having an answer. Leaving the first step backwards or
// finishing the last step hands control to the navigator and the machine is
// done: every later call returns ErrExited.
package quiz

import (
	"context"
	"maps"
	"math"
	"sync"

	"github.com/okian/funnel/pkg/logger"
	"github.com/okian/funnel/pkg/metrics"
	"github.com/okian/funnel/pkg/notify"
)

// Navigator performs attribution-preserving navigation.
type Navigator interface {
	Navigate(ctx context.Context, target string) error
}

// Viewport is scrolled back to the top when a new question is shown.
type Viewport interface {
	ScrollToTop()
}

// Routes are the exits of the quiz.
type Routes struct {
	Entry    string // where retreating from the first step leads
	PostQuiz string // where completing the last step leads
}

// Transition tells the caller what an Advance or Retreat did.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionForward
	TransitionBackward
	TransitionExited
)

func (t Transition) String() string {
	switch t {
	case TransitionForward:
		return "forward"
	case TransitionBackward:
		return "backward"
	case TransitionExited:
		return "exited"
	default:
		return "none"
	}
}

// NavLabels are the captions of the back and next buttons for a step.
type NavLabels struct {
	Back string
	Next string
}

// State is what subscribers receive after every change.
type State struct {
	Step     int
	Selected string
	Answers  map[int]string
	Progress int
	Exited   bool
}

// Machine is the quiz state machine. Create it with New.
type Machine struct {
	catalog  Catalog
	nav      Navigator
	routes   Routes
	viewport Viewport
	logger   logger.Logger
	strict   bool

	mu       sync.Mutex
	step     int
	answers  map[int]string
	selected string
	exited   bool

	changes notify.Hub[State]
}

// MachineOption configures a Machine.
type MachineOption func(*Machine)

// WithViewport sets the viewport scrolled on forward moves.
func WithViewport(v Viewport) MachineOption {
	return func(m *Machine) {
		m.viewport = v
	}
}

// WithStrictOptions makes SelectAnswer refuse option ids that the step's
// catalog entry does not list.
func WithStrictOptions() MachineOption {
	return func(m *Machine) {
		m.strict = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) MachineOption {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a machine on step 1 with no answers.
func New(catalog Catalog, nav Navigator, routes Routes, opts ...MachineOption) (*Machine, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if nav == nil {
		return nil, ErrNoNavigator
	}
	m := &Machine{
		catalog: catalog,
		nav:     nav,
		routes:  routes,
		step:    1,
		answers: make(map[int]string, len(catalog)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = logger.Get().Named("quiz")
	}
	return m, nil
}

// SelectAnswer records optionID as the answer for step, replacing any earlier
// answer. It never moves the machine. Any non-empty id is accepted unless the
// machine was built WithStrictOptions.
func (m *Machine) SelectAnswer(step int, optionID string) error {
	m.mu.Lock()
	if m.exited {
		m.mu.Unlock()
		return ErrExited
	}
	if step < 1 || step > len(m.catalog) {
		m.mu.Unlock()
		return ErrUnknownStep
	}
	if optionID == "" {
		m.mu.Unlock()
		return ErrUnknownOption
	}
	if _, ok := m.catalog.Option(step, optionID); m.strict && !ok {
		m.mu.Unlock()
		return ErrUnknownOption
	}
	m.answers[step] = optionID
	if step == m.step {
		m.selected = optionID
	}
	state := m.stateLocked()
	m.mu.Unlock()

	m.changes.Publish(state)
	return nil
}

// Advance moves to the next step, or leaves for the post-quiz route from the
// last one. Without an answer for the current step it does nothing.
func (m *Machine) Advance(ctx context.Context) (Transition, error) {
	m.mu.Lock()
	if m.exited {
		m.mu.Unlock()
		return TransitionNone, ErrExited
	}
	if _, ok := m.answers[m.step]; !ok {
		m.mu.Unlock()
		metrics.RecordQuizTransition(TransitionNone.String())
		return TransitionNone, nil
	}

	if m.step < len(m.catalog) {
		m.step++
		m.selected = m.answers[m.step]
		state := m.stateLocked()
		m.mu.Unlock()

		if m.viewport != nil {
			m.viewport.ScrollToTop()
		}
		metrics.RecordQuizTransition(TransitionForward.String())
		m.changes.Publish(state)
		return TransitionForward, nil
	}

	m.exited = true
	answered := len(m.answers)
	state := m.stateLocked()
	m.mu.Unlock()

	metrics.RecordQuizTransition(TransitionExited.String())
	metrics.RecordQuizCompletion()
	m.logger.Info(ctx, "quiz completed", logger.Int("answers", answered))
	m.changes.Publish(state)
	return TransitionExited, m.nav.Navigate(ctx, m.routes.PostQuiz)
}

// Retreat moves to the previous step, or leaves for the entry route from the
// first one. Answers are kept.
func (m *Machine) Retreat(ctx context.Context) (Transition, error) {
	m.mu.Lock()
	if m.exited {
		m.mu.Unlock()
		return TransitionNone, ErrExited
	}

	if m.step > 1 {
		m.step--
		m.selected = m.answers[m.step]
		state := m.stateLocked()
		m.mu.Unlock()

		metrics.RecordQuizTransition(TransitionBackward.String())
		m.changes.Publish(state)
		return TransitionBackward, nil
	}

	m.exited = true
	state := m.stateLocked()
	m.mu.Unlock()

	metrics.RecordQuizTransition(TransitionExited.String())
	m.logger.Debug(ctx, "quiz abandoned from first step")
	m.changes.Publish(state)
	return TransitionExited, m.nav.Navigate(ctx, m.routes.Entry)
}

// CanAdvance reports whether the current step has an answer.
func (m *Machine) CanAdvance() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.answers[m.step]
	return !m.exited && ok
}

// Progress is the current step as a rounded percentage of the total.
func (m *Machine) Progress() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progressLocked()
}

// CurrentStep returns the 1-indexed current step.
func (m *Machine) CurrentStep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

// TotalSteps returns the number of steps in the catalog.
func (m *Machine) TotalSteps() int {
	return len(m.catalog)
}

// Step returns the catalog entry of the current step.
func (m *Machine) Step() Step {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog[m.step-1]
}

// Selected returns the option shown as selected on the current step, or "".
func (m *Machine) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Answers returns a copy of the recorded answers keyed by step.
func (m *Machine) Answers() map[int]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.answers)
}

// Exited reports whether the machine has handed off to a route.
func (m *Machine) Exited() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exited
}

// IsLastStep reports whether the current step is the final one.
func (m *Machine) IsLastStep() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step == len(m.catalog)
}

// NavLabels returns the button captions for the current step.
func (m *Machine) NavLabels() NavLabels {
	m.mu.Lock()
	defer m.mu.Unlock()
	labels := NavLabels{Back: "Pergunta Anterior", Next: "Próxima Pergunta"}
	if m.step == 1 {
		labels.Back = "Voltar ao Início"
	}
	if m.step == len(m.catalog) {
		labels.Next = "Concluir Avaliação"
	}
	return labels
}

// State returns a snapshot of the machine.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Subscribe registers fn for every state change.
func (m *Machine) Subscribe(fn func(State)) func() {
	return m.changes.Subscribe(fn)
}

func (m *Machine) progressLocked() int {
	return int(math.Round(float64(m.step) / float64(len(m.catalog)) * 100))
}

func (m *Machine) stateLocked() State {
	return State{
		Step:     m.step,
		Selected: m.selected,
		Answers:  maps.Clone(m.answers),
		Progress: m.progressLocked(),
		Exited:   m.exited,
	}
}
