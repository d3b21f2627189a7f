package engine

// Listener receives every committed state, synchronously, in commit
// order.
type Listener func(State)

// Engine owns the single live state cell for one match. It is not
// safe for concurrent use on its own; the room actor that owns it is
// the serialization point, so every Dispatch for a match happens on
// one goroutine.
type Engine struct {
	state     State
	listeners map[int]Listener
	nextID    int
}

func NewEngine(initial State) *Engine {
	return &Engine{
		state:     initial,
		listeners: make(map[int]Listener),
	}
}

// State returns the current snapshot.
func (e *Engine) State() State { return e.state }

// Dispatch runs the reducer and, when the action is accepted, commits
// the new state and notifies listeners before returning. The boolean
// tells the caller whether anything changed.
func (e *Engine) Dispatch(a Action) bool {
	next, ok := Apply(e.state, a)
	if !ok {
		return false
	}
	e.state = next
	for _, l := range e.listeners {
		l(next)
	}
	return true
}

// Subscribe registers a listener and returns its unsubscribe
// capability.
func (e *Engine) Subscribe(l Listener) func() {
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	return func() { delete(e.listeners, id) }
}

func (e *Engine) GameOver() bool { return e.state.GameOver() }

func (e *Engine) Winner() (int, bool) { return e.state.Winner() }
