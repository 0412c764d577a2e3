package controller

// State is the view state of one screen. Exactly one of Idle, Loading,
// Loaded or Failed holds at any time.
type State interface {
	Name() string
	isState()
}

// Idle means no account is signed in; nothing has been fetched.
type Idle struct{}

// Loading means a fetch cycle is in flight.
type Loading struct{}

// Loaded holds the result of the last successful fetch cycle.
type Loaded[T any] struct {
	Value T
}

// Failed holds the message of the error that ended the last fetch cycle.
type Failed struct {
	Message string
}

const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateLoaded  = "loaded"
	StateFailed  = "failed"
)

func (Idle) Name() string      { return StateIdle }
func (Loading) Name() string   { return StateLoading }
func (Loaded[T]) Name() string { return StateLoaded }
func (Failed) Name() string    { return StateFailed }

func (Idle) isState()      {}
func (Loading) isState()   {}
func (Loaded[T]) isState() {}
func (Failed) isState()    {}
