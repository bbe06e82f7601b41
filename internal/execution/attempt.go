package execution

import "sync"

// Attempt holds the outcome of one run of a body. The first settlement wins;
// later ones are reported as ignored.
type Attempt struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewAttempt returns an unsettled Attempt.
func NewAttempt() *Attempt {
	return &Attempt{done: make(chan struct{})}
}

// Settle records err (nil for success) and reports whether this call was the
// one that settled the attempt.
func (a *Attempt) Settle(err error) bool {
	settled := false
	a.once.Do(func() {
		a.err = err
		settled = true
		close(a.done)
	})
	return settled
}

// Done is closed once the attempt has settled.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Settled reports whether the attempt has an outcome.
func (a *Attempt) Settled() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

// Err returns the recorded outcome. It is only meaningful once Done is
// closed.
func (a *Attempt) Err() error {
	<-a.done
	return a.err
}
