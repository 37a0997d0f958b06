package audio

import "sync"

// failureSignal carries the first fatal capture error to whoever watches
// Failed. Later reports are dropped.
type failureSignal struct {
	once sync.Once
	ch   chan error
}

func (f *failureSignal) channel() chan error {
	f.once.Do(func() { f.ch = make(chan error, 1) })
	return f.ch
}

func (f *failureSignal) report(err error) {
	select {
	case f.channel() <- err:
	default:
	}
}

// Failed delivers the error that stopped capture.
func (f *failureSignal) Failed() <-chan error {
	return f.channel()
}
