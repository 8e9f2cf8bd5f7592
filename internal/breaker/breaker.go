// Package breaker guards calls to the external inference services
// (embedding, CLIP, transcription, LLM). A backend that keeps failing
// gets a cool-off instead of a retry storm from every request.
package breaker

import (
	"errors"
	"log"
	"sync"
	"time"
)

var ErrOpen = errors.New("service unavailable: circuit open")

type state string

const (
	stateClosed   state = "closed"
	stateOpen     state = "open"
	stateHalfOpen state = "half-open"
)

// Breaker is a three-state circuit breaker. Closed passes everything
// through; open rejects until the cool-off elapses; half-open lets
// probe requests through until enough succeed in a row.
type Breaker struct {
	mu               sync.Mutex
	name             string
	state            state
	failures         int
	probeSuccesses   int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	coolOff          time.Duration
}

// New creates a breaker for one named backend.
func New(name string, failureThreshold int, coolOff time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 3
	}
	if coolOff <= 0 {
		coolOff = 30 * time.Second
	}
	return &Breaker{
		name:             name,
		state:            stateClosed,
		failureThreshold: failureThreshold,
		successThreshold: 2,
		coolOff:          coolOff,
	}
}

// Do runs fn through the breaker. When the circuit is open, fn is not
// called and ErrOpen is returned.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateOpen {
		if time.Since(b.lastFailure) < b.coolOff {
			return ErrOpen
		}
		b.state = stateHalfOpen
		b.probeSuccesses = 0
		log.Printf("[Breaker] %s: open -> half-open, probing", b.name)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		b.probeSuccesses = 0
		b.lastFailure = time.Now()
		if b.state == stateHalfOpen || (b.state == stateClosed && b.failures >= b.failureThreshold) {
			if b.state != stateOpen {
				log.Printf("[Breaker] %s: opening after %d failures", b.name, b.failures)
			}
			b.state = stateOpen
		}
		return
	}

	switch b.state {
	case stateClosed:
		b.failures = 0
	case stateHalfOpen:
		b.probeSuccesses++
		if b.probeSuccesses >= b.successThreshold {
			b.state = stateClosed
			b.failures = 0
			log.Printf("[Breaker] %s: recovered, closing", b.name)
		}
	}
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == stateOpen && time.Since(b.lastFailure) < b.coolOff
}
