package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

type job struct {
	email string
	token string
}

// Pool is an in-process mail dispatcher: a buffered queue drained by a fixed
// number of workers. Dispatch never blocks; when the queue is full the email
// is dropped and logged.
type Pool struct {
	sender  VerificationSender
	jobs    chan job
	workers int
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool creates a pool with the given worker count and queue capacity.
func NewPool(sender VerificationSender, workers, capacity int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	return &Pool{
		sender:  sender,
		jobs:    make(chan job, capacity),
		workers: workers,
		timeout: 30 * time.Second,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	log.Info().Int("workers", p.workers).Msg("Starting mail dispatcher...")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for j := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.sender.SendVerification(ctx, j.email, j.token); err != nil {
			log.Error().Err(err).Str("email", j.email).Msg("Error sending verification email")
		}
		cancel()
	}
}

// DispatchVerification queues a verification email without waiting for it.
func (p *Pool) DispatchVerification(email, token string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		log.Warn().Str("email", email).Msg("Mail dispatcher stopped, verification email dropped")
		return
	}

	select {
	case p.jobs <- job{email: email, token: token}:
	default:
		log.Warn().Str("email", email).Msg("Mail queue full, verification email dropped")
	}
}

// Stop stops accepting work and waits for queued emails to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info().Msg("Mail dispatcher stopped.")
}
