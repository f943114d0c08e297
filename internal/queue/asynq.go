package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// TypeSendEmailVerification is the asynq task type for verification emails.
const TypeSendEmailVerification = "email:verification"

type verificationPayload struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// RedisOpt converts a redis:// URL into asynq connection options.
func RedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Username:  opt.Username,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: opt.TLSConfig,
	}, nil
}

// NewVerificationTask builds the task enqueued for one verification email.
// Tasks are never retried.
func NewVerificationTask(email, token string) (*asynq.Task, error) {
	payload, err := json.Marshal(verificationPayload{Email: email, Token: token})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeSendEmailVerification, payload, asynq.MaxRetry(0)), nil
}

// AsynqDispatcher enqueues verification emails on a Redis-backed asynq queue.
type AsynqDispatcher struct {
	client  *asynq.Client
	timeout time.Duration
}

// NewAsynqDispatcher creates a dispatcher for redisOpt.
func NewAsynqDispatcher(redisOpt asynq.RedisClientOpt) *AsynqDispatcher {
	return &AsynqDispatcher{client: asynq.NewClient(redisOpt), timeout: 5 * time.Second}
}

// DispatchVerification enqueues in the background; enqueue failures are
// logged only.
func (d *AsynqDispatcher) DispatchVerification(email, token string) {
	go func() {
		task, err := NewVerificationTask(email, token)
		if err != nil {
			log.Error().Err(err).Str("email", email).Msg("Failed to build verification task")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if _, err := d.client.EnqueueContext(ctx, task); err != nil {
			log.Warn().Err(err).Str("email", email).Msg("Enqueue verification email failed")
		}
	}()
}

// Close releases the Redis connection.
func (d *AsynqDispatcher) Close() error {
	return d.client.Close()
}

// Worker runs the asynq handlers that deliver queued emails.
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	sender VerificationSender
}

// NewWorker creates an asynq server and registers handlers. Call Run to start.
func NewWorker(redisOpt asynq.RedisClientOpt, sender VerificationSender, concurrency int) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		LogLevel:    asynq.WarnLevel,
	})
	w := &Worker{srv: srv, mux: asynq.NewServeMux(), sender: sender}
	w.mux.HandleFunc(TypeSendEmailVerification, w.handleSendVerification)
	return w
}

func (w *Worker) handleSendVerification(ctx context.Context, t *asynq.Task) error {
	var p verificationPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		log.Error().Err(err).Msg("Verification task payload invalid")
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.sender.SendVerification(ctx, p.Email, p.Token); err != nil {
		log.Error().Err(err).Str("email", p.Email).Msg("Error sending verification email")
		return fmt.Errorf("send verification: %v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// Run blocks until the worker is shut down.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
