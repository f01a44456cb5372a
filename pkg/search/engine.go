// Package search runs the parallel vanity-hash search over a set of fee partitions.
//
// One goroutine is started per partition. Workers share a single atomic stop flag and a
// single result slot; the first worker to claim the slot wins (first to detect in wall-clock
// time, which is inherently racy when two workers match within the same instant) and sets
// the stop flag so that every other worker exits at its next batch boundary.
package search

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/crypto"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/partition"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/txcodec"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/worker"
)

// Errors
var (
	ErrConfiguration = partition.ErrConfiguration
	ErrWorkerFailure = errors.New("search worker failed")
)

// Options tune a search run.
type Options struct {
	// SigningKey switches the engine to hashing signed envelopes. Nil hashes the signing payload.
	SigningKey *ecdsa.PrivateKey
	// BatchSize is the number of candidates between cancellation checks.
	BatchSize int
	// LogInterval enables periodic progress logging when positive.
	LogInterval time.Duration
	// TrackClosest records the best partial match for reporting on interruption.
	TrackClosest bool
}

// Engine coordinates search runs. Runs on the same engine must not overlap.
type Engine struct {
	logger zerolog.Logger
	opts   Options

	mu      sync.Mutex
	current *run
	running bool

	// set by a Stop that arrives while no run is active
	pendingStop bool
}

// NewEngine creates a new search engine.
func NewEngine(logger zerolog.Logger, opts Options) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = worker.DefaultBatchSize
	}
	return &Engine{
		logger: logger.With().Str("component", "search-engine").Logger(),
		opts:   opts,
	}
}

// Search evaluates every partition in parallel until a candidate hash starts with prefix,
// the context is cancelled, or all partitions are exhausted. Exhaustion and interruption
// are reported through Outcome.Status, never as errors.
func (e *Engine) Search(ctx context.Context, tmpl *types.TransactionTemplate, parts []types.WorkerPartition, prefix crypto.Prefix) (*types.Outcome, error) {
	sealer, err := e.setup(tmpl, parts)
	if err != nil {
		return nil, err
	}

	r := newRun()
	e.mu.Lock()
	e.current = r
	e.running = true
	if e.pendingStop {
		r.stop.Store(true)
		e.pendingStop = false
	}
	e.mu.Unlock()

	cfg := &worker.Config{
		Sealer:       sealer,
		Prefix:       prefix,
		BatchSize:    e.opts.BatchSize,
		TrackClosest: e.opts.TrackClosest && prefix.Nibbles() > 0,
	}

	start := time.Now()
	e.logger.Info().
		Int("workers", len(parts)).
		Str("prefix", prefix.String()).
		Bool("signed", sealer.Signed()).
		Uint64("space", partition.TotalSpace(parts)).
		Msg("search started")

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.stop.Store(true)
		case <-done:
		}
	}()
	if e.opts.LogInterval > 0 {
		go e.periodicLogger(r, done, start)
	}

	var wg sync.WaitGroup
	for _, p := range parts {
		wg.Add(1)
		go e.runWorker(&wg, r, cfg, p)
	}
	wg.Wait()
	close(done)

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	if r.failErr != nil {
		return nil, r.failErr
	}

	out := &types.Outcome{
		Attempts: r.attempts.Load(),
		Duration: time.Since(start),
		Closest:  r.bestCandidate(),
	}
	switch {
	case r.result.Load() != nil:
		out.Status = types.StatusMatched
		out.Result = r.result.Load()
	case r.cancelled.Load() > 0:
		out.Status = types.StatusInterrupted
	default:
		out.Status = types.StatusExhausted
	}

	e.logger.Info().
		Str("status", out.Status.String()).
		Uint64("attempts", out.Attempts).
		Dur("duration", out.Duration).
		Float64("rate", out.Rate()).
		Msg("search finished")
	return out, nil
}

// setup validates the inputs and builds the sealer before any worker starts.
func (e *Engine) setup(tmpl *types.TransactionTemplate, parts []types.WorkerPartition) (txcodec.Sealer, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrConfiguration)
	}
	if tmpl.ChainID == 0 {
		return nil, fmt.Errorf("%w: chain id must be positive", ErrConfiguration)
	}
	if tmpl.GasLimit == 0 {
		return nil, fmt.Errorf("%w: gas limit must be positive", ErrConfiguration)
	}
	if err := partition.Validate(parts); err != nil {
		return nil, err
	}

	enc, err := txcodec.NewEncoder(tmpl)
	if err != nil {
		return nil, err
	}
	var sealer txcodec.Sealer = enc
	if e.opts.SigningKey != nil {
		if sealer, err = txcodec.NewSignedEncoder(enc, e.opts.SigningKey); err != nil {
			return nil, err
		}
	}

	// fee fields never affect encodability, so one candidate proves the template
	if _, err := sealer.Seal(nil, parts[0].StartingFeePair()); err != nil {
		return nil, err
	}
	return sealer, nil
}

// runWorker runs one partition and converts panics and errors into a fatal run failure.
func (e *Engine) runWorker(wg *sync.WaitGroup, r *run, cfg *worker.Config, p types.WorkerPartition) {
	defer wg.Done()
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("%w: worker %d panicked: %v", ErrWorkerFailure, p.WorkerIndex, rec))
		}
	}()

	w := worker.NewWorker(cfg, r)
	state, err := w.Run(p)
	if err != nil {
		r.fail(fmt.Errorf("%w: worker %d: %w", ErrWorkerFailure, p.WorkerIndex, err))
		return
	}
	if state == worker.CancelledExternally {
		r.cancelled.Add(1)
	}
	e.logger.Debug().Int("worker", p.WorkerIndex).Str("state", state.String()).Msg("worker terminated")
}

// Stop interrupts the active run. A Stop issued while no run is active is held and
// interrupts the next Search as soon as it starts.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.current.stop.Store(true)
		return
	}
	e.pendingStop = true
}

// Attempts returns the number of candidates evaluated by the current or last run.
func (e *Engine) Attempts() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return 0
	}
	return e.current.attempts.Load()
}

// Closest returns the best partial match of the current or last run.
func (e *Engine) Closest() *types.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	return e.current.bestCandidate()
}

// periodicLogger logs search progress at regular intervals
func (e *Engine) periodicLogger(r *run, done <-chan struct{}, start time.Time) {
	ticker := time.NewTicker(e.opts.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			attempts := r.attempts.Load()
			elapsed := time.Since(start)

			rate := 0.0
			if elapsed.Seconds() > 0 {
				rate = float64(attempts) / elapsed.Seconds()
			}

			ev := e.logger.Info().Uint64("attempts", attempts).Float64("rate", rate)
			if best := r.bestCandidate(); best != nil {
				ev = ev.Str("closest", best.Hash.Hex()).Int("matched_nibbles", best.MatchedNibbles)
			}
			ev.Msg("progress")
		case <-done:
			return
		}
	}
}
