package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayushchhipa1509/OCI-COPILOT/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors should count toward circuit breaker thresholds
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors, not user errors
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Configuration errors - DON'T count (user error)
	if core.IsConfigurationError(err) {
		return false
	}

	// State errors - DON'T count (programming error)
	if core.IsStateError(err) {
		return false
	}

	// Context cancellation - DON'T count (client gave up)
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}

	// All other errors count as failures (network, timeout, connection issues)
	return true
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker
	Name string

	// ErrorThreshold is the error rate (0.0 to 1.0) that triggers opening
	ErrorThreshold float64

	// VolumeThreshold is the minimum number of requests before evaluation
	VolumeThreshold int

	// SleepWindow is how long to wait before entering half-open state
	SleepWindow time.Duration

	// HalfOpenRequests is the number of test requests in half-open state
	HalfOpenRequests int

	// SuccessThreshold is the success rate needed to close from half-open
	SuccessThreshold float64

	// WindowSize is the sliding window duration for metrics
	WindowSize time.Duration

	// BucketCount is the number of buckets in the sliding window
	BucketCount int

	// ErrorClassifier determines which errors count as failures
	ErrorClassifier ErrorClassifier

	// Logger for circuit breaker events
	Logger core.Logger
}

// DefaultConfig returns a production-ready default configuration
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		ErrorThreshold:   0.5, // 50% error rate
		VolumeThreshold:  10,  // Need 10 requests minimum
		SleepWindow:      30 * time.Second,
		HalfOpenRequests: 5,
		SuccessThreshold: 0.6, // 60% success to recover
		WindowSize:       60 * time.Second,
		BucketCount:      10,
		ErrorClassifier:  DefaultErrorClassifier,
		Logger:           &core.NoOpLogger{},
	}
}

// Validate validates the circuit breaker configuration
func (c *CircuitBreakerConfig) Validate() error {
	if c == nil {
		return errors.New("configuration cannot be nil")
	}
	if c.Name == "" {
		return errors.New("circuit breaker name is required")
	}
	if c.ErrorThreshold < 0 || c.ErrorThreshold > 1 {
		return fmt.Errorf("error threshold must be between 0 and 1, got %f", c.ErrorThreshold)
	}
	if c.VolumeThreshold < 0 {
		return fmt.Errorf("volume threshold must be non-negative, got %d", c.VolumeThreshold)
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 1 {
		return fmt.Errorf("success threshold must be between 0 and 1, got %f", c.SuccessThreshold)
	}
	if c.HalfOpenRequests < 1 {
		return fmt.Errorf("half-open requests must be at least 1, got %d", c.HalfOpenRequests)
	}
	if c.SleepWindow < 0 {
		return fmt.Errorf("sleep window must be non-negative, got %v", c.SleepWindow)
	}
	if c.WindowSize < 0 {
		return fmt.Errorf("window size must be non-negative, got %v", c.WindowSize)
	}
	if c.BucketCount < 1 {
		return fmt.Errorf("bucket count must be at least 1, got %d", c.BucketCount)
	}
	return nil
}

// CircuitBreaker gates calls to a single collaborator (one per ai.Gateway
// provider, here), tripping open once its error rate crosses ErrorThreshold
// over a volume of at least VolumeThreshold requests, and probing recovery
// through a bounded number of half-open requests after SleepWindow elapses.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	state          atomic.Value // CircuitState
	stateChangedAt atomic.Value // time.Time

	window *SlidingWindow

	halfOpenTotal     atomic.Int32
	halfOpenSuccesses atomic.Int32
	halfOpenFailures  atomic.Int32

	mu sync.Mutex
}

// NewCircuitBreaker creates a production-ready circuit breaker
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	if config.WindowSize == 0 {
		config.WindowSize = 60 * time.Second
	}
	if config.BucketCount == 0 {
		config.BucketCount = 10
	}
	if config.ErrorClassifier == nil {
		config.ErrorClassifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 0.6
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 5
	}

	cb := &CircuitBreaker{
		config: config,
		window: NewSlidingWindow(config.WindowSize, config.BucketCount, true),
	}
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	return cb, nil
}

// CanExecute reports whether the circuit currently admits a call, advancing
// from open to half-open once SleepWindow has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	state := cb.state.Load().(CircuitState)
	switch state {
	case StateClosed:
		return true
	case StateOpen:
		stateChangedAt := cb.stateChangedAt.Load().(time.Time)
		if time.Since(stateChangedAt) <= cb.config.SleepWindow {
			return false
		}
		cb.mu.Lock()
		if cb.state.Load().(CircuitState) == StateOpen {
			cb.transitionToUnlocked(StateHalfOpen)
		}
		cb.mu.Unlock()
		return cb.CanExecute()
	default: // StateHalfOpen
		return cb.config.HalfOpenRequests > 0 && int(cb.halfOpenTotal.Load()) < cb.config.HalfOpenRequests
	}
}

// RecordSuccess records a successful call and re-evaluates the circuit's state.
func (cb *CircuitBreaker) RecordSuccess() {
	if cb.state.Load().(CircuitState) == StateHalfOpen {
		cb.halfOpenTotal.Add(1)
		cb.halfOpenSuccesses.Add(1)
	}
	cb.window.RecordSuccess()
	cb.evaluateState()
}

// RecordFailure records a failed call, classifying it first so user/config
// errors never count against the breaker.
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.config.ErrorClassifier(err) {
		return
	}
	if cb.state.Load().(CircuitState) == StateHalfOpen {
		cb.halfOpenTotal.Add(1)
		cb.halfOpenFailures.Add(1)
	}
	cb.window.RecordFailure()
	cb.evaluateState()
}

func (cb *CircuitBreaker) evaluateState() {
	currentState := cb.state.Load().(CircuitState)
	switch currentState {
	case StateClosed:
		errorRate := cb.window.GetErrorRate()
		total := cb.window.GetTotal()
		if cb.config.VolumeThreshold > 0 && total >= uint64(cb.config.VolumeThreshold) && errorRate >= cb.config.ErrorThreshold {
			cb.mu.Lock()
			cb.transitionToUnlocked(StateOpen)
			cb.mu.Unlock()
		}
	case StateHalfOpen:
		successes := cb.halfOpenSuccesses.Load()
		failures := cb.halfOpenFailures.Load()
		total := successes + failures
		if cb.config.HalfOpenRequests > 0 && int(total) >= cb.config.HalfOpenRequests {
			successRate := float64(successes) / float64(total)
			cb.mu.Lock()
			if successRate >= cb.config.SuccessThreshold {
				cb.transitionToUnlocked(StateClosed)
			} else {
				cb.transitionToUnlocked(StateOpen)
			}
			cb.mu.Unlock()
		}
	}
}

func (cb *CircuitBreaker) transitionToUnlocked(newState CircuitState) {
	oldState := cb.state.Load().(CircuitState)
	if oldState == newState {
		return
	}
	cb.state.Store(newState)
	cb.stateChangedAt.Store(time.Now())

	if newState == StateHalfOpen {
		cb.halfOpenTotal.Store(0)
		cb.halfOpenSuccesses.Store(0)
		cb.halfOpenFailures.Store(0)
	}

	cb.config.Logger.Info("circuit breaker state changed", map[string]interface{}{
		"name": cb.config.Name,
		"from": oldState.String(),
		"to":   newState.String(),
	})
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() string {
	return cb.state.Load().(CircuitState).String()
}

// GetMetrics returns a snapshot of the breaker's current counters.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	success, failure := cb.window.GetCounts()
	return map[string]interface{}{
		"name":       cb.config.Name,
		"state":      cb.GetState(),
		"success":    success,
		"failure":    failure,
		"error_rate": cb.window.GetErrorRate(),
	}
}

// Reset returns the circuit breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	cb.halfOpenTotal.Store(0)
	cb.halfOpenSuccesses.Store(0)
	cb.halfOpenFailures.Store(0)
	cb.window = NewSlidingWindow(cb.config.WindowSize, cb.config.BucketCount, true)
}

// bucket represents a time bucket in the sliding window
type bucket struct {
	timestamp time.Time
	success   uint64
	failure   uint64
}

// SlidingWindow tracks success/failure counts over a rolling time window,
// protected against clock skew by preferring monotonic elapsed time.
type SlidingWindow struct {
	buckets      []bucket
	windowSize   time.Duration
	bucketSize   time.Duration
	currentIdx   int
	lastRotation time.Time
	mu           sync.RWMutex
	monotonic    bool
}

// NewSlidingWindow creates a sliding window over windowSize split into
// bucketCount buckets.
func NewSlidingWindow(windowSize time.Duration, bucketCount int, monotonic bool) *SlidingWindow {
	if bucketCount <= 0 {
		bucketCount = 10
	}
	bucketSize := windowSize / time.Duration(bucketCount)
	buckets := make([]bucket, bucketCount)
	now := time.Now()
	for i := range buckets {
		buckets[i].timestamp = now
	}
	return &SlidingWindow{
		buckets:      buckets,
		windowSize:   windowSize,
		bucketSize:   bucketSize,
		lastRotation: now,
		monotonic:    monotonic,
	}
}

func (sw *SlidingWindow) rotateBuckets() {
	now := time.Now()

	var elapsed time.Duration
	if sw.monotonic {
		elapsed = now.Sub(sw.lastRotation)
	} else {
		elapsed = now.Sub(sw.buckets[sw.currentIdx].timestamp)
	}

	// Clock went backward: reset rather than rotate into garbage buckets.
	if elapsed < 0 {
		sw.reset()
		return
	}

	if elapsed >= sw.bucketSize {
		bucketsToRotate := int(elapsed / sw.bucketSize)
		if bucketsToRotate > len(sw.buckets) {
			bucketsToRotate = len(sw.buckets)
		}
		for i := 0; i < bucketsToRotate; i++ {
			sw.currentIdx = (sw.currentIdx + 1) % len(sw.buckets)
			sw.buckets[sw.currentIdx] = bucket{timestamp: now}
		}
		sw.lastRotation = now
	}
}

func (sw *SlidingWindow) reset() {
	now := time.Now()
	for i := range sw.buckets {
		sw.buckets[i] = bucket{timestamp: now}
	}
	sw.currentIdx = 0
	sw.lastRotation = now
}

// RecordSuccess records a successful operation
func (sw *SlidingWindow) RecordSuccess() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateBuckets()
	atomic.AddUint64(&sw.buckets[sw.currentIdx].success, 1)
}

// RecordFailure records a failed operation
func (sw *SlidingWindow) RecordFailure() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.rotateBuckets()
	atomic.AddUint64(&sw.buckets[sw.currentIdx].failure, 1)
}

// GetCounts returns success and failure counts within the window
func (sw *SlidingWindow) GetCounts() (success, failure uint64) {
	sw.mu.RLock()
	defer sw.mu.RUnlock()

	cutoff := time.Now().Add(-sw.windowSize)
	for i := range sw.buckets {
		b := &sw.buckets[i]
		if b.timestamp.After(cutoff) {
			success += atomic.LoadUint64(&b.success)
			failure += atomic.LoadUint64(&b.failure)
		}
	}
	return success, failure
}

// GetErrorRate returns the current error rate
func (sw *SlidingWindow) GetErrorRate() float64 {
	success, failure := sw.GetCounts()
	total := success + failure
	if total == 0 {
		return 0
	}
	return float64(failure) / float64(total)
}

// GetTotal returns the total number of requests in the window
func (sw *SlidingWindow) GetTotal() uint64 {
	success, failure := sw.GetCounts()
	return success + failure
}
