// Package health implements liveness and readiness probes. Registered checks
// are polled by a single background loop; the HTTP endpoints report the last
// observed results without running checks inline.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
)

// CheckFunc probes one dependency. Nil means healthy.
type CheckFunc func(ctx context.Context) error

type probeKind int

const (
	kindLiveness probeKind = iota
	kindReadiness
)

type probe struct {
	name    string
	kind    probeKind
	timeout time.Duration
	check   CheckFunc
}

// Service polls registered probes and serves their last results.
type Service struct {
	ready atomic.Bool

	mu      sync.RWMutex
	probes  []probe
	results map[string]error
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Service. It starts not ready; call SetReady(true) once
// initialization has finished.
func New() *Service {
	return &Service{results: make(map[string]error)}
}

// AddLivenessCheck registers a probe that gates /livez.
func (s *Service) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.addProbe(probe{name: name, kind: kindLiveness, timeout: timeout, check: check})
}

// AddReadinessCheck registers a probe that gates /readyz.
func (s *Service) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	s.addProbe(probe{name: name, kind: kindReadiness, timeout: timeout, check: check})
}

func (s *Service) addProbe(p probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
}

// Start launches the poll loop. Probes run once immediately, then every
// interval, until the context is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.poll(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.poll(ctx)
			}
		}
	}()
}

// Stop cancels the poll loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Service) poll(ctx context.Context) {
	s.mu.RLock()
	probes := make([]probe, len(s.probes))
	copy(probes, s.probes)
	s.mu.RUnlock()

	for _, p := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		err := p.check(probeCtx)
		cancel()

		s.mu.Lock()
		s.results[p.name] = err
		s.mu.Unlock()
	}
}

// SetReady flips the manual readiness gate. Graceful shutdown sets it to
// false before draining.
func (s *Service) SetReady(ready bool) {
	s.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passed
// its last poll.
func (s *Service) IsReady() bool {
	if !s.ready.Load() {
		return false
	}
	return len(s.failures(kindReadiness)) == 0
}

func (s *Service) failures(kind probeKind) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	failed := make(map[string]string)
	for _, p := range s.probes {
		if p.kind != kind {
			continue
		}
		if err, ok := s.results[p.name]; ok && err != nil {
			failed[p.name] = err.Error()
		}
	}
	return failed
}

// LiveEndpoint serves /livez.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, s.failures(kindLiveness))
}

// ReadyEndpoint serves /readyz.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := s.failures(kindReadiness)
	if !s.ready.Load() {
		failed["service"] = "not ready"
	}
	writeStatus(w, failed)
}

type statusBody struct {
	Status string            `json:"status"`
	Failed map[string]string `json:"failed,omitempty"`
}

func writeStatus(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	body := statusBody{Status: "pass"}
	code := http.StatusOK
	if len(failed) > 0 {
		body = statusBody{Status: "fail", Failed: failed}
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// GoroutineCountCheck reports unhealthy when the goroutine count exceeds
// limit. Intended as a liveness probe for leak detection.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}
