// package testing contains shared testing utilities
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/evalwatch/internal/shared"
)

// FakeScheduler records scheduled callbacks so tests can fire them on demand.
//
// It implements [shared.Scheduler].
type FakeScheduler struct {
	mu     sync.Mutex
	timers []*FakeTimer
}

// FakeTimer is a callback registered with a [FakeScheduler].
type FakeTimer struct {
	Delay time.Duration

	mu      sync.Mutex
	f       func()
	stopped bool
	fired   bool
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

func (s *FakeScheduler) AfterFunc(d time.Duration, f func()) shared.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &FakeTimer{Delay: d, f: f}
	s.timers = append(s.timers, t)
	return t
}

// Pending returns timers that have neither fired nor been stopped, in scheduling order.
func (s *FakeScheduler) Pending() []*FakeTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*FakeTimer
	for _, t := range s.timers {
		if t.Active() {
			out = append(out, t)
		}
	}
	return out
}

// Delays returns the delay of every timer ever scheduled.
func (s *FakeScheduler) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]time.Duration, len(s.timers))
	for i, t := range s.timers {
		out[i] = t.Delay
	}
	return out
}

// FireAll fires pending timers in delay order and returns how many fired.
// Timers scheduled by the fired callbacks are left pending.
func (s *FakeScheduler) FireAll() int {
	pending := s.Pending()
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].Delay < pending[j].Delay })

	n := 0
	for _, t := range pending {
		if t.Fire() {
			n++
		}
	}
	return n
}

// Fire runs the callback synchronously unless stopped or already fired.
func (t *FakeTimer) Fire() bool {
	t.mu.Lock()
	if t.stopped || t.fired {
		t.mu.Unlock()
		return false
	}
	t.fired = true
	f := t.f
	t.mu.Unlock()

	f()
	return true
}

func (t *FakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *FakeTimer) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

var _ io.ReadCloser = (*FCloser)(nil)

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
