// Package poller drives the live recognition loop: capture a frame, send it
// to the recognition service, auto-mark every recognized student, repeat.
package poller

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"classtrack/internal/faceclient"
	"classtrack/internal/metrics"
)

// Source produces camera frames as JPEG bytes.
type Source interface {
	Frame(ctx context.Context) ([]byte, error)
}

// Recognizer is the slice of the face client the loop needs.
type Recognizer interface {
	RecognizeLive(ctx context.Context, frame []byte) (*faceclient.LiveResult, error)
}

// Marker records an automatic attendance write. alreadyMarked reports that
// the student had a record for today before this call.
type Marker interface {
	MarkAuto(ctx context.Context, studentID, subjectID string) (alreadyMarked bool, err error)
}

// Overlay is one box the operator UI draws over the video feed.
type Overlay struct {
	StudentID  string     `json:"studentId"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Recognized bool       `json:"recognized"`
}

// Poller runs the serialized recognition loop for one subject session.
// Ticks never overlap: the next capture is scheduled only after the previous
// round trip completes.
type Poller struct {
	source   Source
	rec      Recognizer
	marker   Marker
	log      *zap.Logger
	interval time.Duration
	ttl      time.Duration
	now      func() time.Time

	stateMu   sync.Mutex
	active    bool
	subjectID string
	seen      map[string]time.Time
	overlays  []Overlay
	lastErr   string
}

// Option tweaks loop timing, mostly for tests.
type Option func(*Poller)

func WithInterval(d time.Duration) Option { return func(p *Poller) { p.interval = d } }
func WithRecentTTL(d time.Duration) Option {
	return func(p *Poller) { p.ttl = d }
}
func WithClock(now func() time.Time) Option { return func(p *Poller) { p.now = now } }

func New(source Source, rec Recognizer, marker Marker, log *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		rec:      rec,
		marker:   marker,
		log:      log,
		interval: 5 * time.Second,
		ttl:      2 * time.Second,
		now:      time.Now,
		seen:     map[string]time.Time{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Start activates the loop for a subject session. Returns false if a session
// is already running.
func (p *Poller) Start(subjectID string) bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	if p.active {
		return false
	}
	p.active = true
	p.subjectID = subjectID
	p.seen = map[string]time.Time{}
	p.overlays = nil
	p.lastErr = ""
	return true
}

// Stop deactivates the loop. The in-flight tick, if any, finishes but no new
// tick is scheduled.
func (p *Poller) Stop() {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	p.active = false
	p.overlays = nil
}

// Active reports whether a session is running.
func (p *Poller) Active() bool {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	return p.active
}

// Snapshot returns the current overlays, the recently recognized students
// still inside the staleness window, and the last recognition error.
func (p *Poller) Snapshot() ([]Overlay, []string, string) {
	p.stateMu.Lock()
	defer p.stateMu.Unlock()
	overlays := make([]Overlay, len(p.overlays))
	copy(overlays, p.overlays)
	return overlays, p.visibleLocked(p.now()), p.lastErr
}

// visibleLocked filters seen students by the staleness TTL. Expired entries
// are pruned lazily, the way the operator UI did it: nothing ages out until
// somebody looks.
func (p *Poller) visibleLocked(now time.Time) []string {
	var out []string
	for id, at := range p.seen {
		if now.Sub(at) <= p.ttl {
			out = append(out, id)
		} else {
			delete(p.seen, id)
		}
	}
	return out
}

// Run drives the loop until ctx is cancelled. Each iteration waits for the
// previous one to finish before sleeping the interval, so a slow recognition
// call stretches the cycle instead of stacking requests.
func (p *Poller) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		if p.Active() {
			p.Tick(ctx)
		}
		timer.Reset(p.interval)
	}
}

// Tick performs one capture-recognize-mark round trip.
func (p *Poller) Tick(ctx context.Context) {
	p.stateMu.Lock()
	subjectID := p.subjectID
	active := p.active
	p.stateMu.Unlock()
	if !active {
		return
	}

	frame, err := p.source.Frame(ctx)
	if err != nil {
		p.log.Warn("frame capture failed", zap.Error(err))
		p.setErr(err.Error())
		return
	}

	// The session may have been stopped while we were capturing.
	if !p.Active() {
		return
	}

	start := p.now()
	result, err := p.rec.RecognizeLive(ctx, frame)
	metrics.ObserveRecognition(p.now().Sub(start))
	if err != nil {
		kind := faceclient.Classify(err)
		metrics.RecognitionErrors.WithLabelValues(kind).Inc()
		p.log.Warn("recognition failed", zap.String("kind", kind), zap.Error(err))
		p.setErr(err.Error())
		return
	}

	now := p.now()
	overlays := make([]Overlay, 0, len(result.Results))
	marked := map[string]bool{}
	for _, sight := range result.Results {
		overlays = append(overlays, Overlay{
			StudentID:  sight.StudentID,
			Confidence: sight.Confidence,
			BBox:       sight.BBox,
			Recognized: sight.Recognized,
		})
		if !sight.Recognized || sight.StudentID == "" || marked[sight.StudentID] {
			continue
		}
		marked[sight.StudentID] = true

		already, err := p.marker.MarkAuto(ctx, sight.StudentID, subjectID)
		if err != nil {
			p.log.Warn("auto mark failed",
				zap.String("student_id", sight.StudentID),
				zap.String("subject_id", subjectID),
				zap.Error(err))
			continue
		}
		if !already {
			p.log.Info("attendance marked",
				zap.String("student_id", sight.StudentID),
				zap.String("subject_id", subjectID))
		}
		p.stateMu.Lock()
		p.seen[sight.StudentID] = now
		p.stateMu.Unlock()
	}

	p.stateMu.Lock()
	if p.active {
		p.overlays = overlays
		p.lastErr = ""
	}
	p.stateMu.Unlock()
}

func (p *Poller) setErr(msg string) {
	p.stateMu.Lock()
	p.lastErr = msg
	p.overlays = nil
	p.stateMu.Unlock()
}
