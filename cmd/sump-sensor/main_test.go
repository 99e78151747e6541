package main

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/sump-sensor/internal/frame"
	"github.com/sweeney/sump-sensor/internal/gpio"
	"github.com/sweeney/sump-sensor/internal/indicator"
	"github.com/sweeney/sump-sensor/internal/mqtt"
	"github.com/sweeney/sump-sensor/internal/pump"
	"github.com/sweeney/sump-sensor/internal/status"
)

// fakePacer drives the loop on virtual time: sleeps return immediately and
// deadlines advance by the period per cycle. After maxCycles it cancels the
// context so the loop shuts down like it would on a signal.
type fakePacer struct {
	period    time.Duration
	epoch     time.Time
	next      time.Time
	cycles    int
	maxCycles int
	cancel    context.CancelFunc
	postpones []time.Duration
}

func newFakePacer(period time.Duration, maxCycles int, cancel context.CancelFunc) *fakePacer {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakePacer{period: period, epoch: epoch, next: epoch, maxCycles: maxCycles, cancel: cancel}
}

func (p *fakePacer) Next() time.Time {
	p.cycles++
	if p.cycles > p.maxCycles {
		p.cancel()
	}
	p.next = p.next.Add(p.period)
	return p.next
}

func (p *fakePacer) SleepUntil(ctx context.Context, deadline time.Time) error {
	return ctx.Err()
}

func (p *fakePacer) Postpone(d time.Duration) {
	p.next = p.next.Add(d)
	p.postpones = append(p.postpones, d)
}

func (p *fakePacer) Stamp(at time.Time) uint64 {
	d := at.Sub(p.epoch)
	if d <= 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}

// fakeChannel stands in for the TCP channel. Client arrival and departure
// are scripted per cycle index.
type fakeChannel struct {
	frames      []frame.Frame
	pendingAt   map[int]bool // accept call index -> a client is waiting
	closedAt    map[int]bool // liveness call index -> peer has closed
	failPublish bool
	has         bool
	acceptCalls int
	liveCalls   int
}

func (c *fakeChannel) AcceptPending(current frame.Frame, observed bool) bool {
	i := c.acceptCalls
	c.acceptCalls++
	if !c.pendingAt[i] {
		return false
	}
	c.has = true
	if observed {
		c.frames = append(c.frames, current)
	}
	return true
}

func (c *fakeChannel) CheckLiveness() {
	i := c.liveCalls
	c.liveCalls++
	if c.closedAt[i] {
		c.has = false
	}
}

func (c *fakeChannel) Publish(f frame.Frame) bool {
	if !c.has {
		return false
	}
	if c.failPublish {
		c.has = false
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *fakeChannel) HasClient() bool { return c.has }

func (c *fakeChannel) Peer() string {
	if c.has {
		return "10.0.0.9:50000"
	}
	return ""
}

type loopFixture struct {
	ctx      context.Context
	pace     *fakePacer
	sense    *gpio.FakeLine
	activity *gpio.FakeLine
	client   *gpio.FakeLine
	ind      *indicator.Controller
	ch       *fakeChannel
	pub      *mqtt.FakePublisher
	tracker  *status.Tracker
}

// newLoopFixture wires a loop over fakes. rawSamples are physical sense
// levels; the pump is active while the line is low.
func newLoopFixture(cycles int, rawSamples ...bool) *loopFixture {
	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()

	f := &loopFixture{
		ctx:      ctx,
		pace:     newFakePacer(50*time.Millisecond, cycles, cancel),
		sense:    gpio.NewFakeLine(rawSamples...),
		activity: gpio.NewFakeLine(),
		client:   gpio.NewFakeLine(),
		ch:       &fakeChannel{pendingAt: map[int]bool{}, closedAt: map[int]bool{}},
		pub:      mqtt.NewFakePublisher(),
		tracker:  status.NewTracker(time.Now(), status.Config{}),
	}
	f.ind = indicator.New(f.activity, f.client, log)
	return f
}

func (f *loopFixture) run(t *testing.T, idleGrace time.Duration) {
	t.Helper()
	err := runLoop(f.ctx, f.pace, pump.NewSensor(f.sense), f.ind, f.ch, f.pub, f.tracker, idleGrace, zerolog.Nop())
	if err != nil {
		t.Fatalf("runLoop: %v", err)
	}
}

func TestRunLoopPublishesEdges(t *testing.T) {
	// Logical sequence off, off, on, on, off: edges on the first sample and
	// at each transition. The sense line is low while the pump runs.
	f := newLoopFixture(5, true, true, false, false, true)
	f.ch.pendingAt[0] = true

	f.run(t, 0)

	want := []frame.Frame{
		{Stamp: 50, Active: false},  // pushed on attach
		{Stamp: 150, Active: true},  // first transition
		{Stamp: 250, Active: false}, // second transition
	}
	if len(f.ch.frames) != len(want) {
		t.Fatalf("expected %d frames, got %d: %+v", len(want), len(f.ch.frames), f.ch.frames)
	}
	for i, w := range want {
		if f.ch.frames[i] != w {
			t.Errorf("frame %d: expected %+v, got %+v", i, w, f.ch.frames[i])
		}
	}

	snap := f.tracker.Snapshot()
	if snap.Counts.PumpOn != 1 || snap.Counts.PumpOff != 2 {
		t.Errorf("unexpected edge counts: %+v", snap.Counts)
	}
	if snap.Counts.ClientConnects != 1 {
		t.Errorf("expected 1 connect, got %d", snap.Counts.ClientConnects)
	}
	if !snap.ClientConnected || snap.Peer == "" {
		t.Errorf("client must be tracked as connected: %+v", snap)
	}
}

func TestRunLoopStampsNeverZero(t *testing.T) {
	f := newLoopFixture(3, true)
	f.ch.pendingAt[0] = true

	f.run(t, 0)

	for i, fr := range f.ch.frames {
		if fr.Stamp == 0 {
			t.Errorf("frame %d carries the never-observed sentinel stamp", i)
		}
	}
	if snap := f.tracker.Snapshot(); !snap.Pump.Observed() {
		t.Error("state must be observed after the first cycle")
	}
}

func TestRunLoopMirrorsEdgesWithoutClient(t *testing.T) {
	f := newLoopFixture(5, true, true, false, false, true)

	f.run(t, 0)

	if len(f.ch.frames) != 0 {
		t.Errorf("no client means no frames, got %+v", f.ch.frames)
	}
	if len(f.pub.Events) != 3 {
		t.Fatalf("expected 3 mirrored events, got %d", len(f.pub.Events))
	}
	wantStamps := []uint64{50, 150, 250}
	for i, e := range f.pub.Events {
		if e.Stamp != wantStamps[i] {
			t.Errorf("event %d: expected stamp %d, got %d", i, wantStamps[i], e.Stamp)
		}
	}
	if snap := f.tracker.Snapshot(); snap.ClientConnected {
		t.Error("client must not be tracked as connected")
	}
}

func TestRunLoopMirrorFailureIsNotFatal(t *testing.T) {
	f := newLoopFixture(3, true)
	f.ch.pendingAt[0] = true
	f.pub.PublishError = errors.New("broker gone")

	f.run(t, 0)

	if len(f.ch.frames) == 0 {
		t.Error("client publishing must continue when the mirror fails")
	}
}

func TestRunLoopCountsDisconnect(t *testing.T) {
	f := newLoopFixture(4, true)
	f.ch.pendingAt[0] = true
	f.ch.closedAt[2] = true

	f.run(t, 0)

	snap := f.tracker.Snapshot()
	if snap.Counts.ClientConnects != 1 || snap.Counts.ClientDisconnects != 1 {
		t.Errorf("unexpected client counts: %+v", snap.Counts)
	}
	if snap.ClientConnected {
		t.Error("client must be tracked as gone after the peer closed")
	}

	// The client LED follows the slot: on while attached, off after the
	// drop. Inverted wiring, logical on is physical low.
	writes := f.client.Writes
	if len(writes) == 0 || writes[len(writes)-1] != true {
		t.Errorf("client LED must end physically high (off), writes %v", writes)
	}
	sawOn := false
	for _, w := range writes {
		if !w {
			sawOn = true
		}
	}
	if !sawOn {
		t.Error("client LED never turned on while the client was attached")
	}
}

func TestRunLoopActivityPulsesEachCycle(t *testing.T) {
	const cycles = 3
	f := newLoopFixture(cycles, true)

	f.run(t, 0)

	writes := f.activity.Writes
	if len(writes) != 2*cycles {
		t.Fatalf("expected %d activity writes, got %v", 2*cycles, writes)
	}
	for i, w := range writes {
		wantLow := i%2 == 0 // raise first, clear after
		if w == wantLow {
			t.Errorf("activity write %d: expected physical %v, got %v", i, !wantLow, w)
		}
	}
}

func TestRunLoopSensorFailureIsFatal(t *testing.T) {
	f := newLoopFixture(3, true)
	f.sense.ReadError = errors.New("chip gone")

	err := runLoop(f.ctx, f.pace, pump.NewSensor(f.sense), f.ind, f.ch, f.pub, f.tracker, 0, zerolog.Nop())
	if err == nil {
		t.Fatal("expected a fatal error from a broken sense line")
	}
}

func TestRunLoopIdleGraceStretchesCadence(t *testing.T) {
	const grace = 50 * time.Millisecond

	// Pump idle throughout: the chain is postponed once per cycle.
	f := newLoopFixture(3, true)
	f.run(t, grace)
	if len(f.pace.postpones) != 3 {
		t.Errorf("expected 3 postpones while idle, got %d", len(f.pace.postpones))
	}

	// Pump running throughout: full cadence, no postpones.
	f = newLoopFixture(3, false)
	f.run(t, grace)
	if len(f.pace.postpones) != 0 {
		t.Errorf("expected no postpones while active, got %d", len(f.pace.postpones))
	}
}

func TestRunLoopCancelledContext(t *testing.T) {
	f := newLoopFixture(100, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runLoop(ctx, f.pace, pump.NewSensor(f.sense), f.ind, f.ch, f.pub, f.tracker, 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("cancellation is a clean shutdown, got %v", err)
	}
	if len(f.ch.frames) != 0 {
		t.Errorf("no cycle may run after cancellation, got %+v", f.ch.frames)
	}
}

func TestSignalName(t *testing.T) {
	if got := signalName(syscall.SIGINT); got != "SIGINT" {
		t.Errorf("expected SIGINT, got %q", got)
	}
	if got := signalName(syscall.SIGTERM); got != "SIGTERM" {
		t.Errorf("expected SIGTERM, got %q", got)
	}
	if got := signalName(syscall.SIGHUP); got != "UNKNOWN" {
		t.Errorf("expected UNKNOWN, got %q", got)
	}
}
