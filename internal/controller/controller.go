// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package controller runs conversions off the caller's goroutine, one at a
// time, and reports progress and outcomes as events.
package controller

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pdiddy/mdconvert/pkg/types"
)

const (
	// LargeFileThreshold is the size above which a large-file notice is sent.
	LargeFileThreshold = 10 << 20

	defaultBuffer = 16

	// maxTracked bounds how many finished request states are remembered.
	maxTracked = 128
)

// ErrBusy is returned by Submit while a conversion is still running.
var ErrBusy = types.NewError(types.KindBusy, "a conversion is already in progress", nil)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("controller is closed")

// Converter performs one conversion and always yields an Outcome.
type Converter interface {
	Convert(ctx context.Context, src types.Source, opts types.OptionSet) types.Outcome
}

// Stage identifies the kind of an Event.
type Stage string

const (
	StageStarted    Stage = "started"
	StageInProgress Stage = "in_progress"
	StageDone       Stage = "done"
)

// Event reports progress on a request. Outcome is set only for StageDone.
type Event struct {
	RequestID string
	Stage     Stage
	Status    string
	Progress  float64
	Outcome   *types.Outcome
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithBuffer sets the event channel capacity.
func WithBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.buffer = n
		}
	}
}

// WithLargeFileThreshold overrides LargeFileThreshold.
func WithLargeFileThreshold(n int64) Option {
	return func(c *Controller) { c.largeFile = n }
}

// Controller admits at most one conversion at a time. A request stays
// active until its worker goroutine returns, even after Cancel, so two
// engine calls never overlap.
type Controller struct {
	conv      Converter
	log       zerolog.Logger
	buffer    int
	largeFile int64
	events    chan Event
	quit      chan struct{}
	wg        sync.WaitGroup

	mu     sync.Mutex
	active *flight
	states map[string]types.RequestState
	order  []string
	closed bool
}

// flight is the in-flight record of the active request.
type flight struct {
	req    types.Request
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Controller that converts with conv.
func New(conv Converter, opts ...Option) *Controller {
	c := &Controller{
		conv:      conv,
		log:       zerolog.Nop(),
		buffer:    defaultBuffer,
		largeFile: LargeFileThreshold,
		quit:      make(chan struct{}),
		states:    make(map[string]types.RequestState),
	}
	for _, o := range opts {
		o(c)
	}
	c.events = make(chan Event, c.buffer)
	return c
}

// Events returns the channel on which progress and outcomes arrive. It is
// closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Submit starts converting src with opts and returns the request id at
// once. It returns ErrBusy while another request is active.
func (c *Controller) Submit(src types.Source, opts types.OptionSet) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}
	if c.active != nil {
		c.log.Debug().Str("active", c.active.req.ID).Msg("submit rejected, busy")
		return "", ErrBusy
	}

	req := types.Request{
		ID:          uuid.NewString(),
		Source:      src,
		Options:     opts,
		SubmittedAt: time.Now(),
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &flight{req: req, cancel: cancel, done: make(chan struct{})}
	c.active = f
	c.track(req.ID, types.StatePending)

	c.wg.Add(1)
	go c.run(ctx, f)

	c.log.Debug().Str("request", req.ID).Str("source", src.Describe()).Msg("request submitted")
	return req.ID, nil
}

// Cancel abandons request id. Its outcome, if one is ever produced, is
// discarded. Cancel returns false for unknown or finished requests.
func (c *Controller) Cancel(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[id]
	if !ok || st.IsTerminal() {
		return false
	}
	c.states[id] = types.StateAbandoned
	if c.active != nil && c.active.req.ID == id {
		c.active.cancel()
	}
	c.log.Debug().Str("request", id).Str("was", string(st)).Msg("request abandoned")
	return true
}

// State returns the state of request id.
func (c *Controller) State(id string) (types.RequestState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.states[id]
	return st, ok
}

// Busy reports whether a request is active.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Wait blocks until no request is active or ctx ends.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	f := c.active
	c.mu.Unlock()
	if f == nil {
		return nil
	}
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close abandons any active request, waits for its worker and closes the
// event channel.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.active != nil {
		c.states[c.active.req.ID] = types.StateAbandoned
		c.active.cancel()
	}
	c.mu.Unlock()

	close(c.quit)
	c.wg.Wait()
	close(c.events)
	return nil
}

func (c *Controller) run(ctx context.Context, f *flight) {
	id := f.req.ID
	log := c.log.With().Str("request", id).Logger()
	defer func() {
		f.cancel()
		close(f.done)
		c.wg.Done()
	}()

	if !c.start(f) {
		log.Debug().Msg("abandoned before start")
		return
	}

	c.progress(Event{RequestID: id, Stage: StageStarted, Status: "Initializing conversion...", Progress: 0.1})
	c.progress(Event{RequestID: id, Stage: StageInProgress, Status: fmt.Sprintf("Converting %s...", f.req.Source.Describe()), Progress: 0.2})
	if size := c.sizeOf(f.req.Source); size > c.largeFile {
		c.progress(Event{
			RequestID: id,
			Stage:     StageInProgress,
			Status:    fmt.Sprintf("Processing large file (%.1f MB)...", float64(size)/1024/1024),
			Progress:  0.3,
		})
	}

	out := c.convert(ctx, f.req)
	out.RequestID = id

	if !c.settle(f) {
		log.Debug().Bool("ok", out.OK()).Msg("outcome discarded")
		return
	}
	log.Debug().Bool("ok", out.OK()).Dur("took", out.Duration).Msg("outcome delivered")

	select {
	case c.events <- Event{RequestID: id, Stage: StageDone, Status: StatusLine(out), Progress: 1, Outcome: &out}:
	case <-c.quit:
	}
}

// convert calls the converter, turning a panic into an Unknown outcome.
func (c *Controller) convert(ctx context.Context, req types.Request) (out types.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Str("request", req.ID).Interface("panic", r).Msg("converter panicked")
			out = types.Failure(types.KindUnknown, fmt.Sprintf("conversion crashed: %v", r))
		}
	}()
	return c.conv.Convert(ctx, req.Source, req.Options)
}

// start moves f from pending to running. It reports false when the
// request was abandoned first, and then releases the active slot.
func (c *Controller) start(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states[f.req.ID] != types.StatePending {
		c.active = nil
		return false
	}
	c.states[f.req.ID] = types.StateRunning
	return true
}

// settle releases the active slot and reports whether the outcome should
// be delivered.
func (c *Controller) settle(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	if c.states[f.req.ID] == types.StateAbandoned {
		return false
	}
	c.states[f.req.ID] = types.StateDelivered
	return true
}

// progress sends ev unless its request was abandoned. Progress is
// dropped when nobody is keeping up with the channel. The state check and
// the send share one critical section with Cancel.
func (c *Controller) progress(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.states[ev.RequestID] == types.StateAbandoned {
		return
	}
	select {
	case c.events <- ev:
	default:
		c.log.Debug().Str("request", ev.RequestID).Str("status", ev.Status).Msg("progress event dropped")
	}
}

func (c *Controller) sizeOf(src types.Source) int64 {
	if src.Path == "" {
		return 0
	}
	info, err := os.Stat(src.Path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// track records a new request state. Caller holds c.mu.
func (c *Controller) track(id string, st types.RequestState) {
	c.states[id] = st
	c.order = append(c.order, id)
	for len(c.order) > maxTracked {
		delete(c.states, c.order[0])
		c.order = c.order[1:]
	}
}

// StatusLine summarises an outcome for a status bar.
func StatusLine(out types.Outcome) string {
	if !out.OK() {
		return "Error: " + out.Err.Message
	}
	return fmt.Sprintf("Conversion complete: %d characters | Warnings: %d, Errors: %d",
		utf8.RuneCountInString(out.Markdown), len(out.Warnings), len(out.Errors))
}
