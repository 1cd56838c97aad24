package console

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"scarify.ai/internal/command"
	"scarify.ai/internal/scarify"
)

var ErrStopped = errors.New("console host not running")

// Operator identifies who issues a command.
type Operator struct {
	Name  string
	Level int
}

type Line struct {
	Text      string
	Broadcast bool
}

type Result struct {
	Code     int
	Feedback []Line
}

type State struct {
	Text    string
	Players []scarify.PlayerInfo
	Online  []string
}

// ReadModel receives the player table after every mutation.
type ReadModel interface {
	RecordPlayers(players []scarify.PlayerInfo) error
}

type ReadModels []ReadModel

func (rs ReadModels) RecordPlayers(players []scarify.PlayerInfo) error {
	var first error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.RecordPlayers(players); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type Options struct {
	RequiredLevel int
	Audit         scarify.AuditSink
	ReadModel     ReadModel
	Logger        *log.Logger
	Now           func() time.Time
}

type execReq struct {
	op   Operator
	line string
	resp chan execResp
}

type execResp struct {
	res Result
	err error
}

type completeReq struct {
	op   Operator
	line string
	resp chan []string
}

type doReq struct {
	fn   func(reg *scarify.Registry)
	done chan struct{}
}

type Host struct {
	reg  *scarify.Registry
	disp *command.Dispatcher
	rm   ReadModel
	log  *log.Logger

	exec     chan execReq
	complete chan completeReq
	state    chan chan State
	do       chan doReq
	join     chan string
	leave    chan string
	stopped  chan struct{}

	// Owned by Run.
	online map[string]int
	dirty  bool
}

func New(reg *scarify.Registry, opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &Host{
		reg:      reg,
		rm:       opts.ReadModel,
		log:      logger,
		exec:     make(chan execReq, 64),
		complete: make(chan completeReq, 64),
		state:    make(chan chan State, 16),
		do:       make(chan doReq, 64),
		join:     make(chan string, 64),
		leave:    make(chan string, 64),
		stopped:  make(chan struct{}),
		online:   map[string]int{},
	}
	sinks := scarify.AuditSinks{dirtySink{h}}
	if opts.Audit != nil {
		sinks = append(sinks, opts.Audit)
	}
	h.disp = command.New(reg, command.Options{
		RequiredLevel: opts.RequiredLevel,
		Audit:         sinks,
		Logger:        logger,
		Now:           opts.Now,
	})
	return h
}

// dirtySink flags the host so the read model is refreshed once the command
// finishes. It only runs on the Run goroutine.
type dirtySink struct{ h *Host }

func (s dirtySink) WriteAudit(scarify.AuditEntry) error {
	s.h.dirty = true
	return nil
}

func (h *Host) Run(ctx context.Context) error {
	defer close(h.stopped)
	if h.rm != nil {
		h.dirty = true
		h.flush()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name := <-h.join:
			h.online[name]++
		case name := <-h.leave:
			if h.online[name] <= 1 {
				delete(h.online, name)
			} else {
				h.online[name]--
			}
		case req := <-h.exec:
			resp := h.handleExec(req)
			h.flush()
			req.resp <- resp
		case req := <-h.complete:
			src := &source{op: req.op, online: h.onlineNames()}
			req.resp <- h.disp.Complete(src, req.line)
		case resp := <-h.state:
			resp <- State{
				Text:    h.reg.Store().Encode(),
				Players: h.reg.Snapshot(),
				Online:  h.onlineNames(),
			}
		case req := <-h.do:
			req.fn(h.reg)
			close(req.done)
		}
	}
}

func (h *Host) handleExec(req execReq) execResp {
	src := &source{op: req.op, online: h.onlineNames()}
	code, err := h.disp.Execute(src, req.line)
	return execResp{res: Result{Code: code, Feedback: src.lines}, err: err}
}

func (h *Host) flush() {
	if !h.dirty || h.rm == nil {
		h.dirty = false
		return
	}
	h.dirty = false
	if err := h.rm.RecordPlayers(h.reg.Snapshot()); err != nil {
		h.log.Printf("console: record players: %v", err)
	}
}

func (h *Host) onlineNames() []string {
	out := make([]string, 0, len(h.online))
	for n := range h.online {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Exec runs one command line as op. Command failures come back as
// *command.Error.
func (h *Host) Exec(ctx context.Context, op Operator, line string) (Result, error) {
	resp := make(chan execResp, 1)
	if err := send(ctx, h, h.exec, execReq{op: op, line: line, resp: resp}); err != nil {
		return Result{}, err
	}
	r, err := recv(ctx, h, resp)
	if err != nil {
		return Result{}, err
	}
	return r.res, r.err
}

func (h *Host) Complete(ctx context.Context, op Operator, line string) ([]string, error) {
	resp := make(chan []string, 1)
	if err := send(ctx, h, h.complete, completeReq{op: op, line: line, resp: resp}); err != nil {
		return nil, err
	}
	return recv(ctx, h, resp)
}

func (h *Host) State(ctx context.Context) (State, error) {
	resp := make(chan State, 1)
	if err := send(ctx, h, h.state, resp); err != nil {
		return State{}, err
	}
	return recv(ctx, h, resp)
}

// Do runs fn on the owner goroutine and waits for it. fn must not call back
// into the host.
func (h *Host) Do(ctx context.Context, fn func(reg *scarify.Registry)) error {
	done := make(chan struct{})
	if err := send(ctx, h, h.do, doReq{fn: fn, done: done}); err != nil {
		return err
	}
	_, err := recv(ctx, h, done)
	return err
}

// Join adds name to the online roster used for completions.
func (h *Host) Join(ctx context.Context, name string) error {
	return send(ctx, h, h.join, name)
}

// Leave drops one roster entry for name. It never blocks once the host has
// stopped.
func (h *Host) Leave(name string) {
	select {
	case h.leave <- name:
	case <-h.stopped:
	}
}

func send[T any](ctx context.Context, h *Host, ch chan T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func recv[T any](ctx context.Context, h *Host, ch chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-h.stopped:
		// The request may have been answered just before shutdown.
		select {
		case v := <-ch:
			return v, nil
		default:
		}
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
