package server

import (
	"context"
	"time"

	"signaged/proto"
)

// The command channel serializes dashboard-originated mutations into
// single atomic engine calls, so a screen can never observe a
// half-applied edit. Callers block on a reply channel, which keeps
// store failures synchronous on the command that caused them.

type command interface{ command() }

type applyCmd struct {
	target string
	layout proto.Layout
	issued time.Time
	errCh  chan error
}

func (applyCmd) command() {}

type refreshCmd struct {
	target string
	errCh  chan error
}

func (refreshCmd) command() {}

type removeCmd struct {
	target string
	errCh  chan error
}

func (removeCmd) command() {}

// CommandChannel is the single ingress for layout mutations. One
// goroutine consumes it and drives the sync engine.
type CommandChannel struct {
	engine *SyncEngine
	cmdCh  chan command
}

func NewCommandChannel(engine *SyncEngine) *CommandChannel {
	return &CommandChannel{
		engine: engine,
		cmdCh:  make(chan command, 64),
	}
}

// Run consumes commands until the context is cancelled.
func (c *CommandChannel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.cmdCh:
			switch v := cmd.(type) {
			case applyCmd:
				v.errCh <- c.engine.ApplyLayout(ctx, v.target, v.layout)
			case refreshCmd:
				v.errCh <- c.engine.RequestRefresh(ctx, v.target)
			case removeCmd:
				v.errCh <- c.engine.RemoveScreen(ctx, v.target)
			}
		}
	}
}

// Apply submits one whole-layout mutation for a screen id or TargetAll
// and waits for the outcome.
func (c *CommandChannel) Apply(ctx context.Context, target string, layout proto.Layout) error {
	cmd := applyCmd{target: target, layout: layout, issued: time.Now(), errCh: make(chan error, 1)}
	return c.submit(ctx, cmd, cmd.errCh)
}

// Refresh asks a screen (or all screens) to re-render the current
// persisted layout.
func (c *CommandChannel) Refresh(ctx context.Context, target string) error {
	cmd := refreshCmd{target: target, errCh: make(chan error, 1)}
	return c.submit(ctx, cmd, cmd.errCh)
}

// Remove deletes a screen and its layout.
func (c *CommandChannel) Remove(ctx context.Context, target string) error {
	cmd := removeCmd{target: target, errCh: make(chan error, 1)}
	return c.submit(ctx, cmd, cmd.errCh)
}

func (c *CommandChannel) submit(ctx context.Context, cmd command, errCh chan error) error {
	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
