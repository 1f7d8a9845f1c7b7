package protocol

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Future is the caller's handle on an issued command.
//
// It resolves exactly once, either with a Response (reply, device failure or
// transport failure) or with no Response when the command timed out.
type Future struct {
	id      string
	command string
	done    chan struct{}

	// Written once by complete before done is closed.
	resp     Response
	answered bool
}

func newFuture(id, command string) *Future {
	return &Future{
		id:      id,
		command: command,
		done:    make(chan struct{}),
	}
}

// ID returns the request identifier used in driver logs.
func (f *Future) ID() string {
	return f.id
}

// Command returns the command type this future waits on.
func (f *Future) Command() string {
	return f.command
}

// Done returns a channel that is closed when the command resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the command resolves. ok is false when the DVL did not
// answer within the command timeout.
func (f *Future) Result() (resp Response, ok bool) {
	<-f.done

	return f.resp, f.answered
}

// Wait is Result bounded by ctx. It returns ctx.Err() if ctx ends first;
// the command itself stays pending until answered or expired.
func (f *Future) Wait(ctx context.Context) (resp Response, ok bool, err error) {
	select {
	case <-f.done:
		return f.resp, f.answered, nil
	case <-ctx.Done():
		return Response{}, false, ctx.Err()
	}
}

// complete resolves the future. Only the goroutine that removed the owning
// request from the pending table may call it.
func (f *Future) complete(resp Response, answered bool) {
	f.resp = resp
	f.answered = answered
	close(f.done)
}

// CompletedFuture returns a Future already resolved with resp, or with no
// Response when answered is false. It serves commands that never reach a
// Controller, such as those issued on a closed driver or by test doubles.
func CompletedFuture(command string, resp Response, answered bool) *Future {
	f := newFuture(ulid.Make().String(), command)
	f.complete(resp, answered)

	return f
}

// FailedFuture returns a Future already resolved with a transport failure.
func FailedFuture(command string, err error) *Future {
	return CompletedFuture(command, failure(err), true)
}
