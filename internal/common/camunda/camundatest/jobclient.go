// Package camundatest provides an in-memory worker.JobClient for handler tests.
package camundatest

import (
	"context"
	"sync"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"google.golang.org/grpc"
)

// Call is one command received by the gateway. CtxErr is the state of the
// send context at the moment the command arrived.
type Call struct {
	Complete *pb.CompleteJobRequest
	Fail     *pb.FailJobRequest
	Throw    *pb.ThrowErrorRequest
	CtxErr   error
}

// JobClient builds the real zeebe commands on top of a recording gateway, so
// the full command chain down to Send is exercised.
type JobClient struct {
	gw *gateway
}

func NewJobClient() *JobClient {
	return &JobClient{gw: &gateway{}}
}

// FailSends makes every subsequent command return err.
func (c *JobClient) FailSends(err error) {
	c.gw.mu.Lock()
	defer c.gw.mu.Unlock()
	c.gw.err = err
}

func (c *JobClient) Calls() []Call {
	c.gw.mu.Lock()
	defer c.gw.mu.Unlock()
	return append([]Call(nil), c.gw.calls...)
}

func (c *JobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gw, noRetry)
}

func (c *JobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gw, noRetry)
}

func (c *JobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gw, noRetry)
}

func noRetry(context.Context, error) bool { return false }

// gateway implements the three job RPCs; any other call panics through the
// nil embedded interface.
type gateway struct {
	pb.GatewayClient

	mu    sync.Mutex
	calls []Call
	err   error
}

func (g *gateway) record(ctx context.Context, call Call) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	call.CtxErr = ctx.Err()
	g.calls = append(g.calls, call)
	if call.CtxErr != nil {
		return call.CtxErr
	}
	return g.err
}

func (g *gateway) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	if err := g.record(ctx, Call{Complete: in}); err != nil {
		return nil, err
	}
	return &pb.CompleteJobResponse{}, nil
}

func (g *gateway) FailJob(ctx context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	if err := g.record(ctx, Call{Fail: in}); err != nil {
		return nil, err
	}
	return &pb.FailJobResponse{}, nil
}

func (g *gateway) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	if err := g.record(ctx, Call{Throw: in}); err != nil {
		return nil, err
	}
	return &pb.ThrowErrorResponse{}, nil
}
