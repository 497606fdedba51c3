package testutil

import (
	"context"
	"fmt"

	"github.com/jakubkozera/mssqlmgr/pkg/driver"
)

// StubRequest is a scriptable driver.Request for tests. QueryFunc and
// ExecuteFunc, when set, control the responses; otherwise every call fails.
// All submitted queries are recorded.
type StubRequest struct {
	QueryFunc   func(ctx context.Context, query string) (*driver.Result, error)
	ExecuteFunc func(ctx context.Context, proc string, params []driver.Param) (*driver.Result, error)

	Queries   []string
	Cancelled bool
}

func (r *StubRequest) Query(ctx context.Context, query string) (*driver.Result, error) {
	r.Queries = append(r.Queries, query)
	if r.QueryFunc == nil {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	return r.QueryFunc(ctx, query)
}

func (r *StubRequest) Execute(ctx context.Context, proc string, params []driver.Param) (*driver.Result, error) {
	r.Queries = append(r.Queries, proc)
	if r.ExecuteFunc == nil {
		return nil, fmt.Errorf("unexpected procedure call: %s", proc)
	}
	return r.ExecuteFunc(ctx, proc, params)
}

func (r *StubRequest) Cancel() { r.Cancelled = true }

// StubPool is a minimal driver.Pool backed by a StubRequest.
type StubPool struct {
	Req       *StubRequest
	Cfg       driver.Config
	IsOpen    bool
	CloseErr  error
	ConnectFn func(ctx context.Context) error
}

// NewStubPool returns a connected pool whose queries are answered by fn.
func NewStubPool(fn func(ctx context.Context, query string) (*driver.Result, error)) *StubPool {
	return &StubPool{
		Req:    &StubRequest{QueryFunc: fn},
		IsOpen: true,
	}
}

func (p *StubPool) Connect(ctx context.Context) error {
	if p.ConnectFn != nil {
		if err := p.ConnectFn(ctx); err != nil {
			return err
		}
	}
	p.IsOpen = true
	return nil
}

func (p *StubPool) Close() error {
	p.IsOpen = false
	return p.CloseErr
}

func (p *StubPool) Connected() bool { return p.IsOpen }

func (p *StubPool) Request() driver.Request { return p.Req }

func (p *StubPool) Config() driver.Config { return p.Cfg }
