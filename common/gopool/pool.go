package gopool

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/panjf2000/ants/v2"
)

const defaultGoroutineExpireDuration = 10 * time.Second

// Pool is a bounded worker pool for one unit of work, e.g. the workers
// of a single execution batch. Wait blocks until every submitted task
// returned, then the pool must not be reused.
type Pool struct {
	inner *ants.Pool
	wg    sync.WaitGroup
}

func New(size int) *Pool {
	inner, err := ants.NewPool(size, ants.WithExpiryDuration(defaultGoroutineExpireDuration))
	if err != nil {
		panic(err)
	}
	return &Pool{inner: inner}
}

func (p *Pool) Submit(task func()) {
	p.wg.Add(1)
	err := p.inner.Submit(func() {
		defer p.wg.Done()
		task()
	})
	if err != nil {
		p.wg.Done()
		log.Error("pool submit task fail", "err", err)
	}
}

// Running returns the number of currently running goroutines.
func (p *Pool) Running() int {
	return p.inner.Running()
}

// Cap returns the worker capacity of the pool.
func (p *Pool) Cap() int {
	return p.inner.Cap()
}

// Wait blocks until all submitted tasks finished, then releases the
// pool.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.inner.Release()
}
