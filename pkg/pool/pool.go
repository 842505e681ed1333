// Package pool runs independent verification work on a fixed set of workers.
//
// A nil *Pool is valid and runs everything on the calling goroutine.
package pool

import (
	"io"
	"runtime"
	"sync"
)

// Pool is a set of long lived workers fed through a channel.
type Pool struct {
	tasks chan func()
	once  sync.Once
}

// NewPool starts count workers, or one per CPU if count <= 0.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{tasks: make(chan func())}
	for i := 0; i < count; i++ {
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	for task := range p.tasks {
		task()
	}
}

// TearDown stops the workers. It may be called more than once.
func (p *Pool) TearDown() {
	if p == nil {
		return
	}
	p.once.Do(func() { close(p.tasks) })
}

// Errors runs f(0), ..., f(count-1) and returns the non-nil errors by index.
// It must not be called after TearDown.
func (p *Pool) Errors(count int, f func(int) error) map[int]error {
	results := make([]error, count)
	if p == nil {
		for i := range results {
			results[i] = f(i)
		}
	} else {
		var wg sync.WaitGroup
		wg.Add(count)
		for i := 0; i < count; i++ {
			i := i
			p.tasks <- func() {
				defer wg.Done()
				results[i] = f(i)
			}
		}
		wg.Wait()
	}

	errs := make(map[int]error)
	for i, err := range results {
		if err != nil {
			errs[i] = err
		}
	}
	return errs
}

// LockedReader serializes reads, so that one source of randomness can be
// shared by the workers.
type LockedReader struct {
	mtx    sync.Mutex
	reader io.Reader
}

func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{reader: r}
}

func (r *LockedReader) Read(p []byte) (int, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.reader.Read(p)
}
