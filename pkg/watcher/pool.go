package watcher

import (
	"context"
	"hash/fnv"
	"runtime/debug"
	"sync"

	"k8s.io/klog"
)

// Handler processes one changed file.
type Handler func(ctx context.Context, path string)

const queueSize = 64

// pool runs handlers on a fixed set of workers. A path always lands on the same worker so
// a file is never handled twice at once.
type pool struct {
	queues []chan string
	wg     sync.WaitGroup
}

func newPool(ctx context.Context, workers int, handler Handler) *pool {
	if workers < 1 {
		workers = 1
	}

	p := &pool{queues: make([]chan string, workers)}

	for i := range p.queues {
		queue := make(chan string, queueSize)
		p.queues[i] = queue

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for path := range queue {
				safeHandle(ctx, handler, path)
			}
		}()
	}

	return p
}

// dispatch queues path for its worker. It blocks while that worker's queue is full and
// gives up when ctx is done.
func (p *pool) dispatch(ctx context.Context, path string) {
	select {
	case p.queues[workerIndex(path, len(p.queues))] <- path:
	case <-ctx.Done():
	}
}

// stop waits for queued paths to be handled.
func (p *pool) stop() {
	for _, queue := range p.queues {
		close(queue)
	}
	p.wg.Wait()
}

func workerIndex(path string, workers int) int {
	h := fnv.New32a()
	h.Write([]byte(path))
	return int(h.Sum32() % uint32(workers))
}

func safeHandle(ctx context.Context, handler Handler, path string) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("panic while handling %s: %v\n%s", path, r, debug.Stack())
		}
	}()

	handler(ctx, path)
}
