package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/1F47E/go-stickerconv/internal/job"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// Func transcodes one job. It is called for every job of a batch, also after
// ctx is done, so it decides itself how to report a cancelled job.
type Func[R any] func(ctx context.Context, j job.Job) R

type Pool[R any] struct {
	size   int
	fn     Func[R]
	onDone func(R)
}

func NewPool[R any](size int, fn Func[R]) *Pool[R] {
	if size < 1 {
		size = 1
	}
	return &Pool[R]{size: size, fn: fn}
}

// OnDone registers a callback run for every result, in batch order.
func (p *Pool[R]) OnDone(f func(R)) *Pool[R] {
	p.onDone = f
	return p
}

// Run processes jobs on the pool workers and returns the results in the
// order of jobs.
func (p *Pool[R]) Run(ctx context.Context, jobs []job.Job) []R {
	log := logger.Log.WithField("scope", "workers")

	// list of channels to receive results from workers in order
	resChs := make([]chan R, len(jobs))
	for i := range resChs {
		resChs[i] = make(chan R, 1)
	}

	tasks := make(chan job.Task, p.size)
	wg := sync.WaitGroup{}
	log.Debugf("Starting %d workers", p.size)
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, tasks, resChs)
		}(i + 1)
	}

	go func() {
		for i, j := range jobs {
			tasks <- job.Task{Job: j, Idx: i}
		}
		close(tasks)
	}()

	results := make([]R, len(jobs))
	for i, ch := range resChs {
		results[i] = <-ch
		if p.onDone != nil {
			p.onDone(results[i])
		}
	}
	wg.Wait()
	return results
}

func (p *Pool[R]) worker(ctx context.Context, id int, tasks <-chan job.Task, resChs []chan R) {
	log := logger.Log.WithField("scope", fmt.Sprintf("worker #%d", id))
	log.Debug("started")
	defer log.Debug("finished")

	for t := range tasks {
		now := time.Now()
		log.Debugf("got %s", t.Print())
		resChs[t.Idx] <- p.fn(ctx, t.Job)
		log.Debugf("done %d. Took time: %s", t.Idx, time.Since(now))
	}
}
