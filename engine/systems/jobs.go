package systems

import (
	"fmt"
	"sync"

	"github.com/lodestone-engine/lodestone/engine/core"
)

// JobTask is one unit of work for the job system.
type JobTask struct {
	Run        func() error
	OnComplete func()
	OnFailure  func(error)
}

// JobSystem is a bounded worker pool. The worker count is the hard limit on
// how many tasks execute at once, which is how the scheduler enforces its
// maxConcurrent contract.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				err := job.Run()
				if err != nil {
					if job.OnFailure != nil {
						job.OnFailure(err)
					} else {
						core.LogError(err.Error())
					}
				} else if job.OnComplete != nil {
					job.OnComplete()
				}
			}
		}()
	}
}

// Submit queues the provided job for execution. Blocks while the queue is full.
func (js *JobSystem) Submit(jt JobTask) {
	js.jobQueue <- jt
}

// Shutdown stops accepting work and waits for running jobs to finish.
func (js *JobSystem) Shutdown() error {
	close(js.jobQueue)
	js.wg.Wait()
	return nil
}
