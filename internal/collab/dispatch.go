// internal/collab/dispatch.go
package collab

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/user/chronicler/internal/types"
)

// Kind identifies which collaborator produced a result.
type Kind string

const (
	KindSpeech Kind = "speech"
	KindImage  Kind = "image"
)

// Result is an asynchronous collaborator payload, published on the
// dispatcher's result channel for the UI layer to poll or subscribe to.
type Result struct {
	JobID   types.JobID
	Kind    Kind
	SceneID types.SceneID
	Payload []byte
	Err     error
}

// Dispatcher runs speech-synthesis and image-generation calls
// fire-and-forget: the turn loop never blocks on them, and a result that
// arrives after the player has moved on simply sits on the channel until
// the subscriber discards it. A weighted semaphore bounds how many
// collaborator calls run at once.
type Dispatcher struct {
	speaker     types.Speaker
	illustrator types.Illustrator
	sem         *semaphore.Weighted
	results     chan Result

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher allowing up to maxConcurrent
// collaborator calls in flight. Either collaborator may be nil; its jobs
// are then rejected with a zero JobID.
func NewDispatcher(speaker types.Speaker, illustrator types.Illustrator, maxConcurrent int64) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	return &Dispatcher{
		speaker:     speaker,
		illustrator: illustrator,
		sem:         semaphore.NewWeighted(maxConcurrent),
		results:     make(chan Result, 16),
	}
}

// Start initialises the dispatcher's context. Must be called before
// submitting jobs.
func (d *Dispatcher) Start(ctx context.Context) {
	d.ctx, d.cancel = context.WithCancel(ctx)
}

// Stop cancels in-flight jobs, waits for workers, and closes the result
// channel.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	close(d.results)
}

// Results returns the channel asynchronous payloads arrive on.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Speak submits narration text for speech synthesis. Returns immediately.
func (d *Dispatcher) Speak(sceneID types.SceneID, text string) types.JobID {
	if d.speaker == nil {
		return ""
	}
	return d.submit(KindSpeech, sceneID, func(ctx context.Context) ([]byte, error) {
		return d.speaker.Speak(ctx, text)
	})
}

// Illustrate submits a scene description for image generation. Returns
// immediately.
func (d *Dispatcher) Illustrate(sceneID types.SceneID, description string) types.JobID {
	if d.illustrator == nil {
		return ""
	}
	return d.submit(KindImage, sceneID, func(ctx context.Context) ([]byte, error) {
		return d.illustrator.Illustrate(ctx, description)
	})
}

func (d *Dispatcher) submit(kind Kind, sceneID types.SceneID, fn func(context.Context) ([]byte, error)) types.JobID {
	// Submissions before Start are rejected, same convention as a nil
	// collaborator.
	if d.ctx == nil {
		return ""
	}
	id := types.NewJobID()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		payload, err := fn(d.ctx)
		d.publish(Result{JobID: id, Kind: kind, SceneID: sceneID, Payload: payload, Err: err})
	}()
	return id
}

// publish delivers a result without ever blocking a worker. When the
// subscriber has fallen behind, the oldest unclaimed result is dropped
// to make room; the turn loop has long since moved on.
func (d *Dispatcher) publish(result Result) {
	for {
		select {
		case d.results <- result:
			return
		default:
		}
		select {
		case stale := <-d.results:
			slog.Debug("dropping unclaimed collaborator result",
				"job_id", string(stale.JobID), "kind", string(stale.Kind))
		default:
		}
	}
}
