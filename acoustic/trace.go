package acoustic

import (
	"errors"
	"fmt"
	"time"

	"github.com/cwbudde/algo-acoustic/filter"
	"github.com/cwbudde/algo-acoustic/queue"
	"github.com/cwbudde/algo-acoustic/scene"
	"github.com/cwbudde/algo-acoustic/tracer"
)

var errEmptyScene = errors.New("no geometry committed")

// CommitGeometry publishes pending geometry edits. With nothing pending it
// is a successful no-op. The commit runs on the command queue behind any
// trace already submitted; traces never observe a partial scene.
func (c *Context) CommitGeometry() error {
	const op = "Context.CommitGeometry"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	_, err = c.commitLocked(op)
	return err
}

func (c *Context) commitLocked(op string) (queue.Ticket, error) {
	pending, ok := c.graph.Stage()
	if !ok {
		return 0, nil
	}
	t, err := c.queue.Enqueue(queue.KindCommit, func() error {
		start := time.Now()
		snap := pending.Build()
		if !c.graph.Publish(snap) {
			return nil
		}
		c.metrics.triangles.Set(float64(len(snap.Triangles)))
		logger.Debugf("context %q committed snapshot %d: %d meshes, %d triangles, bounds %v in %s", c.name, snap.Version, len(snap.Meshes), len(snap.Triangles), snap.Bounds(), time.Since(start))
		return nil
	})
	return t, wrap(op, err)
}

// TraceAudio enqueues a trace of every source against the scene. Pending
// geometry is committed first. The listener and source state is captured
// now; later edits apply to later traces. done, if not nil, is signaled
// once the trace has finished.
func (c *Context) TraceAudio(done *queue.Event) error {
	const op = "Context.TraceAudio"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	defer unlock()

	if _, err := c.commitLocked(op); err != nil {
		return err
	}

	in := &tracer.Input{
		Listener:   c.listener,
		UnitLength: c.cfg.UnitLength,
		MaxDelay:   float64(c.cfg.ReverbLength),
	}
	sources := *c.order.Load()
	params := make(map[uint64]filter.Params, len(sources))
	for _, st := range sources {
		in.Sources = append(in.Sources, tracer.Source{
			ID:       st.id,
			Position: st.position,
			Budget:   Budget(st.effect, c.compute),
		})
		params[st.id] = filter.Params{DirectGain: st.directGain, IndirectGain: st.indirectGain}
	}
	epoch := c.bank.Epoch()

	c.tracing.Add(1)
	if _, err := c.queue.Enqueue(queue.KindTrace, func() error {
		defer c.tracing.Add(-1)
		return c.runTrace(in, epoch, params)
	}); err != nil {
		c.tracing.Add(-1)
		return wrap(op, err)
	}
	if done != nil {
		if _, err := c.queue.Record(done); err != nil {
			return wrap(op, err)
		}
	}
	return nil
}

func (c *Context) runTrace(in *tracer.Input, epoch uint64, params map[uint64]filter.Params) error {
	start := time.Now()
	in.Snapshot = c.graph.Committed()

	out, err := c.tracer.Trace(in)
	if err != nil {
		c.metrics.traces.WithLabelValues("failed").Inc()
		return fmt.Errorf("trace on snapshot %d: %w", in.Snapshot.Version, err)
	}

	n, err := c.bank.Publish(epoch, out, params)
	switch {
	case errors.Is(err, filter.ErrStaleEpoch):
		c.metrics.traces.WithLabelValues("discarded").Inc()
		logger.Infof("context %q discarded a trace submitted before a layout change", c.name)
		return nil
	case err != nil:
		c.metrics.traces.WithLabelValues("failed").Inc()
		return fmt.Errorf("publish filters: %w", err)
	}

	c.metrics.traces.WithLabelValues("published").Inc()
	c.metrics.published.Add(float64(n))
	logger.Debugf("context %q traced %d sources on snapshot %d in %s", c.name, n, out.SnapshotVersion, time.Since(start))
	return nil
}

// EventRecord enqueues ev; it is signaled once every command submitted
// before it has finished.
func (c *Context) EventRecord(ev *queue.Event) error {
	const op = "Context.EventRecord"
	unlock, err := c.read(op)
	if err != nil {
		return err
	}
	defer unlock()

	if ev == nil {
		return failf(op, StatusInvalidValue, "nil event")
	}
	_, err = c.queue.Record(ev)
	return wrap(op, err)
}

// Synchronize blocks until every command submitted so far has finished. It
// returns the first command failure not yet reported.
func (c *Context) Synchronize() error {
	const op = "Context.Synchronize"
	unlock, err := c.read(op)
	if err != nil {
		return err
	}
	unlock()

	return wrap(op, c.queue.Synchronize())
}

// FilterArraySize returns the size in bytes of the array filled by
// Source.Filters. It fails with NotReady until a trace has completed for
// the current layout.
func (c *Context) FilterArraySize() (int, error) {
	const op = "Context.FilterArraySize"
	unlock, err := c.read(op)
	if err != nil {
		return 0, err
	}
	defer unlock()

	if !c.bank.Ready() {
		return 0, failf(op, StatusNotReady, "no trace completed")
	}
	return c.bank.Layout().Bytes(), nil
}

// ExportOBJ commits pending geometry and writes the committed scene to
// base.obj and base.mtl. It waits for the commands queued before it.
func (c *Context) ExportOBJ(base string) error {
	const op = "Context.ExportOBJ"
	unlock, err := c.write(op)
	if err != nil {
		return err
	}
	if base == "" {
		unlock()
		return failf(op, StatusInvalidValue, "empty file name")
	}
	if _, err := c.commitLocked(op); err != nil {
		unlock()
		return err
	}

	result := make(chan error, 1)
	t, err := c.queue.Enqueue(queue.KindExport, func() error {
		snap := c.graph.Committed()
		if snap.Empty() {
			result <- fail(op, StatusNotReady, errEmptyScene)
			return nil
		}
		result <- scene.ExportFiles(snap, base)
		return nil
	})
	unlock()
	if err != nil {
		return wrap(op, err)
	}

	c.queue.Wait(t)
	return wrap(op, <-result)
}
