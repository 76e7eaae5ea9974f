// Public domain.

package obsgen

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lsst-sims/makelsstobs/internal/obsfile"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
)

type objSeq struct {
	o   *orbits.Orbit
	rch chan []obsfile.Record
}

// Run computes detections of every orbit of cat in visits and writes them
// to the sinks, in catalog order.  Objects are processed concurrently.
// An object whose ephemerides cannot be computed, or whose processing
// panics, is logged and skipped.
// Run returns the number of detections written.
func (g *Generator) Run(ctx context.Context, cat orbits.Catalog, visits []opsim.Visit, sinks ...obsfile.Sink) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	maxWorkers := g.cfg.Workers
	if maxWorkers < 1 {
		maxWorkers = runtime.GOMAXPROCS(0)
	}
	// prCh holds result channels in catalog order.  It is buffered so a
	// fast worker can drop off its result without waiting for workers
	// ahead of it.
	prCh := make(chan chan []obsfile.Record, maxWorkers*2)
	objCh := make(chan *objSeq)

	// dispatcher.  for each orbit, attach a ticket for picking up the
	// result, hand the orbit to a worker and queue the ticket for output.
	go func() {
		defer close(prCh)
		defer close(objCh)
		for i := range cat {
			a := &objSeq{&cat[i], make(chan []obsfile.Record, 1)}
			select {
			case objCh <- a:
			case <-ctx.Done():
				return
			}
			select {
			case prCh <- a.rch:
			case <-ctx.Done():
				return
			}
		}
	}()

	// workers are started only as the dispatcher calls for them.
	go func() {
		for n := 0; n < maxWorkers; n++ {
			select {
			case a, ok := <-objCh:
				if !ok {
					return
				}
				go g.work(ctx, a, objCh, visits)
			case <-ctx.Done():
				return
			}
		}
	}()

	nDet := 0
	for {
		select {
		case <-ctx.Done():
			return nDet, ctx.Err()
		case rch, ok := <-prCh:
			if !ok {
				return nDet, ctx.Err()
			}
			var recs []obsfile.Record
			select {
			case recs = <-rch:
			case <-ctx.Done():
				return nDet, ctx.Err()
			}
			for i := range recs {
				for _, s := range sinks {
					if err := s.Write(&recs[i]); err != nil {
						return nDet, err
					}
				}
				nDet++
			}
		}
	}
}

// work processes a, then further objects from objCh until it is closed.
func (g *Generator) work(ctx context.Context, a *objSeq, objCh chan *objSeq, visits []opsim.Visit) {
	for ok := true; ok; {
		start := time.Now()
		recs, nCand, err := g.object(a.o, visits)
		if err != nil {
			log.Warn().Str("objId", a.o.ObjID).Err(err).Msg("Skipping object")
		}
		g.cfg.Metrics.Object(a.o.Classify(), nCand, len(recs), time.Since(start).Seconds())
		a.rch <- recs // buffered
		select {
		case a, ok = <-objCh:
		case <-ctx.Done():
			return
		}
	}
}

// object is Object with a panic returned as an error.
func (g *Generator) object(o *orbits.Orbit, visits []opsim.Visit) (recs []obsfile.Record, nCand int, err error) {
	defer func() {
		if x := recover(); x != nil {
			recs, nCand, err = nil, 0, fmt.Errorf("panic: %v", x)
		}
	}()
	return g.Object(o, visits)
}
