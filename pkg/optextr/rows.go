package optextr

import(
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abworrall/optextr/pkg/emath"
	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

// ErrStopped is returned by a stage whose observer asked it to stop.
var ErrStopped = errors.New("stopped by observer")

// Bounds are the object columns, X1 to X2 inclusive.
type Bounds struct {
	X1, X2 int
}

func (b Bounds)Width() int { return b.X2 - b.X1 + 1 }
func (b Bounds)Contains(x int) bool { return x >= b.X1 && x <= b.X2 }

func (b Bounds)check(ncols int) error {
	if b.X1 < 0 || b.X2 < b.X1 || b.X2 >= ncols {
		return &vectfit.ParameterError{Param: "x1,x2", Reason: fmt.Sprintf("[%d,%d] not within %d columns", b.X1, b.X2, ncols)}
	}
	return nil
}

// Columns returns the object column indices.
func (b Bounds)Columns() []int {
	cols := make([]int, 0, b.Width())
	for x := b.X1; x <= b.X2; x++ {
		cols = append(cols, x)
	}
	return cols
}

// RowReport is passed to a RowObserver after each vector is fitted.
type RowReport struct {
	Stage  string
	Index  int // row, or column for column-wise profile fits
	Result procvect.Result
}

// RowObserver sees each fitted vector. Calls are serialised. Returning
// an error stops the stage; return ErrStopped for a clean stop.
type RowObserver func(RowReport) error

// StageStats summarises the vectors fitted by one stage.
type StageStats struct {
	Stage      string
	Vectors    int
	Degraded   int
	Rejected   int
	Iterations int

	// Per vector counts, for the summary histograms.
	RejectedPerVector []int `yaml:"-"`
	ItersPerVector    []int `yaml:"-"`
}

func newStageStats(stage string, results []procvect.Result) StageStats {
	s := StageStats{Stage: stage, Vectors: len(results)}
	for _, r := range results {
		if r.Degraded {
			s.Degraded++
		}
		s.Rejected += r.Rejected
		s.Iterations += r.Iterations
		s.RejectedPerVector = append(s.RejectedPerVector, r.Rejected)
		s.ItersPerVector = append(s.ItersPerVector, r.Iterations)
	}
	return s
}

// vectorRunner fits n independent vectors over a bounded pool of
// workers. Each call of fit must only write to its own index.
type vectorRunner struct {
	stage    string
	workers  int
	observer RowObserver
	mu       sync.Mutex
}

func (vr *vectorRunner)run(ctx context.Context, n int, fit func(i int) (procvect.Result, error)) ([]procvect.Result, error) {
	results := make([]procvect.Result, n)

	workers := vr.workers
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res, err := fit(i)
			if err != nil {
				return fmt.Errorf("%s vector %d: %w", vr.stage, i, err)
			}
			results[i] = res
			return vr.observe(i, res)
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (vr *vectorRunner)observe(i int, res procvect.Result) error {
	if vr.observer == nil {
		return nil
	}
	vr.mu.Lock()
	defer vr.mu.Unlock()
	return vr.observer(RowReport{Stage: vr.stage, Index: i, Result: res})
}

func checkShapes(ref emath.FloatGrid, grids map[string]emath.FloatGrid, mask emath.MaskGrid) error {
	for name, g := range grids {
		if !ref.SameSize(g) {
			return &vectfit.ParameterError{Param: name, Reason: fmt.Sprintf("is %dx%d, data is %dx%d", g.Dx(), g.Dy(), ref.Dx(), ref.Dy())}
		}
	}
	if mask.Dx() != ref.Dx() || mask.Dy() != ref.Dy() {
		return &vectfit.ParameterError{Param: "mask", Reason: fmt.Sprintf("is %dx%d, data is %dx%d", mask.Dx(), mask.Dy(), ref.Dx(), ref.Dy())}
	}
	return nil
}
