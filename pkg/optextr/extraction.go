package optextr

import(
	"context"
	"fmt"
	"log"
	"math"

	"github.com/abworrall/optextr/pkg/emath"
)

// Extraction holds one exposure, and the products of each stage of
// extracting its spectrum.
type Extraction struct {
	Config

	Source      string
	Data        emath.FloatGrid
	Variance    emath.FloatGrid
	SkyVariance emath.FloatGrid
	Mask        emath.MaskGrid

	haveVariance bool
	haveMask     bool

	Metrics *Metrics // optional

	BackgroundFit BackgroundResult
	Subtracted    emath.FloatGrid
	Standard      StandardResult
	TraceFit      *Trace
	ProfileFit    ProfileResult
	Optimal       OptimalResult
	Summary       Summary
}

func NewExtraction() Extraction {
	return Extraction{
		Config: NewConfig(),
	}
}

func (e Extraction)String() string {
	return fmt.Sprintf("Extraction[%s %dx%d, object x=%d..%d]", e.Source, e.Data.Dx(), e.Data.Dy(), e.X1, e.X2)
}

// SetImage installs the detector image. Variance and mask planes are
// reset unless supplied afterwards.
func (e *Extraction)SetImage(source string, data emath.FloatGrid) {
	e.Source = source
	e.Data = data
	e.haveVariance, e.haveMask = false, false
}

func (e *Extraction)SetVariance(v emath.FloatGrid) { e.Variance, e.haveVariance = v, true }
func (e *Extraction)SetMask(m emath.MaskGrid)      { e.Mask, e.haveMask = m, true }

// prepare fills in planes that were not loaded. Without a variance image,
// it is modelled as |data|/gain + readnoise^2.
func (e *Extraction)prepare() error {
	if e.Data.Dx() == 0 || e.Data.Dy() == 0 {
		return fmt.Errorf("no image loaded")
	}
	w, h := e.Data.Dx(), e.Data.Dy()

	if !e.haveVariance {
		e.Variance = emath.NewFloatGrid(w, h)
		rn2 := e.ReadNoise * e.ReadNoise
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				e.Variance.Set(x, y, math.Abs(e.Data.Get(x, y))/e.Gain + rn2)
			}
		}
	}
	if !e.haveMask {
		e.Mask = emath.NewMaskGrid(w, h)
	}
	if !e.SkyVariance.SameSize(e.Data) {
		e.SkyVariance = emath.NewFloatGrid(w, h)
	}
	return nil
}

// Run does all the work: background, standard extraction, optional trace,
// profile, then optimal extraction.
func (e *Extraction)Run(ctx context.Context) error {
	if err := e.Config.Finalize(); err != nil {
		return err
	}
	if err := e.prepare(); err != nil {
		return err
	}
	if err := e.Bounds().check(e.Data.Dx()); err != nil {
		return err
	}
	if e.Verbosity > 0 {
		log.Printf("Running %s\n", e)
	}

	bp := e.BackgroundParams()
	bp.Observer = e.stepObserver("background")
	bg, err := FitBackground(ctx, e.Data, e.Variance, e.SkyVariance, e.Mask, bp)
	if err != nil {
		return fmt.Errorf("background: %w", err)
	}
	e.BackgroundFit = bg
	e.Subtracted = e.Data.Sub(bg.Background)

	std, err := ExtractStandard(e.Subtracted, bg.Variance, bg.Mask, e.Bounds())
	if err != nil {
		return fmt.Errorf("standard extraction: %w", err)
	}
	e.Standard = std

	spec := std.Spectrum
	if e.Extraction.UseAdjusted {
		spec = std.Adjusted
	}

	if e.Config.Trace.Enabled {
		tp := e.TraceParams()
		tp.Observer = e.stepObserver("trace")
		tr, err := FindTrace(ctx, e.Subtracted, bg.Variance, bg.Mask, spec, tp)
		if err != nil {
			return fmt.Errorf("trace: %w", err)
		}
		e.TraceFit = &tr
	}

	pp := e.ProfileParams()
	pp.Observer = e.stepObserver("profile")
	prof, err := FitProfile(ctx, e.Subtracted, bg.Variance, e.SkyVariance, bg.Background, bg.Mask, spec, pp)
	if err != nil {
		return fmt.Errorf("profile: %w", err)
	}
	e.ProfileFit = prof

	ep := e.ExtractParams()
	ep.Observer = e.stepObserver("optimal")
	opt, err := ExtractOptimal(ctx, e.Subtracted, prof.Profile, bg.Variance, e.SkyVariance, bg.Background, prof.Mask, ep)
	if err != nil {
		return fmt.Errorf("optimal extraction: %w", err)
	}
	e.Optimal = opt

	sum, err := NewSummary(e)
	if err != nil {
		return err
	}
	e.Summary = sum
	for _, s := range e.stageStats() {
		e.Metrics.ObserveStage(s)
	}

	for _, s := range e.Summary.Stages {
		if s.Degraded > 0 {
			log.Printf("warning: %s: %d of %d vectors degraded\n", s.Stage, s.Degraded, s.Vectors)
		}
	}
	if e.Verbosity > 0 {
		log.Printf("Extraction done, optimal flux %.6g, standard flux %.6g\n", e.Summary.OptimalFlux, e.Summary.StandardFlux)
	}
	return nil
}

func (e *Extraction)stageStats() []StageStats {
	s := []StageStats{e.BackgroundFit.Stats}
	if e.TraceFit != nil {
		s = append(s, e.TraceFit.Stats)
	}
	return append(s, e.ProfileFit.Stats, e.Optimal.Stats)
}

// stepObserver logs per vector detail at high verbosity, and stops the
// run at StopAtRow of StopStage.
func (e *Extraction)stepObserver(stage string) RowObserver {
	verbose := e.Verbosity > 1
	stop := e.StopAtRow >= 0 && e.StopStage == stage
	if !verbose && !stop {
		return nil
	}

	return func(r RowReport) error {
		if verbose || (stop && r.Index == e.StopAtRow) {
			log.Printf(" -- %s[%d]: %d iters, %d rejected, degraded=%v, %v\n", r.Stage, r.Index,
				r.Result.Iterations, r.Result.Rejected, r.Result.Degraded, r.Result.Coeffs)
		}
		if stop && r.Index == e.StopAtRow {
			return fmt.Errorf("%s row %d: %w", stage, r.Index, ErrStopped)
		}
		return nil
	}
}
