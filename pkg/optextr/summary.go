package optextr

import(
	"fmt"

	"github.com/codahale/hdrhistogram"
	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Summary is the record of a run, written alongside the products.
type Summary struct {
	RunID        string
	Source       string
	Rows, Cols   int
	X1, X2       int
	Stages       []StageSummary
	TraceRows    int  `yaml:",omitempty"`
	TraceSmooth  bool `yaml:",omitempty"`
	OptimalFlux  float64
	StandardFlux float64
	BadRows      int // rows where the optimal extraction degraded
}

type StageSummary struct {
	StageStats     `yaml:",inline"`
	RejectedP50    int64
	RejectedP90    int64
	RejectedMax    int64
	MeanIterations float64
}

func NewSummary(e *Extraction) (Summary, error) {
	s := Summary{
		RunID:  uuid.NewString(),
		Source: e.Source,
		Rows:   e.Data.Dy(),
		Cols:   e.Data.Dx(),
		X1:     e.X1,
		X2:     e.X2,
	}
	for _, st := range e.stageStats() {
		ss, err := summariseStage(st)
		if err != nil {
			return s, fmt.Errorf("summary of %s: %w", st.Stage, err)
		}
		s.Stages = append(s.Stages, ss)
	}
	if e.TraceFit != nil {
		for _, ok := range e.TraceFit.RowOK {
			if ok { s.TraceRows++ }
		}
		s.TraceSmooth = !e.TraceFit.Degraded
	}
	for y := range e.Optimal.Spectrum {
		s.OptimalFlux += e.Optimal.Spectrum[y]
		if !e.Optimal.RowOK[y] {
			s.BadRows++
		}
	}
	for _, v := range e.Standard.Spectrum {
		s.StandardFlux += v
	}
	return s, nil
}

// summariseStage condenses the per vector counts into quantiles.
func summariseStage(st StageStats) (StageSummary, error) {
	ss := StageSummary{StageStats: st}
	if len(st.RejectedPerVector) == 0 {
		return ss, nil
	}

	rej := hdrhistogram.New(1, highest(st.RejectedPerVector), 3)
	for _, n := range st.RejectedPerVector {
		if err := rej.RecordValue(int64(n)); err != nil {
			return ss, fmt.Errorf("rejections: %w", err)
		}
	}
	ss.RejectedP50 = rej.ValueAtQuantile(50)
	ss.RejectedP90 = rej.ValueAtQuantile(90)
	ss.RejectedMax = rej.Max()

	iters := hdrhistogram.New(1, highest(st.ItersPerVector), 3)
	for _, n := range st.ItersPerVector {
		if err := iters.RecordValue(int64(n)); err != nil {
			return ss, fmt.Errorf("iterations: %w", err)
		}
	}
	ss.MeanIterations = iters.Mean()
	return ss, nil
}

// highest is the histogram range needed for counts, at least 2.
func highest(counts []int) int64 {
	max := int64(2)
	for _, n := range counts {
		if int64(n) > max { max = int64(n) }
	}
	return max
}

func (s Summary)AsYaml() ([]byte, error) {
	return yaml.Marshal(s)
}
