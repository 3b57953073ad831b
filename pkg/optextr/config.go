package optextr

import(
	"fmt"
	"log"
	"runtime"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"

	"github.com/abworrall/optextr/pkg/procvect"
	"github.com/abworrall/optextr/pkg/vectfit"
)

// Config holds every tunable of an extraction run. Start from
// NewConfig, overlay YAML and flags, then call Finalize.
type Config struct {
	Verbosity        int

	Gain             float64 `validate:"gt=0"`   // electrons per data unit
	ReadNoise        float64 `validate:"gte=0"`  // in data units
	X1, X2           int     `validate:"gte=0"`  // object columns, inclusive
	BadPixelFraction float64 `validate:"gte=0,lte=1"`
	Workers          int     `validate:"gte=0"`  // 0 means one per CPU
	StopAtRow        int     `validate:"gte=-1"` // single step: stop after this row, -1 to run through
	StopStage        string  `validate:"oneof=background trace profile optimal"`

	Background       BackgroundConfig
	Profile          ProfileConfig
	Extraction       ExtractionConfig
	Trace            TraceConfig
	Output           OutputConfig
}

type BackgroundConfig struct {
	Skip      bool                       // use the median of the background columns, no fit
	Degree    int     `validate:"gte=0"`
	Threshold float64 `validate:"gte=0"`
}

type ProfileConfig struct {
	NoFit           bool
	Method          FitMethod
	Degree          int     `validate:"gte=0"`
	BoxcarHalfWidth int     `validate:"gte=1"`
	Threshold       float64 `validate:"gte=0"`
}

type ExtractionConfig struct {
	Threshold   float64 `validate:"gte=0"`
	UseAdjusted bool    // seed the profile with the gap-filled standard spectrum
}

type TraceConfig struct {
	Enabled        bool
	Centroid       bool
	Degree         int     `validate:"gte=0"`
	GaussThreshold float64 `validate:"gte=0"`
	ShiftThreshold float64 `validate:"gte=0"`
}

type OutputConfig struct {
	Dir     string
	DumpPNG bool
	DumpHDR bool
	Metrics string // prometheus textfile, if set
}

func NewConfig() Config {
	return Config{
		Gain:             1,
		BadPixelFraction: 0.5,
		StopAtRow:        -1,
		StopStage:        "optimal",
		Background:       BackgroundConfig{Degree: 1, Threshold: 5},
		Profile:          ProfileConfig{Method: MethodPoly, Degree: 2, BoxcarHalfWidth: 3, Threshold: 3},
		Extraction:       ExtractionConfig{Threshold: 5},
		Trace:            TraceConfig{Degree: 4, GaussThreshold: 0.03, ShiftThreshold: 0.5},
		Output:           OutputConfig{Dir: "."},
	}
}

func newConfigFromYaml(b []byte) (Config, error) {
	c := NewConfig()
	err := yaml.Unmarshal(b, &c)
	return c, err
}

func (c Config)AsYaml() string {
	b, err := yaml.Marshal(c)
	if err != nil {
		log.Fatalf("Can't marshal config yaml: %v\n", err)
	}
	return string(b)
}

var validate = validator.New()

// Finalize checks the config. It does not know the image size; the
// object bounds are checked against the image when the run starts.
func (c Config)Finalize() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.X2 < c.X1 {
		return &vectfit.ParameterError{Param: "x2", Reason: fmt.Sprintf("%d is left of x1=%d", c.X2, c.X1)}
	}
	if !c.Profile.Method.Valid() {
		return &vectfit.ParameterError{Param: "profile.method", Reason: c.Profile.Method.String()}
	}
	return nil
}

func (c Config)Bounds() Bounds { return Bounds{X1: c.X1, X2: c.X2} }

func (c Config)workers() int {
	if c.StopAtRow >= 0 {
		return 1
	}
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

func (c Config)driverParams(thresh float64) procvect.Params {
	return procvect.Params{
		Threshold:        thresh,
		Gain:             c.Gain,
		ReadNoiseSq:      c.ReadNoise * c.ReadNoise,
		BadPixelFraction: c.BadPixelFraction,
		MinPixels:        procvect.DefaultMinPixels,
		Verbosity:        c.Verbosity,
	}
}

func (c Config)BackgroundParams() BackgroundParams {
	return BackgroundParams{
		Bounds:  c.Bounds(),
		Degree:  c.Background.Degree,
		Skip:    c.Background.Skip,
		Driver:  c.driverParams(c.Background.Threshold),
		Workers: c.workers(),
	}
}

func (c Config)ProfileParams() ProfileParams {
	return ProfileParams{
		Bounds:          c.Bounds(),
		Method:          c.Profile.Method,
		Degree:          c.Profile.Degree,
		BoxcarHalfWidth: c.Profile.BoxcarHalfWidth,
		NoFit:           c.Profile.NoFit,
		Driver:          c.driverParams(c.Profile.Threshold),
		Workers:         c.workers(),
	}
}

func (c Config)ExtractParams() ExtractParams {
	return ExtractParams{
		Bounds:  c.Bounds(),
		Driver:  c.driverParams(c.Extraction.Threshold),
		Workers: c.workers(),
	}
}

func (c Config)TraceParams() TraceParams {
	p := TraceParams{
		Bounds:         c.Bounds(),
		Centroid:       c.Trace.Centroid,
		Degree:         c.Trace.Degree,
		GaussThreshold: c.Trace.GaussThreshold,
		ShiftThreshold: c.Trace.ShiftThreshold,
		Driver:         c.driverParams(c.Trace.GaussThreshold),
		Workers:        c.workers(),
	}
	p.Driver.AbsThreshold = true
	p.Driver.NoUpdate = true
	return p
}
