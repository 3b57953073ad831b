package main

import(
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abworrall/optextr/pkg/optextr"
)

var(
	fVerbosity int
	fWorkers int
	fX1, fX2 int
	fGain float64
	fReadNoise float64
	fMethod optextr.FitMethod
	fNoFit bool
	fNoBgFit bool
	fTrace bool
	fAdjusted bool
	fStopAtRow int
	fStopStage string
	fOutDir string
	fMetrics string
	fDumpPNG bool
	fDumpHDR bool
)

var rootCmd = &cobra.Command{
	Use:   "optextr",
	Short: "optimal extraction of 1-D spectra from 2-D spectrograph images",
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run [flags] image.fits [config.yaml] [dirs...]",
	Short: "extract the spectrum from an image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runExtraction,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "print the default configuration, as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(optextr.NewConfig().AsYaml())
	},
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&fVerbosity, "verbosity", "v", 0, "how verbose to get")

	f := runCmd.Flags()
	f.IntVar(&fWorkers, "workers", 0, "rows fitted in parallel (0 = one per CPU)")
	f.IntVar(&fX1, "x1", 0, "first object column")
	f.IntVar(&fX2, "x2", 0, "last object column")
	f.Float64Var(&fGain, "gain", 1, "detector gain, electrons per data unit")
	f.Float64Var(&fReadNoise, "readnoise", 0, "read noise, data units")
	f.Var(&fMethod, "method", "profile fit: poly, gauss or boxcar")
	f.BoolVar(&fNoFit, "nofit", false, "take the profile straight from the data, no fitting")
	f.BoolVar(&fNoBgFit, "nobgfit", false, "constant background from the median, no fitting")
	f.BoolVar(&fTrace, "trace", false, "also locate the trace of the object")
	f.BoolVar(&fAdjusted, "adjspec", false, "seed the profile with the gap-filled standard spectrum")
	f.IntVar(&fStopAtRow, "stop-at-row", -1, "single step: run one row at a time, stop after this row")
	f.StringVar(&fStopStage, "stop-stage", "optimal", "stage that --stop-at-row applies to")
	f.StringVar(&fOutDir, "outdir", ".", "where to write the products")
	f.StringVar(&fMetrics, "metrics", "", "write prometheus metrics to this textfile")
	f.BoolVar(&fDumpPNG, "dump-png", false, "also write PNG renderings of the images")
	f.BoolVar(&fDumpHDR, "dump-hdr", false, "also write the profile as a Radiance HDR image")

	rootCmd.AddCommand(runCmd, configCmd)
}

// applyFlags overrides the loaded config with flags set on the command line.
func applyFlags(cmd *cobra.Command, c *optextr.Config) {
	f := cmd.Flags()
	set := func(name string, apply func()) {
		if f.Changed(name) {
			apply()
		}
	}
	set("verbosity",   func() { c.Verbosity = fVerbosity })
	set("workers",     func() { c.Workers = fWorkers })
	set("x1",          func() { c.X1 = fX1 })
	set("x2",          func() { c.X2 = fX2 })
	set("gain",        func() { c.Gain = fGain })
	set("readnoise",   func() { c.ReadNoise = fReadNoise })
	set("method",      func() { c.Profile.Method = fMethod })
	set("nofit",       func() { c.Profile.NoFit = fNoFit })
	set("nobgfit",     func() { c.Background.Skip = fNoBgFit })
	set("trace",       func() { c.Trace.Enabled = fTrace })
	set("adjspec",     func() { c.Extraction.UseAdjusted = fAdjusted })
	set("stop-at-row", func() { c.StopAtRow = fStopAtRow })
	set("stop-stage",  func() { c.StopStage = fStopStage })
	set("outdir",      func() { c.Output.Dir = fOutDir })
	set("metrics",     func() { c.Output.Metrics = fMetrics })
	set("dump-png",    func() { c.Output.DumpPNG = fDumpPNG })
	set("dump-hdr",    func() { c.Output.DumpHDR = fDumpHDR })
}

func runExtraction(cmd *cobra.Command, args []string) error {
	e := optextr.NewExtraction()
	if err := e.LoadFilesAndDirs(args...); err != nil {
		return err
	}
	applyFlags(cmd, &e.Config)

	if e.Verbosity > 0 {
		log.Printf("Final configuration:-\n\n%s\n", e.Config.AsYaml())
	}

	var reg *prometheus.Registry
	if e.Output.Metrics != "" {
		reg = prometheus.NewRegistry()
		e.Metrics = optextr.NewMetrics(reg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := e.Run(ctx); errors.Is(err, optextr.ErrStopped) {
		log.Printf("%v\n", err)
		return nil
	} else if err != nil {
		return err
	}

	if err := e.WriteProducts(e.Output.Dir); err != nil {
		return err
	}

	if reg != nil {
		if err := prometheus.WriteToTextfile(e.Output.Metrics, reg); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
