// Command calibrate replays a recorded percept log through a calibration
// session, persists the converged result and optionally renders an HTML
// convergence report.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/fieldrobotics/autocal/internal/calibrate"
	"github.com/fieldrobotics/autocal/internal/calibstore"
	"github.com/fieldrobotics/autocal/internal/camera"
	"github.com/fieldrobotics/autocal/internal/config"
	"github.com/fieldrobotics/autocal/internal/field"
	"github.com/fieldrobotics/autocal/internal/monitoring"
	"github.com/fieldrobotics/autocal/internal/replay"
	"github.com/fieldrobotics/autocal/internal/sample"
	"github.com/fieldrobotics/autocal/internal/units"
	"github.com/fieldrobotics/autocal/internal/version"
)

func main() {
	var (
		logPath    = flag.String("log", "", "percept log to replay (JSON lines, required)")
		dbPath     = flag.String("db", "", "calibration store; loads the persisted calibration and saves the result")
		configPath = flag.String("config", "", "tuning config JSON (optional, partial configs allowed)")
		reportPath = flag.String("report", "", "write an HTML convergence report to this path")
		seed       = flag.Int64("seed", 0, "random seed for restart perturbations (0 = time-based)")
		verbose    = flag.Bool("v", false, "verbose logging")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("calibrate %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *logPath == "" {
		flag.Usage()
		os.Exit(2)
	}
	monitoring.Verbose = *verbose

	if err := run(*logPath, *dbPath, *configPath, *reportPath, *seed); err != nil {
		log.Fatalf("calibrate: %v", err)
	}
}

func run(logPath, dbPath, configPath, reportPath string, seed int64) error {
	cfg := config.EmptyTuningConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadTuningConfig(configPath); err != nil {
			return err
		}
	}

	var store *calibstore.Store
	persisted := camera.Calibration{}
	if dbPath != "" {
		var err error
		if store, err = calibstore.Open(dbPath); err != nil {
			return err
		}
		defer store.Close()
		rec, err := store.Latest()
		switch {
		case err == nil:
			persisted = rec.Calibration
			monitoring.Logf("starting from calibration %s (recorded %s)", rec.ID, rec.RecordedAt.Format(time.RFC3339))
		case errors.Is(err, calibstore.ErrNoCalibration):
			monitoring.Logf("no persisted calibration, starting from zero corrections")
		default:
			return err
		}
	}

	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	session := calibrate.NewSession(persisted, envFromConfig(cfg), paramsFromConfig(cfg),
		rand.New(rand.NewSource(seed)))

	reader, err := replay.Open(logPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	var trace convergenceTrace
	frames := 0
	sawOptimize := false
	lastState := session.State()
	maxIterations := 0
	for {
		frame, req, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		session.Update(frame, req)
		frames++

		if state := session.State(); state != lastState {
			monitoring.Logf("state %v -> %v after %d frames", lastState, state, frames)
			lastState = state
		}
		if session.State() == calibrate.Optimize {
			sawOptimize = true
			if it := session.Iterations(); it > maxIterations {
				maxIterations = it
			}
			trace.add(session.Iterations(), session.MeanError())
		}
	}

	if !sawOptimize || session.State() != calibrate.Idle {
		return fmt.Errorf("session did not converge (%d frames replayed, state %v)", frames, session.State())
	}

	result := session.Calibration()
	meanError := session.MeanError()
	monitoring.Logf("converged after %d iterations, mean error %.4f", maxIterations, meanError)
	printCalibration(result)

	if store != nil {
		rec := &calibstore.Record{
			Source:      logPath,
			Iterations:  maxIterations,
			MeanError:   meanError,
			Calibration: result,
		}
		if err := store.Save(rec); err != nil {
			return err
		}
		monitoring.Logf("saved calibration %s", rec.ID)
	}

	if reportPath != "" {
		if err := trace.render(reportPath); err != nil {
			return err
		}
		monitoring.Logf("wrote convergence report to %s", reportPath)
	}
	return nil
}

func envFromConfig(cfg *config.TuningConfig) sample.Env {
	return sample.Env{
		Field: field.Dimensions{
			GroundLineX:  cfg.GetGroundLineXMM(),
			GoalAreaX:    cfg.GetGoalAreaXMM(),
			PenaltyMarkX: cfg.GetPenaltyMarkXMM(),
			LineWidth:    cfg.GetLineWidthMM(),
		},
		AngleErrorDivisor:       cfg.GetAngleErrorDivisor(),
		DistanceErrorDivisor:    cfg.GetDistanceErrorDivisor(),
		PixelInaccuracyPerMeter: cfg.GetPixelInaccuracyPerMeter(),
	}
}

func paramsFromConfig(cfg *config.TuningConfig) calibrate.Params {
	return calibrate.Params{
		DiscardsUntilWiden:        cfg.GetDiscardsUntilWiden(),
		RangeWidenStep:            cfg.GetRangeWidenStepMM(),
		TerminationCriterion:      cfg.GetTerminationCriterion(),
		MinSuccessiveConvergences: cfg.GetMinSuccessiveConvergences(),
		RestartPerturbation:       units.Deg(cfg.GetRestartPerturbationDeg()),
		Damping:                   cfg.GetDamping(),
		JacobianEpsilon:           cfg.GetJacobianEpsilon(),
		SobelThresholdFraction:    cfg.GetSobelThresholdFraction(),
		MinEdgeSeparation:         cfg.GetMinEdgeSeparationPx(),
		SectorHalfWidth:           units.Deg(cfg.GetSectorHalfWidthDeg()),
	}
}

func printCalibration(c camera.Calibration) {
	fmt.Printf("lower camera: roll %+.4f°  tilt %+.4f°\n", units.ToDeg(c.LowerCamera.Roll), units.ToDeg(c.LowerCamera.Tilt))
	fmt.Printf("upper camera: roll %+.4f°  tilt %+.4f°\n", units.ToDeg(c.UpperCamera.Roll), units.ToDeg(c.UpperCamera.Tilt))
	fmt.Printf("body:         roll %+.4f°  tilt %+.4f°\n", units.ToDeg(c.Body.Roll), units.ToDeg(c.Body.Tilt))
}

// convergenceTrace collects the optimizer's mean residual per iteration for
// the report chart.
type convergenceTrace struct {
	iterations []int
	meanErrors []float64
}

func (tr *convergenceTrace) add(iteration int, meanError float64) {
	if math.IsNaN(meanError) {
		return
	}
	tr.iterations = append(tr.iterations, iteration)
	tr.meanErrors = append(tr.meanErrors, meanError)
}

func (tr *convergenceTrace) render(path string) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Calibration convergence",
			Subtitle: "mean sample residual per optimizer iteration",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iteration"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean error"}),
	)

	xs := make([]string, len(tr.iterations))
	data := make([]opts.LineData, len(tr.meanErrors))
	for i := range tr.iterations {
		xs[i] = fmt.Sprintf("%d", tr.iterations[i])
		data[i] = opts.LineData{Value: tr.meanErrors[i]}
	}
	line.SetXAxis(xs).AddSeries("mean error", data)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	if err := line.Render(f); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
