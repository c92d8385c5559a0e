package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thurmanmarka/nstaralign"
)

type stats struct {
	count int
	sum   float64
	sumSq float64
	min   float64
	max   float64
}

func (s *stats) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if s.count == 0 {
		s.min, s.max = v, v
	} else {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	s.sum += v
	s.sumSq += v * v
	s.count++
}

func (s *stats) avg() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return s.sum / float64(s.count)
}

func (s *stats) rms() float64 {
	if s.count == 0 {
		return math.NaN()
	}
	return math.Sqrt(s.sumSq / float64(s.count))
}

// ErrorSummary describes one error distribution.
type ErrorSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	RMS   float64 `json:"rms"`
}

func (s *stats) summary() ErrorSummary {
	return ErrorSummary{Count: s.count, Min: s.min, Max: s.max, Mean: s.avg(), RMS: s.rms()}
}

// ProfileRow is the leave-one-out result for one alignment point: the
// point's encoder position is corrected by a model built from every other
// point and compared with its target.
type ProfileRow struct {
	ID        int               `json:"id"`
	Method    nstaralign.Method `json:"method"`
	ErrRA     int64             `json:"errRA"`  // corrected - target, steps
	ErrDec    int64             `json:"errDec"` // corrected - target, steps
	ErrArcsec float64           `json:"errArcsec"`
	RawRA     int64             `json:"rawRA"` // encoder - target, steps
	RawDec    int64             `json:"rawDec"`
	RawArcsec float64           `json:"rawArcsec"`
}

// ProfileResult summarises a leave-one-out run.
type ProfileResult struct {
	Points      int            `json:"points"`
	Corrected   ErrorSummary   `json:"corrected"`   // arcseconds
	Uncorrected ErrorSummary   `json:"uncorrected"` // arcseconds
	SignedRA    ErrorSummary   `json:"signedRA"`    // steps
	SignedDec   ErrorSummary   `json:"signedDec"`   // steps
	Methods     map[string]int `json:"methods"`
	Rows        []ProfileRow   `json:"rows"`
}

// NewProfileCommand creates the profile command.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	var outCSV string

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Measure correction error over the stored points",
		Long: `Leave-one-out profile of the alignment model.

Each stored point is corrected by a model built from all the other points
and compared with its recorded target. The summary shows the corrected
error next to the uncorrected sync offset.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfile(rootOpts, outCSV, cmd)
		},
	}

	cmd.Flags().StringVar(&outCSV, "out", "", "optional path to write per-point error CSV")
	return cmd
}

func runProfile(opts *RootOptions, outCSV string, cmd *cobra.Command) error {
	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	points := s.model.Points()
	if len(points) < 4 {
		return s.out.Fail(ExitFailure, ErrCodePoints,
			fmt.Sprintf("profile needs at least 4 alignment points, have %d", len(points)), nil)
	}

	res, err := profilePoints(s, points)
	if err != nil {
		return s.out.Fail(ExitCommandError, ErrCodeConfig, "failed to build model", err)
	}

	if outCSV != "" {
		if err := writeProfileCSV(outCSV, res.Rows); err != nil {
			return s.out.Fail(ExitCommandError, ErrCodeInput, "failed to write profile CSV", err)
		}
		s.out.VerboseLog("Wrote %d row(s) to %s", len(res.Rows), outCSV)
	}

	if s.out.Format == "json" {
		return s.out.Success(res)
	}
	printProfile(s.out.Writer, res)
	return nil
}

func profilePoints(s *session, points []nstaralign.AlignmentPoint) (*ProfileResult, error) {
	steps := s.cfg.StepsPerRev
	arcsec := func(ra, dec int64) float64 {
		x := float64(ra) * 1296000 / float64(steps.RA)
		y := float64(dec) * 1296000 / float64(steps.Dec)
		return math.Hypot(x, y)
	}

	var corrected, uncorrected, signedRA, signedDec stats
	res := &ProfileResult{Points: len(points), Methods: make(map[string]int)}

	for i, p := range points {
		m, err := s.newModel()
		if err != nil {
			return nil, err
		}
		for j, q := range points {
			if j != i {
				m.AddPoint(q)
			}
		}

		c := m.SkyPosition(p.Encoder)
		row := ProfileRow{
			ID:     p.ID,
			Method: c.Method,
			ErrRA:  c.Position.RA - p.Target.RA,
			ErrDec: c.Position.Dec - p.Target.Dec,
			RawRA:  p.Encoder.RA - p.Target.RA,
			RawDec: p.Encoder.Dec - p.Target.Dec,
		}
		row.ErrArcsec = arcsec(row.ErrRA, row.ErrDec)
		row.RawArcsec = arcsec(row.RawRA, row.RawDec)

		corrected.add(row.ErrArcsec)
		uncorrected.add(row.RawArcsec)
		signedRA.add(float64(row.ErrRA))
		signedDec.add(float64(row.ErrDec))
		res.Methods[c.Method.String()]++
		res.Rows = append(res.Rows, row)

		s.log.Debug().Int("id", p.ID).Str("method", c.Method.String()).
			Int64("errRA", row.ErrRA).Int64("errDec", row.ErrDec).
			Msg("profiled alignment point")
	}

	res.Corrected = corrected.summary()
	res.Uncorrected = uncorrected.summary()
	res.SignedRA = signedRA.summary()
	res.SignedDec = signedDec.summary()
	return res, nil
}

func writeProfileCSV(path string, rows []ProfileRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"id",
		"method",
		"err_ra",
		"err_dec",
		"err_arcsec",
		"raw_ra",
		"raw_dec",
		"raw_arcsec",
	}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.ID),
			r.Method.String(),
			strconv.FormatInt(r.ErrRA, 10),
			strconv.FormatInt(r.ErrDec, 10),
			fmt.Sprintf("%.3f", r.ErrArcsec),
			strconv.FormatInt(r.RawRA, 10),
			strconv.FormatInt(r.RawDec, 10),
			fmt.Sprintf("%.3f", r.RawArcsec),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func printProfile(w io.Writer, res *ProfileResult) {
	fmt.Fprintln(w, "=== nstar profile summary ===")
	fmt.Fprintf(w, "Points: %d (leave-one-out)\n", res.Points)

	printSummary(w, "Corrected error (arcsec):", res.Corrected)
	printSummary(w, "Uncorrected error (arcsec):", res.Uncorrected)
	printSummary(w, "RA signed error (steps, corrected - target):", res.SignedRA)
	printSummary(w, "Dec signed error (steps, corrected - target):", res.SignedDec)

	names := make([]string, 0, len(res.Methods))
	for name := range res.Methods {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "\nMethods:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-17s %d\n", name+":", res.Methods[name])
	}
}

func printSummary(w io.Writer, title string, s ErrorSummary) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintf(w, "  count: %d\n", s.Count)
	fmt.Fprintf(w, "  min:   %.3f\n", s.Min)
	fmt.Fprintf(w, "  max:   %.3f\n", s.Max)
	fmt.Fprintf(w, "  mean:  %.3f\n", s.Mean)
	fmt.Fprintf(w, "  rms:   %.3f\n", s.RMS)
}
