package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thurmanmarka/nstaralign"
	"github.com/thurmanmarka/nstaralign/internal/coords"
	"github.com/thurmanmarka/nstaralign/internal/timeutil"
)

// NewPointsCommand creates the points command and its subcommands.
func NewPointsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "points",
		Short: "Manage stored alignment points",
	}

	cmd.AddCommand(newPointsAddCommand(rootOpts))
	cmd.AddCommand(newPointsListCommand(rootOpts))
	cmd.AddCommand(newPointsRemoveCommand(rootOpts))
	cmd.AddCommand(newPointsClearCommand(rootOpts))
	cmd.AddCommand(newPointsImportCommand(rootOpts))
	cmd.AddCommand(newPointsExportCommand(rootOpts))

	return cmd
}

// -----------------------------
// add
// -----------------------------

type addOptions struct {
	encoder string
	target  string
	radec   string
	altaz   string
	at      string
}

// AddResult is the JSON payload of points add.
type AddResult struct {
	ID    int                     `json:"id"`
	Count int                     `json:"count"`
	Orig  nstaralign.AxisPosition `json:"origRaDec"`
}

func newPointsAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &addOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a sync",
		Long: `Record a sync: the encoder position the mount reported and the
theoretical encoder position of the star it was synced on.

The star may be given as RA/Dec (--radec hours,degrees) or as the
alt/az it was observed at (--altaz degrees,degrees).`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPointsAdd(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.encoder, "encoder", "", "mount-reported encoder position RA,DEC (required)")
	cmd.Flags().StringVar(&opts.target, "target", "", "theoretical encoder position RA,DEC (required)")
	cmd.Flags().StringVar(&opts.radec, "radec", "", "synced star RA hours,Dec degrees")
	cmd.Flags().StringVar(&opts.altaz, "altaz", "", "synced star alt,az degrees at the sync time")
	cmd.Flags().StringVar(&opts.at, "time", "", "sync time, RFC3339 (default now)")
	_ = cmd.MarkFlagRequired("encoder")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func runPointsAdd(rootOpts *RootOptions, opts *addOptions, cmd *cobra.Command) error {
	out := newFormatter(rootOpts, cmd)

	encoder, err := parseEncoder(opts.encoder)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid --encoder", err)
	}
	target, err := parseEncoder(opts.target)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid --target", err)
	}
	if opts.radec != "" && opts.altaz != "" {
		return out.Fail(ExitCommandError, ErrCodeInput, "--radec and --altaz are mutually exclusive", nil)
	}

	at := time.Now().UTC()
	if opts.at != "" {
		at, err = time.Parse(time.RFC3339, opts.at)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid --time", err)
		}
	}

	s, err := openSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	var orig nstaralign.AxisPosition
	switch {
	case opts.radec != "":
		ra, dec, err := parseFloatPair(opts.radec)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid --radec", err)
		}
		orig = nstaralign.AxisPosition{RA: timeutil.Normalize24(ra), Dec: dec}
	case opts.altaz != "":
		alt, az, err := parseFloatPair(opts.altaz)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeInput, "invalid --altaz", err)
		}
		lst := timeutil.LocalSiderealTime(at, s.cfg.Site.Lon)
		ra, dec := coords.AltAzToRaDec(alt, az, s.cfg.Site.Lat, lst)
		orig = nstaralign.AxisPosition{RA: ra, Dec: dec}
		out.VerboseLog("alt/az %.4f/%.4f at LST %.4fh is RA %.4fh Dec %.4f", alt, az, lst, ra, dec)
	}

	id := s.model.AddAlignmentPoint(encoder, orig, target, at)
	if err := s.save(); err != nil {
		return err
	}

	count := len(s.model.Points())
	if out.Format == "json" {
		return out.Success(AddResult{ID: id, Count: count, Orig: orig})
	}
	fmt.Fprintf(out.Writer, "Added alignment point %d (%d stored)\n", id, count)
	return nil
}

// -----------------------------
// list
// -----------------------------

// PointView is a stored point with its catalogue position and where it
// stood in the sky at the sync time.
type PointView struct {
	ID        int                        `json:"id"`
	AlignTime time.Time                  `json:"alignTime"`
	Encoder   nstaralign.EncoderPosition `json:"encoder"`
	Target    nstaralign.EncoderPosition `json:"target"`
	Delta     nstaralign.EncoderPosition `json:"delta"`
	RA        float64                    `json:"ra"`  // hours
	Dec       float64                    `json:"dec"` // degrees
	Alt       float64                    `json:"alt"` // degrees
	Az        float64                    `json:"az"`  // degrees
}

func newPointView(p nstaralign.AlignmentPoint, site nstaralign.Coordinates) PointView {
	lst := timeutil.LocalSiderealTime(p.AlignTime, site.Lon)
	alt, az := coords.RaDecToAltAz(p.OrigRaDec.RA, p.OrigRaDec.Dec, lst, site.Lat)
	return PointView{
		ID:        p.ID,
		AlignTime: p.AlignTime,
		Encoder:   p.Encoder,
		Target:    p.Target,
		Delta:     p.Delta,
		RA:        p.OrigRaDec.RA,
		Dec:       p.OrigRaDec.Dec,
		Alt:       alt,
		Az:        az,
	}
}

func newPointsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored alignment points",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			points := s.model.Points()
			views := make([]PointView, len(points))
			for i, p := range points {
				views[i] = newPointView(p, s.cfg.Site)
			}

			if s.out.Format == "json" {
				return s.out.Success(views)
			}
			if len(views) == 0 {
				fmt.Fprintln(s.out.Writer, "No alignment points stored")
				return nil
			}

			tw := tabwriter.NewWriter(s.out.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tENCODER\tTARGET\tDELTA\tRA\tDEC\tALT\tAZ")
			for _, v := range views {
				fmt.Fprintf(tw, "%d\t%s\t%d/%d\t%d/%d\t%+d/%+d\t%s\t%s\t%s\t%s\n",
					v.ID, v.AlignTime.UTC().Format(time.RFC3339),
					v.Encoder.RA, v.Encoder.Dec,
					v.Target.RA, v.Target.Dec,
					v.Delta.RA, v.Delta.Dec,
					fmtHours(v.RA), fmtDegrees(v.Dec),
					fmtDegrees(v.Alt), fmtDegrees(v.Az))
			}
			return tw.Flush()
		},
	}
}

func fmtHours(h float64) string {
	return fmt.Sprintf("%.1s", sexa.FmtRA(unit.RAFromHour(h)))
}

func fmtDegrees(d float64) string {
	return fmt.Sprintf("%.0s", sexa.FmtAngle(unit.AngleFromDeg(d)))
}

// -----------------------------
// remove / clear
// -----------------------------

func newPointsRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <id>",
		Short:         "Remove an alignment point",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeInput, fmt.Sprintf("invalid point id %q", args[0]), err)
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if !s.model.RemoveAlignmentPoint(id) {
				return s.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("alignment point %d not found", id), nil)
			}
			if err := s.save(); err != nil {
				return err
			}

			if s.out.Format == "json" {
				return s.out.Success(map[string]int{"removed": id, "count": len(s.model.Points())})
			}
			fmt.Fprintf(s.out.Writer, "Removed alignment point %d\n", id)
			return nil
		},
	}
}

func newPointsClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove every alignment point",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			n := len(s.model.Points())
			s.model.ClearAlignmentPoints()
			if err := s.save(); err != nil {
				return err
			}

			if s.out.Format == "json" {
				return s.out.Success(map[string]int{"removed": n})
			}
			fmt.Fprintf(s.out.Writer, "Removed %d alignment point(s)\n", n)
			return nil
		},
	}
}

// -----------------------------
// import / export
// -----------------------------

// PointFile is the import/export document.
type PointFile struct {
	Site   *nstaralign.Coordinates     `json:"site,omitempty" yaml:"site,omitempty"`
	Points []nstaralign.AlignmentPoint `json:"points" yaml:"points"`
}

func fileFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	}
	return "", fmt.Errorf("unsupported file extension %q (use .yaml, .yml or .json)", filepath.Ext(path))
}

// ReadPointFile parses a YAML or JSON point file, chosen by extension.
// Unknown fields are rejected.
func ReadPointFile(path string) (*PointFile, error) {
	format, err := fileFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pf PointFile
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&pf); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&pf); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	}
	return &pf, nil
}

// WritePointFile writes pf as YAML or JSON, chosen by extension.
func WritePointFile(path string, pf *PointFile) error {
	format, err := fileFormat(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(pf); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
	default:
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(pf); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func newPointsImportCommand(rootOpts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import alignment points from YAML or JSON",
		Long: `Import alignment points from a .yaml/.yml or .json file.

Points keep their IDs unless the ID is already taken, in which case a new
one is assigned. --replace clears the stored points first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			pf, err := ReadPointFile(args[0])
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeInput, "failed to read point file", err)
			}

			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			if pf.Site != nil && (pf.Site.Lat != s.cfg.Site.Lat || pf.Site.Lon != s.cfg.Site.Lon) {
				s.log.Warn().
					Float64("fileLat", pf.Site.Lat).Float64("fileLon", pf.Site.Lon).
					Float64("siteLat", s.cfg.Site.Lat).Float64("siteLon", s.cfg.Site.Lon).
					Msg("importing points recorded at a different site")
			}

			if replace {
				s.model.ClearAlignmentPoints()
			}
			taken := make(map[int]bool)
			for _, p := range s.model.Points() {
				taken[p.ID] = true
			}
			for _, p := range pf.Points {
				if taken[p.ID] {
					p.ID = 0
				}
				taken[s.model.AddPoint(p)] = true
			}
			if err := s.save(); err != nil {
				return err
			}

			count := len(s.model.Points())
			if s.out.Format == "json" {
				return s.out.Success(map[string]int{"imported": len(pf.Points), "count": count})
			}
			fmt.Fprintf(s.out.Writer, "Imported %d alignment point(s) (%d stored)\n", len(pf.Points), count)
			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "clear stored points before importing")
	return cmd
}

func newPointsExportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "export <file>",
		Short:         "Export alignment points to YAML or JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.close()

			site := s.cfg.Site
			pf := &PointFile{Site: &site, Points: s.model.Points()}
			if err := WritePointFile(args[0], pf); err != nil {
				return s.out.Fail(ExitCommandError, ErrCodeInput, "failed to write point file", err)
			}

			if s.out.Format == "json" {
				return s.out.Success(map[string]interface{}{"exported": len(pf.Points), "file": args[0]})
			}
			fmt.Fprintf(s.out.Writer, "Exported %d alignment point(s) to %s\n", len(pf.Points), args[0])
			return nil
		},
	}
}

// -----------------------------
// Argument parsing
// -----------------------------

func splitPair(s string) (string, string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected two comma-separated values, got %q", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

func parseEncoder(s string) (nstaralign.EncoderPosition, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return nstaralign.EncoderPosition{}, err
	}
	ra, err := strconv.ParseInt(a, 0, 64)
	if err != nil {
		return nstaralign.EncoderPosition{}, fmt.Errorf("RA encoder: %w", err)
	}
	dec, err := strconv.ParseInt(b, 0, 64)
	if err != nil {
		return nstaralign.EncoderPosition{}, fmt.Errorf("dec encoder: %w", err)
	}
	return nstaralign.EncoderPosition{RA: ra, Dec: dec}, nil
}

func parseFloatPair(s string) (float64, float64, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return 0, 0, err
	}
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
