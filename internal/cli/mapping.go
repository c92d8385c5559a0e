package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thurmanmarka/nstaralign"
)

// MapResult is the outcome of mapping one encoder position.
type MapResult struct {
	Direction string                     `json:"direction"`
	Input     nstaralign.EncoderPosition `json:"input"`
	Position  nstaralign.EncoderPosition `json:"position"`
	Axes      nstaralign.AxisPosition    `json:"axes"`
	Method    nstaralign.Method          `json:"method"`
	PointIDs  []int                      `json:"pointIds,omitempty"`
}

// NewSkyCommand creates the sky command.
func NewSkyCommand(rootOpts *RootOptions) *cobra.Command {
	return newMapCommand(rootOpts, "sky",
		"Correct a mount-reported encoder position",
		"Map the encoder position the mount reports to where it is actually pointing.")
}

// NewMountCommand creates the mount command.
func NewMountCommand(rootOpts *RootOptions) *cobra.Command {
	return newMapCommand(rootOpts, "mount",
		"Find the encoder position for a sky position",
		"Map a theoretical encoder position to the one the mount must be driven to.")
}

func newMapCommand(rootOpts *RootOptions, direction, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:           direction + " <ra,dec>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(rootOpts, direction, args[0], cmd)
		},
	}
}

func runMap(opts *RootOptions, direction, arg string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	pos, err := parseEncoder(arg)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid encoder position", err)
	}

	s, err := openSession(opts, cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.model.Ready(); err != nil {
		s.out.VerboseLog("%v; position passes through uncorrected", err)
	}

	var c nstaralign.Correction
	if direction == "mount" {
		c = s.model.MountPosition(pos)
	} else {
		c = s.model.SkyPosition(pos)
	}

	res := MapResult{
		Direction: direction,
		Input:     pos,
		Position:  c.Position,
		Axes:      s.model.Axes(c.Position),
		Method:    c.Method,
		PointIDs:  c.PointIDs,
	}
	if s.out.Format == "json" {
		return s.out.Success(res)
	}

	fmt.Fprintf(s.out.Writer, "%s: %d/%d (%s %s)\n", direction,
		res.Position.RA, res.Position.Dec, fmtHours(res.Axes.RA), fmtDegrees(res.Axes.Dec))
	fmt.Fprintf(s.out.Writer, "offset: %+d/%+d\n", res.Position.RA-pos.RA, res.Position.Dec-pos.Dec)
	if len(res.PointIDs) > 0 {
		fmt.Fprintf(s.out.Writer, "method: %s %v\n", res.Method, res.PointIDs)
	} else {
		fmt.Fprintf(s.out.Writer, "method: %s\n", res.Method)
	}
	return nil
}
