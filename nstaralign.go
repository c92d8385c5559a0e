// Package nstaralign corrects the pointing of an equatorial telescope mount
// using N-star alignment.
//
// Each time the mount is synced on a known star an alignment point is
// recorded: the encoder position the mount reported and the theoretical
// encoder position of the star. To correct any other position the model
// picks three nearby alignment points that enclose it and fits a local
// transform between the two frames.
//
// Currently implemented:
//   - Encoder, axis, spherical-polar and Cartesian conversions
//   - Nearest-enclosing and best-centre triangle selection
//   - Affine, Taki and least-squares transforms
//   - Nearest-triangle and nearest-point fallbacks
//
// The model performs no I/O. Persistence, configuration and the command
// line live under internal/ and cmd/.
package nstaralign

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thurmanmarka/nstaralign/internal/coords"
	"github.com/thurmanmarka/nstaralign/internal/matrix"
	"github.com/thurmanmarka/nstaralign/internal/triangle"
)

type (
	// EncoderPosition is a pair of raw encoder counts.
	EncoderPosition = coords.EncoderPosition

	// AxisPosition holds axis values: RA in hours, Dec in degrees.
	AxisPosition = coords.AxisPosition

	// Coord is a point in the working frame.
	Coord = coords.Coord

	// Hemisphere of the observing site.
	Hemisphere = coords.Hemisphere
)

const (
	North = coords.North
	South = coords.South
)

var (
	// ErrShape is returned for invalid or incompatible matrix dimensions.
	ErrShape = matrix.ErrShape

	// ErrSingularMatrix is returned when a matrix cannot be inverted.
	ErrSingularMatrix = matrix.ErrSingular

	// ErrInsufficientPoints is reported when fewer than three alignment
	// points are available and positions pass through uncorrected.
	ErrInsufficientPoints = errors.New("at least 3 alignment points are required")

	// ErrInvalidConfig is returned by New when the configuration cannot
	// describe a mount.
	ErrInvalidConfig = errors.New("invalid alignment config")
)

// Coordinates represent an observer's location.
type Coordinates struct {
	Lat       float64 `json:"lat" yaml:"lat"`             // degrees, north positive
	Lon       float64 `json:"lon" yaml:"lon"`             // degrees, east positive
	Elevation float64 `json:"elevation" yaml:"elevation"` // meters above sea level
}

// -----------------------------
// Strategy enums
// -----------------------------

// ActivePoints restricts which alignment points may be used for a position.
type ActivePoints = triangle.Filter

const (
	ActiveAll      = triangle.FilterAll
	ActivePierSide = triangle.FilterPierSide
	ActiveQuadrant = triangle.FilterLocalQuadrant
)

// SelectionPolicy decides which enclosing triangle is preferred.
type SelectionPolicy = triangle.Policy

const (
	SelectNearest = triangle.NearestEnclosing
	SelectCentre  = triangle.BestCentre
)

// TransformKind selects the local transform fitted to the chosen points.
type TransformKind int

const (
	TransformAffine TransformKind = iota
	TransformTaki
	TransformLeastSquares
)

func (k TransformKind) String() string {
	switch k {
	case TransformAffine:
		return "affine"
	case TransformTaki:
		return "taki"
	case TransformLeastSquares:
		return "leastsquares"
	default:
		return fmt.Sprintf("TransformKind(%d)", int(k))
	}
}

// FallbackPolicy decides what happens when no triangle encloses a position.
type FallbackPolicy int

const (
	// FallbackNearestTriangle fits the transform to the three nearest points.
	FallbackNearestTriangle FallbackPolicy = iota

	// FallbackNearestPoint offsets the position by the sync delta of the
	// nearest point.
	FallbackNearestPoint
)

func (p FallbackPolicy) String() string {
	switch p {
	case FallbackNearestTriangle:
		return "triangle"
	case FallbackNearestPoint:
		return "point"
	default:
		return fmt.Sprintf("FallbackPolicy(%d)", int(p))
	}
}

// Method records how a correction was produced.
type Method int

const (
	MethodIdentity Method = iota
	MethodPassthrough
	MethodTriangle
	MethodNearestTriangle
	MethodNearestPoint
	MethodLeastSquares
)

var methodNames = map[Method]string{
	MethodIdentity:        "identity",
	MethodPassthrough:     "passthrough",
	MethodTriangle:        "triangle",
	MethodNearestTriangle: "nearest-triangle",
	MethodNearestPoint:    "nearest-point",
	MethodLeastSquares:    "least-squares",
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// ParseActivePoints parses "all", "pierside" or "quadrant".
func ParseActivePoints(s string) (ActivePoints, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return ActiveAll, nil
	case "pierside", "pier":
		return ActivePierSide, nil
	case "quadrant", "localquadrant":
		return ActiveQuadrant, nil
	}
	return ActiveAll, fmt.Errorf("unknown active points filter: %q", s)
}

// ParseSelectionPolicy parses "nearest" or "centre".
func ParseSelectionPolicy(s string) (SelectionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nearest":
		return SelectNearest, nil
	case "", "centre", "center":
		return SelectCentre, nil
	}
	return SelectCentre, fmt.Errorf("unknown selection policy: %q", s)
}

// ParseTransformKind parses "affine", "taki" or "leastsquares".
func ParseTransformKind(s string) (TransformKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "affine":
		return TransformAffine, nil
	case "taki":
		return TransformTaki, nil
	case "leastsquares", "least-squares":
		return TransformLeastSquares, nil
	}
	return TransformAffine, fmt.Errorf("unknown transform: %q", s)
}

// ParseFallbackPolicy parses "triangle" or "point".
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "triangle":
		return FallbackNearestTriangle, nil
	case "point":
		return FallbackNearestPoint, nil
	}
	return FallbackNearestTriangle, fmt.Errorf("unknown fallback policy: %q", s)
}

// -----------------------------
// Configuration
// -----------------------------

const (
	DefaultProximityLimit     = 0.5 // degrees
	DefaultLeastSquaresPoints = 6
)

// Config describes the mount and the correction strategy. The frame it
// defines is fixed for the lifetime of a Model.
type Config struct {
	Site        Coordinates
	StepsPerRev EncoderPosition // encoder counts per revolution, both axes
	Home        EncoderPosition // zero value selects the default home position
	PolarEnable bool            // project through the spherical-polar plot

	ActivePoints   ActivePoints
	Selection      SelectionPolicy
	Transform      TransformKind
	Fallback       FallbackPolicy
	CheckLocalPier bool // rank candidates by raw encoder distance

	MaxCombinationCount int     // candidate cap for triangle enumeration; 0 means 50
	ProximityLimit      float64 // degrees; a new point replaces ones this close. 0 disables
	LeastSquaresPoints  int     // points used by TransformLeastSquares; 0 means 6

	Logger *zerolog.Logger // nil disables logging
}

// DefaultConfig returns the recommended strategy settings. Site and
// StepsPerRev must still be filled in.
func DefaultConfig() Config {
	return Config{
		PolarEnable:         true,
		ActivePoints:        ActiveAll,
		Selection:           SelectCentre,
		Transform:           TransformAffine,
		Fallback:            FallbackNearestTriangle,
		MaxCombinationCount: triangle.DefaultMaxCombinations,
		ProximityLimit:      DefaultProximityLimit,
		LeastSquaresPoints:  DefaultLeastSquaresPoints,
	}
}

func (c Config) validate() error {
	if c.StepsPerRev.RA <= 0 || c.StepsPerRev.Dec <= 0 {
		return fmt.Errorf("steps per revolution must be positive, got %d/%d: %w",
			c.StepsPerRev.RA, c.StepsPerRev.Dec, ErrInvalidConfig)
	}
	if c.Site.Lat < -90 || c.Site.Lat > 90 {
		return fmt.Errorf("latitude %v out of range: %w", c.Site.Lat, ErrInvalidConfig)
	}
	if c.MaxCombinationCount < 0 {
		return fmt.Errorf("max combination count %d is negative: %w", c.MaxCombinationCount, ErrInvalidConfig)
	}
	if c.MaxCombinationCount > 0 && c.MaxCombinationCount < 3 {
		return fmt.Errorf("max combination count %d cannot form a triangle: %w", c.MaxCombinationCount, ErrInvalidConfig)
	}
	if c.ProximityLimit < 0 {
		return fmt.Errorf("proximity limit %v is negative: %w", c.ProximityLimit, ErrInvalidConfig)
	}
	if c.LeastSquaresPoints != 0 && c.LeastSquaresPoints < 3 {
		return fmt.Errorf("least squares needs at least 3 points, got %d: %w", c.LeastSquaresPoints, ErrInvalidConfig)
	}
	switch c.Transform {
	case TransformAffine, TransformTaki, TransformLeastSquares:
	default:
		return fmt.Errorf("unknown TransformKind: %d: %w", c.Transform, ErrInvalidConfig)
	}
	switch c.Fallback {
	case FallbackNearestTriangle, FallbackNearestPoint:
	default:
		return fmt.Errorf("unknown FallbackPolicy: %d: %w", c.Fallback, ErrInvalidConfig)
	}
	return nil
}

// -----------------------------
// Alignment points and results
// -----------------------------

// AlignmentPoint is one sync: the encoder position the mount reported and
// the theoretical encoder position of the star it was synced on.
type AlignmentPoint struct {
	ID        int             `json:"id" yaml:"id"`
	AlignTime time.Time       `json:"alignTime" yaml:"alignTime"`
	Encoder   EncoderPosition `json:"encoder" yaml:"encoder"`
	OrigRaDec AxisPosition    `json:"origRaDec" yaml:"origRaDec"` // RA hours, Dec degrees of the synced star
	Target    EncoderPosition `json:"target" yaml:"target"`
	Delta     EncoderPosition `json:"delta" yaml:"delta"` // Target - Encoder

	// working-frame projections, derived from the model's frame
	EncoderCartesian Coord `json:"-" yaml:"-"`
	TargetCartesian  Coord `json:"-" yaml:"-"`
}

// Correction is the result of mapping one position.
type Correction struct {
	Position EncoderPosition `json:"position"`
	Method   Method          `json:"method"`
	PointIDs []int           `json:"pointIds,omitempty"`
}

// InTriangle reports whether the position was enclosed by a triangle of
// alignment points.
func (c Correction) InTriangle() bool {
	return c.Method == MethodTriangle
}
