package nstaralign

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thurmanmarka/nstaralign/internal/coords"
	"github.com/thurmanmarka/nstaralign/internal/transform"
	"github.com/thurmanmarka/nstaralign/internal/triangle"
)

// direction of a mapping request.
type direction int

const (
	toSky   direction = iota // encoder -> target
	toMount                  // target -> encoder
)

func (d direction) String() string {
	if d == toMount {
		return "mount"
	}
	return "sky"
}

// Model holds the alignment points and maps positions between the mount
// and sky frames. It is safe for concurrent use.
type Model struct {
	cfg   Config
	frame coords.Frame
	opts  triangle.Options
	log   zerolog.Logger

	mu         sync.Mutex
	points     []AlignmentPoint
	lastAccess time.Time
}

// New validates cfg and returns an empty model.
func New(cfg Config) (*Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Home == (EncoderPosition{}) {
		cfg.Home = coords.DefaultHome(cfg.StepsPerRev)
	}
	if cfg.MaxCombinationCount == 0 {
		cfg.MaxCombinationCount = triangle.DefaultMaxCombinations
	}
	if cfg.LeastSquaresPoints == 0 {
		cfg.LeastSquaresPoints = DefaultLeastSquaresPoints
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "alignment").Logger()
	}

	m := &Model{
		cfg:   cfg,
		frame: coords.NewFrame(cfg.Site.Lat, cfg.Home, cfg.StepsPerRev, cfg.PolarEnable),
		opts: triangle.Options{
			Filter:          cfg.ActivePoints,
			Policy:          cfg.Selection,
			LocalPier:       cfg.CheckLocalPier,
			MaxCombinations: cfg.MaxCombinationCount,
		},
		log: log,
	}

	m.log.Debug().
		Float64("lat", cfg.Site.Lat).
		Str("hemisphere", m.frame.Hemisphere.String()).
		Int64("homeRA", cfg.Home.RA).
		Int64("homeDec", cfg.Home.Dec).
		Str("transform", cfg.Transform.String()).
		Str("selection", cfg.Selection.String()).
		Str("fallback", cfg.Fallback.String()).
		Msg("alignment model created")

	return m, nil
}

// Config returns the effective configuration, with defaults filled in.
func (m *Model) Config() Config {
	return m.cfg
}

// Hemisphere returns the hemisphere derived from the site latitude.
func (m *Model) Hemisphere() Hemisphere {
	return m.frame.Hemisphere
}

// Axes converts encoder counts to axis hours and degrees.
func (m *Model) Axes(p EncoderPosition) AxisPosition {
	return m.frame.Axes(p)
}

// Encoder converts axis hours and degrees to encoder counts.
func (m *Model) Encoder(a AxisPosition) EncoderPosition {
	return m.frame.Encoder(a)
}

// -----------------------------
// Alignment points
// -----------------------------

// AddAlignmentPoint records a sync and returns the new point's ID. When
// more than three points exist, older points within ProximityLimit degrees
// on both axes are replaced.
func (m *Model) AddAlignmentPoint(encoder EncoderPosition, origRaDec AxisPosition, target EncoderPosition, t time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.points) > 3 && m.cfg.ProximityLimit > 0 {
		m.removeNear(encoder)
	}

	p := AlignmentPoint{
		AlignTime: t,
		Encoder:   encoder,
		OrigRaDec: origRaDec,
		Target:    target,
	}
	return m.insert(p)
}

// AddPoint inserts a previously recorded point, keeping its ID when it is
// non-zero. Delta and the Cartesian projections are recomputed.
func (m *Model) AddPoint(p AlignmentPoint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(p)
}

func (m *Model) insert(p AlignmentPoint) int {
	if p.ID == 0 {
		p.ID = m.nextID()
	}
	p.Delta = p.Target.Sub(p.Encoder)
	p.EncoderCartesian = m.frame.ToCartesian(p.Encoder)
	p.TargetCartesian = m.frame.ToCartesian(p.Target)
	m.points = append(m.points, p)

	m.log.Debug().
		Int("id", p.ID).
		Int64("encRA", p.Encoder.RA).
		Int64("encDec", p.Encoder.Dec).
		Int64("deltaRA", p.Delta.RA).
		Int64("deltaDec", p.Delta.Dec).
		Int("count", len(m.points)).
		Msg("alignment point added")
	return p.ID
}

func (m *Model) nextID() int {
	highest := 0
	for _, p := range m.points {
		if p.ID > highest {
			highest = p.ID
		}
	}
	return highest + 1
}

func (m *Model) removeNear(encoder EncoderPosition) {
	limitRA := m.cfg.ProximityLimit / 360 * float64(m.cfg.StepsPerRev.RA)
	limitDec := m.cfg.ProximityLimit / 360 * float64(m.cfg.StepsPerRev.Dec)

	kept := m.points[:0]
	for _, p := range m.points {
		d := p.Encoder.Sub(encoder)
		if math.Abs(float64(d.RA)) < limitRA && math.Abs(float64(d.Dec)) < limitDec {
			m.log.Info().Int("id", p.ID).Msg("replacing nearby alignment point")
			continue
		}
		kept = append(kept, p)
	}
	m.points = kept
}

// RemoveAlignmentPoint deletes the point with the given ID and reports
// whether it existed.
func (m *Model) RemoveAlignmentPoint(id int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.points {
		if p.ID == id {
			m.points = append(m.points[:i], m.points[i+1:]...)
			return true
		}
	}
	return false
}

// ClearAlignmentPoints removes every point.
func (m *Model) ClearAlignmentPoints() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = nil
}

// Points returns a copy of the alignment points in insertion order.
func (m *Model) Points() []AlignmentPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AlignmentPoint, len(m.points))
	copy(out, m.points)
	return out
}

// Ready returns ErrInsufficientPoints while fewer than three points exist.
func (m *Model) Ready() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.points) < 3 {
		return ErrInsufficientPoints
	}
	return nil
}

// LastAccess returns the time passed to the most recent axis mapping call.
func (m *Model) LastAccess() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAccess
}

// -----------------------------
// Mapping
// -----------------------------

// SkyPosition maps a mount-reported encoder position to the corrected sky
// encoder position.
func (m *Model) SkyPosition(encoder EncoderPosition) Correction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correct(encoder, toSky)
}

// MountPosition maps a theoretical sky encoder position to the encoder
// position the mount must be driven to.
func (m *Model) MountPosition(target EncoderPosition) Correction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.correct(target, toMount)
}

// GetSkyAxes is SkyPosition expressed in axis hours and degrees. With
// fewer than three points the axes are returned unchanged.
func (m *Model) GetSkyAxes(axes AxisPosition, t time.Time) AxisPosition {
	return m.mapAxes(axes, t, toSky)
}

// GetMountAxes is MountPosition expressed in axis hours and degrees. With
// fewer than three points the axes are returned unchanged.
func (m *Model) GetMountAxes(axes AxisPosition, t time.Time) AxisPosition {
	return m.mapAxes(axes, t, toMount)
}

func (m *Model) mapAxes(axes AxisPosition, t time.Time, dir direction) AxisPosition {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAccess = t
	if len(m.points) < 3 {
		return axes
	}
	c := m.correct(m.frame.Encoder(axes), dir)
	return m.frame.Axes(c.Position)
}

// correct runs the selection and fallback chain. Callers hold m.mu.
func (m *Model) correct(pos EncoderPosition, dir direction) Correction {
	if pos.RA >= coords.EncoderLimit || pos.Dec >= coords.EncoderLimit {
		return Correction{Position: pos, Method: MethodPassthrough}
	}
	if len(m.points) < 3 {
		return Correction{Position: pos, Method: MethodIdentity}
	}

	target := m.frame.ToCartesian(pos)
	vertices := make([]triangle.Vertex, len(m.points))
	for i, p := range m.points {
		v := triangle.Vertex{Index: i, Point: p.EncoderCartesian, Raw: p.Encoder}
		if dir == toMount {
			v.Point, v.Raw = p.TargetCartesian, p.Target
		}
		vertices[i] = v
	}
	sel := triangle.Select(target, pos, vertices, m.opts)

	if m.cfg.Transform == TransformLeastSquares {
		if c, ok := m.viaLeastSquares(pos, sel.Candidates, dir); ok {
			return c
		}
	}

	for _, tri := range sel.Enclosing {
		c, err := m.viaTriangle(pos, tri, dir, MethodTriangle)
		if err == nil {
			return c
		}
		m.log.Debug().Err(err).Ints("points", m.ids(tri[:])).Str("direction", dir.String()).
			Msg("skipping degenerate triangle")
	}

	switch m.cfg.Fallback {
	case FallbackNearestPoint:
		if v, ok := sel.Closest(); ok {
			p := m.points[v.Index]
			out := pos.Add(p.Delta)
			if dir == toMount {
				out = pos.Sub(p.Delta)
			}
			return Correction{Position: out, Method: MethodNearestPoint, PointIDs: []int{p.ID}}
		}
	default:
		if tri, ok := sel.NearestTriangle(); ok {
			c, err := m.viaTriangle(pos, tri, dir, MethodNearestTriangle)
			if err == nil {
				return c
			}
			m.log.Debug().Err(err).Ints("points", m.ids(tri[:])).Str("direction", dir.String()).
				Msg("nearest triangle is degenerate")
		}
	}

	return Correction{Position: pos, Method: MethodIdentity}
}

// frames returns the source and destination projections of a point for
// the given direction.
func (m *Model) frames(i int, dir direction) (src, dst Coord) {
	p := m.points[i]
	if dir == toMount {
		return p.TargetCartesian, p.EncoderCartesian
	}
	return p.EncoderCartesian, p.TargetCartesian
}

func (m *Model) viaTriangle(pos EncoderPosition, tri triangle.Triangle, dir direction, method Method) (Correction, error) {
	var src, dst [3]Coord
	for i, v := range tri {
		src[i], dst[i] = m.frames(v.Index, dir)
	}

	var fn func(Coord) Coord
	switch m.cfg.Transform {
	case TransformTaki:
		t, err := transform.AssembleTaki(src[0], src[1], src[2], dst[0], dst[1], dst[2])
		if err != nil {
			return Correction{}, err
		}
		fn = t.Apply
	default:
		t, err := transform.AssembleAffine(src[0], src[1], src[2], dst[0], dst[1], dst[2])
		if err != nil {
			return Correction{}, err
		}
		fn = t.Apply
	}

	return Correction{
		Position: m.frame.Apply(pos, fn),
		Method:   method,
		PointIDs: m.ids(tri[:]),
	}, nil
}

func (m *Model) viaLeastSquares(pos EncoderPosition, cands []triangle.Vertex, dir direction) (Correction, bool) {
	n := m.cfg.LeastSquaresPoints
	if len(cands) < n {
		n = len(cands)
	}
	if n < 3 {
		return Correction{}, false
	}

	src := make([]Coord, n)
	dst := make([]Coord, n)
	for i, v := range cands[:n] {
		src[i], dst[i] = m.frames(v.Index, dir)
	}

	t, err := transform.FitAffine(src, dst)
	if err != nil {
		m.log.Debug().Err(err).Ints("points", m.ids(cands[:n])).Msg("least squares fit failed")
		return Correction{}, false
	}
	return Correction{
		Position: m.frame.Apply(pos, t.Apply),
		Method:   MethodLeastSquares,
		PointIDs: m.ids(cands[:n]),
	}, true
}

func (m *Model) ids(vs []triangle.Vertex) []int {
	out := make([]int, len(vs))
	for i, v := range vs {
		out[i] = m.points[v.Index].ID
	}
	return out
}
