package cli

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profileOutput struct {
	Points      int            `json:"points"`
	Corrected   ErrorSummary   `json:"corrected"`
	Uncorrected ErrorSummary   `json:"uncorrected"`
	Methods     map[string]int `json:"methods"`
	Rows        []struct {
		ID     int    `json:"id"`
		Method string `json:"method"`
		ErrRA  int64  `json:"errRA"`
		ErrDec int64  `json:"errDec"`
		RawRA  int64  `json:"rawRA"`
		RawDec int64  `json:"rawDec"`
	} `json:"rows"`
}

func TestProfile(t *testing.T) {
	dir, db := workspace(t)
	_, err := runCLI(t, dir, db, "points", "import", sessionFile)
	require.NoError(t, err)

	csvPath := filepath.Join(dir, "profile.csv")
	out, err := runCLI(t, dir, db, "--format", "json", "profile", "--out", csvPath)
	require.NoError(t, err)

	var res profileOutput
	decodeData(t, out, &res)
	assert.Equal(t, 23, res.Points)
	require.Len(t, res.Rows, 23)
	assert.Equal(t, 16, res.Methods["triangle"])
	assert.Equal(t, 7, res.Methods["nearest-triangle"])
	assert.Less(t, res.Corrected.RMS, res.Uncorrected.RMS)
	assert.Equal(t, 23, res.Corrected.Count)

	first := res.Rows[0]
	assert.Equal(t, 1, first.ID)
	assert.InDelta(t, -249, first.ErrRA, 2)
	assert.InDelta(t, -12, first.ErrDec, 2)
	assert.Equal(t, int64(-4), first.RawRA)
	assert.Equal(t, int64(-15), first.RawDec)

	raw := math.Hypot(4*1296000/2457601.0, 15*1296000/2457601.0)
	assert.InDelta(t, raw, res.Uncorrected.Min, 1e-9)

	f, err := os.Open(csvPath)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 24)
	assert.Equal(t, []string{"id", "method", "err_ra", "err_dec", "err_arcsec", "raw_ra", "raw_dec", "raw_arcsec"}, records[0])
	assert.Equal(t, "1", records[1][0])

	out, err = runCLI(t, dir, db, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "=== nstar profile summary ===")
	assert.Contains(t, out, "Points: 23")
	assert.Contains(t, out, "nearest-triangle:")
}

func TestProfile_TooFewPoints(t *testing.T) {
	dir, db := workspace(t)
	_, err := runCLI(t, dir, db, "points", "add", "--encoder", "1,2", "--target", "3,4")
	require.NoError(t, err)

	out, err := runCLI(t, dir, db, "profile")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodePoints)
}
