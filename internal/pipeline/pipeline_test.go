package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raffber/mergetool/internal/addr"
	"github.com/raffber/mergetool/internal/config"
	"github.com/raffber/mergetool/internal/crcutil"
	"github.com/raffber/mergetool/internal/firmware"
	"github.com/raffber/mergetool/internal/header"
	"github.com/raffber/mergetool/internal/hexfile/intelhex"
	"github.com/raffber/mergetool/internal/script"
)

func testProfile() addr.Profile {
	return addr.Profile{PageSize: 64, Endianness: addr.Little, WordAddressing: false}
}

// patternBytes fills n bytes with 0x01..0x4F followed by 0xFF fill,
// matching the literal scenario 5 fixture.
func patternBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		if i < 0x4F {
			out[i] = byte(i + 1)
		} else {
			out[i] = 0xFF
		}
	}
	return out
}

func writeHexFixture(t *testing.T, path string, r addr.Range, data []byte) {
	t.Helper()
	text := intelhex.Serialize(false, r, data)
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func newConfig(t *testing.T, dir string, fwID uint8, version string) *config.Config {
	t.Helper()
	app := patternBytes(256)
	fw, err := firmware.New(addr.Range{Begin: 0xAB00, End: 0xAC00}, testProfile(), app)
	require.NoError(t, err)

	hv, err := header.New(fw, 4)
	require.NoError(t, err)
	hv.SetProductID(0x0605)
	hv.SetFirmwareID(fwID)
	hv.SetMajorVersion(3)
	hv.SetMinorVersion(5)
	hv.SetPatchVersion(4)

	appPath := filepath.Join(dir, "app.hex")
	require.NoError(t, fw.Save(appPath, firmware.IntelHex))

	btlPath := filepath.Join(dir, "btl.hex")
	writeHexFixture(t, btlPath, addr.Range{Begin: 0xAA00, End: 0xAB00}, patternBytes(256))

	v := version
	return &config.Config{
		ProductID:           0x0605,
		ProductName:         "widget",
		BtlVersion:          1,
		TimeStateTransition: 10,
		Images: []config.FirmwareConfig{
			{
				NodeID:          fwID,
				Version:         &v,
				BtlPath:         btlPath,
				AppPath:         appPath,
				AppAddress:      config.AddressRange{Begin: 0xAB00, End: 0xAC00},
				BtlAddress:      config.AddressRange{Begin: 0xAA00, End: 0xAB00},
				Device:          config.DeviceProfile{PageSize: 64, Endianness: "little"},
				HeaderOffset:    4,
				WriteDataSize:   64,
				IncludeInScript: true,
			},
		},
	}
}

// runPipeline fixes the build timestamp and time model so every test
// in this file calls Run identically.
func runPipeline(cfg *config.Config) (*Result, error) {
	return Run(cfg, 0x123456789ABC&0xFFFFFFFFFFFF, script.DefaultTimeModel(), Options{})
}

func TestPipelineImageLengthAndCRC(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")

	res, err := runPipeline(cfg)
	require.NoError(t, err)
	require.Len(t, res.Images, 1)

	img := res.Images[0]
	require.EqualValues(t, 128, img.ImgLen)

	expectedCRC := crcutil.CRC32(img.App.Bytes[4:img.ImgLen])
	require.Equal(t, expectedCRC, img.CRC)
	require.EqualValues(t, expectedCRC, img.Merged.ReadU32(256))
}

func TestPipelineHeaderReconciliationConflict(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")
	// The fixture's header bakes in fw_id=1; asking the config to
	// claim fw_id=2 must be reported as a conflict, not silently
	// resolved either way.
	cfg.Images[0].NodeID = 2

	_, err := runPipeline(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "fw_id mismatch")
}

func TestPipelineProductIDReconciliationConflict(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")
	// The fixture's header bakes in product_id=0x0605; a config that
	// disagrees must be reported as a conflict, not silently adopted.
	cfg.ProductID = 0x0606

	_, err := runPipeline(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "product_id mismatch")
}

func TestPipelineHeaderReconciliationAdoptsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")
	// Config version is absent; header carries 3.5.4 and must win.
	cfg.Images[0].Version = nil

	res, err := runPipeline(cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Images[0].Config.Version)
	require.Equal(t, "3.5.4", *res.Images[0].Config.Version)
}

func TestPipelineResolvesVersionFromChangelog(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")
	// Header carries 3.5.4; dropping the config version and pointing
	// at a matching changelog exercises the changelog fallback instead
	// of the header-adopt path.
	cfg.Images[0].Version = nil

	changelogPath := filepath.Join(dir, "CHANGELOG.md")
	require.NoError(t, os.WriteFile(changelogPath, []byte("## [3.5.4] - 2026-01-01\n\nnotes\n"), 0o644))
	cfg.Images[0].ChangelogPath = changelogPath

	res, err := runPipeline(cfg)
	require.NoError(t, err)
	require.NotNil(t, res.Images[0].Config.Version)
	require.Equal(t, "3.5.4", *res.Images[0].Config.Version)
}

func TestPipelineChangelogConflictsWithHeader(t *testing.T) {
	dir := t.TempDir()
	cfg := newConfig(t, dir, 1, "3.5.4")
	cfg.Images[0].Version = nil

	changelogPath := filepath.Join(dir, "CHANGELOG.md")
	require.NoError(t, os.WriteFile(changelogPath, []byte("## [9.9.9] - 2026-01-01\n\nnotes\n"), 0o644))
	cfg.Images[0].ChangelogPath = changelogPath

	_, err := runPipeline(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "version mismatch")
}

func TestPipelineDeterministicScript(t *testing.T) {
	dir := t.TempDir()
	res1, err := runPipeline(newConfig(t, dir, 1, "3.5.4"))
	require.NoError(t, err)

	dir2 := t.TempDir()
	res2, err := runPipeline(newConfig(t, dir2, 1, "3.5.4"))
	require.NoError(t, err)

	require.Equal(t, res1.Script.Serialize(), res2.Script.Serialize())

	s, err := script.Parse(res1.Script.Serialize())
	require.NoError(t, err)
	require.NoError(t, s.Verify())
}
