package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/raffber/mergetool/internal/config"
	"github.com/raffber/mergetool/internal/errs"
	"github.com/raffber/mergetool/internal/firmware"
)

// ManifestImage is one entry of the manifest's "images" array.
type ManifestImage struct {
	FwID          uint8  `json:"fw_id"`
	Version       string `json:"version"`
	CRC           uint32 `json:"crc"`
	HexFileFormat string `json:"hex_file_format"`
	MergedFile    string `json:"merged_file"`
	AppFile       string `json:"app_file"`
	BtlFile       string `json:"btl_file"`
}

// Manifest is the info.json output: everything a downstream tool
// needs to locate and interpret the merged images and script.
type Manifest struct {
	ProductID   uint16          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Images      []ManifestImage `json:"images"`
	Files       []string        `json:"files"`
	ScriptFile  string          `json:"script_file"`
	PackageFile string          `json:"package_file"`
	OutputDir   string          `json:"output_dir"`
}

// WriteOutputs writes one merged hex/s-record file per image, the
// serialized script, and the info.json manifest into outputDir. The
// app and bootloader paths recorded in the manifest are rewritten
// relative to outputDir when both are absolute and kept as configured
// otherwise; merged and script files are recorded by file name.
func WriteOutputs(cfg *config.Config, res *Result, outputDir string) (*Manifest, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errs.WrapIo(outputDir, err)
	}

	var manifestImages []ManifestImage
	var files []string
	for _, img := range res.Images {
		format := img.Config.HexFormat()
		mergedName := fmt.Sprintf("merged_f%d.%s", img.Config.NodeID, format.Extension())
		mergedPath := filepath.Join(outputDir, mergedName)
		if err := img.Merged.Save(mergedPath, format); err != nil {
			return nil, err
		}
		files = append(files, mergedName)

		version := "0.0.0"
		if v, err := img.Config.SemVer(); err == nil && v != nil {
			version = v.String()
		}

		manifestImages = append(manifestImages, ManifestImage{
			FwID:          img.Config.NodeID,
			Version:       version,
			CRC:           img.CRC,
			HexFileFormat: formatName(format),
			MergedFile:    mergedName,
			AppFile:       normalizeRelative(outputDir, img.Config.AppPath),
			BtlFile:       normalizeRelative(outputDir, img.Config.BtlPath),
		})
	}

	scriptName := cfg.ProductName + ".gctbtl"
	scriptPath := filepath.Join(outputDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(res.Script.Serialize()), 0o644); err != nil {
		return nil, errs.WrapIo(scriptPath, err)
	}
	files = append(files, scriptName)

	manifest := &Manifest{
		ProductID:   cfg.ProductID,
		ProductName: cfg.ProductName,
		Images:      manifestImages,
		Files:       files,
		ScriptFile:  scriptName,
		PackageFile: "",
		OutputDir:   outputDir,
	}

	manifestPath := filepath.Join(outputDir, "info.json")
	raw, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(manifestPath, raw, 0o644); err != nil {
		return nil, errs.WrapIo(manifestPath, err)
	}

	return manifest, nil
}

func formatName(f firmware.Format) string {
	if f == firmware.SRecord {
		return "s_record"
	}
	return "intel_hex"
}

// normalizeRelative rewrites path relative to base when both are
// absolute; otherwise path is returned unchanged.
func normalizeRelative(base, path string) string {
	if !filepath.IsAbs(base) || !filepath.IsAbs(path) {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return rel
}
