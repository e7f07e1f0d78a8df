// Package pipeline orchestrates the load/merge pass: for every
// configured firmware image it loads the application and bootloader
// hex files, reconciles the header against the configuration, stamps
// length and CRC, concatenates bootloader and application, and
// compiles the bootload script across every image with one protocol.
// Grounded on the generate_script driver and the per-image processing
// loop in the retrieved protocol/process reference; adapted to Go's
// explicit-error-return style throughout.
package pipeline

import (
	"fmt"
	"io"

	"github.com/Masterminds/semver/v3"

	"github.com/raffber/mergetool/internal/command"
	"github.com/raffber/mergetool/internal/config"
	"github.com/raffber/mergetool/internal/crcutil"
	"github.com/raffber/mergetool/internal/errs"
	"github.com/raffber/mergetool/internal/firmware"
	"github.com/raffber/mergetool/internal/header"
	"github.com/raffber/mergetool/internal/protocol"
	"github.com/raffber/mergetool/internal/script"
)

// Options controls ambient behavior of a Run that isn't part of its
// typed result. Log receives two lines per image (when loading starts
// and once length and CRC are stamped) and one line when the script
// is compiled; it defaults to io.Discard so library usage stays silent
// unless a caller opts in, mirroring the teacher's unset-logger
// default on its device connection.
type Options struct {
	Log io.Writer
}

func (o Options) logWriter() io.Writer {
	if o.Log == nil {
		return io.Discard
	}
	return o.Log
}

// LoadedImage is one configured firmware record after loading,
// reconciliation and CRC stamping.
type LoadedImage struct {
	Config  config.FirmwareConfig
	App     *firmware.Firmware
	Btl     *firmware.Firmware
	Merged  *firmware.Firmware
	CRC     uint32
	ImgLen  uint32
}

// Result is everything the run produces: the loaded/merged images and
// the compiled script (progress-interleaved, not yet serialized).
type Result struct {
	Images []LoadedImage
	Script *script.Script
}

// Run executes the full pipeline: load & merge every image (§4.5),
// then compile the bootload script (§4.7) across all of them sharing
// one protocol implementation. buildTimestamp is the single
// build_time instant stamped into every image header; it reaches the
// script through the transmitted image data, not through the Header
// command.
func Run(cfg *config.Config, buildTimestamp uint64, timeModel script.TimeModel, opts Options) (*Result, error) {
	logw := opts.logWriter()
	cfg.NormalizeAddresses()

	var images []LoadedImage
	for _, fc := range cfg.Images {
		fmt.Fprintf(logw, "loading image f%d (app=%s, btl=%s)\n", fc.NodeID, fc.AppPath, fc.BtlPath)
		img, err := loadAndStampImage(cfg, fc, buildTimestamp)
		if err != nil {
			return nil, fmt.Errorf("image f%d: %w", fc.NodeID, err)
		}
		fmt.Fprintf(logw, "image f%d: length=%d crc=0x%08x\n", fc.NodeID, img.ImgLen, img.CRC)
		images = append(images, img)
	}

	proto := selectProtocol(cfg)
	cmds, err := compileScript(cfg, images, proto)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(logw, "compiled script: %d commands across %d image(s)\n", len(cmds), len(images))

	return &Result{Images: images, Script: script.New(cmds, timeModel)}, nil
}

func selectProtocol(cfg *config.Config) protocol.Protocol {
	const ddpCode = 0x11
	if cfg.Blocking {
		return protocol.NewBlocking(ddpCode)
	}
	return protocol.NewNonBlocking(ddpCode)
}

func loadAndStampImage(cfg *config.Config, fc config.FirmwareConfig, buildTimestamp uint64) (LoadedImage, error) {
	app, err := firmware.Load(fc.AppPath, fc.HexFormat(), fc.Profile(), fc.AppRange())
	if err != nil {
		return LoadedImage{}, err
	}

	hv, err := header.New(app, int(fc.HeaderOffset))
	if err != nil {
		return LoadedImage{}, err
	}

	if err := reconcileHeader(hv, cfg, &fc); err != nil {
		return LoadedImage{}, err
	}

	imgLen := uint32(app.ImageLength())
	hv.SetImageLength(imgLen)
	hv.SetBuildTimestamp(buildTimestamp)

	crc := crcutil.CRC32(app.Bytes[4:imgLen])
	app.WriteU32(0, crc)

	btl, err := firmware.Load(fc.BtlPath, fc.HexFormat(), fc.Profile(), fc.BtlRange())
	if err != nil {
		return LoadedImage{}, err
	}

	merged, err := firmware.Concatenate(btl, app)
	if err != nil {
		return LoadedImage{}, err
	}

	return LoadedImage{Config: fc, App: app, Btl: btl, Merged: merged, CRC: crc, ImgLen: imgLen}, nil
}

// reconcileHeader applies the §4.5 policy to every field it names
// (product id, per-image firmware id, semantic version): both
// non-default and different fails; config default adopts the header;
// header default is written from config. Image length is reconciled
// implicitly by being stamped unconditionally in step 4, so it is not
// repeated here. product_id is reconciled against the run-wide
// cfg.ProductID, and an adopted header value is written back into cfg
// so later images in the same run are checked against it too.
func reconcileHeader(hv *header.View, cfg *config.Config, fc *config.FirmwareConfig) error {
	if err := reconcileU16("product_id", 0, cfg.ProductID, hv.ProductID, hv.SetProductID, func(v uint16) { cfg.ProductID = v }); err != nil {
		return err
	}
	if err := reconcileU8("fw_id", 0, fc.NodeID, hv.FirmwareID, hv.SetFirmwareID, func(v uint8) { fc.NodeID = v }); err != nil {
		return err
	}
	if err := reconcileVersion(hv, fc); err != nil {
		return err
	}
	return nil
}

// reconcileVersion applies the same default-adopt-or-fail policy to
// the header's major/minor/patch triplet against the config's
// optional semantic version. Absent config version and an all-zero
// header triplet both count as "default" per §4.5. When the config
// omits a version outright, resolveConfigVersion falls back to the
// image's changelog (§12) before falling back to the header.
func reconcileVersion(hv *header.View, fc *config.FirmwareConfig) error {
	v, err := resolveConfigVersion(fc)
	if err != nil {
		return err
	}
	headerMajor, headerMinor, headerPatch := hv.MajorVersion(), hv.MinorVersion(), hv.PatchVersion()
	headerIsDefault := headerMajor == 0 && headerMinor == 0 && headerPatch == 0
	configIsDefault := v == nil

	switch {
	case !configIsDefault && !headerIsDefault:
		if uint16(v.Major()) != headerMajor || uint16(v.Minor()) != headerMinor || uint32(v.Patch()) != headerPatch {
			headerVersion := fmt.Sprintf("%d.%d.%d", headerMajor, headerMinor, headerPatch)
			return errs.NewInvalidConfig("version", v.String(), headerVersion)
		}
	case configIsDefault && !headerIsDefault:
		adopted := fmt.Sprintf("%d.%d.%d", headerMajor, headerMinor, headerPatch)
		fc.Version = &adopted
	case !configIsDefault && headerIsDefault:
		hv.SetMajorVersion(uint16(v.Major()))
		hv.SetMinorVersion(uint16(v.Minor()))
		hv.SetPatchVersion(uint32(v.Patch()))
	}
	return nil
}

// resolveConfigVersion returns fc's semantic version, falling back to
// its changelog when the version is omitted and a changelog path is
// configured. A version resolved from the changelog is written back
// into fc.Version so the script header and validation payload (which
// both read fc.SemVer() independently) see the same resolved value.
func resolveConfigVersion(fc *config.FirmwareConfig) (*semver.Version, error) {
	v, err := fc.SemVer()
	if err != nil {
		return nil, err
	}
	if v != nil || fc.ChangelogPath == "" {
		return v, nil
	}
	v, err = config.VersionFromChangelogFile(fc.ChangelogPath)
	if err != nil {
		return nil, err
	}
	resolved := v.String()
	fc.Version = &resolved
	return v, nil
}

func reconcileU16(field string, configDefault, configValue uint16, get func() uint16, set func(uint16), adoptConfig func(uint16)) error {
	headerValue := get()
	configIsDefault := configValue == configDefault
	headerIsDefault := headerValue == configDefault
	switch {
	case !configIsDefault && !headerIsDefault && configValue != headerValue:
		return errs.NewInvalidConfig(field, configValue, headerValue)
	case configIsDefault && !headerIsDefault:
		adoptConfig(headerValue)
	case !configIsDefault && headerIsDefault:
		set(configValue)
	}
	return nil
}

func reconcileU8(field string, configDefault, configValue uint8, get func() uint8, set func(uint8), adoptConfig func(uint8)) error {
	headerValue := get()
	configIsDefault := configValue == configDefault
	headerIsDefault := headerValue == configDefault
	switch {
	case !configIsDefault && !headerIsDefault && configValue != headerValue:
		return errs.NewInvalidConfig(field, configValue, headerValue)
	case configIsDefault && !headerIsDefault:
		adoptConfig(headerValue)
	case !configIsDefault && headerIsDefault:
		set(configValue)
	}
	return nil
}

// compileScript implements §4.7's script compiler: one Header
// command, then per image enter/validate/erase/stream/finish/leave,
// then a final success Log.
func compileScript(cfg *config.Config, images []LoadedImage, proto protocol.Protocol) ([]command.Command, error) {
	var out []command.Command
	out = append(out, makeHeader(cfg, images))

	for _, img := range images {
		fc := img.Config
		if !fc.IncludeInScript {
			out = append(out, command.NewLog(fmt.Sprintf("Skip bootload of F%d!", fc.NodeID)))
			continue
		}

		out = append(out, command.NewLog(fmt.Sprintf("Entering bootloader on F%d...", fc.NodeID)))
		out = append(out, proto.Enter(fc.NodeID, cfg.TimeStateTransition)...)
		out = append(out, command.NewSetErrorMessage("Could not enter bootloader!"))
		out = append(out, command.NewLog("done"))

		validationData, err := validationPayload(cfg, fc)
		if err != nil {
			return nil, err
		}
		out = append(out, command.NewLog("Validating firmware..."))
		out = append(out, proto.Validate(fc.NodeID, validationData, cfg.TimeStateTransition)...)
		out = append(out, command.NewSetErrorMessage("failed"))
		out = append(out, command.NewLog("done"))

		out = append(out, command.NewLog("Erasing..."))
		out = append(out, proto.StartTransmit(fc.NodeID, fc.Timings.EraseTime)...)
		out = append(out, command.NewLog("done"))

		out = append(out, command.NewSetTimeOut(fc.Timings.DataSend))
		out = append(out, command.NewLog("Programming..."))
		data := img.App.Bytes
		if fc.WriteDataSize <= 0 || len(data)%fc.WriteDataSize != 0 {
			return nil, &errs.InvalidConfig{
				Message: fmt.Sprintf("write_data_size %d does not divide the application length %d", fc.WriteDataSize, len(data)),
			}
		}
		for k := 0; k < len(data); k += fc.WriteDataSize {
			cmd, ok := proto.SendData(fc.NodeID, uint32(k), data[k:k+fc.WriteDataSize])
			if ok {
				out = append(out, cmd)
			}
		}
		out = append(out, command.NewLog("done"))

		out = append(out, command.NewLog("Checking CRC..."))
		out = append(out, proto.Finish(fc.NodeID, fc.Timings.DataSendDone, fc.Timings.CRCCheck)...)
		out = append(out, command.NewSetErrorMessage("failed"))
		out = append(out, command.NewLog("done"))

		out = append(out, command.NewLog("Starting application..."))
		out = append(out, proto.Leave(fc.NodeID, fc.Timings.LeaveBtl)...)
		out = append(out, command.NewSetErrorMessage("failed"))
		out = append(out, command.NewLog("done"))
	}

	out = append(out, command.NewLog("Bootload successful!"))
	return out, nil
}

func makeHeader(cfg *config.Config, images []LoadedImage) command.Command {
	fields := []command.HeaderField{
		{Key: "product", Value: cfg.ProductName},
		{Key: "product_id", Value: fmt.Sprintf("%d", cfg.ProductID)},
		{Key: "script_version", Value: "1"},
		{Key: "btl_version", Value: fmt.Sprintf("%d", cfg.BtlVersion)},
	}
	for _, img := range images {
		version := "0.0.0"
		if v, err := img.Config.SemVer(); err == nil && v != nil {
			version = v.String()
		}
		fields = append(fields, command.HeaderField{
			Key:   fmt.Sprintf("version_f%d", img.Config.NodeID),
			Value: version,
		})
	}
	if cfg.UseBackdoor {
		fields = append(fields, command.HeaderField{Key: "backdoor", Value: "true"})
	}
	return command.NewHeader(fields)
}

func validationPayload(cfg *config.Config, fc config.FirmwareConfig) ([]byte, error) {
	data := make([]byte, 5)
	if cfg.UseBackdoor {
		data[0], data[1] = 0xFF, 0xFF
	} else {
		data[0] = byte(cfg.ProductID & 0xFF)
		data[1] = byte((cfg.ProductID >> 8) & 0xFF)
	}
	v, err := fc.SemVer()
	if err != nil {
		return nil, err
	}
	var major uint16
	if v != nil {
		major = uint16(v.Major())
	}
	data[2] = byte(major & 0xFF)
	data[3] = byte((major >> 8) & 0xFF)
	data[4] = cfg.BtlVersion
	return data, nil
}
