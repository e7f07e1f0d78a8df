// Package script turns a compiled command sequence into a Script:
// progress markers interleaved according to a pluggable time model,
// and a stable serialized text form closed with a SHA-256 integrity
// line. Grounded on the progress-interleaving algorithm and the
// serialize/parse/verify triad in the retrieved script reference.
package script

import (
	"crypto/sha256"
	"strings"

	"github.com/raffber/mergetool/internal/command"
	"github.com/raffber/mergetool/internal/errs"
)

// TimeModel gives the byte-transfer cost of Write and Query commands.
// The currently active SetTimeOut interval is not passed in;
// cumulativeTime adds it on top of each cost.
type TimeModel interface {
	WriteTime(numWrite int) float64
	ReadTime(numWrite, numRead int) float64
}

// SimpleTimeModel charges a constant per-byte cost for writes and
// reads; other commands are instantaneous. Zero byte costs are valid
// when only ordering (not wall-clock fidelity) matters.
type SimpleTimeModel struct {
	WriteByteTime float64
	ReadByteTime  float64
}

// DefaultTimeModel is the constant-cost model used when the caller
// does not need specific timing fidelity.
func DefaultTimeModel() SimpleTimeModel {
	return SimpleTimeModel{WriteByteTime: 0.01, ReadByteTime: 0.01}
}

func (m SimpleTimeModel) WriteTime(numWrite int) float64 {
	return float64(numWrite) * m.WriteByteTime
}

func (m SimpleTimeModel) ReadTime(numWrite, numRead int) float64 {
	return m.WriteTime(numWrite) + float64(numRead)*m.ReadByteTime
}

// cumulativeTime walks cmds, returning the cumulative time elapsed
// after each command. SetTimeOut updates the currently active
// interval, which is added to every subsequent Write/Query cost.
func cumulativeTime(model TimeModel, cmds []command.Command) []float64 {
	ret := make([]float64, len(cmds))
	var now float64
	var timeout float64
	for i, cmd := range cmds {
		switch cmd.Tag {
		case command.TagQuery:
			now += model.ReadTime(len(cmd.QueryWrite), len(cmd.QueryRead))
			now += timeout
		case command.TagWrite:
			now += model.WriteTime(len(cmd.Write))
			now += timeout
		case command.TagSetTimeOut:
			timeout = float64(cmd.TimeOutMs) / 1000.0
		}
		ret[i] = now
	}
	return ret
}

// progressThreshold and progressSentinel are part of the wire
// contract: tests rely on exact marker positions.
const (
	progressThreshold = 4.0 / 256.0
	progressSentinel  = 255
)

// interleaveProgress appends a Progress command whenever cumulative
// progress has advanced by more than progressThreshold since the last
// marker, and always ends with Progress(255).
func interleaveProgress(model TimeModel, cmds []command.Command) []command.Command {
	times := cumulativeTime(model, cmds)
	var total float64
	if len(times) > 0 {
		total = times[len(times)-1]
	}
	out := make([]command.Command, 0, len(cmds)+len(cmds)/4+1)
	lastProgress := 0.0
	for i, cmd := range cmds {
		out = append(out, cmd)
		if total <= 0 {
			continue
		}
		cur := times[i] / total
		if cur-lastProgress > progressThreshold {
			lastProgress = cur
			p := byte(roundToByte(cur * 256))
			out = append(out, command.NewProgress(p))
		}
	}
	out = append(out, command.NewProgress(progressSentinel))
	return out
}

func roundToByte(x float64) int {
	if x < 0 {
		return 0
	}
	if x > 255 {
		return 255
	}
	return int(x + 0.5)
}

// Script is an ordered command sequence. New folds progress markers
// in at construction time; the trailing checksum line is added by
// Serialize.
type Script struct {
	commands []command.Command
}

// New builds a Script from a raw command sequence using model,
// interleaving progress markers immediately.
func New(cmds []command.Command, model TimeModel) *Script {
	return &Script{commands: interleaveProgress(model, cmds)}
}

// Commands returns the command sequence, including progress markers.
// For a Script built by New it excludes the checksum trailer (added
// only on serialization); for a Script returned by Parse it ends with
// the Checksum command that was read.
func (s *Script) Commands() []command.Command {
	return s.commands
}

func joinLines(cmds []command.Command) string {
	lines := make([]string, len(cmds))
	for i, c := range cmds {
		lines[i] = c.ScriptLine()
	}
	return strings.Join(lines, "\n")
}

func checksumOf(cmds []command.Command) []byte {
	sum := sha256.Sum256([]byte(joinLines(cmds)))
	return sum[:]
}

// Serialize renders the script as newline-joined command lines
// followed by a trailing Checksum line over the SHA-256 digest of the
// preceding lines.
func (s *Script) Serialize() string {
	checksum := command.NewChecksum(checksumOf(s.commands))
	return joinLines(s.commands) + "\n" + checksum.ScriptLine()
}

// Parse splits serialized text back into a Script. It does not
// recompute progress markers or the checksum; call Verify to check
// integrity.
func Parse(text string) (*Script, error) {
	var cmds []command.Command
	for _, raw := range strings.Split(text, ":") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		cmd, err := command.ParseLine(":" + raw)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return &Script{commands: cmds}, nil
}

// Verify recomputes the SHA-256 digest over every command line except
// the trailing Checksum line and compares it to the trailer.
func (s *Script) Verify() error {
	if len(s.commands) == 0 {
		return errs.ErrMissingChecksum
	}
	last := s.commands[len(s.commands)-1]
	if last.Tag != command.TagChecksum {
		return errs.ErrMissingChecksum
	}
	expected := checksumOf(s.commands[:len(s.commands)-1])
	if !bytesEqual(expected, last.Checksum) {
		return errs.ErrInvalidChecksum
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
