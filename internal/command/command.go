// Package command implements the script command tagged union: eight
// variants, a stable one-line hex-encoded wire form, and a parser
// that is its exact inverse. Grounded on the authoritative command
// layout in the retrieved script-command reference (tag bytes, the
// little-endian Query length prefix, and the `|`/`=` Header encoding).
package command

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/raffber/mergetool/internal/errs"
)

// Tag identifies a Command variant in its serialized form.
type Tag byte

const (
	TagHeader          Tag = 0x01
	TagWrite           Tag = 0x02
	TagQuery           Tag = 0x03
	TagSetTimeOut      Tag = 0x10
	TagLog             Tag = 0x20
	TagSetErrorMessage Tag = 0x21
	TagProgress        Tag = 0x22
	TagChecksum        Tag = 0x30
)

// HeaderField is one key=value pair of a Header command, order
// preserved.
type HeaderField struct {
	Key   string
	Value string
}

// Command is a closed tagged union; exactly one of the typed fields
// is meaningful, selected by Tag.
type Command struct {
	Tag Tag

	Header     []HeaderField
	Write      []byte
	QueryWrite []byte
	QueryRead  []byte
	TimeOutMs  uint32
	Text       string
	Progress   byte
	Checksum   []byte
}

func NewHeader(fields []HeaderField) Command { return Command{Tag: TagHeader, Header: fields} }
func NewWrite(data []byte) Command           { return Command{Tag: TagWrite, Write: data} }
func NewQuery(write, read []byte) Command {
	return Command{Tag: TagQuery, QueryWrite: write, QueryRead: read}
}
func NewSetTimeOut(ms uint32) Command  { return Command{Tag: TagSetTimeOut, TimeOutMs: ms} }
func NewLog(text string) Command       { return Command{Tag: TagLog, Text: text} }
func NewSetErrorMessage(text string) Command {
	return Command{Tag: TagSetErrorMessage, Text: text}
}
func NewProgress(p byte) Command        { return Command{Tag: TagProgress, Progress: p} }
func NewChecksum(digest []byte) Command { return Command{Tag: TagChecksum, Checksum: digest} }

func (c Command) payload() []byte {
	switch c.Tag {
	case TagHeader:
		var sb strings.Builder
		for i, f := range c.Header {
			if i > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(f.Key)
			sb.WriteByte('=')
			sb.WriteString(f.Value)
		}
		return []byte(sb.String())
	case TagWrite:
		return c.Write
	case TagQuery:
		buf := make([]byte, 4, 4+len(c.QueryWrite)+len(c.QueryRead))
		binary.LittleEndian.PutUint16(buf[0:2], uint16(len(c.QueryWrite)))
		binary.LittleEndian.PutUint16(buf[2:4], uint16(len(c.QueryRead)))
		buf = append(buf, c.QueryWrite...)
		buf = append(buf, c.QueryRead...)
		return buf
	case TagSetTimeOut:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, c.TimeOutMs)
		return buf
	case TagLog, TagSetErrorMessage:
		return []byte(c.Text)
	case TagProgress:
		return []byte{c.Progress}
	case TagChecksum:
		return c.Checksum
	default:
		return nil
	}
}

// ScriptLine renders the command as ":" + hex(tag) + hex(payload),
// uppercase.
func (c Command) ScriptLine() string {
	return ":" + strings.ToUpper(hex.EncodeToString([]byte{byte(c.Tag)})) +
		strings.ToUpper(hex.EncodeToString(c.payload()))
}

// ParseLine is the exact inverse of ScriptLine.
func ParseLine(line string) (Command, error) {
	if len(line) < 3 || len(line)%2 != 1 {
		return Command{}, errs.ErrInvalidLength
	}
	if line[0] != ':' {
		return Command{}, errs.ErrDelimiterMissing
	}
	body := line[1:]
	raw, err := hex.DecodeString(body)
	if err != nil {
		return Command{}, errs.ErrInvalidHexCharacter
	}
	tag := Tag(raw[0])
	data := raw[1:]

	switch tag {
	case TagHeader:
		text, err := decodeUTF8(data)
		if err != nil {
			return Command{}, errs.ErrInvalidEncoding
		}
		var fields []HeaderField
		if text != "" {
			for _, kv := range strings.Split(text, "|") {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return Command{}, errs.ErrInvalidHeaderFormat
				}
				fields = append(fields, HeaderField{Key: parts[0], Value: parts[1]})
			}
		}
		return NewHeader(fields), nil

	case TagWrite:
		return NewWrite(append([]byte(nil), data...)), nil

	case TagQuery:
		if len(data) < 4 {
			return Command{}, errs.ErrInvalidLength
		}
		writeLen := int(binary.LittleEndian.Uint16(data[0:2]))
		readLen := int(binary.LittleEndian.Uint16(data[2:4]))
		rest := data[4:]
		if len(rest) != writeLen+readLen {
			return Command{}, errs.ErrInvalidLength
		}
		return NewQuery(append([]byte(nil), rest[:writeLen]...), append([]byte(nil), rest[writeLen:]...)), nil

	case TagChecksum:
		return NewChecksum(append([]byte(nil), data...)), nil

	case TagProgress:
		if len(data) != 1 {
			return Command{}, errs.ErrInvalidLength
		}
		return NewProgress(data[0]), nil

	case TagSetErrorMessage:
		text, err := decodeUTF8(data)
		if err != nil {
			return Command{}, errs.ErrInvalidEncoding
		}
		return NewSetErrorMessage(text), nil

	case TagLog:
		text, err := decodeUTF8(data)
		if err != nil {
			return Command{}, errs.ErrInvalidEncoding
		}
		return NewLog(text), nil

	case TagSetTimeOut:
		if len(data) != 4 {
			return Command{}, errs.ErrInvalidLength
		}
		return NewSetTimeOut(binary.LittleEndian.Uint32(data)), nil

	default:
		return Command{}, fmt.Errorf("%w: tag 0x%02x", errs.ErrInvalidCommand, byte(tag))
	}
}

func decodeUTF8(b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", errs.ErrInvalidEncoding
	}
	return string(b), nil
}
