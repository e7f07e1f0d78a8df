// Package protocol implements the bootload wire capability: enter,
// validate, start-transmit, send-data, finish and leave, each
// returning the command sequence a script compiler threads together.
// Two implementations share the same opcode layout and frame format
// and differ in how exchanges are sequenced: the non-blocking variant
// polls state transitions with a separate query while the blocking
// variant collapses validate, start-transmit and data exchanges into
// a single query each. Grounded on the DDP protocol variants in the
// retrieved reference implementation, adapted here to CRC-16 framing
// per the current wire-format revision (the reference used CRC-8).
package protocol

import (
	"encoding/binary"

	"github.com/raffber/mergetool/internal/command"
	"github.com/raffber/mergetool/internal/crcutil"
)

const (
	cmdNone          = 0x00
	cmdReset         = 0x01
	cmdValidate      = 0x02
	cmdStartTransmit = 0x03
	cmdData          = 0x04
	cmdFinish        = 0x05
	cmdLeave         = 0x06

	comOK = 0x00

	stateIdle       = 0x01
	stateValidated  = 0x02
	stateRxData     = 0x04
	stateDone       = 0x06
	statusSuccess   = 0x00

	// readBit marks the opcode byte of a read-side frame; implementers
	// must preserve this bit pattern exactly.
	readBit = 0x80
)

// Protocol is the capability a script compiler drives per firmware
// image: enter/leave the bootloader, validate it, start the erase,
// stream data packets and finalize with a CRC check.
type Protocol interface {
	Enter(fwID byte, waitTime uint32) []command.Command
	Leave(fwID byte, waitTime uint32) []command.Command
	Validate(fwID byte, data []byte, waitTime uint32) []command.Command
	StartTransmit(fwID byte, eraseTime uint32) []command.Command
	SendData(fwID byte, address uint32, data []byte) (command.Command, bool)
	Finish(fwID byte, sendDoneWait, crcCheckWait uint32) []command.Command
}

// frame appends the big-endian CRC-16 trailer to a complete frame
// body (the body already carries its leading opcode byte).
func frame(body []byte) []byte {
	crc := crcutil.CRC16(body)
	crcBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBytes, crc)
	return append(body, crcBytes...)
}

func allFF(data []byte) bool {
	for _, b := range data {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// ddpCode is the shared opcode/framing core both protocol variants
// build their command sequences from.
type ddpCode struct {
	code byte
}

// write frames and returns a fire-and-forget Write command. body must
// already carry its leading opcode byte.
func (d ddpCode) write(body []byte) command.Command {
	return command.NewWrite(frame(body))
}

// query frames both the transmitted and expected-read sides of a
// Query command. txBody must already carry its leading opcode byte;
// rxBody is the expected device response, starting with its status
// byte, and has no top bit set since it is a response, not a request.
func (d ddpCode) query(txBody, rxBody []byte) command.Command {
	return command.NewQuery(frame(txBody), frame(rxBody))
}

func addressBytes(address uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, address)
	return buf
}

// NonBlocking is the polling protocol variant: every state change is
// issued as a fire-and-forget write followed by a cleared timeout and
// a dedicated poll query.
type NonBlocking struct {
	ddpCode
}

func NewNonBlocking(code byte) *NonBlocking {
	return &NonBlocking{ddpCode{code: code}}
}

func (p *NonBlocking) Enter(fwID byte, waitTime uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(waitTime),
		p.write([]byte{p.code, fwID, cmdReset}),
		command.NewSetTimeOut(0),
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateIdle, statusSuccess}),
	}
}

func (p *NonBlocking) Leave(fwID byte, waitTime uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(waitTime),
		p.write([]byte{p.code, fwID, cmdLeave}),
	}
}

func (p *NonBlocking) Validate(fwID byte, data []byte, waitTime uint32) []command.Command {
	body := append([]byte{p.code, fwID, cmdValidate}, data...)
	return []command.Command{
		command.NewSetTimeOut(waitTime),
		p.write(body),
		command.NewSetTimeOut(0),
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateValidated, statusSuccess}),
	}
}

func (p *NonBlocking) StartTransmit(fwID byte, eraseTime uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(eraseTime),
		p.write([]byte{p.code, fwID, cmdStartTransmit}),
		command.NewSetTimeOut(0),
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateRxData, statusSuccess}),
	}
}

func (p *NonBlocking) SendData(fwID byte, address uint32, data []byte) (command.Command, bool) {
	if allFF(data) {
		return command.Command{}, false
	}
	body := append([]byte{p.code, fwID, cmdData}, addressBytes(address)...)
	body = append(body, data...)
	return p.write(body), true
}

func (p *NonBlocking) Finish(fwID byte, sendDoneWait, crcCheckWait uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(sendDoneWait),
		p.write([]byte{p.code, fwID, cmdFinish}),
		command.NewSetTimeOut(crcCheckWait),
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateDone, statusSuccess}),
	}
}

// Blocking collapses validate, start-transmit and each data packet
// into a single query; the device itself blocks until the state
// transition completes. Enter and Leave are issued as in NonBlocking,
// and Finish is two queries (drain, then CRC check).
type Blocking struct {
	ddpCode
}

func NewBlocking(code byte) *Blocking {
	return &Blocking{ddpCode{code: code}}
}

func (p *Blocking) Enter(fwID byte, waitTime uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(waitTime),
		p.write([]byte{p.code, fwID, cmdReset}),
		command.NewSetTimeOut(0),
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateIdle, statusSuccess}),
	}
}

func (p *Blocking) Leave(fwID byte, waitTime uint32) []command.Command {
	return []command.Command{
		command.NewSetTimeOut(waitTime),
		p.write([]byte{p.code, fwID, cmdLeave}),
	}
}

func (p *Blocking) Validate(fwID byte, data []byte, _ uint32) []command.Command {
	body := append([]byte{p.code | readBit, fwID, cmdValidate}, data...)
	return []command.Command{
		p.query(body, []byte{comOK, fwID, stateValidated, statusSuccess}),
	}
}

func (p *Blocking) StartTransmit(fwID byte, _ uint32) []command.Command {
	return []command.Command{
		p.query([]byte{p.code | readBit, fwID, cmdStartTransmit}, []byte{comOK, fwID, stateRxData, statusSuccess}),
	}
}

func (p *Blocking) SendData(fwID byte, address uint32, data []byte) (command.Command, bool) {
	if allFF(data) {
		return command.Command{}, false
	}
	body := append([]byte{p.code | readBit, fwID, cmdData}, addressBytes(address)...)
	body = append(body, data...)
	return p.query(body, []byte{comOK, fwID, stateRxData, statusSuccess}), true
}

func (p *Blocking) Finish(fwID byte, _, _ uint32) []command.Command {
	return []command.Command{
		p.query([]byte{p.code | readBit, fwID, cmdNone}, []byte{comOK, fwID, stateRxData, statusSuccess}),
		p.query([]byte{p.code | readBit, fwID, cmdFinish}, []byte{comOK, fwID, stateDone, statusSuccess}),
	}
}
