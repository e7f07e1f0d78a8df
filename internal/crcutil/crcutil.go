// Package crcutil collects the three CRC variants used by protocol
// framing and image stamping. CRC-16 is computed with the sigurn/crc16
// table implementation (the same library the retrieved firmware-patch
// tooling in this corpus uses); CRC-32 is the stdlib IEEE polynomial;
// CRC-8 has no suitable third-party package in the corpus and is a
// small table-driven implementation instead.
package crcutil

import (
	"hash/crc32"

	"github.com/sigurn/crc16"
)

var crc16Table = crc16.MakeTable(crc16.CRC16_CCITT_FALSE)

// CRC16 computes the CCITT-FALSE CRC-16 of data.
func CRC16(data []byte) uint16 {
	return crc16.Checksum(data, crc16Table)
}

// CRC32 computes the IEEE CRC-32 of data.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// crc8Table is the standard CRC-8/SMBUS (polynomial 0x07) table.
var crc8Table = func() [256]byte {
	var t [256]byte
	for i := 0; i < 256; i++ {
		c := byte(i)
		for b := 0; b < 8; b++ {
			if c&0x80 != 0 {
				c = (c << 1) ^ 0x07
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// CRC8 computes the polynomial-0x07 CRC-8 of data, seeded at zero.
func CRC8(data []byte) byte {
	var c byte
	for _, b := range data {
		c = crc8Table[c^b]
	}
	return c
}
