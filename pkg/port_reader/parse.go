package port_reader

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/NotCoffee418/telem_cli/pkg/units"
	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// ParseLine converts one raw serial line into a reading. ok is false for
// anything that is not a usable number: invalid UTF-8, blank lines,
// non-numeric text, NaN and infinities (the API body is JSON, which has
// no encoding for them), or a bad checksum when checksum is set.
func ParseLine(raw []byte, unit units.Unit, checksum bool) (types.Reading, bool) {
	if !utf8.Valid(raw) {
		return types.Reading{}, false
	}
	line := strings.TrimSpace(string(raw))
	if line == "" {
		return types.Reading{}, false
	}

	if checksum {
		payload, ok := stripChecksum(line)
		if !ok {
			return types.Reading{}, false
		}
		line = strings.TrimSpace(payload)
	}

	value, err := strconv.ParseFloat(line, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return types.Reading{}, false
	}

	return types.Reading{
		Unit:  unit.Symbol,
		Value: value,
	}, true
}

// stripChecksum validates `payload!XXXX` where XXXX is the CRC16/ARC of
// `payload!` in hex, same framing as a DSMR telegram trailer.
func stripChecksum(line string) (string, bool) {
	idx := strings.LastIndex(line, "!")
	if idx < 0 || len(line)-idx-1 != 4 {
		return "", false
	}

	data := line[:idx+1]
	givenCRC := line[idx+1:]
	calcCRCHex := fmt.Sprintf("%04X", crc16.Checksum([]byte(data), crcTable))
	if strings.ToUpper(givenCRC) != calcCRCHex {
		return "", false
	}
	return line[:idx], true
}

// AppendChecksum frames a payload the way a checksumming device sends it.
func AppendChecksum(payload string) string {
	data := payload + "!"
	return fmt.Sprintf("%s%04X", data, crc16.Checksum([]byte(data), crcTable))
}
