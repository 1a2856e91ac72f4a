package types

import (
	"encoding/binary"
	"errors"
	"math"
)

// MeterDataSize is the packed on-air size of MeterData.
const MeterDataSize = 20

var ErrMeterDataLength = errors.New("invalid_meter_data_length")

// MeterData is the payload sent by the meter-side transmitter.
// Little-endian, packed: 4 x float32 then uint32.
type MeterData struct {
	PowerW         float32 // negative while feeding in
	ConsumptionKWh float32 // OBIS 1.8.0
	GenerationKWh  float32 // OBIS 2.8.0
	BatteryV       float32
	PacketCounter  uint32
}

// DecodeMeterData parses exactly MeterDataSize bytes.
func DecodeMeterData(b []byte) (MeterData, error) {
	if len(b) != MeterDataSize {
		return MeterData{}, ErrMeterDataLength
	}
	le := binary.LittleEndian
	return MeterData{
		PowerW:         math.Float32frombits(le.Uint32(b[0:4])),
		ConsumptionKWh: math.Float32frombits(le.Uint32(b[4:8])),
		GenerationKWh:  math.Float32frombits(le.Uint32(b[8:12])),
		BatteryV:       math.Float32frombits(le.Uint32(b[12:16])),
		PacketCounter:  le.Uint32(b[16:20]),
	}, nil
}

// AppendBinary appends the packed encoding of m to b.
func (m MeterData) AppendBinary(b []byte) []byte {
	le := binary.LittleEndian
	b = le.AppendUint32(b, math.Float32bits(m.PowerW))
	b = le.AppendUint32(b, math.Float32bits(m.ConsumptionKWh))
	b = le.AppendUint32(b, math.Float32bits(m.GenerationKWh))
	b = le.AppendUint32(b, math.Float32bits(m.BatteryV))
	return le.AppendUint32(b, m.PacketCounter)
}

// LinkQuality is the radio-side measurement for one received packet.
type LinkQuality struct {
	RSSI int16   // dBm
	SNR  float32 // dB
}
