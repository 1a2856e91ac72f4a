package sx1262

// Opcodes (datasheet section 11).
const (
	cmdSetStandby            = 0x80
	cmdSetRx                 = 0x82
	cmdSetFS                 = 0x01
	cmdSetPacketType         = 0x8A
	cmdSetRfFrequency        = 0x86
	cmdSetModulationParams   = 0x8B
	cmdSetPacketParams       = 0x8C
	cmdSetDioIrqParams       = 0x08
	cmdGetIrqStatus          = 0x12
	cmdClearIrqStatus        = 0x02
	cmdGetRxBufferStatus     = 0x13
	cmdReadBuffer            = 0x1E
	cmdGetPacketStatus       = 0x14
	cmdSetRegulatorMode      = 0x96
	cmdSetBufferBaseAddress  = 0x8F
	cmdSetLoRaSymbNumTimeout = 0xA0
	cmdWriteRegister         = 0x0D
	cmdReadRegister          = 0x1D
	cmdGetStatus             = 0xC0
)

const (
	standbyRC      = 0x00
	regulatorDCDC  = 0x01
	packetTypeLoRa = 0x01
	nop            = 0x00

	// SetRx timeout value for continuous receive.
	rxContinuous = 0xFFFFFF
)

// IRQ bits.
const (
	IRQTxDone           uint16 = 0x0001
	IRQRxDone           uint16 = 0x0002
	IRQPreambleDetected uint16 = 0x0004
	IRQSyncWordValid    uint16 = 0x0008
	IRQHeaderValid      uint16 = 0x0010
	IRQHeaderErr        uint16 = 0x0020
	IRQCRCErr           uint16 = 0x0040
	IRQCadDone          uint16 = 0x0080
	IRQCadDetected      uint16 = 0x0100
	IRQTimeout          uint16 = 0x0200
	IRQAll              uint16 = 0x03FF

	irqRxMask = IRQRxDone | IRQTimeout | IRQCRCErr | IRQHeaderErr
)

// Registers.
const (
	regLoRaSyncWordMSB = 0x0740
	regLoRaSyncWordLSB = 0x0741
)

// LoRa modulation parameter codes.
const (
	bw125 = 0x04
	bw250 = 0x05
	bw500 = 0x06

	cr45 = 0x01
	cr46 = 0x02
	cr47 = 0x03
	cr48 = 0x04
)

// xtalHz is the reference used by the RF frequency word.
const xtalHz = 32_000_000
