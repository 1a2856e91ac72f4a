package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw YAML bytes for that device
// -----------------------------------------------------------------------------

// Waveshare Pico-LoRa-SX1262: DIO1 GP20, RST GP15, BUSY GP2.
const cfgPico = `
heartbeat:
  interval: 10
bridge:
  transport:
    type: uart
    uart:
      port: 1
      baud: 115200
      tx_pin: 4
      rx_pin: 5
lora_receiver:
  id: lora_receiver
  dio1_pin: 20
  rst_pin: 15
  busy_pin: 2
  power:
    name: Grid Power
    id: meter_power
  consumption:
    name: Energy Consumed
    id: meter_consumption
  generation:
    name: Energy Fed In
    id: meter_generation
  battery:
    name: Transmitter Battery
    id: meter_battery
  rssi:
    name: LoRa RSSI
    id: lora_rssi
    entity_category: diagnostic
  snr:
    name: LoRa SNR
    id: lora_snr
    entity_category: diagnostic
  packet_counter:
    id: packet_counter
    entity_category: diagnostic
  missed_packets:
    id: missed_packets
    entity_category: diagnostic
`

// Host runs use the same wiring with the simulated radio.
const cfgHost = `
heartbeat:
  interval: 5
lora_receiver:
  dio1_pin: 20
  rst_pin: 15
  busy_pin: 2
  power:
  consumption:
  battery:
  rssi:
  snr:
  packet_counter:
  missed_packets:
`

var embeddedConfigs = map[string][]byte{
	"pico": []byte(cfgPico),
	"host": []byte(cfgHost),
}
