package entities

import (
	"fmt"
	"strings"

	"bwt-monservice/internal/components/assert"
	"bwt-monservice/internal/scrapers/bwt"
)

const (
	Domain       = "bwt_monservice"
	Manufacturer = "BWT"

	defaultDeviceName = "BWT Device"
	unknownSerial     = "unknown"
	perlaMarker       = "MY PERLA"
	perlaModel        = "MY PERLA OPTIMUM"
)

// Source is the polled state the entities read from, implemented by
// *coordinator.Coordinator.
type Source interface {
	Data() bwt.Record
	LastUpdateSuccess() bool
}

type DeviceInfo struct {
	// Identifier is the (domain, serial number) pair identifying the device.
	Identifier       [2]string
	Name             string
	Manufacturer     string
	Model            string
	SerialNumber     string
	ConfigurationUrl string
}

// NewDeviceInfo derives the device info from a record. host is optional and
// only sets the configuration url.
func NewDeviceInfo(record bwt.Record, host string) DeviceInfo {
	name, ok := record.GetString(bwt.KeyDeviceName)
	if !ok {
		name = defaultDeviceName
	}
	serial, ok := record.GetString(bwt.KeySerialNumber)
	if !ok {
		serial = unknownSerial
	}

	var model string
	switch {
	case strings.Contains(strings.ToUpper(name), perlaMarker):
		model = perlaModel
	case name != "" && name != defaultDeviceName:
		model = name
	}

	info := DeviceInfo{
		Identifier:   [2]string{Domain, serial},
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        model,
		SerialNumber: serial,
	}
	if host != "" {
		info.ConfigurationUrl = fmt.Sprintf("http://%s", host)
	}
	return info
}

type Sensor struct {
	Description SensorDescription
	Device      DeviceInfo
	source      Source
}

func (s Sensor) UniqueId() string {
	return fmt.Sprintf("%s_%s", s.Device.SerialNumber, s.Description.Key)
}

// Value returns the current native value, ok is false when the last good
// record does not carry it.
func (s Sensor) Value() (any, bool) {
	data := s.source.Data()
	if data == nil {
		return nil, false
	}
	return s.Description.Value(data)
}

// Available is true when the last poll succeeded and a value is present.
func (s Sensor) Available() bool {
	if !s.source.LastUpdateSuccess() {
		return false
	}
	_, ok := s.Value()
	return ok
}

type BinarySensor struct {
	Description BinarySensorDescription
	Device      DeviceInfo
	source      Source
}

func (s BinarySensor) UniqueId() string {
	return fmt.Sprintf("%s_%s", s.Device.SerialNumber, s.Description.Key)
}

func (s BinarySensor) IsOn() (on bool, ok bool) {
	data := s.source.Data()
	if data == nil {
		return false, false
	}
	return s.Description.Value(data)
}

func (s BinarySensor) Available() bool {
	if !s.source.LastUpdateSuccess() {
		return false
	}
	_, ok := s.IsOn()
	return ok
}

// Build creates one entity per description, all attached to the device
// described by the current data of source.
func Build(source Source, host string) ([]Sensor, []BinarySensor) {
	assert.NotNil(source)

	device := NewDeviceInfo(source.Data(), host)

	sensors := make([]Sensor, len(Sensors))
	for i, desc := range Sensors {
		sensors[i] = Sensor{Description: desc, Device: device, source: source}
	}
	binarySensors := make([]BinarySensor, len(BinarySensors))
	for i, desc := range BinarySensors {
		binarySensors[i] = BinarySensor{Description: desc, Device: device, source: source}
	}
	return sensors, binarySensors
}
