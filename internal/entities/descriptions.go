package entities

import (
	"bwt-monservice/internal/scrapers/bwt"
)

// Device classes, state classes and units understood by the consumers of the
// entity model.
const (
	DeviceClassWater          = "water"
	DeviceClassPressure       = "pressure"
	DeviceClassTimestamp      = "timestamp"
	DeviceClassDate           = "date"
	DeviceClassSignalStrength = "signal_strength"
	DeviceClassConnectivity   = "connectivity"
	DeviceClassProblem        = "problem"

	StateClassTotal       = "total"
	StateClassMeasurement = "measurement"

	UnitLiters           = "L"
	UnitBar              = "bar"
	UnitFrenchHardness   = "°f"
	UnitDecibelMilliwatt = "dBm"
)

// Record keys that the portal has never been observed to populate, their
// sensors stay unavailable until it does.
const (
	keyHardnessIn     = "hardness_in"
	keyHardnessOut    = "hardness_out"
	keyWaterPressure  = "water_pressure"
	keyHolidayMode    = "holiday_mode"
	keySaltType       = "salt_type"
	keyRegenStartHour = "regen_start_hour"
	keyWifiSignal     = "wifi_signal"
)

type SensorDescription struct {
	Key         string
	Unit        string
	DeviceClass string
	StateClass  string
	Icon        string
	// Value extracts the native value from a record, ok is false when absent.
	Value func(record bwt.Record) (value any, ok bool)
}

type BinarySensorDescription struct {
	Key         string
	DeviceClass string
	Icon        string
	Value       func(record bwt.Record) (on bool, ok bool)
}

func raw(key string) func(bwt.Record) (any, bool) {
	return func(record bwt.Record) (any, bool) {
		v, ok := record[key]
		if !ok || v == nil {
			return nil, false
		}
		return v, true
	}
}

func flag(key string) func(bwt.Record) (bool, bool) {
	return func(record bwt.Record) (bool, bool) {
		return record.GetBool(key)
	}
}

var Sensors = []SensorDescription{
	{
		Key:         "water_consumption",
		Unit:        UnitLiters,
		DeviceClass: DeviceClassWater,
		StateClass:  StateClassTotal,
		Icon:        "mdi:water",
		Value:       raw(bwt.KeyWaterUse),
	},
	{
		Key:        "regenerations_today",
		StateClass: StateClassTotal,
		Icon:       "mdi:refresh",
		Value:      raw(bwt.KeyRegenCount),
	},
	{
		Key:        keyHardnessIn,
		Unit:       UnitFrenchHardness,
		StateClass: StateClassMeasurement,
		Icon:       "mdi:water-opacity",
		Value:      raw(keyHardnessIn),
	},
	{
		Key:        keyHardnessOut,
		Unit:       UnitFrenchHardness,
		StateClass: StateClassMeasurement,
		Icon:       "mdi:water-check",
		Value:      raw(keyHardnessOut),
	},
	{
		Key:         keyWaterPressure,
		Unit:        UnitBar,
		DeviceClass: DeviceClassPressure,
		StateClass:  StateClassMeasurement,
		Icon:        "mdi:gauge",
		Value:       raw(keyWaterPressure),
	},
	{
		Key:         "last_seen",
		DeviceClass: DeviceClassTimestamp,
		Icon:        "mdi:clock-outline",
		Value: func(record bwt.Record) (any, bool) {
			return record.GetTime(bwt.KeyLastSeen)
		},
	},
	{
		Key:   "serial_number",
		Icon:  "mdi:identifier",
		Value: raw(bwt.KeySerialNumber),
	},
	{
		Key:         "service_date",
		DeviceClass: DeviceClassDate,
		Icon:        "mdi:calendar",
		Value: func(record bwt.Record) (any, bool) {
			return record.GetDate(bwt.KeyServiceDate)
		},
	},
	{
		Key:   keyHolidayMode,
		Icon:  "mdi:airplane",
		Value: raw(keyHolidayMode),
	},
	{
		Key:   keySaltType,
		Icon:  "mdi:shaker",
		Value: raw(keySaltType),
	},
	{
		Key:   keyRegenStartHour,
		Icon:  "mdi:clock-start",
		Value: raw(keyRegenStartHour),
	},
	{
		Key:         keyWifiSignal,
		Unit:        UnitDecibelMilliwatt,
		DeviceClass: DeviceClassSignalStrength,
		StateClass:  StateClassMeasurement,
		Icon:        "mdi:wifi",
		Value:       raw(keyWifiSignal),
	},
}

var BinarySensors = []BinarySensorDescription{
	{
		Key:         "connected",
		DeviceClass: DeviceClassConnectivity,
		Icon:        "mdi:wifi",
		Value:       flag(bwt.KeyConnected),
	},
	{
		Key:         "online",
		DeviceClass: DeviceClassConnectivity,
		Icon:        "mdi:check-network",
		Value:       flag(bwt.KeyOnline),
	},
	{
		Key:         "connectable",
		DeviceClass: DeviceClassConnectivity,
		Icon:        "mdi:network",
		Value:       flag(bwt.KeyConnectable),
	},
	{
		Key:         "power_outage",
		DeviceClass: DeviceClassProblem,
		Icon:        "mdi:power-plug-off",
		Value:       flag(bwt.KeyPowerOutage),
	},
	{
		Key:         "salt_alarm",
		DeviceClass: DeviceClassProblem,
		Icon:        "mdi:alert",
		Value:       flag(bwt.KeySaltAlarm),
	},
}
