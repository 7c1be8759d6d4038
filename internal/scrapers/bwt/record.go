package bwt

import (
	"strconv"
	"time"
)

// Record is one normalized telemetry snapshot of a device, the merge of the
// json chart endpoint and the html device page.
type Record map[string]any

// Keys of a Record.
const (
	KeyConnectable  = "connectable"
	KeyConnected    = "connected"
	KeyOnline       = "online"
	KeyLastSeen     = "last_seen"
	KeyDataDate     = "data_date"
	KeyRegenCount   = "regen_count"
	KeyPowerOutage  = "power_outage"
	KeyWaterUse     = "water_use"
	KeySaltAlarm    = "salt_alarm"
	KeyDeviceName   = "device_name"
	KeySerialNumber = "serial_number"
	KeyServiceDate  = "service_date"
)

// merge copies every key of override on top of base and returns base.
func merge(base, override Record) Record {
	if base == nil {
		base = Record{}
	}
	for k, v := range override {
		base[k] = v
	}
	return base
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// GetString returns the value at key if it is a string.
func (r Record) GetString(key string) (string, bool) {
	v, ok := r[key].(string)
	return v, ok
}

// GetBool returns the value at key as a bool, numeric values are true when non-zero.
func (r Record) GetBool(key string) (bool, bool) {
	switch v := r[key].(type) {
	case bool:
		return v, true
	case int64:
		return v != 0, true
	case float64:
		return v != 0, true
	}
	return false, false
}

// GetInt returns the value at key as an int64, numeric strings are parsed.
func (r Record) GetInt(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// GetFloat returns the value at key as a float64.
func (r Record) GetFloat(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

// GetTime parses the value at key as an ISO-8601 timestamp.
func (r Record) GetTime(key string) (time.Time, bool) {
	v, ok := r.GetString(key)
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, _, err := parseIsoDateTime(v)
	return t, err == nil
}

// GetDate parses the value at key as a YYYY-MM-DD date.
func (r Record) GetDate(key string) (time.Time, bool) {
	v, ok := r.GetString(key)
	if !ok || v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.DateOnly, v)
	return t, err == nil
}
