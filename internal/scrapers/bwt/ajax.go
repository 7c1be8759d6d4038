package bwt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bwt-monservice/internal/components/chrono"
)

// history column codes mapped to record keys, any other code is ignored.
var historyColumns = map[string]string{
	"date":        KeyDataDate,
	"regenCount":  KeyRegenCount,
	"powerOutage": KeyPowerOutage,
	"waterUse":    KeyWaterUse,
	"saltAlarm":   KeySaltAlarm,
}

func (c *Client) fetchAjaxData(ctx context.Context) (Record, error) {
	ctx, span := tracer.Start(ctx, "client:fetchAjaxData")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParam("receiptLineKey", c.receiptLineKey).
		SetHeader("X-Requested-With", "XMLHttpRequest").
		SetHeader("Referer", c.deviceUrl()).
		Post(ajaxPath)
	if err != nil {
		return nil, transportError(ctx, "fetch chart data", err)
	}
	c.tel.ReportDebug("chart data response", res.StatusCode())

	err = checkStatus(res)
	if err != nil {
		return nil, err
	}

	record, err := parseAjaxData(res.Body(), chrono.Today(c.clock))
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_ajax, err)
		return nil, err
	}
	c.tel.ReportDebug("chart data extracted", record)
	return record, nil
}

// parseAjaxData extracts connectivity, last seen and today's history row from
// the chart endpoint. today is formatted as YYYY-MM-DD.
func parseAjaxData(body []byte, today string) (Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var payload any
	err := decoder.Decode(&payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode chart data: %w", ErrDataNotFound, err)
	}

	root, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid json structure: expected an object, got %T", ErrDataNotFound, payload)
	}
	rawDataset, ok := root["dataset"]
	if !ok {
		return nil, fmt.Errorf("%w: invalid json structure: missing 'dataset'", ErrDataNotFound)
	}

	if list, isList := rawDataset.([]any); isList {
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: dataset list is empty", ErrDataNotFound)
		}
		rawDataset = list[0]
	}
	dataset, ok := rawDataset.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: invalid dataset type: %T", ErrDataNotFound, rawDataset)
	}

	record := Record{
		KeyConnectable: asBool(dataset["connectable"]),
		KeyConnected:   asBool(dataset["connected"]),
		KeyOnline:      asBool(dataset["online"]),
	}

	switch lastSeen := dataset["lastSeenDateTime"].(type) {
	case nil:
	case string:
		if lastSeen != "" {
			record[KeyLastSeen] = normalizeLastSeen(lastSeen)
		}
	default:
		record[KeyLastSeen] = normalizeValue(lastSeen)
	}

	history, _ := dataset["deviceDataHistory"].(map[string]any)
	codes, _ := history["codes"].([]any)
	lines, _ := history["lines"].([]any)
	if len(lines) > 0 {
		applyHistory(record, codes, lines, today)
	}

	return record, nil
}

// applyHistory maps the history row of today onto record, or zero defaults
// tagged with today when there is no such row.
func applyHistory(record Record, codes, lines []any, today string) {
	var row []any
	for _, line := range lines {
		cols, _ := line.([]any)
		if len(cols) == 0 {
			continue
		}
		if strings.HasPrefix(stringify(cols[0]), today) {
			row = cols
			break
		}
	}

	if row == nil {
		record[KeyDataDate] = today
		record[KeyRegenCount] = int64(0)
		record[KeyPowerOutage] = int64(0)
		record[KeyWaterUse] = int64(0)
		record[KeySaltAlarm] = int64(0)
		return
	}

	for i, rawCode := range codes {
		if i >= len(row) {
			break
		}
		code, _ := rawCode.(string)
		key, known := historyColumns[code]
		if !known {
			continue
		}
		record[key] = normalizeValue(row[i])
	}
}

// normalizeLastSeen re-emits an ISO-8601 timestamp in canonical form, a
// trailing Z is accepted as +00:00. Unparseable input is returned verbatim.
func normalizeLastSeen(raw string) string {
	t, naive, err := parseIsoDateTime(raw)
	if err != nil {
		return raw
	}
	return formatIsoDateTime(t, naive)
}

var isoLayouts = []struct {
	layout string
	naive  bool
}{
	{layout: "2006-01-02T15:04:05.999999999-07:00"},
	{layout: "2006-01-02 15:04:05.999999999-07:00"},
	{layout: "2006-01-02T15:04-07:00"},
	{layout: "2006-01-02T15:04:05.999999999", naive: true},
	{layout: "2006-01-02 15:04:05.999999999", naive: true},
	{layout: "2006-01-02T15:04", naive: true},
	{layout: "2006-01-02", naive: true},
}

func parseIsoDateTime(raw string) (time.Time, bool, error) {
	normalized := strings.Replace(raw, "Z", "+00:00", 1)
	var lastErr error
	for _, l := range isoLayouts {
		t, err := time.Parse(l.layout, normalized)
		if err == nil {
			return t, l.naive, nil
		}
		lastErr = err
	}
	return time.Time{}, false, lastErr
}

func formatIsoDateTime(t time.Time, naive bool) string {
	layout := "2006-01-02T15:04:05"
	if t.Nanosecond()/1000 != 0 {
		layout += ".000000"
	}
	if !naive {
		layout += "-07:00"
	}
	return t.Format(layout)
}

func asBool(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		return v == "true" || v == "1"
	}
	return false
}

// normalizeValue turns json numbers into int64 when integral and float64
// otherwise, everything else is returned as is.
func normalizeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func stringify(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}
