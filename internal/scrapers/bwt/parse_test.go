package bwt

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseAjaxData(t *testing.T) {
	testCases := []struct {
		name   string
		body   string
		today  string
		expect Record
		err    error
	}{
		{
			name:  "history row of today",
			body:  ajaxChartJson,
			today: "2024-01-01",
			expect: Record{
				KeyConnectable: true, KeyConnected: true, KeyOnline: false,
				KeyLastSeen:  "2024-01-01T08:15:30+00:00",
				KeyDataDate:  "2024-01-01",
				KeyRegenCount: int64(3), KeyPowerOutage: int64(0), KeyWaterUse: int64(120), KeySaltAlarm: int64(0),
			},
		},
		{
			name:  "history row matched by prefix",
			body:  ajaxChartJson,
			today: "2023-12-31",
			expect: Record{
				KeyConnectable: true, KeyConnected: true, KeyOnline: false,
				KeyLastSeen:  "2024-01-01T08:15:30+00:00",
				KeyDataDate:  "2023-12-31",
				KeyRegenCount: int64(2), KeyPowerOutage: int64(1), KeyWaterUse: int64(240), KeySaltAlarm: int64(1),
			},
		},
		{
			name:  "dataset object and unknown codes",
			body:  `{"dataset": {"online": true, "deviceDataHistory": {"codes": ["date", "mystery", "waterUse"], "lines": [[], ["2024-03-05T00:00:00", 7, 12.5]]}}}`,
			today: "2024-03-05",
			expect: Record{
				KeyConnectable: false, KeyConnected: false, KeyOnline: true,
				KeyDataDate: "2024-03-05T00:00:00",
				KeyWaterUse: 12.5,
			},
		},
		{
			name:  "codes longer than row",
			body:  `{"dataset": {"deviceDataHistory": {"codes": ["date", "regenCount", "waterUse"], "lines": [["2024-03-05", 1]]}}}`,
			today: "2024-03-05",
			expect: Record{
				KeyConnectable: false, KeyConnected: false, KeyOnline: false,
				KeyDataDate: "2024-03-05", KeyRegenCount: int64(1),
			},
		},
		{
			name:  "no history lines leaves history out",
			body:  `{"dataset": {"connected": true, "deviceDataHistory": {"codes": ["date"], "lines": []}}}`,
			today: "2024-03-05",
			expect: Record{
				KeyConnectable: false, KeyConnected: true, KeyOnline: false,
			},
		},
		{
			name:  "unparseable last seen is kept verbatim",
			body:  `{"dataset": {"lastSeenDateTime": "hier soir"}}`,
			today: "2024-03-05",
			expect: Record{
				KeyConnectable: false, KeyConnected: false, KeyOnline: false,
				KeyLastSeen: "hier soir",
			},
		},
		{
			name:  "last seen with offset and fraction",
			body:  `{"dataset": {"lastSeenDateTime": "2024-03-05T10:11:12.5+01:00"}}`,
			today: "2024-03-05",
			expect: Record{
				KeyConnectable: false, KeyConnected: false, KeyOnline: false,
				KeyLastSeen: "2024-03-05T10:11:12.500000+01:00",
			},
		},
		{name: "missing dataset", body: `{"data": {}}`, err: ErrDataNotFound},
		{name: "empty dataset list", body: `{"dataset": []}`, err: ErrDataNotFound},
		{name: "dataset is not an object", body: `{"dataset": ["a"]}`, err: ErrDataNotFound},
		{name: "top level is not an object", body: `[1, 2]`, err: ErrDataNotFound},
		{name: "not json", body: `<html>maintenance</html>`, err: ErrDataNotFound},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			record, err := parseAjaxData([]byte(test.body), test.today)
			if test.err != nil {
				require.ErrorIs(t, err, test.err)
				return
			}
			require.NoError(t, err)
			diff := cmp.Diff(test.expect, record)
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestParseDevicePage(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(devicePageHtml))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Record{
		KeyDeviceName:   "MY PERLA OPTIMUM",
		KeySerialNumber: "08K8-FJKL",
		KeyServiceDate:  "2024-06-04",
	}, parseDevicePage(doc))

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(`
		<div class="informations"><span>Mise en service le bientôt</span></div>`))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, Record{KeyServiceDate: "bientôt"}, parseDevicePage(doc))
}

func TestConvertServiceDate(t *testing.T) {
	testCases := []struct {
		in     string
		expect string
	}{
		{in: "04-06-2024", expect: "2024-06-04"},
		{in: "31-12-1999", expect: "1999-12-31"},
		{in: "2024-06-04x", expect: "2024-06-04x"},
		{in: "04/06/2024", expect: "04/06/2024"},
		{in: "bientôt", expect: "bientôt"},
		{in: "", expect: ""},
	}
	for _, test := range testCases {
		require.Equal(t, test.expect, convertServiceDate(test.in))
	}
}

func TestRecordAccessors(t *testing.T) {
	record := Record{
		KeyOnline:      true,
		KeyRegenCount:  int64(3),
		KeyWaterUse:    12.5,
		KeyLastSeen:    "2024-01-01T08:15:30+00:00",
		KeyServiceDate: "2024-06-04",
		KeyDeviceName:  "MY PERLA",
	}

	online, ok := record.GetBool(KeyOnline)
	require.True(t, ok)
	require.True(t, online)

	regen, ok := record.GetInt(KeyRegenCount)
	require.True(t, ok)
	require.Equal(t, int64(3), regen)

	water, ok := record.GetFloat(KeyWaterUse)
	require.True(t, ok)
	require.Equal(t, 12.5, water)

	lastSeen, ok := record.GetTime(KeyLastSeen)
	require.True(t, ok)
	require.Equal(t, 8, lastSeen.Hour())

	serviceDate, ok := record.GetDate(KeyServiceDate)
	require.True(t, ok)
	require.Equal(t, 4, serviceDate.Day())

	_, ok = record.GetString(KeySerialNumber)
	require.False(t, ok)
	_, ok = record.GetInt(KeyDeviceName)
	require.False(t, ok)
}
