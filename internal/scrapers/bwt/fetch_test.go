package bwt

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func loggedInClient(t *testing.T, portal *fakePortal, today time.Time) *Client {
	server := portal.start(t)
	client, _ := newTestClient(t, server, today)
	err := client.Authenticate(context.Background(), testUsername, testPassword)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestGetDeviceData(t *testing.T) {
	portal := newFakePortal()
	client := loggedInClient(t, portal, day(2024, 1, 1))

	record, err := client.GetDeviceData(context.Background())
	require.NoError(t, err)

	expected := Record{
		KeyConnectable:  true,
		KeyConnected:    true,
		KeyOnline:       false,
		KeyLastSeen:     "2024-01-01T08:15:30+00:00",
		KeyDataDate:     "2024-01-01",
		KeyRegenCount:   int64(3),
		KeyPowerOutage:  int64(0),
		KeyWaterUse:     int64(120),
		KeySaltAlarm:    int64(0),
		KeyDeviceName:   "MY PERLA OPTIMUM",
		KeySerialNumber: "08K8-FJKL",
		KeyServiceDate:  "2024-06-04",
	}
	diff := cmp.Diff(expected, record)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Equal(t, "RLK-12345", portal.lastAjaxQuery)
	require.Equal(t, "XMLHttpRequest", portal.lastAjaxHeaders.Get("X-Requested-With"))
	require.Equal(t, client.BaseUrl.String()+"/device?receiptLineKey=RLK-12345", portal.lastAjaxHeaders.Get("Referer"))
}

func TestGetDeviceDataNoHistoryForToday(t *testing.T) {
	portal := newFakePortal()
	portal.ajaxBody = `{"dataset": {
		"deviceDataHistory": {
			"codes": ["date", "regenCount", "powerOutage", "waterUse", "saltAlarm"],
			"lines": [["2024-01-01", 3, 0, 120, 0]]
		}
	}}`
	client := loggedInClient(t, portal, day(2024, 1, 2))

	record, err := client.GetDeviceData(context.Background())
	require.NoError(t, err)

	require.Equal(t, "2024-01-02", record[KeyDataDate])
	require.Equal(t, int64(0), record[KeyRegenCount])
	require.Equal(t, int64(0), record[KeyPowerOutage])
	require.Equal(t, int64(0), record[KeyWaterUse])
	require.Equal(t, int64(0), record[KeySaltAlarm])
	require.Equal(t, false, record[KeyConnected])
}

func TestGetDeviceDataReauthenticatesOnce(t *testing.T) {
	portal := newFakePortal()
	portal.ajaxStatuses = []int{http.StatusUnauthorized}
	client := loggedInClient(t, portal, day(2024, 1, 1))

	record, err := client.GetDeviceData(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, portal.loginPosts)
	require.Equal(t, 2, portal.ajaxHit)
	// only the chart endpoint is retried
	require.Equal(t, 0, portal.deviceHit)
	require.Equal(t, int64(3), record[KeyRegenCount])
	require.NotContains(t, record, KeySerialNumber)
	require.True(t, client.IsAuthenticated())
}

func TestGetDeviceDataSecondExpiryFails(t *testing.T) {
	portal := newFakePortal()
	portal.ajaxStatuses = []int{http.StatusUnauthorized, http.StatusUnauthorized}
	client := loggedInClient(t, portal, day(2024, 1, 1))

	_, err := client.GetDeviceData(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	require.Equal(t, 2, portal.ajaxHit)
	require.Equal(t, 2, portal.loginPosts)
}

func TestGetDeviceDataDevicePageExpiry(t *testing.T) {
	portal := newFakePortal()
	portal.deviceStatuses = []int{http.StatusForbidden}
	client := loggedInClient(t, portal, day(2024, 1, 1))

	record, err := client.GetDeviceData(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, portal.deviceHit)
	require.Equal(t, 2, portal.ajaxHit)
	require.NotContains(t, record, KeyDeviceName)
}

func TestGetDeviceDataServerOverload(t *testing.T) {
	portal := newFakePortal()
	portal.ajaxStatuses = []int{http.StatusInternalServerError}
	client := loggedInClient(t, portal, day(2024, 1, 1))

	_, err := client.GetDeviceData(context.Background())
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorContains(t, err, "server overload")
	require.Equal(t, 1, portal.ajaxHit)
	require.Equal(t, 1, portal.loginPosts)
}

func TestGetDeviceDataMalformedJson(t *testing.T) {
	portal := newFakePortal()
	portal.ajaxBody = `{"data": []}`
	client := loggedInClient(t, portal, day(2024, 1, 1))

	_, err := client.GetDeviceData(context.Background())
	require.ErrorIs(t, err, ErrDataNotFound)
}

func TestGetDeviceDataResolvesKeyLazily(t *testing.T) {
	portal := newFakePortal()
	client := loggedInClient(t, portal, day(2024, 1, 1))

	_, err := client.GetDeviceData(context.Background())
	require.NoError(t, err)
	_, err = client.GetDeviceData(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, portal.dashboardHit)
	require.Equal(t, 2, portal.ajaxHit)
	require.Equal(t, 2, portal.deviceHit)
}

func TestMergeJsonWins(t *testing.T) {
	htmlData := Record{KeySerialNumber: "from-html", KeyDeviceName: "PERLA"}
	ajaxData := Record{KeySerialNumber: "from-json", KeyOnline: true}

	merged := merge(htmlData, ajaxData)
	require.Equal(t, Record{
		KeySerialNumber: "from-json",
		KeyDeviceName:   "PERLA",
		KeyOnline:       true,
	}, merged)
}

func TestCloseTwice(t *testing.T) {
	portal := newFakePortal()
	client := loggedInClient(t, portal, day(2024, 1, 1))

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	require.False(t, client.IsAuthenticated())

	_, err := client.GetDeviceData(context.Background())
	require.ErrorIs(t, err, ErrConnection)
}
