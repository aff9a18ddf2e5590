package crm

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var reportHeader = []any{
	"Order", "URL", "Supplier", "Warehouse", "Pickup point", "Brand", "Article",
	"Planned", "Arrived", "Ordered", "Deviation (min)",
}

func buildReport(t *testing.T, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &reportHeader))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestChunks(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 1, d, 15, 30, 0, 0, time.UTC) }

	chunks := Chunks(day(1), day(31), 14)
	require.Len(t, chunks, 3)
	assert.Equal(t, "2024-01-01..2024-01-14", chunks[0].String())
	assert.Equal(t, "2024-01-15..2024-01-28", chunks[1].String())
	assert.Equal(t, "2024-01-29..2024-01-31", chunks[2].String())

	assert.Len(t, Chunks(day(5), day(5), 14), 1, "single day is one chunk")
	assert.Empty(t, Chunks(day(6), day(5), 14), "reversed range has no chunks")
}

func TestParseReport(t *testing.T) {
	body := buildReport(t,
		[]any{"1001", "u", "Acme", "Main", "PV1", "B", "A-1", "01.03.2024 12:00:00", "01.03.2024 12:45:00", "01.03.2024 09:10:00", "45"},
		[]any{"1002", "u", "Acme", "Main", "", "B", "A-2", "bad", "", "2024-03-02 08:00:00", "-12,5"},
		[]any{"", "", "", "", "", "", "", "", "", "", ""},
	)

	recs, err := ParseReport(bytes.NewReader(body), time.UTC)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, "1001", first.OrderID)
	assert.Equal(t, "PV1", first.PickupPoint)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 10, 0, 0, time.UTC), first.OrderedAt)
	assert.InDelta(t, 45.0, first.Deviation(), 1e-9)

	second := recs[1]
	assert.True(t, second.PlannedAt.IsZero())
	assert.Equal(t, time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC), second.OrderedAt)
	require.NotNil(t, second.ReportedDeviation)
	assert.InDelta(t, -12.5, *second.ReportedDeviation, 1e-9)
}

func TestParseReport_TooFewColumns(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Order", "Supplier"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	_, err = ParseReport(bytes.NewReader(buf.Bytes()), time.UTC)
	assert.Error(t, err)
}

func TestParseTime_ExcelSerial(t *testing.T) {
	// 45352.5 is 2024-03-01 12:00.
	got := parseTime("45352.5", time.UTC)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), got)
	assert.True(t, parseTime("yesterday", time.UTC).IsZero())
}

func TestFetchOrders(t *testing.T) {
	report := buildReport(t,
		[]any{"1001", "u", "Acme", "Main", "PV1", "B", "A-1", "01.03.2024 12:00", "01.03.2024 12:45", "01.03.2024 09:10", "45"},
	)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/logistic/delivery_statistic", r.URL.Path)
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))
		assert.NotEmpty(t, r.URL.Query().Get("fromDate"))
		assert.NotEmpty(t, r.URL.Query().Get("toDate"))
		w.Write(report)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL + "/", Cookie: "session=abc", ChunkDays: 7, Location: time.UTC})
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	recs, err := client.FetchOrders(context.Background(), from, from.AddDate(0, 0, 20))
	require.NoError(t, err)

	assert.Equal(t, int32(3), calls.Load())
	// Every chunk returns the same row; duplicates are dropped.
	assert.Len(t, recs, 1)
}

func TestFetchOrders_HTMLIsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!DOCTYPE html><HTML><body>Login</body></HTML>"))
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Location: time.UTC})
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchOrders(context.Background(), day, day)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestFetchOrders_StatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, Location: time.UTC})
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := client.FetchOrders(context.Background(), day, day)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "500")
}

func TestOrderURL(t *testing.T) {
	assert.Equal(t, "https://crm.example.com/crm/order/123", OrderURL("https://crm.example.com/", " 123 "))
}
