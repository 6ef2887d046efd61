package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/cnergy/cnergy/core/metrics"
)

func TestInfluxSink_RecordTrades(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	rec := coremetrics.TradeRecord{
		BuyID:     2,
		SellID:    1,
		BuyOwner:  "consumer-1",
		SellOwner: "solar-1",
		Qty:       6,
		Price:     0.05,
		Tick:      4,
		Time:      now,
	}

	if err := sink.RecordTrades([]coremetrics.TradeRecord{rec}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("market_trade").
		AddTag("buy_owner", "consumer-1").
		AddTag("sell_owner", "solar-1").
		AddTag("buy_id", "2").
		AddTag("sell_id", "1").
		AddTag("component", "market_engine").
		AddField("qty_kwh", 6.0).
		AddField("price", 0.05).
		AddField("tick", int64(4)).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"pass"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if _, nop := NewInfluxSinkWithFallback(srv.URL, "t", "o", "b").(coremetrics.NopSink); nop {
		t.Fatalf("expected live sink when health check passes")
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	down.Close()

	if _, nop := NewInfluxSinkWithFallback(down.URL, "t", "o", "b").(coremetrics.NopSink); !nop {
		t.Fatalf("expected NopSink fallback when health check fails")
	}
}
