package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/cnergy/cnergy/core/metrics"
	"github.com/cnergy/cnergy/infra/logger"
)

// InfluxSink writes market events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordTrades writes completed matches as line protocol events.
func (s *InfluxSink) RecordTrades(recs []coremetrics.TradeRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("market_trade").
			AddTag("buy_owner", r.BuyOwner).
			AddTag("sell_owner", r.SellOwner).
			AddTag("buy_id", strconv.FormatInt(r.BuyID, 10)).
			AddTag("sell_id", strconv.FormatInt(r.SellID, 10)).
			AddTag("component", "market_engine").
			AddField("qty_kwh", round3(r.Qty)).
			AddField("price", round3(r.Price)).
			AddField("tick", r.Tick).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordClearing persists the outcome of one batch auction interval.
func (s *InfluxSink) RecordClearing(rec coremetrics.ClearingRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("market_clearing").
		AddTag("component", "auction_engine").
		AddField("price", round3(rec.Price)).
		AddField("cleared_kwh", round3(rec.ClearedQty)).
		AddField("offers", rec.Offers).
		AddField("bids", rec.Bids).
		AddField("tick", rec.Tick).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOrderFlow writes a snapshot of one order lifecycle transition.
func (s *InfluxSink) RecordOrderFlow(rec coremetrics.OrderFlowRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("market_order_flow").
		AddTag("owner", rec.Owner).
		AddTag("side", rec.Side.String()).
		AddTag("action", rec.Action).
		AddTag("order_id", strconv.FormatInt(rec.OrderID, 10)).
		AddTag("component", "market_engine").
		AddField("qty_kwh", round3(rec.Qty)).
		AddField("price", round3(rec.Price)).
		AddField("tick", rec.Tick).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordPrice writes the broadcast market price.
func (s *InfluxSink) RecordPrice(price float64, tick int64, t time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("market_price").
		AddTag("component", "market_engine").
		AddField("price", round3(price)).
		AddField("tick", tick).
		SetTime(t)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
