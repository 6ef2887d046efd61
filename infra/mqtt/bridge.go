// Package mqtt republishes market events to an MQTT broker for external
// dashboards. The bridge is a passive observer: it subscribes to the market's
// event bus and never feeds anything back into the engine.
package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/cnergy/cnergy/core/events"
	"github.com/cnergy/cnergy/core/market"
	"github.com/cnergy/cnergy/infra/logger"
)

// Config defines the connection parameters for the dashboard bridge.
type Config struct {
	Enabled     bool   `json:"enabled"`
	Broker      string `json:"broker"`
	ClientID    string `json:"client_id"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	TopicPrefix string `json:"topic_prefix"`
	QoS         byte   `json:"qos"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "cnergy/market"
	}
	if c.ClientID == "" {
		c.ClientID = "cnergy-bridge-" + uuid.NewString()[:8]
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Bridge publishes trade, price and clearing events as JSON messages.
type Bridge struct {
	cli    pahoClient
	cfg    Config
	logger logger.Logger
}

// NewBridge connects to the MQTT broker.
func NewBridge(cfg Config) (*Bridge, error) {
	cfg.SetDefaults()
	log := logger.New("mqtt_bridge")
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Bridge{cli: c, cfg: cfg, logger: log}, nil
}

// Run consumes the observer bus until the context is canceled, then
// disconnects.
func (b *Bridge) Run(ctx context.Context, fan *market.Fanout) {
	sub := fan.Observe(256)
	defer fan.Unobserve(sub)
	defer b.cli.Disconnect(250)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			b.handle(ev)
		}
	}
}

func (b *Bridge) handle(ev any) {
	switch e := ev.(type) {
	case events.TradeEvent:
		b.publish("trades", map[string]any{
			"buy_id":     e.Trade.BuyID,
			"sell_id":    e.Trade.SellID,
			"buy_owner":  e.Trade.BuyOwner,
			"sell_owner": e.Trade.SellOwner,
			"qty":        e.Trade.Qty,
			"price":      e.Trade.Price,
			"tick":       e.Trade.Tick,
		})
	case events.PriceEvent:
		b.publish("price", map[string]any{"price": e.Price, "tick": e.Tick})
	case events.ClearingEvent:
		b.publish("clearing", map[string]any{
			"price":   e.Result.Price,
			"cleared": e.Result.ClearedQty,
			"tick":    e.Result.Tick,
		})
	case events.OrderEvent:
		b.publish("orders", map[string]any{
			"id":     e.Order.ID,
			"owner":  string(e.Order.Owner),
			"side":   e.Order.Side.String(),
			"qty":    e.Order.Qty,
			"price":  e.Order.Price,
			"action": string(e.Action),
		})
	}
}

func (b *Bridge) publish(topic string, payload map[string]any) {
	payload["ts"] = time.Now().UnixMilli()
	data, err := json.Marshal(payload)
	if err != nil {
		b.logger.Errorf("marshal %s event: %v", topic, err)
		return
	}
	full := b.cfg.TopicPrefix + "/" + topic
	if token := b.cli.Publish(full, b.cfg.QoS, false, data); token.Wait() && token.Error() != nil {
		b.logger.Errorf("publish %s: %v", full, token.Error())
	}
}
