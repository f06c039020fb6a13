// Package mqttclient subscribes to transcript topics on an MQTT broker.
package mqttclient

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// DefaultTopic is used when no topics are configured.
const DefaultTopic = "meetmate/transcripts"

// MessageHandler receives the payload of every accepted message.
type MessageHandler func(topic string, payload []byte)

type Client struct {
	conn    mqtt.Client
	topics  []string
	qos     byte
	handler MessageHandler
	log     zerolog.Logger

	connected atomic.Bool
	received  atomic.Int64
	skipped   atomic.Int64
}

type Options struct {
	BrokerURL string
	ClientID  string
	Topics    string
	Username  string
	Password  string
	// QoS for subscriptions. 1 lets the broker redeliver transcripts sent
	// while the connection was down.
	QoS            byte
	ConnectTimeout time.Duration
	Handler        MessageHandler
	Log            zerolog.Logger
}

// Connect dials the broker. Topics are (re)subscribed on every connect, so
// subscriptions survive auto-reconnect.
func Connect(opts Options) (*Client, error) {
	if opts.Handler == nil {
		return nil, errors.New("mqttclient: handler is required")
	}
	if opts.QoS > 2 {
		opts.QoS = 1
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	c := &Client{
		topics:  ParseTopics(opts.Topics),
		qos:     opts.QoS,
		handler: opts.Handler,
		log:     opts.Log,
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	c.conn = mqtt.NewClient(clientOpts)
	token := c.conn.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		c.conn.Disconnect(0)
		return nil, errors.New("mqttclient: connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)
	c.log.Info().Strs("topics", c.topics).Int("qos", int(c.qos)).Msg("mqtt connected, subscribing")

	filters := make(map[string]byte, len(c.topics))
	for _, t := range c.topics {
		filters[t] = c.qos
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		c.log.Error().Err(err).Msg("mqtt subscribe failed")
	}
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	c.connected.Store(false)
	c.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// onMessage skips retained messages: a retained transcript was already
// logged when it was first published and would be appended again on every
// reconnect.
func (c *Client) onMessage(_ mqtt.Client, msg mqtt.Message) {
	if msg.Retained() {
		c.skipped.Add(1)
		c.log.Debug().Str("topic", msg.Topic()).Msg("retained mqtt message skipped")
		return
	}
	c.received.Add(1)
	c.handler(msg.Topic(), msg.Payload())
}

// IsConnected is safe to call on a nil client.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	return c.connected.Load()
}

// Received returns the number of messages passed to the handler.
func (c *Client) Received() int64 { return c.received.Load() }

func (c *Client) Close() {
	c.log.Info().
		Int64("received", c.received.Load()).
		Int64("retained_skipped", c.skipped.Load()).
		Msg("disconnecting mqtt client")
	c.conn.Disconnect(1000)
}

// ParseTopics splits a comma-separated topic list, falling back to
// DefaultTopic when it is empty.
func ParseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			topics = append(topics, t)
		}
	}
	if len(topics) == 0 {
		return []string{DefaultTopic}
	}
	return topics
}
