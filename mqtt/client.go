package mqtt

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/NguyenNhut0910/RaspberryPi4B-Server/collector"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/config"
	"github.com/NguyenNhut0910/RaspberryPi4B-Server/logger"
)

// Client wraps the paho MQTT session and hands inbound messages to the
// collector loop over a channel
type Client struct {
	client   mqtt.Client
	config   config.MQTTConfig
	messages chan collector.Message
}

// NewClient creates a new MQTT transport client
func NewClient(cfg config.MQTTConfig) (*Client, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address cannot be empty")
	}

	c := &Client{
		config:   cfg,
		messages: make(chan collector.Message, 16),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port))

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("pi_mqtt-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Error("MQTT connection lost: %v", err)
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info("trying to reconnect to MQTT broker...")
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// Connect connects to the MQTT broker
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("connection to MQTT broker timed out")
	}

	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("successfully connected to MQTT broker: %s:%d", c.config.Broker, c.config.Port)
	return nil
}

// Subscribe subscribes to the specified topic at QoS 0. Deliveries are
// pushed onto the message channel so the collector processes them one at
// a time; delivery is acknowledged regardless of processing outcome.
func (c *Client) Subscribe(topic string) error {
	token := c.client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		c.messages <- collector.Message{Topic: msg.Topic(), Payload: msg.Payload()}
	})

	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscription to topic %s timed out", topic)
	}

	if err := token.Error(); err != nil {
		return err
	}

	logger.Info("successfully subscribed to topic: %s", topic)
	return nil
}

// Messages returns the inbound delivery channel
func (c *Client) Messages() <-chan collector.Message {
	return c.messages
}

// Disconnect disconnects from the MQTT broker
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
	logger.Info("disconnected from MQTT broker")
}
