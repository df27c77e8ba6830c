package roborock

import (
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type mqttClient struct {
	client mqtt.Client
	mu     sync.Mutex
	subs   map[string]map[int]func([]byte)
	nextID int
}

type mqttConfig struct {
	host     string
	port     int
	tls      bool
	username string
	password string
}

func newMQTTClient(cfg mqttConfig) (*mqttClient, error) {
	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if cfg.tls {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.host, cfg.port))
	opts.SetUsername(cfg.username)
	opts.SetPassword(cfg.password)
	opts.SetClientID(randomClientID())
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	mc := &mqttClient{subs: make(map[string]map[int]func([]byte))}
	opts.SetDefaultPublishHandler(mc.dispatch)
	opts.OnConnect = func(_ mqtt.Client) {
		mc.resubscribeAll()
	}
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	mc.client = client
	return mc, nil
}

func (c *mqttClient) subscribe(topic string, cb func([]byte)) (func(), error) {
	c.mu.Lock()
	if c.subs[topic] == nil {
		c.subs[topic] = make(map[int]func([]byte))
	}
	id := c.nextID
	c.nextID++
	c.subs[topic][id] = cb
	needSubscribe := len(c.subs[topic]) == 1
	c.mu.Unlock()

	if needSubscribe {
		if token := c.client.Subscribe(topic, 0, nil); token.Wait() && token.Error() != nil {
			return nil, token.Error()
		}
	}

	return func() {
		c.mu.Lock()
		callbacks := c.subs[topic]
		if callbacks == nil {
			c.mu.Unlock()
			return
		}
		delete(callbacks, id)
		shouldUnsub := len(callbacks) == 0
		if shouldUnsub {
			delete(c.subs, topic)
		}
		c.mu.Unlock()
		if shouldUnsub {
			_ = c.client.Unsubscribe(topic).Wait()
		}
	}, nil
}

func (c *mqttClient) publish(topic string, payload []byte) error {
	if token := c.client.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (c *mqttClient) dispatch(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	callbacks := c.subs[msg.Topic()]
	list := make([]func([]byte), 0, len(callbacks))
	for _, cb := range callbacks {
		list = append(list, cb)
	}
	c.mu.Unlock()
	for _, cb := range list {
		cb(msg.Payload())
	}
}

func (c *mqttClient) resubscribeAll() {
	c.mu.Lock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	c.mu.Unlock()
	for _, topic := range topics {
		_ = c.client.Subscribe(topic, 0, nil).Wait()
	}
}

func (c *mqttClient) disconnect() {
	c.client.Disconnect(250)
}

func mqttConfigFromUserData(userData *UserData) (mqttConfig, error) {
	if userData == nil {
		return mqttConfig{}, errors.New("missing user data")
	}
	rawURL := userData.RRIOT.R.M
	if rawURL == "" {
		return mqttConfig{}, errors.New("missing rriot mqtt url")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return mqttConfig{}, err
	}
	if parsed.Hostname() == "" || parsed.Port() == "" {
		return mqttConfig{}, fmt.Errorf("invalid mqtt url %q", rawURL)
	}
	port := 0
	_, _ = fmt.Sscanf(parsed.Port(), "%d", &port)
	if port == 0 {
		return mqttConfig{}, fmt.Errorf("invalid mqtt port %q", parsed.Port())
	}
	return mqttConfig{
		host:     parsed.Hostname(),
		port:     port,
		tls:      parsed.Scheme == "ssl",
		username: mqttUsername(userData.RRIOT),
		password: md5Hex([]byte(userData.RRIOT.S + ":" + userData.RRIOT.K))[16:],
	}, nil
}

func mqttUsername(rriot RRiot) string {
	return md5Hex([]byte(rriot.U + ":" + rriot.K))[2:10]
}

func mqttTopics(userData *UserData, deviceID string) (pub string, sub string) {
	user := mqttUsername(userData.RRIOT)
	return fmt.Sprintf("rr/m/i/%s/%s/%s", userData.RRIOT.U, user, deviceID),
		fmt.Sprintf("rr/m/o/%s/%s/%s", userData.RRIOT.U, user, deviceID)
}

func randomClientID() string {
	nonce := make([]byte, 8)
	_, _ = rand.Read(nonce)
	return "rrpipe-" + base64.RawURLEncoding.EncodeToString(nonce)
}
