package roborock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const rpcTimeout = 10 * time.Second

// BootstrapState captures persisted cloud login state. It is written once by
// the login flow and read on every start.
type BootstrapState struct {
	SchemaVersion int             `json:"schema_version"`
	Username      string          `json:"username"`
	UserData      json.RawMessage `json:"user_data"`
	BaseURL       string          `json:"base_url"`
}

func LoadBootstrap(path string) (BootstrapState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BootstrapState{}, fmt.Errorf("read bootstrap: %w", err)
	}

	var state BootstrapState
	if err := json.Unmarshal(data, &state); err != nil {
		return BootstrapState{}, fmt.Errorf("parse bootstrap: %w", err)
	}
	if state.SchemaVersion != 1 {
		return BootstrapState{}, fmt.Errorf("unsupported bootstrap schema_version %d", state.SchemaVersion)
	}
	if state.Username == "" {
		return BootstrapState{}, errors.New("bootstrap missing username")
	}
	if len(state.UserData) == 0 {
		return BootstrapState{}, errors.New("bootstrap missing user_data")
	}
	if state.BaseURL == "" {
		return BootstrapState{}, errors.New("bootstrap missing base_url")
	}

	return state, nil
}

func SaveBootstrap(path string, state BootstrapState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func ParseUserData(raw json.RawMessage) (*UserData, error) {
	var data UserData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse user data: %w", err)
	}
	if data.RRIOT.U == "" || data.RRIOT.S == "" || data.RRIOT.H == "" || data.RRIOT.K == "" {
		return nil, errors.New("user data missing rriot fields")
	}
	return &data, nil
}

// Client talks to devices over the Roborock cloud MQTT broker.
type Client struct {
	bootstrap BootstrapState
	userData  *UserData
	api       *APIClient

	mu       sync.Mutex
	homeData *HomeData
	devices  map[string]HomeDataDevice
	products map[string]HomeDataProduct
	mqtt     *mqttClient
}

func NewClient(bootstrapPath string) (*Client, error) {
	bootstrap, err := LoadBootstrap(bootstrapPath)
	if err != nil {
		return nil, err
	}
	userData, err := ParseUserData(bootstrap.UserData)
	if err != nil {
		return nil, err
	}

	return &Client{
		bootstrap: bootstrap,
		userData:  userData,
		api:       NewAPIClient(bootstrap.Username, bootstrap.BaseURL),
		devices:   make(map[string]HomeDataDevice),
		products:  make(map[string]HomeDataProduct),
	}, nil
}

// Close tears down the broker connection if one was opened.
func (c *Client) Close() {
	c.mu.Lock()
	mqtt := c.mqtt
	c.mqtt = nil
	c.mu.Unlock()
	if mqtt != nil {
		mqtt.disconnect()
	}
}

// Devices returns the account's devices, fetching home data on first use.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	if err := c.ensureHomeData(ctx); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Device, 0, len(c.devices))
	for _, dev := range c.devices {
		product := c.products[dev.ProductID]
		out = append(out, Device{
			ID:       dev.DUID,
			Name:     dev.Name,
			Model:    product.Model,
			Firmware: dev.Firmware,
			LocalKey: dev.LocalKey,
			Online:   dev.Online,
		})
	}
	return out, nil
}

// GetStatus fetches the device's live status fields.
func (c *Client) GetStatus(ctx context.Context, deviceID string) (any, error) {
	return c.rawRPC(ctx, deviceID, "get_status", nil)
}

// GetCleanSummary fetches the lifetime counters and record id list.
func (c *Client) GetCleanSummary(ctx context.Context, deviceID string) (any, error) {
	return c.rawRPC(ctx, deviceID, "get_clean_summary", nil)
}

// GetCleanRecord fetches one historical record by its begin timestamp id.
func (c *Client) GetCleanRecord(ctx context.Context, deviceID string, recordID int64) (any, error) {
	return c.rawRPC(ctx, deviceID, "get_clean_record", []any{recordID})
}

// GetConsumable fetches consumable wear counters.
func (c *Client) GetConsumable(ctx context.Context, deviceID string) (any, error) {
	return c.rawRPC(ctx, deviceID, "get_consumable", nil)
}

func (c *Client) rawRPC(ctx context.Context, deviceID, method string, params any) (any, error) {
	if err := c.ensureHomeData(ctx); err != nil {
		return nil, err
	}
	device, err := c.deviceByID(deviceID)
	if err != nil {
		return nil, err
	}
	return c.sendRPC(ctx, device, method, params)
}

func (c *Client) sendRPC(ctx context.Context, device HomeDataDevice, method string, params any) (any, error) {
	session, err := c.mqttSession()
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []any{}
	}
	rpcCtx, cancel := context.WithTimeout(ctx, rpcTimeout)
	defer cancel()

	req := requestMessage{
		Method:    method,
		Params:    params,
		RequestID: nextInt(10000, 32767),
		Timestamp: nowTimestamp(),
	}
	payload, err := encodeRequestPayload(req)
	if err != nil {
		return nil, err
	}
	msg := Message{
		Protocol: ProtocolGeneralReq,
		Payload:  payload,
	}

	pubTopic, subTopic := mqttTopics(c.userData, device.DUID)

	respCh := make(chan rpcResponse, 1)
	unsub, err := session.subscribe(subTopic, func(data []byte) {
		frame, err := decodeFrame(data, device.LocalKey)
		if err != nil {
			return
		}
		switch frame.Protocol {
		case ProtocolGeneralReq, ProtocolGeneralResp, ProtocolRpcResponse:
		default:
			return
		}
		resp, err := decodeResponsePayload(frame.Payload)
		if err != nil {
			return
		}
		if resp.RequestID != 0 && resp.RequestID != req.RequestID {
			return
		}
		select {
		case respCh <- resp:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	defer unsub()

	frame, err := encodeFrame(msg, device.LocalKey)
	if err != nil {
		return nil, err
	}
	if err := session.publish(pubTopic, frame); err != nil {
		return nil, err
	}

	select {
	case <-rpcCtx.Done():
		return nil, rpcCtx.Err()
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, fmt.Errorf("device error: %v", resp.Error)
		}
		return resp.Result, nil
	}
}

func (c *Client) mqttSession() (*mqttClient, error) {
	c.mu.Lock()
	if c.mqtt != nil {
		mc := c.mqtt
		c.mu.Unlock()
		return mc, nil
	}
	c.mu.Unlock()

	cfg, err := mqttConfigFromUserData(c.userData)
	if err != nil {
		return nil, err
	}
	mc, err := newMQTTClient(cfg)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.mqtt == nil {
		c.mqtt = mc
	} else {
		mc.disconnect()
		mc = c.mqtt
	}
	c.mu.Unlock()
	return mc, nil
}

func (c *Client) ensureHomeData(ctx context.Context) error {
	c.mu.Lock()
	if c.homeData != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	return c.RefreshHomeData(ctx)
}

// RefreshHomeData re-fetches the device list from the cloud.
func (c *Client) RefreshHomeData(ctx context.Context) error {
	home, err := c.api.GetHomeData(ctx, c.userData)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.homeData = home
	c.devices = make(map[string]HomeDataDevice)
	for _, dev := range home.Devices {
		c.devices[dev.DUID] = dev
	}
	for _, dev := range home.ReceivedDevices {
		c.devices[dev.DUID] = dev
	}
	c.products = make(map[string]HomeDataProduct)
	for _, prod := range home.Products {
		c.products[prod.ID] = prod
	}
	return nil
}

func (c *Client) deviceByID(id string) (HomeDataDevice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dev, ok := c.devices[id]
	if !ok {
		return HomeDataDevice{}, fmt.Errorf("device %s not found", id)
	}
	return dev, nil
}
