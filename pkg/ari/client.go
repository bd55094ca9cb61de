// Package ari implements the PBX Control Adapter: the REST half talks to
// Asterisk's ARI over plain HTTP/JSON, the event half (events.go) consumes
// its WebSocket event stream. Together they satisfy gateway.PBXAdapter.
package ari

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/callbridge/voicegateway/pkg/gateway"
)

// Client is the REST half of the PBX Control Adapter, grounded on the
// teacher's DeepgramSTT/AnthropicLLM shape: a base URL plus credentials, one
// *http.Client, and one method per remote operation, each building a
// request, checking the status code explicitly, and decoding JSON into an
// anonymous result struct.
type Client struct {
	baseURL  string
	username string
	password string
	appName  string
	http     *http.Client
}

// NewClient builds a Client against an ARI base URL such as
// "http://127.0.0.1:8088/ari", authenticating with HTTP basic auth the way
// Asterisk's ARI expects. appName is the Stasis application name channels
// must be running in for REST operations against them to succeed.
func NewClient(baseURL, username, password, appName string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		appName:  appName,
		http:     http.DefaultClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return gateway.ErrPBXNotFound
	}
	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("ari %s %s: status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Answer answers channelID. Satisfies gateway.PBXAdapter.
func (c *Client) Answer(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/answer", nil, nil, nil)
}

// CreateMixerBridge creates a "mixing" bridge and returns its id.
func (c *Client) CreateMixerBridge(ctx context.Context) (string, error) {
	query := url.Values{"type": []string{"mixing"}}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/bridges", query, nil, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// AddToBridge adds channelID to bridgeID.
func (c *Client) AddToBridge(ctx context.Context, bridgeID, channelID string) error {
	query := url.Values{"channel": []string{channelID}}
	return c.do(ctx, http.MethodPost, "/bridges/"+bridgeID+"/addChannel", query, nil, nil)
}

// CreateMediaInjectionChannel originates an "external media" channel that
// accepts RTP at host:port encoded in codec, returning its channel id.
func (c *Client) CreateMediaInjectionChannel(ctx context.Context, host string, port int, codec string) (string, error) {
	query := url.Values{
		"app":            []string{c.appName},
		"external_host":  []string{host + ":" + strconv.Itoa(port)},
		"format":         []string{codec},
		"transport":      []string{"udp"},
		"encapsulation":  []string{"rtp"},
		"connection_type": []string{"client"},
		"direction":      []string{"both"},
	}
	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels/externalMedia", query, nil, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// CreateListenerChannel originates a "Snoop" channel spying on
// sourceChannelID's audio in spyDirection ("in", "out", or "both"),
// returning its channel id.
func (c *Client) CreateListenerChannel(ctx context.Context, sourceChannelID, spyDirection string) (string, error) {
	query := url.Values{
		"app":   []string{c.appName},
		"spy":   []string{spyDirection},
		"whisper": []string{"none"},
	}
	var result struct {
		ID string `json:"id"`
	}
	path := "/channels/" + sourceChannelID + "/snoop"
	if err := c.do(ctx, http.MethodPost, path, query, nil, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// Play starts playback of mediaRef on channelID, returning a playback
// handle the orchestrator later correlates against PlaybackFinished events.
func (c *Client) Play(ctx context.Context, channelID, mediaRef string) (string, error) {
	query := url.Values{"media": []string{mediaRef}}
	var result struct {
		ID string `json:"id"`
	}
	path := "/channels/" + channelID + "/play"
	if err := c.do(ctx, http.MethodPost, path, query, nil, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// StopPlayback stops the playback identified by handle. A 404 (already
// finished) is surfaced as gateway.ErrPBXNotFound, which cleanup absorbs.
func (c *Client) StopPlayback(ctx context.Context, handle string) error {
	return c.do(ctx, http.MethodDelete, "/playbacks/"+handle, nil, nil, nil)
}

// SetChannelVar sets a channel variable, used for DTMF_RESULT.
func (c *Client) SetChannelVar(ctx context.Context, channelID, name, value string) error {
	query := url.Values{"variable": []string{name}, "value": []string{value}}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/variable", query, nil, nil)
}

// SetTalkDetect enables the TALK_DETECT channel variable at the given
// energy and silence thresholds.
func (c *Client) SetTalkDetect(ctx context.Context, channelID string, energy, silenceMs int) error {
	value := strconv.Itoa(silenceMs) + "," + strconv.Itoa(energy)
	query := url.Values{"variable": []string{"TALK_DETECT(set)"}, "value": []string{value}}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/variable", query, nil, nil)
}

// RemoveTalkDetect disables talk-detection on channelID.
func (c *Client) RemoveTalkDetect(ctx context.Context, channelID string) error {
	query := url.Values{"variable": []string{"TALK_DETECT(remove)"}}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/variable", query, nil, nil)
}

// ContinueInDialplan returns channelID to the dialplan, leaving the Stasis
// application. Used on every cleanup path so the PBX can play a fallback
// message or route the call onward.
func (c *Client) ContinueInDialplan(ctx context.Context, channelID string) error {
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/continue", nil, nil, nil)
}
