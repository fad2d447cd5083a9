// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/parlorbot/parlor/lib/ref"
)

// defaultRequestsPerSecond stays just under the platform's global REST
// rate limit so bursts of commands never trip server-side throttling.
const defaultRequestsPerSecond = 45

// RESTConfig holds configuration for creating a RESTProvider.
type RESTConfig struct {
	// BaseURL is the platform's REST API base URL.
	BaseURL string
	// Token is the bot token sent on every request.
	Token string
	// HTTPClient is used for all requests. If nil, http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives request logging. If nil, slog.Default().
	Logger *slog.Logger
	// RequestsPerSecond caps the outgoing request rate. If zero or
	// negative, a default just under the platform limit is used.
	RequestsPerSecond float64
}

// RESTProvider talks to the platform's REST API. It is safe for
// concurrent use; a shared client-side rate limiter serializes bursts
// across all callers.
type RESTProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	// dmMu guards dmChannels, a cache of per-user direct-message
	// channels so private notices cost one round-trip after the first.
	dmMu       sync.Mutex
	dmChannels map[ref.UserID]ref.ChannelID
}

// NewRESTProvider creates a RESTProvider.
func NewRESTProvider(config RESTConfig) (*RESTProvider, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("provider: BaseURL is required")
	}
	if config.Token == "" {
		return nil, fmt.Errorf("provider: Token is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("provider: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	requestsPerSecond := config.RequestsPerSecond
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRequestsPerSecond
	}

	return &RESTProvider{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		dmChannels: make(map[ref.UserID]ref.ChannelID),
	}, nil
}

// CloseIdleConnections drops idle HTTP connections so the next request
// opens a fresh socket. Call after a network disruption.
func (p *RESTProvider) CloseIdleConnections() {
	p.httpClient.CloseIdleConnections()
}

// doRequest performs one rate-limited HTTP request and returns the
// response body. On 4xx/5xx, returns a *APIError.
func (p *RESTProvider) doRequest(ctx context.Context, method, path string, requestBody any) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("provider: rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("provider: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("provider: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Authorization", "Bot "+p.token)

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("provider: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil {
		// Non-JSON error body. Fail loud with the raw body.
		return nil, fmt.Errorf("provider: unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode
	return responseBody, &apiErr
}

// CreateChannel creates a voice channel in a guild.
func (p *RESTProvider) CreateChannel(ctx context.Context, guild ref.GuildID, request CreateChannelRequest) (*Channel, error) {
	path := "/guilds/" + guild.String() + "/channels"
	body, err := p.doRequest(ctx, http.MethodPost, path, request)
	if err != nil {
		return nil, fmt.Errorf("provider: create channel in guild %s: %w", guild, err)
	}

	var channel Channel
	if err := json.Unmarshal(body, &channel); err != nil {
		return nil, fmt.Errorf("provider: parsing create channel response: %w", err)
	}

	p.logger.Info("created channel",
		"guild_id", guild,
		"channel_id", channel.ID,
		"name", request.Name,
	)
	return &channel, nil
}

// GetChannel fetches a channel's current state.
func (p *RESTProvider) GetChannel(ctx context.Context, channel ref.ChannelID) (*Channel, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/channels/"+channel.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("provider: get channel %s: %w", channel, err)
	}

	var result Channel
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("provider: parsing channel response: %w", err)
	}
	return &result, nil
}

// EditChannel applies a partial edit to a channel.
func (p *RESTProvider) EditChannel(ctx context.Context, channel ref.ChannelID, request EditChannelRequest) error {
	if _, err := p.doRequest(ctx, http.MethodPatch, "/channels/"+channel.String(), request); err != nil {
		return fmt.Errorf("provider: edit channel %s: %w", channel, err)
	}
	return nil
}

// DeleteChannel deletes a channel.
func (p *RESTProvider) DeleteChannel(ctx context.Context, channel ref.ChannelID) error {
	if _, err := p.doRequest(ctx, http.MethodDelete, "/channels/"+channel.String(), nil); err != nil {
		return fmt.Errorf("provider: delete channel %s: %w", channel, err)
	}
	p.logger.Info("deleted channel", "channel_id", channel)
	return nil
}

// MoveMember moves a voice-connected member into a channel.
func (p *RESTProvider) MoveMember(ctx context.Context, guild ref.GuildID, user ref.UserID, channel ref.ChannelID) error {
	path := "/guilds/" + guild.String() + "/members/" + user.String()
	body := struct {
		ChannelID ref.ChannelID `json:"channel_id"`
	}{ChannelID: channel}
	if _, err := p.doRequest(ctx, http.MethodPatch, path, body); err != nil {
		return fmt.Errorf("provider: move member %s to channel %s: %w", user, channel, err)
	}
	return nil
}

// DisconnectMember drops a member from whatever voice channel they
// occupy. The platform expresses this as a member patch with a null
// channel.
func (p *RESTProvider) DisconnectMember(ctx context.Context, guild ref.GuildID, user ref.UserID) error {
	path := "/guilds/" + guild.String() + "/members/" + user.String()
	body := map[string]any{"channel_id": nil}
	if _, err := p.doRequest(ctx, http.MethodPatch, path, body); err != nil {
		return fmt.Errorf("provider: disconnect member %s: %w", user, err)
	}
	return nil
}

// Occupants returns the members currently connected to a voice channel.
func (p *RESTProvider) Occupants(ctx context.Context, channel ref.ChannelID) ([]ref.UserID, error) {
	body, err := p.doRequest(ctx, http.MethodGet, "/channels/"+channel.String()+"/voice-states", nil)
	if err != nil {
		return nil, fmt.Errorf("provider: occupants of channel %s: %w", channel, err)
	}

	var states []struct {
		UserID ref.UserID `json:"user_id"`
	}
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, fmt.Errorf("provider: parsing voice states: %w", err)
	}

	occupants := make([]ref.UserID, 0, len(states))
	for _, state := range states {
		occupants = append(occupants, state.UserID)
	}
	return occupants, nil
}

// SendMessage posts a message to a channel.
func (p *RESTProvider) SendMessage(ctx context.Context, channel ref.ChannelID, content string) (ref.MessageID, error) {
	path := "/channels/" + channel.String() + "/messages"
	body, err := p.doRequest(ctx, http.MethodPost, path, struct {
		Content string `json:"content"`
	}{Content: content})
	if err != nil {
		return ref.MessageID{}, fmt.Errorf("provider: send message to channel %s: %w", channel, err)
	}

	var response struct {
		ID ref.MessageID `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.MessageID{}, fmt.Errorf("provider: parsing message response: %w", err)
	}
	return response.ID, nil
}

// CreateThread spins up a discussion thread anchored on a message.
func (p *RESTProvider) CreateThread(ctx context.Context, channel ref.ChannelID, message ref.MessageID, name string) (ref.ThreadID, error) {
	path := "/channels/" + channel.String() + "/messages/" + message.String() + "/threads"
	body, err := p.doRequest(ctx, http.MethodPost, path, struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return ref.ThreadID{}, fmt.Errorf("provider: create thread on message %s: %w", message, err)
	}

	var response struct {
		ID ref.ThreadID `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.ThreadID{}, fmt.Errorf("provider: parsing thread response: %w", err)
	}
	return response.ID, nil
}

// DeleteThread deletes a thread. Threads share the channel namespace
// on the platform, so this is a channel deletion.
func (p *RESTProvider) DeleteThread(ctx context.Context, thread ref.ThreadID) error {
	if _, err := p.doRequest(ctx, http.MethodDelete, "/channels/"+thread.String(), nil); err != nil {
		return fmt.Errorf("provider: delete thread %s: %w", thread, err)
	}
	return nil
}

// NotifyMember delivers a private message to a user, opening (and
// caching) the direct-message channel on first use.
func (p *RESTProvider) NotifyMember(ctx context.Context, user ref.UserID, content string) error {
	dmChannel, err := p.directChannel(ctx, user)
	if err != nil {
		return err
	}
	if _, err := p.SendMessage(ctx, dmChannel, content); err != nil {
		return fmt.Errorf("provider: notify member %s: %w", user, err)
	}
	return nil
}

// directChannel returns the direct-message channel for a user, from
// cache or by asking the platform to open one.
func (p *RESTProvider) directChannel(ctx context.Context, user ref.UserID) (ref.ChannelID, error) {
	p.dmMu.Lock()
	cached, ok := p.dmChannels[user]
	p.dmMu.Unlock()
	if ok {
		return cached, nil
	}

	body, err := p.doRequest(ctx, http.MethodPost, "/users/@me/channels", struct {
		RecipientID ref.UserID `json:"recipient_id"`
	}{RecipientID: user})
	if err != nil {
		return ref.ChannelID{}, fmt.Errorf("provider: open direct channel to %s: %w", user, err)
	}

	var response struct {
		ID ref.ChannelID `json:"id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return ref.ChannelID{}, fmt.Errorf("provider: parsing direct channel response: %w", err)
	}

	p.dmMu.Lock()
	p.dmChannels[user] = response.ID
	p.dmMu.Unlock()
	return response.ID, nil
}

// MemberDisplayName returns a member's guild-scoped display name:
// the guild nickname when set, otherwise the account display name,
// otherwise the username.
func (p *RESTProvider) MemberDisplayName(ctx context.Context, guild ref.GuildID, user ref.UserID) (string, error) {
	path := "/guilds/" + guild.String() + "/members/" + user.String()
	body, err := p.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return "", fmt.Errorf("provider: member %s in guild %s: %w", user, guild, err)
	}

	var member struct {
		Nick string `json:"nick"`
		User struct {
			Username    string `json:"username"`
			DisplayName string `json:"global_name"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &member); err != nil {
		return "", fmt.Errorf("provider: parsing member response: %w", err)
	}

	switch {
	case member.Nick != "":
		return member.Nick, nil
	case member.User.DisplayName != "":
		return member.User.DisplayName, nil
	default:
		return member.User.Username, nil
	}
}
