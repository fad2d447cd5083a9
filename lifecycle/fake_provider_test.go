// Copyright 2026 The Parlor Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/parlorbot/parlor/lib/ref"
	"github.com/parlorbot/parlor/provider"
)

// fakeProvider is an in-memory Provider: channels, voice occupancy,
// and private notices, with per-method error injection.
type fakeProvider struct {
	mu sync.Mutex

	nextID    int
	channels  map[ref.ChannelID]*provider.Channel
	occupants map[ref.ChannelID][]ref.UserID
	threads   map[ref.ThreadID]ref.ChannelID
	notices   map[ref.UserID][]string
	names     map[ref.UserID]string

	createCalls int
	editCalls   int

	createErr error
	moveErr   error
	editErr   error
	deleteErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		nextID:    1000,
		channels:  make(map[ref.ChannelID]*provider.Channel),
		occupants: make(map[ref.ChannelID][]ref.UserID),
		threads:   make(map[ref.ThreadID]ref.ChannelID),
		notices:   make(map[ref.UserID][]string),
		names:     make(map[ref.UserID]string),
	}
}

var _ provider.Provider = (*fakeProvider)(nil)

func notFound() error {
	return &provider.APIError{Code: provider.CodeUnknownChannel, Message: "Unknown Channel", StatusCode: 404}
}

func (f *fakeProvider) allocate() ref.ChannelID {
	f.nextID++
	return ref.MustParseChannelID(fmt.Sprintf("%d", f.nextID))
}

func (f *fakeProvider) CreateChannel(ctx context.Context, guildID ref.GuildID, request provider.CreateChannelRequest) (*provider.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	channel := &provider.Channel{
		ID:         f.allocate(),
		Guild:      guildID,
		Name:       request.Name,
		Category:   request.Category,
		Capacity:   request.Capacity,
		Overwrites: slices.Clone(request.Overwrites),
	}
	f.channels[channel.ID] = channel
	snapshot := *channel
	return &snapshot, nil
}

func (f *fakeProvider) GetChannel(ctx context.Context, channelID ref.ChannelID) (*provider.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, exists := f.channels[channelID]
	if !exists {
		return nil, notFound()
	}
	snapshot := *channel
	snapshot.Overwrites = slices.Clone(channel.Overwrites)
	return &snapshot, nil
}

func (f *fakeProvider) EditChannel(ctx context.Context, channelID ref.ChannelID, request provider.EditChannelRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls++
	if f.editErr != nil {
		return f.editErr
	}
	channel, exists := f.channels[channelID]
	if !exists {
		return notFound()
	}
	if request.Name != nil {
		channel.Name = *request.Name
	}
	if request.Capacity != nil {
		channel.Capacity = *request.Capacity
	}
	if request.Overwrites != nil {
		channel.Overwrites = slices.Clone(request.Overwrites)
	}
	return nil
}

func (f *fakeProvider) DeleteChannel(ctx context.Context, channelID ref.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, exists := f.channels[channelID]; !exists {
		return notFound()
	}
	delete(f.channels, channelID)
	delete(f.occupants, channelID)
	return nil
}

func (f *fakeProvider) MoveMember(ctx context.Context, guildID ref.GuildID, user ref.UserID, channelID ref.ChannelID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	if _, exists := f.channels[channelID]; !exists {
		return notFound()
	}
	f.removeOccupant(user)
	f.occupants[channelID] = append(f.occupants[channelID], user)
	return nil
}

func (f *fakeProvider) DisconnectMember(ctx context.Context, guildID ref.GuildID, user ref.UserID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeOccupant(user)
	return nil
}

func (f *fakeProvider) removeOccupant(user ref.UserID) {
	for channelID, users := range f.occupants {
		f.occupants[channelID] = slices.DeleteFunc(users, func(u ref.UserID) bool { return u == user })
	}
}

func (f *fakeProvider) Occupants(ctx context.Context, channelID ref.ChannelID) ([]ref.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.channels[channelID]; !exists {
		return nil, notFound()
	}
	return slices.Clone(f.occupants[channelID]), nil
}

func (f *fakeProvider) SendMessage(ctx context.Context, channelID ref.ChannelID, content string) (ref.MessageID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.channels[channelID]; !exists {
		return ref.MessageID{}, notFound()
	}
	f.nextID++
	return ref.MustParseMessageID(fmt.Sprintf("%d", f.nextID)), nil
}

func (f *fakeProvider) CreateThread(ctx context.Context, channelID ref.ChannelID, message ref.MessageID, name string) (ref.ThreadID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.channels[channelID]; !exists {
		return ref.ThreadID{}, notFound()
	}
	f.nextID++
	thread := ref.MustParseThreadID(fmt.Sprintf("%d", f.nextID))
	f.threads[thread] = channelID
	return thread, nil
}

func (f *fakeProvider) DeleteThread(ctx context.Context, thread ref.ThreadID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.threads[thread]; !exists {
		return notFound()
	}
	delete(f.threads, thread)
	return nil
}

func (f *fakeProvider) NotifyMember(ctx context.Context, user ref.UserID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices[user] = append(f.notices[user], content)
	return nil
}

func (f *fakeProvider) MemberDisplayName(ctx context.Context, guildID ref.GuildID, user ref.UserID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if name, known := f.names[user]; known {
		return name, nil
	}
	return "member " + user.String(), nil
}

// --- inspection helpers ---

func (f *fakeProvider) channelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.channels)
}

func (f *fakeProvider) channelByID(channelID ref.ChannelID) *provider.Channel {
	f.mu.Lock()
	defer f.mu.Unlock()
	channel, exists := f.channels[channelID]
	if !exists {
		return nil
	}
	snapshot := *channel
	snapshot.Overwrites = slices.Clone(channel.Overwrites)
	return &snapshot
}

func (f *fakeProvider) occupantsOf(channelID ref.ChannelID) []ref.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.occupants[channelID])
}

func (f *fakeProvider) noticesFor(user ref.UserID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.notices[user])
}

// dropChannel simulates an out-of-band deletion through the
// platform's own tools.
func (f *fakeProvider) dropChannel(channelID ref.ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, channelID)
	delete(f.occupants, channelID)
}
