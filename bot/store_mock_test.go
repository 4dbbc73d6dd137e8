package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of Store
type MockStore struct {
	mock.Mock
}

func (m *MockStore) EnsureData(ctx context.Context, guilds []*discordgo.Guild) {
	m.Called(ctx, guilds)
}

func (m *MockStore) AddGuild(ctx context.Context, guild *discordgo.Guild) error {
	args := m.Called(ctx, guild)
	return args.Error(0)
}

func (m *MockStore) RemoveGuild(ctx context.Context, guild *discordgo.Guild) error {
	args := m.Called(ctx, guild)
	return args.Error(0)
}

func (m *MockStore) AddGuildTextChannel(ctx context.Context, ch *discordgo.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *MockStore) AddDMChannel(ctx context.Context, ch *discordgo.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}

func (m *MockStore) DeleteChannel(ctx context.Context, ch *discordgo.Channel) error {
	args := m.Called(ctx, ch)
	return args.Error(0)
}
