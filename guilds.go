package rawrguild

import (
	"context"
	"errors"

	"github.com/Keksclan/rawrguild/discord"
)

// ErrNoDiscord is returned by the guild lookups when WithDiscord was not given.
var ErrNoDiscord = errors.New("rawrguild: discord client not configured")

// Guild returns the guild, served from cache for the server's default ttl.
func (s *Server) Guild(ctx context.Context, guildID string) (discord.Guild, error) {
	if s.discord == nil {
		return discord.Guild{}, ErrNoDiscord
	}
	return LoadJSON(ctx, s, "discord:guild:"+guildID, 0, Discord, func(ctx context.Context) (discord.Guild, error) {
		return s.discord.Guild(ctx, guildID)
	})
}

// GuildChannels returns the guild's channels, served from cache when fresh.
func (s *Server) GuildChannels(ctx context.Context, guildID string) ([]discord.Channel, error) {
	if s.discord == nil {
		return nil, ErrNoDiscord
	}
	return LoadJSON(ctx, s, "discord:channels:"+guildID, 0, Discord, func(ctx context.Context) ([]discord.Channel, error) {
		return s.discord.GuildChannels(ctx, guildID)
	})
}

// GuildRoles returns the guild's roles, served from cache when fresh.
func (s *Server) GuildRoles(ctx context.Context, guildID string) ([]discord.Role, error) {
	if s.discord == nil {
		return nil, ErrNoDiscord
	}
	return LoadJSON(ctx, s, "discord:roles:"+guildID, 0, Discord, func(ctx context.Context) ([]discord.Role, error) {
		return s.discord.GuildRoles(ctx, guildID)
	})
}
