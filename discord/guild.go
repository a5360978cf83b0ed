package discord

import (
	"context"
	"net/http"
	"net/url"
)

// Guild is the subset of the guild object the backend uses.
type Guild struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Icon                     string `json:"icon,omitempty"`
	OwnerID                  string `json:"owner_id"`
	ApproximateMemberCount   int    `json:"approximate_member_count,omitempty"`
	ApproximatePresenceCount int    `json:"approximate_presence_count,omitempty"`
}

// Channel is the subset of the channel object the backend uses.
type Channel struct {
	ID       string `json:"id"`
	Type     int    `json:"type"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	ParentID string `json:"parent_id,omitempty"`
}

// Role is the subset of the role object the backend uses.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Managed     bool   `json:"managed"`
}

// Guild fetches a guild with approximate member counts.
func (c *Client) Guild(ctx context.Context, guildID string) (Guild, error) {
	var g Guild
	err := c.Do(ctx, http.MethodGet, "guilds/"+url.PathEscape(guildID)+"?with_counts=true", nil, &g)
	return g, err
}

// GuildChannels lists a guild's channels.
func (c *Client) GuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var chs []Channel
	err := c.Do(ctx, http.MethodGet, "guilds/"+url.PathEscape(guildID)+"/channels", nil, &chs)
	return chs, err
}

// GuildRoles lists a guild's roles.
func (c *Client) GuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	err := c.Do(ctx, http.MethodGet, "guilds/"+url.PathEscape(guildID)+"/roles", nil, &roles)
	return roles, err
}
