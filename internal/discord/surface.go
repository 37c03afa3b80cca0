package discord

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/surface"
)

var errMissingSession = errors.New("discord: session is required")

// ChannelSurface implements surface.Surface over one Discord channel.
type ChannelSurface struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewChannelSurface binds a Discord session to the configured channel.
func NewChannelSurface(session *discordgo.Session, channelID string, logger *zap.Logger) (*ChannelSurface, error) {
	if session == nil {
		return nil, errMissingSession
	}
	if channelID == "" {
		return nil, errors.New("discord: channel id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelSurface{session: session, channelID: channelID, logger: logger}, nil
}

// SendEmbed posts a new rich message to the channel.
func (c *ChannelSurface) SendEmbed(ctx context.Context, embed surface.Embed) (string, error) {
	message, err := c.session.ChannelMessageSendEmbed(c.channelID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapRESTError(err)
	}
	return message.ID, nil
}

// FetchEmbed reads back the first embed of an existing message.
func (c *ChannelSurface) FetchEmbed(ctx context.Context, messageID string) (surface.Embed, error) {
	message, err := c.session.ChannelMessage(c.channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		return surface.Embed{}, mapRESTError(err)
	}
	if len(message.Embeds) == 0 {
		return surface.Embed{}, fmt.Errorf("%w: message %s has no embed", surface.ErrMessageMissing, messageID)
	}
	return fromMessageEmbed(message.Embeds[0]), nil
}

// EditEmbed replaces the rendered embed of an existing message.
func (c *ChannelSurface) EditEmbed(ctx context.Context, messageID string, embed surface.Embed) error {
	_, err := c.session.ChannelMessageEditEmbed(c.channelID, messageID, toMessageEmbed(embed), discordgo.WithContext(ctx))
	return mapRESTError(err)
}

// Reply posts a message as a reply anchored to an existing one.
func (c *ChannelSurface) Reply(ctx context.Context, messageID, content string) error {
	_, err := c.session.ChannelMessageSendReply(c.channelID, content, &discordgo.MessageReference{
		MessageID: messageID,
		ChannelID: c.channelID,
	}, discordgo.WithContext(ctx))
	return mapRESTError(err)
}

// AddToggle seeds a reaction glyph on a message.
func (c *ChannelSurface) AddToggle(ctx context.Context, messageID, glyph string) error {
	return mapRESTError(c.session.MessageReactionAdd(c.channelID, messageID, glyph, discordgo.WithContext(ctx)))
}

// RemoveUserToggle clears one user's reaction of the given glyph.
func (c *ChannelSurface) RemoveUserToggle(ctx context.Context, messageID, userID, glyph string) error {
	return mapRESTError(c.session.MessageReactionRemove(c.channelID, messageID, glyph, userID, discordgo.WithContext(ctx)))
}

// SelfUserID identifies the bot's own user, known once the gateway is ready.
func (c *ChannelSurface) SelfUserID() string {
	if c.session.State != nil && c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

// mapRESTError translates Discord REST failures into the surface sentinels
// the core branches on; everything else passes through unchanged.
func mapRESTError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%w: %v", surface.ErrMessageMissing, err)
		case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess:
			return fmt.Errorf("%w: %v", surface.ErrForbidden, err)
		}
	}
	return err
}

func toMessageEmbed(embed surface.Embed) *discordgo.MessageEmbed {
	fields := make([]*discordgo.MessageEmbedField, 0, len(embed.Fields))
	for _, f := range embed.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}

	out := &discordgo.MessageEmbed{
		Title:       embed.Title,
		Description: embed.Description,
		Color:       0x3498db,
		Fields:      fields,
	}
	if !embed.Timestamp.IsZero() {
		out.Timestamp = embed.Timestamp.Format(time.RFC3339)
	}
	if embed.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: embed.Footer}
	}
	return out
}

func fromMessageEmbed(embed *discordgo.MessageEmbed) surface.Embed {
	fields := make([]surface.Field, 0, len(embed.Fields))
	for _, f := range embed.Fields {
		fields = append(fields, surface.Field{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}

	out := surface.Embed{
		Title:       embed.Title,
		Description: embed.Description,
		Fields:      fields,
	}
	if embed.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, embed.Timestamp); err == nil {
			out.Timestamp = ts
		}
	}
	if embed.Footer != nil {
		out.Footer = embed.Footer.Text
	}
	return out
}
