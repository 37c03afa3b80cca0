package discord

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/faceoff/internal/engine"
)

var errMissingEngine = errors.New("discord: engine is required")

// BotConfig carries the dependencies for the inbound Discord wiring.
type BotConfig struct {
	Session   *discordgo.Session
	ChannelID string
	Engine    *engine.Engine
	Location  *time.Location
	Logger    *zap.Logger
}

// Bot routes gateway events into the reconciliation engine: reaction toggles
// feed the response state machine, and operator messages trigger the manual
// variants of the periodic passes.
type Bot struct {
	session   *discordgo.Session
	channelID string
	engine    *engine.Engine
	loc       *time.Location
	logger    *zap.Logger
}

// NewBot validates the configuration and registers the gateway handlers.
func NewBot(cfg BotConfig) (*Bot, error) {
	if cfg.Session == nil {
		return nil, errMissingSession
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("discord: channel id is required")
	}
	if cfg.Engine == nil {
		return nil, errMissingEngine
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bot := &Bot{
		session:   cfg.Session,
		channelID: cfg.ChannelID,
		engine:    cfg.Engine,
		loc:       loc,
		logger:    logger,
	}

	cfg.Session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentMessageContent

	cfg.Session.AddHandler(bot.onReady)
	cfg.Session.AddHandler(bot.onReactionAdd)
	cfg.Session.AddHandler(bot.onReactionRemove)
	cfg.Session.AddHandler(bot.onMessageCreate)

	return bot, nil
}

// Open connects the gateway session.
func (b *Bot) Open() error {
	return b.session.Open()
}

// Close disconnects the gateway session.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	b.logger.Info("discord session ready",
		zap.String("user", ready.User.Username),
		zap.String("user_id", ready.User.ID))
}

func (b *Bot) onReactionAdd(_ *discordgo.Session, reaction *discordgo.MessageReactionAdd) {
	if reaction.ChannelID != b.channelID {
		return
	}

	err := b.engine.HandleToggleAdd(context.Background(),
		reaction.MessageID,
		reaction.UserID,
		displayName(reaction.Member),
		reaction.Emoji.Name)
	if err != nil {
		b.logger.Warn("toggle add handling failed",
			zap.String("message_id", reaction.MessageID),
			zap.String("user_id", reaction.UserID),
			zap.Error(err))
	}
}

func (b *Bot) onReactionRemove(_ *discordgo.Session, reaction *discordgo.MessageReactionRemove) {
	if reaction.ChannelID != b.channelID {
		return
	}

	err := b.engine.HandleToggleRemove(context.Background(), reaction.MessageID, reaction.UserID)
	if err != nil {
		b.logger.Warn("toggle remove handling failed",
			zap.String("message_id", reaction.MessageID),
			zap.String("user_id", reaction.UserID),
			zap.Error(err))
	}
}

// displayName picks the best human label from a member reference. Reaction
// payloads carry the member for guild reactions; fall back per field.
func displayName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return "unknown"
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}
