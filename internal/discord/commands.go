package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const commandPrefix = "!"

// onMessageCreate dispatches operator commands. These only invoke the core
// operations out-of-band and echo a short result back to the invoking
// channel; all real behavior lives in the engine.
func (b *Bot) onMessageCreate(_ *discordgo.Session, message *discordgo.MessageCreate) {
	if message.Author == nil || message.Author.Bot {
		return
	}
	if !strings.HasPrefix(message.Content, commandPrefix) {
		return
	}

	args := strings.Fields(strings.TrimPrefix(message.Content, commandPrefix))
	if len(args) == 0 {
		return
	}

	ctx := context.Background()
	switch args[0] {
	case "checkgames":
		b.commandCheckGames(ctx, message)
	case "createpoll":
		b.commandCreatePoll(ctx, message, args[1:])
	case "testreminder":
		b.commandTestReminder(ctx, message)
	case "testpoll":
		b.commandTestPoll(ctx, message, args[1:])
	}
}

func (b *Bot) commandCheckGames(ctx context.Context, message *discordgo.MessageCreate) {
	b.echo(message, fmt.Sprintf("Checking for games %d days from now...", b.engine.LookaheadDays()))
	if _, err := b.engine.Reconcile(ctx, b.engine.LookaheadDays()); err != nil {
		b.echo(message, fmt.Sprintf("Check failed: %v", err))
		return
	}
	b.echo(message, "Check complete!")
}

func (b *Bot) commandCreatePoll(ctx context.Context, message *discordgo.MessageCreate, args []string) {
	dayOffset := 0
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			b.echo(message, fmt.Sprintf("Invalid day offset %q.", args[0]))
			return
		}
		dayOffset = parsed
	}

	outcome, err := b.engine.Reconcile(ctx, dayOffset)
	if err != nil {
		b.echo(message, fmt.Sprintf("Error creating polls: %v", err))
		return
	}

	for _, ref := range outcome.Existing {
		b.echo(message, fmt.Sprintf("Poll already exists for %s game on %s",
			ref.TeamName, ref.EventTime.In(b.loc).Format("January 02 at 03:04 PM")))
	}
	for _, ref := range outcome.Created {
		b.echo(message, fmt.Sprintf("✅ Created poll for %s game on %s",
			ref.TeamName, ref.EventTime.In(b.loc).Format("January 02 at 03:04 PM")))
	}
	if len(outcome.Created) == 0 && len(outcome.Existing) == 0 {
		b.echo(message, "No games found on "+b.targetDay(dayOffset))
	}
}

func (b *Bot) commandTestReminder(ctx context.Context, message *discordgo.MessageCreate) {
	poll, err := b.engine.RemindNext(ctx)
	if err != nil {
		b.echo(message, fmt.Sprintf("Error sending reminder: %v", err))
		return
	}
	b.echo(message, fmt.Sprintf("Reminder sent for game on %s",
		poll.EventTime.In(b.loc).Format("January 02 at 03:04 PM")))
}

func (b *Bot) commandTestPoll(ctx context.Context, message *discordgo.MessageCreate, args []string) {
	sourceIndex := 0
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			b.echo(message, fmt.Sprintf("Invalid team index %q.", args[0]))
			return
		}
		sourceIndex = parsed
	}

	ref, err := b.engine.CreateNextPoll(ctx, sourceIndex)
	if err != nil {
		b.echo(message, fmt.Sprintf("Error creating poll: %v", err))
		return
	}
	b.echo(message, fmt.Sprintf("Test poll created for %s game on %s",
		ref.TeamName, ref.EventTime.In(b.loc).Format("January 02")))
}

func (b *Bot) echo(message *discordgo.MessageCreate, text string) {
	if _, err := b.session.ChannelMessageSend(message.ChannelID, text); err != nil {
		b.logger.Warn("command echo failed",
			zap.String("channel_id", message.ChannelID),
			zap.Error(err))
	}
}

func (b *Bot) targetDay(dayOffset int) string {
	return time.Now().In(b.loc).AddDate(0, 0, dayOffset).Format("Monday, January 02, 2006")
}
