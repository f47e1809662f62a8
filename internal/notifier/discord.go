package notifier

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/gdg-garage/badge-camp-api/internal/config"
	"github.com/gdg-garage/badge-camp-api/internal/models"
)

// Notifier announces enrollment milestones to staff.
type Notifier interface {
	NotifyOfferingFull(offering models.Offering, period int) error
}

type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordNotifier opens a bot session from configuration.
func NewDiscordNotifier(cfg *config.Config) (*DiscordNotifier, error) {
	if cfg.DiscordBotToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: cfg.DiscordNotificationsChannelID}, nil
}

func (n *DiscordNotifier) NotifyOfferingFull(offering models.Offering, period int) error {
	if n.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if n.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}

	_, err := n.session.ChannelMessageSend(n.channelID, FullMessage(offering, period))
	return err
}

// FullMessage renders the announcement for a period that just filled up.
func FullMessage(offering models.Offering, period int) string {
	name := offering.Badge.Name
	if name == "" {
		name = fmt.Sprintf("offering %d", offering.ID)
	}
	return fmt.Sprintf("🪑 **Class Full**\n**Badge:** %s\n**Period:** %d\n**Seats:** %d/%d",
		name, period, offering.SizeLimit, offering.SizeLimit)
}

// LogNotifier writes announcements to the log. It is used when no Discord
// bot is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyOfferingFull(offering models.Offering, period int) error {
	n.Logger.Info("offering period full",
		"offering_id", offering.ID,
		"badge", offering.Badge.Name,
		"period", period,
		"size_limit", offering.SizeLimit)
	return nil
}
