package bot

import (
	"context"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/model"
	"github.com/muelltonne/muellbot/utils"
)

var log = logger.New("bot")

type (
	// Directory is the slice of the data API the command handlers need.
	Directory interface {
		GetSubscriber(ctx context.Context, chatID int64) (model.Subscriber, error)
		UpsertSubscriber(ctx context.Context, sub model.Subscriber) error
		RemoveSubscriber(ctx context.Context, chatID int64) error
		SetNotifications(ctx context.Context, chatID int64, enabled bool) error
	}

	Resolver interface {
		Resolve(ctx context.Context, addr model.Address) (model.LocationKey, error)
	}

	Calendar interface {
		EntriesFor(key model.LocationKey, date time.Time) []model.WasteCategory
	}

	Bot struct {
		bot      *gotgbot.Bot
		updater  *ext.Updater
		location *time.Location
	}
)

func New(token string, directory Directory, resolver Resolver, cal Calendar, location *time.Location) (*Bot, error) {
	b, err := gotgbot.NewBot(token, nil)
	if err != nil {
		return nil, err
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(bot *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			log.Err(err).Msg("Error while handling update")
			return ext.DispatcherActionNoop
		},
	})

	processor := newProcessor(directory, resolver, cal, location, &b.User)
	dispatcher.AddHandler(processor)

	_, err = b.SetMyCommands(processor.commands(), nil)
	if err != nil {
		log.Err(err).Msg("Failed to set bot commands")
	}

	return &Bot{
		bot:      b,
		updater:  ext.NewUpdater(dispatcher, nil),
		location: location,
	}, nil
}

func (b *Bot) Username() string {
	return b.bot.User.Username
}

// Start begins long polling. Returns immediately, updates are handled on
// the dispatcher's goroutines.
func (b *Bot) Start() error {
	err := b.updater.StartPolling(b.bot, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
			AllowedUpdates: []string{"message"},
			Timeout:        9,
			RequestOpts: &gotgbot.RequestOpts{
				Timeout: 10 * time.Second,
			},
		},
	})
	if err != nil {
		return err
	}

	log.Info().Str("username", b.bot.User.Username).Msg("Long polling started")
	return nil
}

func (b *Bot) Stop() error {
	return b.updater.Stop()
}

// SendMessage implements the scheduler's Messenger. The context deadline is
// translated into the Bot API request timeout.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := utils.DefaultSendOptions()
	if deadline, ok := ctx.Deadline(); ok {
		opts.RequestOpts = &gotgbot.RequestOpts{
			Timeout: time.Until(deadline),
		}
	}

	_, err := b.bot.SendMessage(chatID, text, opts)
	return err
}
