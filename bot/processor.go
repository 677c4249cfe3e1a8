package bot

import (
	"fmt"
	"regexp"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
)

type (
	handlerFunc func(b *gotgbot.Bot, ctx *ext.Context, matches []string) error

	commandHandler struct {
		trigger     *regexp.Regexp
		handlerFunc handlerFunc
	}

	// processor routes private text messages to the matching command
	// handler. Group chats are ignored, the bot is a one-on-one service.
	processor struct {
		handlers []commandHandler
	}
)

func newProcessor(directory Directory, resolver Resolver, cal Calendar, location *time.Location, botInfo *gotgbot.User) *processor {
	h := &handlers{
		directory: directory,
		resolver:  resolver,
		calendar:  cal,
		location:  location,
	}

	username := botInfo.Username

	return &processor{
		handlers: []commandHandler{
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/(?:start|hilfe)(?:@%s)?$`, username)),
				handlerFunc: h.onStart,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/ort(?:@%s)? +(.+?) +(\S+)$`, username)),
				handlerFunc: h.onSetAddress,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/ort(?:@%s)?$`, username)),
				handlerFunc: h.onSetAddressHelp,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/morgen(?:@%s)?$`, username)),
				handlerFunc: h.onTomorrow,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/benachrichtigung(?:en)?(?:@%s)?$`, username)),
				handlerFunc: h.onToggleNotifications,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/daten(?:@%s)?$`, username)),
				handlerFunc: h.onShowData,
			},
			{
				trigger:     regexp.MustCompile(fmt.Sprintf(`(?i)^/loeschen(?:@%s)?$`, username)),
				handlerFunc: h.onDelete,
			},
		},
	}
}

func (p *processor) commands() []gotgbot.BotCommand {
	return []gotgbot.BotCommand{
		{Command: "ort", Description: "Straße und Hausnummer speichern"},
		{Command: "morgen", Description: "Abfuhrtermine für morgen abfragen"},
		{Command: "benachrichtigung", Description: "Tägliche Benachrichtigung ein-/ausschalten"},
		{Command: "daten", Description: "Gespeicherte Daten anzeigen"},
		{Command: "loeschen", Description: "Alle Daten löschen"},
	}
}

func (p *processor) Name() string {
	return "muellbot"
}

func (p *processor) CheckUpdate(b *gotgbot.Bot, ctx *ext.Context) bool {
	msg := ctx.EffectiveMessage
	return msg != nil &&
		msg.Text != "" &&
		ctx.EffectiveChat != nil &&
		ctx.EffectiveChat.Type == gotgbot.ChatTypePrivate
}

func (p *processor) HandleUpdate(b *gotgbot.Bot, ctx *ext.Context) error {
	text := ctx.EffectiveMessage.Text

	for _, handler := range p.handlers {
		matches := handler.trigger.FindStringSubmatch(text)
		if len(matches) > 0 {
			return handler.handlerFunc(b, ctx, matches)
		}
	}

	return nil
}
