package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"

	"github.com/muelltonne/muellbot/model"
	"github.com/muelltonne/muellbot/scheduler"
	"github.com/muelltonne/muellbot/utils"
)

const commandTimeout = 15 * time.Second

type handlers struct {
	directory Directory
	resolver  Resolver
	calendar  Calendar
	location  *time.Location
}

func (h *handlers) onStart(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	text := fmt.Sprintf(
		"Hallo %s!\n\n"+
			"Ich sage dir jeden Tag Bescheid, welche Tonnen morgen abgeholt werden.\n\n"+
			"<b>Befehle:</b>\n"+
			"/ort &lt;Straße&gt; &lt;Hausnummer&gt; - Adresse speichern\n"+
			"/morgen - Abfuhrtermine für morgen abfragen\n"+
			"/benachrichtigung - Tägliche Benachrichtigung ein-/ausschalten\n"+
			"/daten - Gespeicherte Daten anzeigen\n"+
			"/loeschen - Alle Daten löschen",
		utils.Escape(ctx.EffectiveUser.FirstName),
	)
	_, err := ctx.EffectiveMessage.Reply(b, text, utils.DefaultSendOptions())
	return err
}

func (h *handlers) onSetAddressHelp(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	_, err := ctx.EffectiveMessage.Reply(
		b,
		"Bitte gib Straße und Hausnummer an, z. B.:\n<code>/ort Kaiserstraße 1</code>\n\n"+
			"Die Entsorgungstermine sind abhängig von der Hausnummer.",
		utils.DefaultSendOptions(),
	)
	return err
}

func (h *handlers) onSetAddress(b *gotgbot.Bot, ctx *ext.Context, matches []string) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	addr := model.Address{
		Street:      strings.TrimSpace(matches[1]),
		HouseNumber: strings.TrimSpace(matches[2]),
	}

	// Resolving now instead of at notification time tells the user about
	// typos while they can still react.
	key, err := h.resolver.Resolve(reqCtx, addr)
	if err != nil {
		log.Warn().
			Err(err).
			Int64("chat_id", ctx.EffectiveChat.Id).
			Str("address", addr.Query()).
			Msg("Address registration failed to resolve")

		var text string
		switch {
		case errors.Is(err, model.ErrAddressNotFound):
			text = "Konnte deine Adresse nicht finden. " +
				"Versuche den vollständigen Namen deiner Straße anzugeben. " +
				"Ansonsten stelle sicher, dass deine Straße im Abfuhrkalender aufgeführt ist."
		case errors.Is(err, model.ErrAddressAmbiguous):
			text = "Deine Adresse ist nicht eindeutig. Bitte gib die Adresse genauer an."
		default:
			text = "Konnte deine Adresse gerade nicht prüfen, versuche es später nochmal."
		}
		_, err := ctx.EffectiveMessage.Reply(b, text, utils.DefaultSendOptions())
		return err
	}

	sub := model.Subscriber{
		ChatID:        ctx.EffectiveChat.Id,
		FirstName:     ctx.EffectiveUser.FirstName,
		LastName:      ctx.EffectiveUser.LastName,
		Address:       addr,
		LocationKey:   key,
		Notifications: true,
	}
	if err := h.directory.UpsertSubscriber(reqCtx, sub); err != nil {
		log.Err(err).Int64("chat_id", ctx.EffectiveChat.Id).Msg("Upserting subscriber failed")
		_, err := ctx.EffectiveMessage.Reply(
			b,
			"Konnte Adresse nicht hinzufügen, versuche es später nochmal!",
			utils.DefaultSendOptions(),
		)
		return err
	}

	_, err = ctx.EffectiveMessage.Reply(b, "Adresse hinzugefügt!", utils.DefaultSendOptions())
	return err
}

func (h *handlers) onTomorrow(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sub, err := h.directory.GetSubscriber(reqCtx, ctx.EffectiveChat.Id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			_, err := ctx.EffectiveMessage.Reply(
				b,
				"Konnte keine Daten finden, hast du deine Straße schon hinzugefügt?",
				utils.DefaultSendOptions(),
			)
			return err
		}
		return err
	}

	key := sub.LocationKey
	if key == "" {
		key, err = h.resolver.Resolve(reqCtx, sub.Address)
		if err != nil {
			_, err := ctx.EffectiveMessage.Reply(
				b,
				"Konnte deine Adresse gerade nicht auflösen, versuche es später nochmal.",
				utils.DefaultSendOptions(),
			)
			return err
		}
	}

	now := time.Now().In(h.location)
	tomorrow := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	categories := h.calendar.EntriesFor(key, tomorrow)
	if len(categories) == 0 {
		_, err := ctx.EffectiveMessage.Reply(
			b,
			fmt.Sprintf("Morgen (%s) wird bei dir nichts abgeholt. 🎉", tomorrow.Format("02.01.2006")),
			utils.DefaultSendOptions(),
		)
		return err
	}

	_, err = ctx.EffectiveMessage.Reply(
		b,
		scheduler.NotificationText(tomorrow, categories),
		utils.DefaultSendOptions(),
	)
	return err
}

func (h *handlers) onToggleNotifications(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sub, err := h.directory.GetSubscriber(reqCtx, ctx.EffectiveChat.Id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			_, err := ctx.EffectiveMessage.Reply(
				b,
				"Konnte Benachrichtigungsstatus nicht finden, hast du deine Straße und Hausnummer schon hinzugefügt?",
				utils.DefaultSendOptions(),
			)
			return err
		}
		return err
	}

	enabled := !sub.Notifications
	if err := h.directory.SetNotifications(reqCtx, sub.ChatID, enabled); err != nil {
		log.Err(err).Int64("chat_id", sub.ChatID).Msg("Toggling notifications failed")
		_, err := ctx.EffectiveMessage.Reply(
			b,
			"Konnte Benachrichtigungsstatus nicht ändern, versuche es später nochmal!",
			utils.DefaultSendOptions(),
		)
		return err
	}

	text := "Benachrichtigungen deaktiviert"
	if enabled {
		text = "Benachrichtigungen aktiviert"
	}
	_, err = ctx.EffectiveMessage.Reply(b, text, utils.DefaultSendOptions())
	return err
}

func (h *handlers) onShowData(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	sub, err := h.directory.GetSubscriber(reqCtx, ctx.EffectiveChat.Id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			_, err := ctx.EffectiveMessage.Reply(
				b,
				"Konnte keine Daten finden, hast du deine Straße schon hinzugefügt?",
				utils.DefaultSendOptions(),
			)
			return err
		}
		return err
	}

	notifications := "aus"
	if sub.Notifications {
		notifications = "an"
	}

	text := fmt.Sprintf(
		"<b>Gespeicherte Daten:</b>\n"+
			"🏠 %s %s\n"+
			"🔔 Benachrichtigungen: %s",
		utils.Escape(sub.Address.Street),
		utils.Escape(sub.Address.HouseNumber),
		notifications,
	)
	_, err = ctx.EffectiveMessage.Reply(b, text, utils.DefaultSendOptions())
	return err
}

func (h *handlers) onDelete(b *gotgbot.Bot, ctx *ext.Context, _ []string) error {
	reqCtx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	err := h.directory.RemoveSubscriber(reqCtx, ctx.EffectiveChat.Id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			_, err := ctx.EffectiveMessage.Reply(
				b,
				"Konnte deine Daten nicht finden, hast du deine Daten schon gelöscht?",
				utils.DefaultSendOptions(),
			)
			return err
		}
		log.Err(err).Int64("chat_id", ctx.EffectiveChat.Id).Msg("Removing subscriber failed")
		return err
	}

	_, err = ctx.EffectiveMessage.Reply(b, "Gelöscht!", utils.DefaultSendOptions())
	return err
}
