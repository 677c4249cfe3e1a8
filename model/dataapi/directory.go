package dataapi

import (
	"context"
	"fmt"
	"time"

	"github.com/muelltonne/muellbot/model"
)

type subscriberRow struct {
	ChatID        int64   `json:"chat_id"`
	FirstName     string  `json:"first_name"`
	LastName      *string `json:"last_name"`
	Street        string  `json:"street"`
	HouseNumber   string  `json:"house_number"`
	LocationKey   *string `json:"location_key"`
	Notifications bool    `json:"notifications"`
	LastNotified  *string `json:"last_notified"`
}

// ListSubscribers returns every registered subscriber. One pass per
// notification run; the scheduler snapshots the result.
func (c *Client) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	const query = `query Subscribers {
	subscribers {
		chat_id
		first_name
		last_name
		street
		house_number
		location_key
		notifications
		last_notified
	}
}`

	var data struct {
		Subscribers []subscriberRow `json:"subscribers"`
	}
	if err := c.do(ctx, query, nil, &data); err != nil {
		return nil, err
	}

	subscribers := make([]model.Subscriber, 0, len(data.Subscribers))
	for _, row := range data.Subscribers {
		sub, err := row.toModel()
		if err != nil {
			log.Err(err).Int64("chat_id", row.ChatID).Msg("Skipping malformed subscriber row")
			continue
		}
		subscribers = append(subscribers, sub)
	}

	return subscribers, nil
}

// GetSubscriber returns one subscriber or model.ErrNotFound.
func (c *Client) GetSubscriber(ctx context.Context, chatID int64) (model.Subscriber, error) {
	const query = `query Subscriber($chat_id: bigint!) {
	subscribers_by_pk(chat_id: $chat_id) {
		chat_id
		first_name
		last_name
		street
		house_number
		location_key
		notifications
		last_notified
	}
}`

	var data struct {
		Subscriber *subscriberRow `json:"subscribers_by_pk"`
	}
	if err := c.do(ctx, query, map[string]any{"chat_id": chatID}, &data); err != nil {
		return model.Subscriber{}, err
	}
	if data.Subscriber == nil {
		return model.Subscriber{}, model.ErrNotFound
	}
	return data.Subscriber.toModel()
}

// RecordNotified persists the last-notified date. This is the dedup commit
// point: a notification only counts as sent once this has succeeded.
func (c *Client) RecordNotified(ctx context.Context, chatID int64, date time.Time) error {
	const query = `mutation RecordNotified($chat_id: bigint!, $date: date!) {
	update_subscribers_by_pk(pk_columns: {chat_id: $chat_id}, _set: {last_notified: $date}) {
		chat_id
	}
}`

	var data struct {
		Updated *struct {
			ChatID int64 `json:"chat_id"`
		} `json:"update_subscribers_by_pk"`
	}
	err := c.do(ctx, query, map[string]any{
		"chat_id": chatID,
		"date":    date.Format(time.DateOnly),
	}, &data)
	if err != nil {
		return err
	}
	if data.Updated == nil {
		return model.ErrNotFound
	}
	return nil
}

// UpsertSubscriber registers a chat or replaces its address. A changed
// address resets the cached location key.
func (c *Client) UpsertSubscriber(ctx context.Context, sub model.Subscriber) error {
	const query = `mutation UpsertSubscriber($object: subscribers_insert_input!) {
	insert_subscribers_one(
		object: $object,
		on_conflict: {
			constraint: subscribers_pkey,
			update_columns: [first_name, last_name, street, house_number, location_key, notifications]
		}
	) {
		chat_id
	}
}`

	object := map[string]any{
		"chat_id":       sub.ChatID,
		"first_name":    sub.FirstName,
		"street":        sub.Address.Street,
		"house_number":  sub.Address.HouseNumber,
		"notifications": sub.Notifications,
	}
	if sub.LastName != "" {
		object["last_name"] = sub.LastName
	}
	if sub.LocationKey != "" {
		object["location_key"] = string(sub.LocationKey)
	}

	return c.do(ctx, query, map[string]any{"object": object}, nil)
}

// RemoveSubscriber deletes all stored data for the chat.
func (c *Client) RemoveSubscriber(ctx context.Context, chatID int64) error {
	const query = `mutation RemoveSubscriber($chat_id: bigint!) {
	delete_subscribers_by_pk(chat_id: $chat_id) {
		chat_id
	}
}`

	var data struct {
		Deleted *struct {
			ChatID int64 `json:"chat_id"`
		} `json:"delete_subscribers_by_pk"`
	}
	if err := c.do(ctx, query, map[string]any{"chat_id": chatID}, &data); err != nil {
		return err
	}
	if data.Deleted == nil {
		return model.ErrNotFound
	}
	return nil
}

// SetNotifications toggles the daily notification for the chat.
func (c *Client) SetNotifications(ctx context.Context, chatID int64, enabled bool) error {
	const query = `mutation SetNotifications($chat_id: bigint!, $enabled: Boolean!) {
	update_subscribers_by_pk(pk_columns: {chat_id: $chat_id}, _set: {notifications: $enabled}) {
		chat_id
	}
}`

	var data struct {
		Updated *struct {
			ChatID int64 `json:"chat_id"`
		} `json:"update_subscribers_by_pk"`
	}
	err := c.do(ctx, query, map[string]any{"chat_id": chatID, "enabled": enabled}, &data)
	if err != nil {
		return err
	}
	if data.Updated == nil {
		return model.ErrNotFound
	}
	return nil
}

// StoreLocationKey writes back a freshly resolved key so later runs and
// restarts skip the geocoder.
func (c *Client) StoreLocationKey(ctx context.Context, chatID int64, key model.LocationKey) error {
	const query = `mutation StoreLocationKey($chat_id: bigint!, $key: String!) {
	update_subscribers_by_pk(pk_columns: {chat_id: $chat_id}, _set: {location_key: $key}) {
		chat_id
	}
}`

	return c.do(ctx, query, map[string]any{"chat_id": chatID, "key": string(key)}, nil)
}

func (row subscriberRow) toModel() (model.Subscriber, error) {
	sub := model.Subscriber{
		ChatID:    row.ChatID,
		FirstName: row.FirstName,
		Address: model.Address{
			Street:      row.Street,
			HouseNumber: row.HouseNumber,
		},
		Notifications: row.Notifications,
	}
	if row.LastName != nil {
		sub.LastName = *row.LastName
	}
	if row.LocationKey != nil {
		sub.LocationKey = model.LocationKey(*row.LocationKey)
	}
	if row.LastNotified != nil && *row.LastNotified != "" {
		lastNotified, err := time.Parse(time.DateOnly, *row.LastNotified)
		if err != nil {
			return model.Subscriber{}, fmt.Errorf("invalid last_notified %q: %w", *row.LastNotified, err)
		}
		sub.LastNotified = &lastNotified
	}
	return sub, nil
}
