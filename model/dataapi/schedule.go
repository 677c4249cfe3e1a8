package dataapi

import (
	"context"
	"encoding/json"

	"github.com/muelltonne/muellbot/model"
)

// FetchSchedule returns the newest published schedule document. The
// calendar package owns the document format; this only hands over the raw
// JSON.
func (c *Client) FetchSchedule(ctx context.Context) (json.RawMessage, error) {
	const query = `query Schedule {
	schedule_documents(order_by: {published_at: desc}, limit: 1) {
		document
	}
}`

	var data struct {
		Documents []struct {
			Document json.RawMessage `json:"document"`
		} `json:"schedule_documents"`
	}
	if err := c.do(ctx, query, nil, &data); err != nil {
		return nil, err
	}
	if len(data.Documents) == 0 {
		return nil, model.ErrNotFound
	}
	return data.Documents[0].Document, nil
}
