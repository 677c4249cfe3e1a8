package dataapi

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/muelltonne/muellbot/logger"
	"github.com/muelltonne/muellbot/utils/httpUtils"
)

var log = logger.New("dataapi")

const adminSecretHeader = "x-hasura-admin-secret"

type (
	// Client talks to the GraphQL data API that holds subscribers and
	// the published collection schedule.
	Client struct {
		endpoint string
		secret   string
	}

	graphQLRequest struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables,omitempty"`
	}

	graphQLResponse struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors,omitempty"`
	}

	graphQLError struct {
		Message string `json:"message"`
	}
)

func NewClient(endpoint, secret string) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
	}
}

// do runs one GraphQL operation and unmarshals the data field into out.
// Any entry in the errors array fails the whole operation.
func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	var response graphQLResponse
	err := httpUtils.PostRequest(
		ctx,
		c.endpoint,
		map[string]string{adminSecretHeader: c.secret},
		graphQLRequest{Query: query, Variables: variables},
		&response,
	)
	if err != nil {
		return fmt.Errorf("data API request failed: %w", err)
	}

	if len(response.Errors) > 0 {
		messages := make([]string, len(response.Errors))
		for i, gqlErr := range response.Errors {
			messages[i] = gqlErr.Message
		}
		return fmt.Errorf("data API returned errors: %s", strings.Join(messages, "; "))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(response.Data, out); err != nil {
		return fmt.Errorf("decoding data API response: %w", err)
	}

	return nil
}
