package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ziadkadry99/shardgate/internal/commands"
	"github.com/ziadkadry99/shardgate/internal/events"
)

// GetGatewayBot returns the gateway URL, the recommended shard count and
// the session start limit.
func (c *Client) GetGatewayBot(ctx context.Context) (*GatewayBot, error) {
	var gb GatewayBot
	err := c.do(ctx, request{method: http.MethodGet, route: "/gateway/bot", path: "/gateway/bot"}, &gb)
	if err != nil {
		return nil, err
	}
	return &gb, nil
}

// GetCurrentUser returns the bot's own user.
func (c *Client) GetCurrentUser(ctx context.Context) (*events.User, error) {
	var u events.User
	if err := c.do(ctx, request{method: http.MethodGet, route: "/users/@me", path: "/users/@me"}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetCurrentApplication returns the application the token belongs to.
func (c *Client) GetCurrentApplication(ctx context.Context) (*Application, error) {
	var app Application
	err := c.do(ctx, request{method: http.MethodGet, route: "/applications/@me", path: "/applications/@me"}, &app)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// CreateInteractionResponse sends the initial callback for an interaction.
func (c *Client) CreateInteractionResponse(ctx context.Context, interactionID, token string, resp InteractionResponse) error {
	return c.do(ctx, request{
		method:  http.MethodPost,
		route:   "/interactions/{id}/{token}/callback",
		major:   interactionID,
		path:    fmt.Sprintf("/interactions/%s/%s/callback", url.PathEscape(interactionID), url.PathEscape(token)),
		body:    resp,
		exempt:  true,
		noRetry: true,
	}, nil)
}

// EditOriginalResponse edits the message created by the initial response.
func (c *Client) EditOriginalResponse(ctx context.Context, appID, token string, data MessageData) (*Message, error) {
	var m Message
	err := c.do(ctx, request{
		method:  http.MethodPatch,
		route:   "/webhooks/{app}/{token}/messages/@original",
		major:   token,
		path:    webhookPath(appID, token, "/messages/@original"),
		body:    data,
		exempt:  true,
		noRetry: true,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteOriginalResponse deletes the message created by the initial response.
func (c *Client) DeleteOriginalResponse(ctx context.Context, appID, token string) error {
	return c.do(ctx, request{
		method:  http.MethodDelete,
		route:   "/webhooks/{app}/{token}/messages/@original",
		major:   token,
		path:    webhookPath(appID, token, "/messages/@original"),
		exempt:  true,
		noRetry: true,
	}, nil)
}

// CreateFollowup posts a followup message and returns it with its ID.
func (c *Client) CreateFollowup(ctx context.Context, appID, token string, data MessageData) (*Message, error) {
	var m Message
	err := c.do(ctx, request{
		method:  http.MethodPost,
		route:   "/webhooks/{app}/{token}",
		major:   token,
		path:    webhookPath(appID, token, "?wait=true"),
		body:    data,
		exempt:  true,
		noRetry: true,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// EditFollowup edits a followup message.
func (c *Client) EditFollowup(ctx context.Context, appID, token, messageID string, data MessageData) (*Message, error) {
	var m Message
	err := c.do(ctx, request{
		method:  http.MethodPatch,
		route:   "/webhooks/{app}/{token}/messages/{id}",
		major:   token,
		path:    webhookPath(appID, token, "/messages/"+url.PathEscape(messageID)),
		body:    data,
		exempt:  true,
		noRetry: true,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteFollowup deletes a followup message.
func (c *Client) DeleteFollowup(ctx context.Context, appID, token, messageID string) error {
	return c.do(ctx, request{
		method:  http.MethodDelete,
		route:   "/webhooks/{app}/{token}/messages/{id}",
		major:   token,
		path:    webhookPath(appID, token, "/messages/"+url.PathEscape(messageID)),
		exempt:  true,
		noRetry: true,
	}, nil)
}

// BulkOverwriteGlobalCommands replaces every global command of the application.
func (c *Client) BulkOverwriteGlobalCommands(ctx context.Context, appID string, cmds []commands.ApplicationCommand) ([]commands.ApplicationCommand, error) {
	if cmds == nil {
		cmds = []commands.ApplicationCommand{}
	}
	var out []commands.ApplicationCommand
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/applications/{app}/commands",
		major:  appID,
		path:   fmt.Sprintf("/applications/%s/commands", url.PathEscape(appID)),
		body:   cmds,
	}, &out)
	return out, err
}

// BulkOverwriteGuildCommands replaces every command of the application in one guild.
func (c *Client) BulkOverwriteGuildCommands(ctx context.Context, appID, guildID string, cmds []commands.ApplicationCommand) ([]commands.ApplicationCommand, error) {
	if cmds == nil {
		cmds = []commands.ApplicationCommand{}
	}
	var out []commands.ApplicationCommand
	err := c.do(ctx, request{
		method: http.MethodPut,
		route:  "/applications/{app}/guilds/{guild}/commands",
		major:  guildID,
		path:   fmt.Sprintf("/applications/%s/guilds/%s/commands", url.PathEscape(appID), url.PathEscape(guildID)),
		body:   cmds,
	}, &out)
	return out, err
}

func webhookPath(appID, token, suffix string) string {
	return fmt.Sprintf("/webhooks/%s/%s%s", url.PathEscape(appID), url.PathEscape(token), suffix)
}
