package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/matheus3301/chatflow/internal/chat"
)

// Users returns the contact list visible to the current user.
func (c *Client) Users(ctx context.Context) ([]UserRecord, error) {
	data, err := c.do(ctx, request{op: "list users", method: http.MethodGet, path: "/users", auth: true})
	if err != nil {
		return nil, err
	}
	users, err := decodeList[UserRecord](data, "users", "data")
	if err != nil {
		return nil, fmt.Errorf("list users: decode response: %w", err)
	}
	return users, nil
}

// Messages returns the full history with peerID.
func (c *Client) Messages(ctx context.Context, peerID string) ([]MessageRecord, error) {
	data, err := c.do(ctx, request{
		op: "fetch history", method: http.MethodGet,
		path: "/messages/" + url.PathEscape(peerID), auth: true,
	})
	if err != nil {
		return nil, err
	}
	msgs, err := decodeList[MessageRecord](data, "messages", "data")
	if err != nil {
		return nil, fmt.Errorf("fetch history: decode response: %w", err)
	}
	return msgs, nil
}

// SendMessage posts a text message to peerID and returns the created record.
func (c *Client) SendMessage(ctx context.Context, peerID, text string) (*MessageRecord, error) {
	body, err := jsonBody(map[string]string{"message": text})
	if err != nil {
		return nil, err
	}
	var env sendEnvelope
	err = c.doJSON(ctx, request{
		op: "send text", method: http.MethodPost,
		path: "/messages/sendMessage/" + url.PathEscape(peerID),
		body: body, contentType: "application/json", auth: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.record(), nil
}

// SendFile uploads an image to peerID and returns the created record.
func (c *Client) SendFile(ctx context.Context, peerID string, img chat.ImageFile) (*MessageRecord, error) {
	form := newMultipartForm()
	form.file("image", img)
	body, contentType, err := form.close()
	if err != nil {
		return nil, err
	}
	var env sendEnvelope
	err = c.doJSON(ctx, request{
		op: "send image", method: http.MethodPost,
		path: "/messages/sendFile/" + url.PathEscape(peerID),
		body: body, contentType: contentType, auth: true,
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.record(), nil
}

// DeleteMessage deletes a message by server id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{
		op: "delete message", method: http.MethodDelete,
		path: "/messages/deleteMessage/" + url.PathEscape(id), auth: true,
	})
	return err
}
