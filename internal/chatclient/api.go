package chatclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/kgellert/portal-chat/internal/chats"
	"github.com/kgellert/portal-chat/internal/config"
	response "github.com/kgellert/portal-chat/internal/lib"
	"github.com/kgellert/portal-chat/internal/messages"
)

// APIError is a non-2xx answer from the chat API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s: %s", e.Status, e.Code, e.Message)
}

type API struct {
	base   string
	client *http.Client
}

func NewAPI(base string, client *http.Client) *API {
	if client == nil {
		client = http.DefaultClient
	}
	return &API{base: strings.TrimRight(base, "/"), client: client}
}

// Config returns the public chat settings, including the admin id.
func (a *API) Config(ctx context.Context) (config.ChatConfig, error) {
	var body struct {
		Config config.Config `json:"config"`
	}
	if err := a.get(ctx, "/api/chat/config", nil, &body); err != nil {
		return config.ChatConfig{}, err
	}
	return body.Config.Chat, nil
}

func (a *API) Roster(ctx context.Context, adminID int64) ([]chats.Summary, error) {
	q := url.Values{}
	q.Set("admin_id", strconv.FormatInt(adminID, 10))

	var out []chats.Summary
	if err := a.get(ctx, "/api/chat/applicants", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History fetches the pair's transcript. The server marks read whatever
// was addressed to viewerID.
func (a *API) History(ctx context.Context, userID, adminID, viewerID int64) ([]messages.Message, error) {
	q := url.Values{}
	q.Set("user_id", strconv.FormatInt(userID, 10))
	q.Set("admin_id", strconv.FormatInt(adminID, 10))
	if viewerID != 0 {
		q.Set("viewer_id", strconv.FormatInt(viewerID, 10))
	}

	var out []messages.Message
	if err := a.get(ctx, "/api/chat/history", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *API) get(ctx context.Context, path string, q url.Values, out any) error {
	const op = "chatclient.API.get"

	u := a.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := response.ReadError(resp.StatusCode, resp.Body)
		return &APIError{Status: resp.StatusCode, Code: body.Code, Message: body.Message}
	}

	if err := render.DecodeJSON(resp.Body, out); err != nil {
		return fmt.Errorf("%s: decode %s: %w", op, path, err)
	}

	return nil
}
