// Package tools exposes the provider integrations to the assistant's agent
// loop. Each tool resolves a user-scoped client through the client factory at
// call time and never holds token material itself.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

const notionVersion = "2022-06-28"

// Result is what a tool invocation hands back to the agent loop.
type Result struct {
	// Content is the tool output for the model, empty when the call failed.
	Content json.RawMessage `json:"content,omitempty"`

	// NeedsConnection is set when the user must (re)connect the provider
	// before the tool can run. The agent surfaces ConnectProvider as an
	// authorization prompt instead of an error.
	NeedsConnection bool            `json:"needs_connection,omitempty"`
	ConnectProvider domain.Provider `json:"connect_provider,omitempty"`

	Error string `json:"error,omitempty"`
}

// Tool is one callable capability backed by a provider API.
type Tool struct {
	name     string
	provider domain.Provider
	baseURL  string
	clients  driving.ClientFactory
}

// Name returns the tool's registration name.
func (t *Tool) Name() string { return t.name }

// Provider returns the provider this tool depends on.
func (t *Tool) Provider() domain.Provider { return t.provider }

// NewCalendarTool lists the user's upcoming Google Calendar events.
func NewCalendarTool(clients driving.ClientFactory) *Tool {
	return &Tool{
		name:     "calendar_list_events",
		provider: domain.ProviderGoogle,
		baseURL:  "https://www.googleapis.com/calendar/v3/calendars/primary/events",
		clients:  clients,
	}
}

// NewMailTool lists the user's recent Outlook messages.
func NewMailTool(clients driving.ClientFactory) *Tool {
	return &Tool{
		name:     "mail_list_messages",
		provider: domain.ProviderMicrosoft,
		baseURL:  "https://graph.microsoft.com/v1.0/me/messages",
		clients:  clients,
	}
}

// NewNotesTool searches the user's Notion workspace.
func NewNotesTool(clients driving.ClientFactory) *Tool {
	return &Tool{
		name:     "notes_search",
		provider: domain.ProviderNotion,
		baseURL:  "https://api.notion.com/v1/search",
		clients:  clients,
	}
}

// NewVideoTool lists the user's YouTube playlists.
func NewVideoTool(clients driving.ClientFactory) *Tool {
	return &Tool{
		name:     "video_list_playlists",
		provider: domain.ProviderYouTube,
		baseURL:  "https://www.googleapis.com/youtube/v3/playlists?part=snippet&mine=true",
		clients:  clients,
	}
}

// Call executes the tool for the user. A missing or unrecoverable integration
// becomes a connect prompt, not an error: the agent should ask, not apologize.
func (t *Tool) Call(ctx context.Context, userID string) *Result {
	client, err := t.clients.GetUserClient(ctx, userID, t.provider)
	if err != nil {
		if errors.Is(err, domain.ErrNotConnected) {
			return &Result{
				NeedsConnection: true,
				ConnectProvider: t.provider,
			}
		}
		return &Result{Error: err.Error()}
	}

	req, err := t.buildRequest(ctx)
	if err != nil {
		return &Result{Error: err.Error()}
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		return &Result{Error: fmt.Sprintf("%s request failed: %v", t.provider, err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Result{Error: fmt.Sprintf("read %s response: %v", t.provider, err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		// The provider rejected a token we believed valid. Reconnect.
		return &Result{
			NeedsConnection: true,
			ConnectProvider: t.provider,
		}
	}
	if resp.StatusCode >= 300 {
		return &Result{Error: fmt.Sprintf("%s returned status %d", t.provider, resp.StatusCode)}
	}

	if !json.Valid(body) {
		return &Result{Error: fmt.Sprintf("%s returned a non-JSON response", t.provider)}
	}
	return &Result{Content: body}
}

func (t *Tool) buildRequest(ctx context.Context) (*http.Request, error) {
	method := http.MethodGet
	var body io.Reader
	if t.provider == domain.ProviderNotion {
		// Notion's search endpoint is POST-only.
		method = http.MethodPost
		body = bytes.NewReader([]byte(`{}`))
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL, body)
	if err != nil {
		return nil, err
	}
	if t.provider == domain.ProviderNotion {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", notionVersion)
	}
	return req, nil
}

// Registry holds the tool set offered to the agent loop.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry builds the default tool set against the client factory.
func NewRegistry(clients driving.ClientFactory) *Registry {
	r := &Registry{tools: make(map[string]*Tool)}
	for _, tool := range []*Tool{
		NewCalendarTool(clients),
		NewMailTool(clients),
		NewNotesTool(clients),
		NewVideoTool(clients),
	} {
		r.tools[tool.Name()] = tool
	}
	return r
}

// Get returns the named tool, or nil when unknown.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
