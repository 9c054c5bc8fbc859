package ads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"focusbeat/backend/internal/model"
	"focusbeat/backend/pkg/adplugin"
)

// Container is where an ad is rendered.
type Container struct {
	ElementID string            `json:"elementId"`
	Size      model.AdSize      `json:"size"`
	Device    model.DeviceClass `json:"device"`
	Page      string            `json:"page"`
}

// Provider is the uniform adapter contract. IsAvailable must be free of
// side effects. Load reports whether an ad was rendered; an error is
// treated as no fill.
type Provider interface {
	Name() model.ProviderID
	IsAvailable() bool
	Load(ctx context.Context, slotID string, container Container) (bool, error)
}

// HTTPProvider asks a fill endpoint to render into the container.
type HTTPProvider struct {
	ID       model.ProviderID
	Endpoint string
	// ClientID is sent with every request. Providers that require one are
	// unavailable without it.
	ClientID        string
	RequireClientID bool
	Client          *http.Client
}

type fillRequest struct {
	SlotID    string `json:"slotId"`
	ElementID string `json:"elementId"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Device    string `json:"device"`
	Page      string `json:"page"`
	ClientID  string `json:"clientId,omitempty"`
}

type fillResponse struct {
	Filled bool `json:"filled"`
}

func (p *HTTPProvider) Name() model.ProviderID {
	return p.ID
}

func (p *HTTPProvider) IsAvailable() bool {
	if p.Endpoint == "" {
		return false
	}
	return !p.RequireClientID || p.ClientID != ""
}

// Load posts the container to the endpoint. 204 means the provider
// declined; a non-2xx status is a transport failure.
func (p *HTTPProvider) Load(ctx context.Context, slotID string, container Container) (bool, error) {
	body, err := json.Marshal(fillRequest{
		SlotID:    slotID,
		ElementID: container.ElementID,
		Width:     container.Size.Width,
		Height:    container.Size.Height,
		Device:    string(container.Device),
		Page:      container.Page,
		ClientID:  p.ClientID,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("%s fill endpoint returned %d", p.ID, resp.StatusCode)
	}

	var fill fillResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&fill); err != nil {
		return false, fmt.Errorf("%s fill response: %w", p.ID, err)
	}
	return fill.Filled, nil
}

// NewProviders builds HTTP adapters for the known providers that have an
// endpoint configured.
func NewProviders(endpoints map[string]string, adSenseClientID string, timeout time.Duration) []Provider {
	client := &http.Client{Timeout: timeout}
	var providers []Provider
	for _, id := range []model.ProviderID{model.ProviderAdSense, model.ProviderAdsterra, model.ProviderMonetag} {
		endpoint := endpoints[string(id)]
		if endpoint == "" {
			continue
		}
		provider := &HTTPProvider{ID: id, Endpoint: endpoint, Client: client}
		if id == model.ProviderAdSense {
			provider.ClientID = adSenseClientID
			provider.RequireClientID = true
		}
		providers = append(providers, provider)
	}
	return providers
}

// PluginProvider adapts an out-of-process provider.
type PluginProvider struct {
	Impl adplugin.Provider
}

func (p PluginProvider) Name() model.ProviderID {
	return model.ProviderID(p.Impl.Name())
}

func (p PluginProvider) IsAvailable() bool {
	return p.Impl.IsAvailable()
}

// Load runs the RPC on its own goroutine so the orchestrator's timeout
// still applies when the plugin hangs.
func (p PluginProvider) Load(ctx context.Context, slotID string, container Container) (bool, error) {
	type result struct {
		filled bool
		err    error
	}
	done := make(chan result, 1)
	go func() {
		filled, err := p.Impl.Load(adplugin.LoadRequest{
			SlotID:    slotID,
			ElementID: container.ElementID,
			Width:     container.Size.Width,
			Height:    container.Size.Height,
			Device:    string(container.Device),
			Page:      container.Page,
		})
		done <- result{filled: filled, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-done:
		return r.filled, r.err
	}
}
