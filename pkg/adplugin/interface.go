// Package adplugin lets ad providers run as separate processes. A provider
// binary calls Serve; the server loads it through a Manager and uses it like
// any built-in provider.
package adplugin

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"
)

// Handshake is shared by host and provider binaries. A binary built
// against a different protocol version refuses to start.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FOCUSBEAT_AD_PLUGIN",
	MagicCookieValue: "focusbeat-ads-v1",
}

// PluginName is the single plugin kind a provider binary dispenses.
const PluginName = "ad_provider"

// PluginMap is the map of plugins the host can dispense.
var PluginMap = map[string]plugin.Plugin{
	PluginName: &ProviderPlugin{},
}

// LoadRequest describes the container an ad should be rendered into.
type LoadRequest struct {
	SlotID    string
	ElementID string
	Width     int
	Height    int
	Device    string
	Page      string
}

// Provider is implemented by provider binaries. It is self-contained so
// plugins do not import server internals.
type Provider interface {
	Name() string
	IsAvailable() bool
	// Load reports whether an ad was rendered.
	Load(req LoadRequest) (bool, error)
}

// ProviderPlugin is the plugin.Plugin implementation for ad providers.
type ProviderPlugin struct {
	Impl Provider
}

func (p *ProviderPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &ProviderRPCServer{Impl: p.Impl}, nil
}

func (p *ProviderPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &ProviderRPCClient{client: c}, nil
}

// Serve runs impl as a provider plugin. It blocks until the host exits.
func Serve(impl Provider) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]plugin.Plugin{
			PluginName: &ProviderPlugin{Impl: impl},
		},
	})
}

type PluginError struct {
	Message string
}

func (e *PluginError) Error() string {
	return e.Message
}
