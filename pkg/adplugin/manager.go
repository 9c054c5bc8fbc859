package adplugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// Manager starts provider binaries from a directory and keeps them running
// until UnloadAll.
type Manager struct {
	pluginsDir string
	plugins    map[string]*LoadedPlugin
	mu         sync.RWMutex
	logger     hclog.Logger
}

type LoadedPlugin struct {
	Name     string
	Path     string
	Client   *plugin.Client
	Provider Provider
}

func NewManager(pluginsDir string, logger hclog.Logger) *Manager {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:   "ad-plugins",
			Level:  hclog.Warn,
			Output: os.Stderr,
		})
	}
	return &Manager{
		pluginsDir: pluginsDir,
		plugins:    make(map[string]*LoadedPlugin),
		logger:     logger,
	}
}

// Discover lists executables in the plugins directory. A missing directory
// is not an error.
func (m *Manager) Discover() ([]string, error) {
	if _, err := os.Stat(m.pluginsDir); os.IsNotExist(err) {
		return nil, nil
	}

	entries, err := os.ReadDir(m.pluginsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugins directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Mode()&0o111 != 0 {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

func (m *Manager) Load(name string) (*LoadedPlugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p, exists := m.plugins[name]; exists {
		return p, nil
	}

	pluginPath := filepath.Join(m.pluginsDir, name)
	if _, err := os.Stat(pluginPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("plugin not found: %s", name)
	}

	m.logger.Info("loading ad plugin", "name", name, "path", pluginPath)

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginMap,
		Cmd:             exec.Command(pluginPath),
		Logger:          m.logger.Named(name),
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to connect to plugin: %w", err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	provider, ok := raw.(Provider)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s does not implement Provider", name)
	}

	loaded := &LoadedPlugin{Name: name, Path: pluginPath, Client: client, Provider: provider}
	m.plugins[name] = loaded
	m.logger.Info("ad plugin loaded", "name", name, "provider", provider.Name())
	return loaded, nil
}

// UnloadAll kills every plugin process.
func (m *Manager) UnloadAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, p := range m.plugins {
		p.Client.Kill()
		m.logger.Debug("ad plugin unloaded", "name", name)
	}
	m.plugins = make(map[string]*LoadedPlugin)
}

func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
