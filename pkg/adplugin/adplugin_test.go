package adplugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-plugin"
)

type stubProvider struct {
	filled bool
	err    error
	got    LoadRequest
}

func (p *stubProvider) Name() string      { return "house" }
func (p *stubProvider) IsAvailable() bool { return true }
func (p *stubProvider) Load(req LoadRequest) (bool, error) {
	p.got = req
	return p.filled, p.err
}

func dispense(t *testing.T, impl Provider) Provider {
	t.Helper()
	client, _ := plugin.TestPluginRPCConn(t, map[string]plugin.Plugin{
		PluginName: &ProviderPlugin{Impl: impl},
	}, nil)
	t.Cleanup(func() { _ = client.Close() })

	raw, err := client.Dispense(PluginName)
	if err != nil {
		t.Fatalf("dispense: %v", err)
	}
	provider, ok := raw.(Provider)
	if !ok {
		t.Fatalf("dispensed %T does not implement Provider", raw)
	}
	return provider
}

func TestProviderOverRPC(t *testing.T) {
	impl := &stubProvider{filled: true}
	provider := dispense(t, impl)

	if provider.Name() != "house" || !provider.IsAvailable() {
		t.Fatalf("unexpected provider metadata: %q %v", provider.Name(), provider.IsAvailable())
	}

	req := LoadRequest{SlotID: "sidebar", ElementID: "ad-sidebar", Width: 300, Height: 250, Device: "desktop", Page: "home"}
	filled, err := provider.Load(req)
	if err != nil || !filled {
		t.Fatalf("expected fill, got filled=%v err=%v", filled, err)
	}
	if impl.got != req {
		t.Fatalf("request not forwarded intact: %+v", impl.got)
	}
}

func TestProviderErrorCrossesRPC(t *testing.T) {
	provider := dispense(t, &stubProvider{err: errors.New("no inventory")})

	filled, err := provider.Load(LoadRequest{SlotID: "x"})
	var pluginErr *PluginError
	if filled || !errors.As(err, &pluginErr) || pluginErr.Message != "no inventory" {
		t.Fatalf("expected plugin error, got filled=%v err=%v", filled, err)
	}
}

func TestDiscoverListsExecutables(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "house-ads"), []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	names, err := NewManager(dir, nil).Discover()
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(names) != 1 || names[0] != "house-ads" {
		t.Fatalf("expected only the executable, got %v", names)
	}

	names, err = NewManager(filepath.Join(dir, "missing"), nil).Discover()
	if err != nil || names != nil {
		t.Fatalf("missing dir should yield nothing, got %v %v", names, err)
	}
}

func TestLoadUnknownPlugin(t *testing.T) {
	manager := NewManager(t.TempDir(), nil)
	if _, err := manager.Load("nope"); err == nil {
		t.Fatal("expected error for a missing plugin")
	}
	if len(manager.Loaded()) != 0 {
		t.Fatal("nothing should be loaded")
	}
}
