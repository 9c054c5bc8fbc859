package adplugin

import (
	"net/rpc"
)

// ProviderRPCClient is the host side of a provider plugin.
type ProviderRPCClient struct {
	client *rpc.Client
}

func (c *ProviderRPCClient) Name() string {
	var resp string
	if err := c.client.Call("Plugin.Name", new(interface{}), &resp); err != nil {
		return ""
	}
	return resp
}

// IsAvailable is false when the plugin process cannot be reached.
func (c *ProviderRPCClient) IsAvailable() bool {
	var resp bool
	if err := c.client.Call("Plugin.IsAvailable", new(interface{}), &resp); err != nil {
		return false
	}
	return resp
}

type LoadReply struct {
	Filled bool
	Error  string
}

func (c *ProviderRPCClient) Load(req LoadRequest) (bool, error) {
	var resp LoadReply
	if err := c.client.Call("Plugin.Load", &req, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, &PluginError{Message: resp.Error}
	}
	return resp.Filled, nil
}

// ProviderRPCServer is the plugin side.
type ProviderRPCServer struct {
	Impl Provider
}

func (s *ProviderRPCServer) Name(args interface{}, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

func (s *ProviderRPCServer) IsAvailable(args interface{}, resp *bool) error {
	*resp = s.Impl.IsAvailable()
	return nil
}

func (s *ProviderRPCServer) Load(args *LoadRequest, resp *LoadReply) error {
	filled, err := s.Impl.Load(*args)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Filled = filled
	return nil
}
