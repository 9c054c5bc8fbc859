package model

import "fmt"

type ProviderID string

const (
	ProviderAdSense  ProviderID = "adsense"
	ProviderAdsterra ProviderID = "adsterra"
	ProviderMonetag  ProviderID = "monetag"
)

type DeviceClass string

const (
	DeviceDesktop DeviceClass = "desktop"
	DeviceMobile  DeviceClass = "mobile"
)

type AdSize struct {
	Width  int `json:"width" toml:"width"`
	Height int `json:"height" toml:"height"`
}

type AdSlotSizes struct {
	Desktop AdSize `json:"desktop" toml:"desktop"`
	Mobile  AdSize `json:"mobile" toml:"mobile"`
}

// AdSlotConfig is static per slot.
type AdSlotConfig struct {
	ID             string        `json:"id" toml:"id"`
	Sizes          AdSlotSizes   `json:"sizes" toml:"sizes"`
	Providers      []ProviderID  `json:"providers" toml:"providers"`
	EnabledDevices []DeviceClass `json:"enabledDevices" toml:"enabled_devices"`
	EnabledPages   []string      `json:"enabledPages" toml:"enabled_pages"`
	Lazy           bool          `json:"lazy" toml:"lazy"`
	Sticky         bool          `json:"sticky" toml:"sticky"`
}

func (c AdSlotConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("ad slot needs an id")
	}
	if len(c.Providers) == 0 {
		return fmt.Errorf("ad slot %s has no providers", c.ID)
	}
	for _, device := range c.EnabledDevices {
		if device != DeviceDesktop && device != DeviceMobile {
			return fmt.Errorf("ad slot %s has unknown device %q", c.ID, device)
		}
	}
	return nil
}

func (c AdSlotConfig) EnabledFor(device DeviceClass) bool {
	for _, d := range c.EnabledDevices {
		if d == device {
			return true
		}
	}
	return false
}

// EnabledOn reports whether the slot renders on page. An empty page list
// means every page.
func (c AdSlotConfig) EnabledOn(page string) bool {
	if len(c.EnabledPages) == 0 {
		return true
	}
	for _, p := range c.EnabledPages {
		if p == page {
			return true
		}
	}
	return false
}

func (c AdSlotConfig) SizeFor(device DeviceClass) AdSize {
	if device == DeviceMobile {
		return c.Sizes.Mobile
	}
	return c.Sizes.Desktop
}

// AdSlotState is owned by the orchestrator; callers get copies.
type AdSlotState struct {
	Loading         bool        `json:"loading"`
	Loaded          bool        `json:"loaded"`
	Filled          bool        `json:"filled"`
	CurrentProvider *ProviderID `json:"currentProvider"`
	Error           *string     `json:"error"`
}
