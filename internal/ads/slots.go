package ads

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"focusbeat/backend/internal/model"
)

type slotsFile struct {
	Slots []model.AdSlotConfig `toml:"slots"`
}

// ParseSlots decodes a TOML slot list.
func ParseSlots(data []byte) ([]model.AdSlotConfig, error) {
	var file slotsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode ad slots: %w", err)
	}
	seen := make(map[string]bool, len(file.Slots))
	for _, slot := range file.Slots {
		if err := slot.Validate(); err != nil {
			return nil, err
		}
		if seen[slot.ID] {
			return nil, fmt.Errorf("duplicate ad slot %s", slot.ID)
		}
		seen[slot.ID] = true
	}
	return file.Slots, nil
}

// LoadSlots reads path, or returns DefaultSlots when path is empty.
func LoadSlots(path string) ([]model.AdSlotConfig, error) {
	if path == "" {
		return DefaultSlots(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ad slots %s: %w", path, err)
	}
	return ParseSlots(data)
}

func DefaultSlots() []model.AdSlotConfig {
	all := []model.ProviderID{model.ProviderAdSense, model.ProviderAdsterra, model.ProviderMonetag}
	both := []model.DeviceClass{model.DeviceDesktop, model.DeviceMobile}

	return []model.AdSlotConfig{
		{
			ID:             "header-banner",
			Sizes:          model.AdSlotSizes{Desktop: model.AdSize{Width: 728, Height: 90}, Mobile: model.AdSize{Width: 320, Height: 50}},
			Providers:      all,
			EnabledDevices: both,
		},
		{
			ID:             "sidebar",
			Sizes:          model.AdSlotSizes{Desktop: model.AdSize{Width: 300, Height: 600}},
			Providers:      all,
			EnabledDevices: []model.DeviceClass{model.DeviceDesktop},
			Lazy:           true,
		},
		{
			ID:             "in-content",
			Sizes:          model.AdSlotSizes{Desktop: model.AdSize{Width: 336, Height: 280}, Mobile: model.AdSize{Width: 300, Height: 250}},
			Providers:      all,
			EnabledDevices: both,
			Lazy:           true,
		},
		{
			ID:             "footer-sticky",
			Sizes:          model.AdSlotSizes{Desktop: model.AdSize{Width: 728, Height: 90}, Mobile: model.AdSize{Width: 320, Height: 50}},
			Providers:      []model.ProviderID{model.ProviderAdsterra, model.ProviderMonetag},
			EnabledDevices: []model.DeviceClass{model.DeviceMobile},
			Sticky:         true,
		},
	}
}
