// Command adplugin-example is a house-ads provider plugin. It fills every
// desktop slot and declines on mobile.
//
// Build it into the configured plugin directory:
//
//	go build -o plugins/house-ads ./cmd/adplugin-example
package main

import (
	"focusbeat/backend/pkg/adplugin"
)

type houseAds struct{}

func (houseAds) Name() string {
	return "house"
}

func (houseAds) IsAvailable() bool {
	return true
}

func (houseAds) Load(req adplugin.LoadRequest) (bool, error) {
	if req.Device == "mobile" {
		return false, nil
	}
	return req.Width > 0 && req.Height > 0, nil
}

func main() {
	adplugin.Serve(houseAds{})
}
