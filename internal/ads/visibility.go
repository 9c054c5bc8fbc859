package ads

import "sync"

// Rect is an element's vertical position relative to the viewport, in CSS
// pixels, as reported by the client.
type Rect struct {
	Top            int `json:"top"`
	Bottom         int `json:"bottom"`
	ViewportHeight int `json:"viewportHeight"`
}

// Intersects reports whether r touches the viewport grown by margin on
// both edges. Any overlap counts.
func Intersects(r Rect, margin int) bool {
	if r.Bottom < r.Top {
		return false
	}
	return r.Bottom > -margin && r.Top < r.ViewportHeight+margin
}

// VisibilityObserver fires a callback once, the first time an observed
// element is reported inside the margin, then stops observing it.
type VisibilityObserver struct {
	mu      sync.Mutex
	margin  int
	watches map[string]func()
}

func NewVisibilityObserver(margin int) *VisibilityObserver {
	return &VisibilityObserver{margin: margin, watches: make(map[string]func())}
}

func (o *VisibilityObserver) Observe(elementID string, onVisible func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watches[elementID] = onVisible
}

func (o *VisibilityObserver) Unobserve(elementID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.watches, elementID)
}

// Report handles one position report and returns whether it fired.
func (o *VisibilityObserver) Report(elementID string, r Rect) bool {
	o.mu.Lock()
	onVisible, ok := o.watches[elementID]
	if !ok || !Intersects(r, o.margin) {
		o.mu.Unlock()
		return false
	}
	delete(o.watches, elementID)
	o.mu.Unlock()

	onVisible()
	return true
}

func (o *VisibilityObserver) Observing(elementID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.watches[elementID]
	return ok
}

func (o *VisibilityObserver) Disconnect() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watches = make(map[string]func())
}
