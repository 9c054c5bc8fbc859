// Package ads runs the per-slot provider waterfall: each slot tries its
// providers in order until one fills, gated by device class, a mobile slot
// quota and the page-wide AdSense policy.
package ads

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"focusbeat/backend/internal/logging"
	"focusbeat/backend/internal/model"
)

// ReasonAllProvidersFailed is the slot error after the waterfall is
// exhausted.
const ReasonAllProvidersFailed = "All providers failed to fill"

const (
	DefaultBreakpoint  = 1024
	DefaultMobileLimit = 3
	DefaultLoadTimeout = 5 * time.Second
	DefaultRootMargin  = 100
)

// MobileAdsDisabled as Options.MobileLimit loads no slot on mobile.
const MobileAdsDisabled = -1

type Options struct {
	Slots     []model.AdSlotConfig
	Providers []Provider
	// EnabledProviders restricts which providers may be tried. Empty means
	// every provider passed in Providers.
	EnabledProviders []model.ProviderID
	Breakpoint       int
	// MobileLimit caps loaded slots on mobile viewports. Zero means
	// DefaultMobileLimit; MobileAdsDisabled turns mobile ads off.
	MobileLimit int
	LoadTimeout time.Duration
	RootMargin  int
	Page        string
	// ViewportWidth is the initial width until SetViewport is called.
	ViewportWidth int
	Logger        hclog.Logger
}

// Listener receives a copy of a slot's state after every change.
type Listener func(slotID string, state model.AdSlotState)

type subscription struct {
	slotID string
	fn     Listener
}

type Orchestrator struct {
	logger      hclog.Logger
	breakpoint  int
	mobileLimit int
	timeout     time.Duration
	page        string
	observer    *VisibilityObserver

	mu            sync.Mutex
	configs       map[string]model.AdSlotConfig
	providers     map[model.ProviderID]Provider
	enabled       map[model.ProviderID]bool
	states        map[string]model.AdSlotState
	loaded        map[string]bool
	elements      map[string]string
	subs          map[string]subscription
	mobileCount   int
	adSenseActive bool
	viewportWidth int

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	if opts.Breakpoint <= 0 {
		opts.Breakpoint = DefaultBreakpoint
	}
	if opts.MobileLimit == 0 {
		opts.MobileLimit = DefaultMobileLimit
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = opts.Breakpoint
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		logger:        logging.OrNop(opts.Logger),
		breakpoint:    opts.Breakpoint,
		mobileLimit:   opts.MobileLimit,
		timeout:       opts.LoadTimeout,
		page:          opts.Page,
		observer:      NewVisibilityObserver(opts.RootMargin),
		configs:       make(map[string]model.AdSlotConfig, len(opts.Slots)),
		providers:     make(map[model.ProviderID]Provider, len(opts.Providers)),
		states:        make(map[string]model.AdSlotState),
		loaded:        make(map[string]bool),
		elements:      make(map[string]string),
		subs:          make(map[string]subscription),
		viewportWidth: opts.ViewportWidth,
		ctx:           ctx,
		cancel:        cancel,
	}
	for _, slot := range opts.Slots {
		o.configs[slot.ID] = slot
	}
	for _, provider := range opts.Providers {
		o.providers[provider.Name()] = provider
	}
	if len(opts.EnabledProviders) > 0 {
		o.enabled = make(map[model.ProviderID]bool, len(opts.EnabledProviders))
		for _, id := range opts.EnabledProviders {
			o.enabled[id] = true
		}
	}
	return o
}

// DeviceClassFor classifies a viewport width against breakpoint.
func DeviceClassFor(width, breakpoint int) model.DeviceClass {
	if width < breakpoint {
		return model.DeviceMobile
	}
	return model.DeviceDesktop
}

func (o *Orchestrator) SetViewport(width int) model.DeviceClass {
	o.mu.Lock()
	defer o.mu.Unlock()
	if width > 0 {
		o.viewportWidth = width
	}
	return DeviceClassFor(o.viewportWidth, o.breakpoint)
}

func (o *Orchestrator) DeviceClass() model.DeviceClass {
	o.mu.Lock()
	defer o.mu.Unlock()
	return DeviceClassFor(o.viewportWidth, o.breakpoint)
}

// Subscribe registers fn for state changes of slotID, or of every slot when
// slotID is empty. The returned func unsubscribes.
func (o *Orchestrator) Subscribe(slotID string, fn Listener) func() {
	id := uuid.NewString()
	o.mu.Lock()
	o.subs[id] = subscription{slotID: slotID, fn: fn}
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) broadcast(slotID string, state model.AdSlotState) {
	o.mu.Lock()
	listeners := make([]Listener, 0, len(o.subs))
	for _, sub := range o.subs {
		if sub.slotID == "" || sub.slotID == slotID {
			listeners = append(listeners, sub.fn)
		}
	}
	o.mu.Unlock()

	for _, fn := range listeners {
		fn(slotID, copyState(state))
	}
}

// RegisterSlot attaches a slot to a page element. Eager slots start loading
// right away; lazy slots load on their first visibility report. Unknown
// slot ids are ignored.
func (o *Orchestrator) RegisterSlot(slotID, elementID string) bool {
	o.mu.Lock()
	cfg, ok := o.configs[slotID]
	if !ok {
		o.mu.Unlock()
		o.logger.Debug("register unknown ad slot", "slot", slotID)
		return false
	}
	if elementID == "" {
		elementID = slotID
	}
	o.elements[slotID] = elementID
	if _, exists := o.states[slotID]; !exists {
		o.states[slotID] = model.AdSlotState{}
	}
	o.mu.Unlock()

	if !cfg.Lazy {
		o.spawn(slotID)
		return true
	}
	o.observer.Observe(elementID, func() { o.spawn(slotID) })
	return true
}

// ReportVisibility feeds a client position report to the observer.
func (o *Orchestrator) ReportVisibility(elementID string, r Rect) bool {
	return o.observer.Report(elementID, r)
}

func (o *Orchestrator) spawn(slotID string) {
	o.loads.Add(1)
	go func() {
		defer o.loads.Done()
		o.TriggerLoad(o.ctx, slotID)
	}()
}

// Wait blocks until every load started by RegisterSlot or a visibility
// report has finished.
func (o *Orchestrator) Wait() {
	o.loads.Wait()
}

func (o *Orchestrator) UnregisterSlot(slotID string) {
	o.mu.Lock()
	elementID, ok := o.elements[slotID]
	delete(o.elements, slotID)
	delete(o.loaded, slotID)
	delete(o.states, slotID)
	for id, sub := range o.subs {
		if sub.slotID == slotID {
			delete(o.subs, id)
		}
	}
	o.mu.Unlock()

	if ok {
		o.observer.Unobserve(elementID)
	}
}

// TriggerLoad runs the waterfall for slotID once. Later calls for the same
// slot return its state without trying again.
func (o *Orchestrator) TriggerLoad(ctx context.Context, slotID string) model.AdSlotState {
	o.mu.Lock()
	cfg, ok := o.configs[slotID]
	if !ok {
		o.mu.Unlock()
		return model.AdSlotState{}
	}
	if o.loaded[slotID] {
		state := copyState(o.states[slotID])
		o.mu.Unlock()
		return state
	}
	if !cfg.EnabledOn(o.page) {
		o.mu.Unlock()
		o.logger.Debug("ad slot disabled on page", "slot", slotID, "page", o.page)
		return model.AdSlotState{}
	}

	device := DeviceClassFor(o.viewportWidth, o.breakpoint)
	if !cfg.EnabledFor(device) {
		state := copyState(o.states[slotID])
		o.mu.Unlock()
		o.logger.Debug("ad slot disabled for device", "slot", slotID, "device", device)
		return state
	}
	if device == model.DeviceMobile {
		if o.mobileCount >= o.mobileLimit {
			state := copyState(o.states[slotID])
			o.mu.Unlock()
			o.logger.Debug("mobile ad limit reached", "slot", slotID, "limit", o.mobileLimit)
			return state
		}
		o.mobileCount++
	}
	o.loaded[slotID] = true

	loading := model.AdSlotState{Loading: true}
	o.states[slotID] = loading
	container := Container{
		ElementID: o.elements[slotID],
		Size:      cfg.SizeFor(device),
		Device:    device,
		Page:      o.page,
	}
	candidates := o.candidatesLocked(cfg)
	o.mu.Unlock()

	o.broadcast(slotID, loading)

	for _, provider := range candidates {
		if o.IsAdSenseActive() && provider.Name() != model.ProviderAdSense {
			o.logger.Debug("skipping provider while adsense is active", "slot", slotID, "provider", provider.Name())
			continue
		}
		if !o.attempt(ctx, provider, slotID, container) {
			continue
		}

		id := provider.Name()
		filled := model.AdSlotState{Loaded: true, Filled: true, CurrentProvider: &id}
		o.mu.Lock()
		if id == model.ProviderAdSense {
			o.adSenseActive = true
		}
		current := o.loaded[slotID]
		if current {
			o.states[slotID] = filled
		}
		o.mu.Unlock()

		o.logger.Info("ad slot filled", "slot", slotID, "provider", id)
		if current {
			o.broadcast(slotID, filled)
		}
		return copyState(filled)
	}

	reason := ReasonAllProvidersFailed
	failed := model.AdSlotState{Loaded: true, Error: &reason}
	o.mu.Lock()
	current := o.loaded[slotID]
	if current {
		o.states[slotID] = failed
	}
	o.mu.Unlock()

	o.logger.Info("ad slot not filled", "slot", slotID, "candidates", len(candidates))
	if current {
		o.broadcast(slotID, failed)
	}
	return copyState(failed)
}

// candidatesLocked lists the slot's providers in waterfall order that are
// registered, enabled and available.
func (o *Orchestrator) candidatesLocked(cfg model.AdSlotConfig) []Provider {
	candidates := make([]Provider, 0, len(cfg.Providers))
	for _, id := range cfg.Providers {
		provider, ok := o.providers[id]
		if !ok {
			continue
		}
		if o.enabled != nil && !o.enabled[id] {
			continue
		}
		if !provider.IsAvailable() {
			continue
		}
		candidates = append(candidates, provider)
	}
	return candidates
}

// attempt races one provider against the load timeout. Errors, panics and
// timeouts all count as no fill.
func (o *Orchestrator) attempt(ctx context.Context, provider Provider, slotID string, container Container) bool {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type result struct {
		filled bool
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		filled, err := provider.Load(ctx, slotID, container)
		done <- result{filled: filled, err: err}
	}()

	select {
	case <-ctx.Done():
		o.logger.Warn("ad provider timed out", "slot", slotID, "provider", provider.Name(), "timeout", o.timeout)
		return false
	case r := <-done:
		if r.err != nil {
			o.logger.Warn("ad provider failed", "slot", slotID, "provider", provider.Name(), "error", r.err)
			return false
		}
		return r.filled
	}
}

func (o *Orchestrator) GetSlotState(slotID string) (model.AdSlotState, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, known := o.configs[slotID]; !known {
		return model.AdSlotState{}, false
	}
	return copyState(o.states[slotID]), true
}

// SlotStates returns every registered slot's state.
func (o *Orchestrator) SlotStates() map[string]model.AdSlotState {
	o.mu.Lock()
	defer o.mu.Unlock()
	states := make(map[string]model.AdSlotState, len(o.states))
	for id, state := range o.states {
		states[id] = copyState(state)
	}
	return states
}

// Slots returns the configured slots ordered by id.
func (o *Orchestrator) Slots() []model.AdSlotConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	slots := make([]model.AdSlotConfig, 0, len(o.configs))
	for _, cfg := range o.configs {
		slots = append(slots, cfg)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].ID < slots[j].ID })
	return slots
}

func (o *Orchestrator) IsAdSenseActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.adSenseActive
}

func (o *Orchestrator) GetMobileSlotCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mobileCount
}

// Destroy stops observing, drops subscribers and slot bookkeeping and
// cancels in-flight loads. The mobile count and AdSense flag live for the
// whole page and are kept.
func (o *Orchestrator) Destroy() {
	o.observer.Disconnect()
	o.cancel()

	o.mu.Lock()
	o.subs = make(map[string]subscription)
	o.loaded = make(map[string]bool)
	o.states = make(map[string]model.AdSlotState)
	o.elements = make(map[string]string)
	o.mu.Unlock()

	o.loads.Wait()
}

func copyState(state model.AdSlotState) model.AdSlotState {
	if state.CurrentProvider != nil {
		provider := *state.CurrentProvider
		state.CurrentProvider = &provider
	}
	if state.Error != nil {
		reason := *state.Error
		state.Error = &reason
	}
	return state
}
