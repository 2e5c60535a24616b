package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/notabene00/yandex-weather/internal/config"
	"github.com/notabene00/yandex-weather/internal/homeassistant"
	"github.com/notabene00/yandex-weather/internal/models"
	"github.com/notabene00/yandex-weather/internal/store"
	"github.com/notabene00/yandex-weather/internal/weather"
	"github.com/notabene00/yandex-weather/internal/yandex"

	"github.com/sirupsen/logrus"
)

var ErrNotLoaded = errors.New("entry not loaded")

type loadedEntry struct {
	entry  models.Entry
	entity *weather.Entity
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager runs one weather entity per stored config entry.
type Manager struct {
	config    *config.Config
	store     store.Store
	publisher homeassistant.Publisher
	discovery homeassistant.Discovery
	logger    *logrus.Logger

	baseCtx   context.Context
	lifecycle sync.Mutex

	entries map[string]*loadedEntry
	mutex   sync.RWMutex

	onStateUpdate func(entryID string, state weather.State)
	now           func() time.Time
}

// NewManager builds a manager. publisher may be nil, in which case nothing
// is sent to Home Assistant.
func NewManager(cfg *config.Config, st store.Store, publisher homeassistant.Publisher, logger *logrus.Logger) *Manager {
	return &Manager{
		config:    cfg,
		store:     st,
		publisher: publisher,
		discovery: homeassistant.Discovery{
			Prefix:    cfg.MQTT.DiscoveryPrefix,
			BaseTopic: cfg.MQTT.BaseTopic,
		},
		logger:  logger,
		baseCtx: context.Background(),
		entries: make(map[string]*loadedEntry),
		now:     time.Now,
	}
}

func (m *Manager) SetStateUpdateCallback(callback func(entryID string, state weather.State)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onStateUpdate = callback
}

// Start syncs with the store until ctx is done, then unloads every entry.
func (m *Manager) Start(ctx context.Context) {
	m.lifecycle.Lock()
	m.baseCtx = ctx
	m.lifecycle.Unlock()

	m.logger.Info("Starting integration manager")

	if err := m.Sync(ctx); err != nil {
		m.logger.Errorf("Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(m.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Stopping integration manager")
			m.UnloadAll()
			return
		case <-ticker.C:
			if err := m.Sync(ctx); err != nil {
				m.logger.Errorf("Sync failed: %v", err)
			}
		}
	}
}

// Sync sets up new entries, reloads changed ones and removes the ones that
// are no longer stored.
func (m *Manager) Sync(ctx context.Context) error {
	entries, err := m.store.ListEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to list entries: %w", err)
	}

	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	stored := make(map[string]bool, len(entries))
	for _, entry := range entries {
		stored[entry.ID] = true

		loaded, ok := m.loaded(entry.ID)
		switch {
		case !ok:
			m.setupEntry(entry)
		case loaded.entry.Version != entry.Version || !loaded.entry.UpdatedAt.Equal(entry.UpdatedAt):
			m.logger.Infof("Entry %s changed, reloading", entry.ID)
			m.unloadEntry(entry.ID)
			m.setupEntry(entry)
		}
	}

	for _, id := range m.EntryIDs() {
		if !stored[id] {
			m.removeEntry(id)
		}
	}
	return nil
}

// SetupEntry loads entry, replacing a running instance.
func (m *Manager) SetupEntry(entry models.Entry) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.unloadEntry(entry.ID)
	m.setupEntry(entry)
}

// UnloadEntry stops the entry's poll loop. Unknown entries are ignored.
func (m *Manager) UnloadEntry(entryID string) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.unloadEntry(entryID)
}

// RemoveEntry unloads the entry and clears its discovery config.
func (m *Manager) RemoveEntry(entryID string) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()
	m.removeEntry(entryID)
}

func (m *Manager) UnloadAll() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	for _, id := range m.EntryIDs() {
		m.unloadEntry(id)
	}
}

func (m *Manager) EntryIDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) Entity(entryID string) (*weather.Entity, bool) {
	loaded, ok := m.loaded(entryID)
	if !ok {
		return nil, false
	}
	return loaded.entity, true
}

// Refresh fetches immediately, bypassing the throttle, and publishes the
// resulting state.
func (m *Manager) Refresh(ctx context.Context, entryID string) (weather.State, error) {
	loaded, ok := m.loaded(entryID)
	if !ok {
		return weather.State{}, fmt.Errorf("%s: %w", entryID, ErrNotLoaded)
	}

	err := m.poll(ctx, loaded, true)
	return loaded.entity.State(), err
}

// RepublishDiscovery re-sends discovery, availability and the last state of
// every loaded entry.
func (m *Manager) RepublishDiscovery() {
	m.mutex.RLock()
	loaded := make([]*loadedEntry, 0, len(m.entries))
	for _, l := range m.entries {
		loaded = append(loaded, l)
	}
	m.mutex.RUnlock()

	for _, l := range loaded {
		m.announce(l)
		m.publishState(l.entry.ID, l.entity.State())
	}
}

func (m *Manager) loaded(entryID string) (*loadedEntry, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	l, ok := m.entries[entryID]
	return l, ok
}

func (m *Manager) setupEntry(entry models.Entry) {
	lat, lon := entry.Data.Coordinates(m.config.Home.Latitude, m.config.Home.Longitude)
	client := yandex.NewClient(yandex.Config{
		BaseURL:   m.config.Weather.BaseURL,
		APIKey:    entry.Data.APIKey,
		Latitude:  lat,
		Longitude: lon,
		Timeout:   m.config.Weather.Timeout,
	}, m.logger)

	name := entry.Data.Name
	if name == "" {
		name = weather.DefaultName
	}

	opts := []weather.Option{}
	if m.config.Weather.MinTimeBetweenUpdates > 0 {
		opts = append(opts, weather.WithMinTimeBetweenUpdates(m.config.Weather.MinTimeBetweenUpdates))
	}
	entity := weather.NewEntity(name, entry.ID, client, m.logger, opts...)

	ctx, cancel := context.WithCancel(m.baseCtx)
	loaded := &loadedEntry{
		entry:  entry,
		entity: entity,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mutex.Lock()
	m.entries[entry.ID] = loaded
	m.mutex.Unlock()

	m.announce(loaded)

	m.logger.Infof("Set up entry %s (%s) at %v,%v", entry.ID, name, lat, lon)
	go m.run(ctx, loaded)
}

func (m *Manager) unloadEntry(entryID string) {
	m.mutex.Lock()
	loaded, ok := m.entries[entryID]
	delete(m.entries, entryID)
	m.mutex.Unlock()

	if !ok {
		return
	}

	loaded.cancel()
	<-loaded.done

	m.publish(m.discovery.EntryAvailabilityTopic(entryID), []byte(homeassistant.PayloadOffline))
	m.logger.Infof("Unloaded entry %s", entryID)
}

func (m *Manager) removeEntry(entryID string) {
	loaded, ok := m.loaded(entryID)
	if !ok {
		return
	}
	m.unloadEntry(entryID)

	if m.publisher == nil {
		return
	}
	sensors := m.discovery.Sensors(entryID, loaded.entity.Name())
	if err := homeassistant.RemoveConfigurationFromHa(m.publisher, m.discovery, sensors, entryID, m.logger); err != nil {
		m.logger.Errorf("Failed to remove discovery config of %s: %v", entryID, err)
	}
	m.publish(m.discovery.StateTopic(entryID), []byte{})
	m.publish(m.discovery.AttributesTopic(entryID), []byte{})
	m.publish(m.discovery.EntryAvailabilityTopic(entryID), []byte{})
	m.logger.Infof("Removed entry %s", entryID)
}

func (m *Manager) run(ctx context.Context, loaded *loadedEntry) {
	defer close(loaded.done)

	ticker := time.NewTicker(m.config.Weather.ScanInterval)
	defer ticker.Stop()

	m.poll(ctx, loaded, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, loaded, false)
		}
	}
}

func (m *Manager) poll(ctx context.Context, loaded *loadedEntry, force bool) error {
	executed, err := loaded.entity.Update(ctx, force)
	if executed && err == nil {
		m.recordReading(ctx, loaded)
	}

	state := loaded.entity.State()
	m.publishState(loaded.entry.ID, state)

	m.mutex.RLock()
	callback := m.onStateUpdate
	m.mutex.RUnlock()
	if callback != nil {
		callback(loaded.entry.ID, state)
	}
	return err
}

func (m *Manager) recordReading(ctx context.Context, loaded *loadedEntry) {
	if m.store == nil {
		return
	}
	current := loaded.entity.Current()
	if current == nil {
		return
	}
	if _, err := m.store.RecordReading(ctx, models.NewReading(loaded.entry.ID, *current, m.now())); err != nil {
		m.logger.Errorf("Failed to record reading of %s: %v", loaded.entry.ID, err)
	}
}

func (m *Manager) announce(loaded *loadedEntry) {
	if m.publisher == nil {
		return
	}
	sensors := m.discovery.Sensors(loaded.entry.ID, loaded.entity.Name())
	if err := homeassistant.SendConfigurationToHa(m.publisher, m.discovery, sensors, loaded.entry.ID, m.logger); err != nil {
		m.logger.Errorf("Failed to send discovery config of %s: %v", loaded.entry.ID, err)
	}
	m.publish(m.discovery.EntryAvailabilityTopic(loaded.entry.ID), []byte(homeassistant.PayloadOnline))
}

func (m *Manager) publishState(entryID string, state weather.State) {
	if m.publisher == nil {
		return
	}

	payload, err := json.Marshal(state)
	if err != nil {
		m.logger.Errorf("Failed to encode state of %s: %v", entryID, err)
		return
	}
	m.publish(m.discovery.StateTopic(entryID), payload)

	if state.Attributes != nil {
		attributes, err := json.Marshal(state.Attributes)
		if err != nil {
			m.logger.Errorf("Failed to encode attributes of %s: %v", entryID, err)
			return
		}
		m.publish(m.discovery.AttributesTopic(entryID), attributes)
	}
}

func (m *Manager) publish(topic string, payload []byte) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(topic, true, payload); err != nil {
		m.logger.Errorf("MQTT publish failed: %v", err)
	}
}
