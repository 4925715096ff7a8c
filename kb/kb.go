// Package kb holds the satellite catalog the coverage engine draws its pools
// from.
package kb

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/coverage-guarantee/model"
)

// EventType indicates what kind of change happened in the catalog.
type EventType int

const (
	EventSatelliteAdded EventType = iota
	EventSatelliteRemoved
)

func (t EventType) String() string {
	switch t {
	case EventSatelliteAdded:
		return "added"
	case EventSatelliteRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when the catalog changes.
type Event struct {
	Type      EventType
	Satellite model.SatelliteDescriptor
}

// Catalog is an in-memory, thread-safe store of satellite descriptors.
type Catalog struct {
	mu sync.RWMutex

	satellites map[string]model.SatelliteDescriptor

	subs   map[int]func(Event)
	nextID int
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		satellites: make(map[string]model.SatelliteDescriptor),
		subs:       make(map[int]func(Event)),
	}
}

// AddSatellite validates and stores sat. It returns an error if the ID
// already exists.
func (c *Catalog) AddSatellite(sat model.SatelliteDescriptor) error {
	if err := sat.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	if _, exists := c.satellites[sat.ID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("satellite with ID %q already exists", sat.ID)
	}
	c.satellites[sat.ID] = sat
	subs := c.subscribers()
	c.mu.Unlock()

	notify(subs, Event{Type: EventSatelliteAdded, Satellite: sat})
	return nil
}

// RemoveSatellite deletes the satellite with the given ID.
func (c *Catalog) RemoveSatellite(id string) error {
	c.mu.Lock()
	sat, ok := c.satellites[id]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("satellite with ID %q not found", id)
	}
	delete(c.satellites, id)
	subs := c.subscribers()
	c.mu.Unlock()

	notify(subs, Event{Type: EventSatelliteRemoved, Satellite: sat})
	return nil
}

// GetSatellite returns the satellite with the given ID.
func (c *Catalog) GetSatellite(id string) (model.SatelliteDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sat, ok := c.satellites[id]
	return sat, ok
}

// Len returns the number of stored satellites.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.satellites)
}

// Pool returns a snapshot of the catalog sorted by ID. With constellations
// given, only those constellations are included.
func (c *Catalog) Pool(constellations ...model.Constellation) []model.SatelliteDescriptor {
	want := make(map[model.Constellation]bool, len(constellations))
	for _, cons := range constellations {
		want[cons] = true
	}

	c.mu.RLock()
	res := make([]model.SatelliteDescriptor, 0, len(c.satellites))
	for _, sat := range c.satellites {
		if len(want) == 0 || want[sat.Constellation] {
			res = append(res, sat)
		}
	}
	c.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ConstellationCounts returns the number of satellites per constellation.
func (c *Catalog) ConstellationCounts() map[model.Constellation]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[model.Constellation]int)
	for _, sat := range c.satellites {
		out[sat.Constellation]++
	}
	return out
}

// Subscribe registers a callback for catalog events. It returns an
// unsubscribe function.
func (c *Catalog) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// subscribers copies the callbacks so they can run outside the lock.
func (c *Catalog) subscribers() []func(Event) {
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), len(ids))
	for i, id := range ids {
		out[i] = c.subs[id]
	}
	return out
}

func notify(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}

type catalogFile struct {
	Satellites []model.SatelliteDescriptor `yaml:"satellites"`
}

// LoadCatalog decodes a YAML document with a top-level satellites list.
// Every entry must be valid and IDs must be unique.
func LoadCatalog(r io.Reader) (*Catalog, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := NewCatalog()
	for i, sat := range doc.Satellites {
		if err := c.AddSatellite(sat); err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	return c, nil
}

// LoadCatalogFile opens path and calls LoadCatalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f)
}
