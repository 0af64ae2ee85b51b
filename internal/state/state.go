package state

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"smabt/internal/backtest"
)

// Key identifies one price fetch. Start and End are compared by calendar
// date.
type Key struct {
	Symbol string    `json:"symbol"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func NewKey(symbol string, start, end time.Time) Key {
	return Key{
		Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
		Start:  dateOf(start),
		End:    dateOf(end),
	}
}

func (k Key) String() string {
	return k.Symbol + "|" + k.Start.Format(time.DateOnly) + "|" + k.End.Format(time.DateOnly)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Cache stores price fetches for the caller. Implementations never hold an
// empty series.
type Cache interface {
	Get(ctx context.Context, key Key) (backtest.PriceSeries, bool, error)
	Put(ctx context.Context, key Key, series backtest.PriceSeries) error
	Invalidate(ctx context.Context, key Key) error
}

type entry struct {
	Key    Key                  `json:"key"`
	Series backtest.PriceSeries `json:"series"`
}

// MemoryCache is a process-local Cache that can be checkpointed to disk.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: map[string]entry{}}
}

func (c *MemoryCache) Get(_ context.Context, key Key) (backtest.PriceSeries, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false, nil
	}
	out := make(backtest.PriceSeries, len(e.Series))
	copy(out, e.Series)
	return out, true, nil
}

func (c *MemoryCache) Put(_ context.Context, key Key, series backtest.PriceSeries) error {
	if len(series) == 0 {
		return nil
	}
	stored := make(backtest.PriceSeries, len(series))
	copy(stored, series)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = entry{Key: key, Series: stored}
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
	return nil
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]entry{}
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *MemoryCache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	loaded := make(map[string]entry, len(entries))
	for _, e := range entries {
		if len(e.Series) == 0 {
			continue
		}
		loaded[e.Key.String()] = e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = loaded
	return nil
}
