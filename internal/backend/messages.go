package backend

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"
	"gopkg.in/fsnotify.v1"
)

// Rewrite maps a known backend phrase to the text shown to end users.
// Matching is case-insensitive substring containment.
type Rewrite struct {
	Contains string `yaml:"contains"`
	Message  string `yaml:"message"`
}

// Catalog rewrites recognized backend conflict messages. Unknown text
// passes through verbatim.
type Catalog struct {
	mu    sync.RWMutex
	rules []Rewrite
}

// defaultRules covers the backend phrases observed in production.
var defaultRules = []Rewrite{
	{
		Contains: "must have a user with role USER as owner",
		Message:  "The ticket owner must be a registered USER account before the draft can be finalized.",
	},
	{
		Contains: "not found in the system",
		Message:  "The owner email is not registered. Make sure the user has an account before finalizing.",
	},
	{
		Contains: "Only tickets with status OPEN can be accepted",
		Message:  "This ticket is no longer open and cannot be accepted.",
	},
	{
		Contains: "Only tickets with status OPEN can be rejected",
		Message:  "This ticket is no longer open and cannot be rejected.",
	},
	{
		Contains: "Only tickets with status ANSWERED can be escalated",
		Message:  "This ticket is not being worked on and cannot be escalated.",
	},
	{
		Contains: "Cannot change status from SOLVED",
		Message:  "Solved tickets cannot be reopened.",
	},
}

// NewCatalog returns a catalog preloaded with the built-in rules.
func NewCatalog() *Catalog {
	return &Catalog{rules: defaultRules}
}

// LoadCatalog reads additional rules from a YAML file. File rules take
// precedence over the built-in ones.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	if err := c.loadFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file struct {
		Rewrites []Rewrite `yaml:"rewrites"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	c.mu.Lock()
	c.rules = append(append([]Rewrite{}, file.Rewrites...), defaultRules...)
	c.mu.Unlock()
	return nil
}

// Rewrite returns the friendly text for a recognized backend message,
// or the raw message unchanged.
func (c *Catalog) Rewrite(raw string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lowered := strings.ToLower(raw)
	for _, rule := range c.rules {
		if rule.Contains == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(rule.Contains)) {
			return rule.Message
		}
	}
	return raw
}

// Watch reloads the catalog whenever the file changes, until ctx is
// done. Errors during reload keep the previous rules.
func (c *Catalog) Watch(ctx context.Context, path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := c.loadFile(path); err != nil {
					logger.Warn("message catalog reload failed", zap.Error(err))
					continue
				}
				logger.Info("message catalog reloaded", zap.String("path", path))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("message catalog watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
