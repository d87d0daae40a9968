package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// RowReader reads every row of a sheet. The config sheet is two columns,
// key and value, under a header row.
type RowReader interface {
	ReadRows(ctx context.Context, sheet string) ([][]interface{}, error)
}

// Catalog resolves runtime settings and user-facing texts by key. Lookups
// are case-insensitive. Layers, lowest first: built-in defaults, an optional
// YAML file, then the spreadsheet's config sheet.
type Catalog struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// NewCatalog builds a catalog holding the built-in defaults.
func NewCatalog() *Catalog {
	v := viper.New()
	for key, value := range defaultCatalog {
		v.SetDefault(key, value)
	}
	return &Catalog{v: v}
}

// LoadFile overlays a YAML (or any viper supported) file.
func (c *Catalog) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read catalog file %s: %w", path, err)
	}
	return nil
}

// LoadSheet overlays the key/value rows of sheet. Rows without a key are skipped.
func (c *Catalog) LoadSheet(ctx context.Context, reader RowReader, sheet string) (int, error) {
	rows, err := reader.ReadRows(ctx, sheet)
	if err != nil {
		return 0, fmt.Errorf("read config sheet %s: %w", sheet, err)
	}

	values := make(map[string]string, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		key := strings.TrimSpace(fmt.Sprint(row[0]))
		if key == "" {
			continue
		}
		value := ""
		if len(row) > 1 && row[1] != nil {
			value = fmt.Sprint(row[1])
		}
		values[key] = value
	}

	c.Merge(values)
	return len(values), nil
}

// Merge overrides keys with the given values.
func (c *Catalog) Merge(values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, value := range values {
		c.v.Set(key, value)
	}
}

// Lookup returns the raw value of key.
func (c *Catalog) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.v.IsSet(key) {
		return "", false
	}
	return c.v.GetString(key), true
}

// String returns key or fallback when it is unset or blank.
func (c *Catalog) String(key, fallback string) string {
	if value, ok := c.Lookup(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// Int returns key parsed as an integer, or fallback.
func (c *Catalog) Int(key string, fallback int) int {
	value, ok := c.Lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// Duration returns key, expressed in seconds, as a duration.
func (c *Catalog) Duration(key string, fallbackSeconds int) time.Duration {
	seconds := c.Int(key, fallbackSeconds)
	if seconds <= 0 {
		seconds = fallbackSeconds
	}
	return time.Duration(seconds) * time.Second
}

// List splits a comma separated value, dropping blanks.
func (c *Catalog) List(key string) []string {
	value, _ := c.Lookup(key)
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Message renders a text template, replacing {name} placeholders and literal
// \n sequences. Unknown keys render as a visible marker.
func (c *Catalog) Message(key string, vars map[string]any) string {
	text, ok := c.Lookup(key)
	if !ok {
		return fmt.Sprintf("[missing config %s]", key)
	}
	for name, value := range vars {
		text = strings.ReplaceAll(text, "{"+name+"}", fmt.Sprint(value))
	}
	return strings.ReplaceAll(text, `\n`, "\n")
}
