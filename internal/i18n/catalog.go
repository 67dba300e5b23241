// Package i18n resolves message tables for the languages the app ships.
//
// Bundles are flat YAML maps of label to text, one file per language
// named <code>.yaml. English and Japanese are embedded; more can be added
// from a directory at startup. Labels missing from a bundle fall back to
// the default language.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the fallback of a new Catalog: used when no
// available bundle matches a request and for labels a bundle lacks.
const DefaultLanguage = "en"

//go:embed locales/*.yaml
var bundled embed.FS

// Messages maps a message label to its text.
type Messages map[string]string

// Clone returns an independent copy of m.
func (m Messages) Clone() Messages {
	out := make(Messages, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Catalog holds every loaded bundle and a matcher over their languages.
type Catalog struct {
	bundles  map[string]Messages
	fallback string
	codes    []string // fallback first, then sorted
	matcher  language.Matcher
}

// NewCatalog loads the embedded bundles.
func NewCatalog() (*Catalog, error) {
	c := &Catalog{bundles: make(map[string]Messages), fallback: DefaultLanguage}

	entries, err := fs.ReadDir(bundled, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}
	for _, entry := range entries {
		data, err := fs.ReadFile(bundled, "locales/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded locale %s: %w", entry.Name(), err)
		}
		if err := c.addBundle(entry.Name(), data); err != nil {
			return nil, err
		}
	}

	if _, ok := c.bundles[DefaultLanguage]; !ok {
		return nil, fmt.Errorf("default language %q has no bundle", DefaultLanguage)
	}
	c.rebuild()
	return c, nil
}

// LoadDir adds or overrides bundles from the *.yaml files in dir. Labels
// in a file override the same labels of an existing bundle.
func (c *Catalog) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to list locales in %s: %w", dir, err)
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read locale %s: %w", path, err)
		}
		if err := c.addBundle(filepath.Base(path), data); err != nil {
			return err
		}
	}
	c.rebuild()
	return nil
}

func (c *Catalog) addBundle(name string, data []byte) error {
	code := strings.TrimSuffix(name, filepath.Ext(name))
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("locale %s: invalid language code: %w", name, err)
	}
	code = tag.String()

	var messages Messages
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("locale %s: failed to parse YAML: %w", name, err)
	}

	existing, ok := c.bundles[code]
	if !ok {
		existing = Messages{}
		c.bundles[code] = existing
	}
	for label, text := range messages {
		existing[label] = text
	}
	return nil
}

func (c *Catalog) rebuild() {
	codes := make([]string, 0, len(c.bundles))
	for code := range c.bundles {
		if code != c.fallback {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	codes = append([]string{c.fallback}, codes...)

	tags := make([]language.Tag, len(codes))
	for i, code := range codes {
		tags[i] = language.Make(code)
	}

	c.codes = codes
	c.matcher = language.NewMatcher(tags)
}

// SetFallback makes code the language used when nothing matches and for
// labels other bundles lack. Its bundle must already be loaded.
func (c *Catalog) SetFallback(code string) error {
	tag, err := language.Parse(code)
	if err != nil {
		return fmt.Errorf("invalid fallback language %q: %w", code, err)
	}
	code = tag.String()
	if _, ok := c.bundles[code]; !ok {
		return fmt.Errorf("fallback language %q has no bundle", code)
	}

	c.fallback = code
	c.rebuild()
	return nil
}

// Languages returns the available language codes, fallback first.
func (c *Catalog) Languages() []string {
	return append([]string(nil), c.codes...)
}

// Match returns the available language that best serves the requested
// code (e.g. "ja-JP" -> "ja"), or the fallback language.
func (c *Catalog) Match(requested string) string {
	tag, err := language.Parse(requested)
	if err != nil {
		return c.fallback
	}
	_, index, confidence := c.matcher.Match(tag)
	if confidence == language.No {
		return c.fallback
	}
	return c.codes[index]
}

// Messages returns a fresh table for the requested language. Labels the
// matched bundle lacks are filled from the default language.
func (c *Catalog) Messages(requested string) Messages {
	out := c.bundles[c.fallback].Clone()
	for label, text := range c.bundles[c.Match(requested)] {
		out[label] = text
	}
	return out
}

// Format substitutes $1, $2, ... in message with args.
func Format(message string, args ...string) string {
	// Replace from the highest index down so $1 does not eat into $10.
	for i := len(args); i >= 1; i-- {
		message = strings.ReplaceAll(message, "$"+strconv.Itoa(i), args[i-1])
	}
	return message
}
