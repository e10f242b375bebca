// Package skills indexes the on-disk skills library and serves tiered reads:
// tier 2 is a skill's SKILL.md, tier 3 is any other file inside the skill.
package skills

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

const skillFile = "SKILL.md"

// Read errors. Not-found errors are wrapped with the requested name.
var (
	ErrInvalidPath  = errors.New("Invalid skill path")
	ErrNotFound     = errors.New("Skill not found")
	ErrFileNotFound = errors.New("Skill file not found")
)

// Summary is the manifest entry for one skill.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Document is the result of reading a skill target.
type Document struct {
	SkillName string `json:"skillName"`
	Tier      int    `json:"tier"`
	Path      string `json:"path"`
	Content   string `json:"content"`
}

type entry struct {
	Summary
	dir string
}

// Cache lazily indexes skill directories under root. It is safe for concurrent use.
type Cache struct {
	fs   afero.Fs
	root string

	mu     sync.RWMutex
	loaded bool
	items  []entry
}

// NewCache creates a cache over fs rooted at root. Nothing is read until first use.
func NewCache(fs afero.Fs, root string) *Cache {
	return &Cache{fs: fs, root: path.Clean(strings.ReplaceAll(root, "\\", "/"))}
}

// NewOsCache creates a cache over the real filesystem.
func NewOsCache(root string) *Cache {
	return NewCache(afero.NewOsFs(), root)
}

// Refresh rebuilds the index from disk.
func (c *Cache) Refresh() error {
	items, err := c.scan()
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.items = items
	c.loaded = true
	c.mu.Unlock()
	return nil
}

func (c *Cache) ensure() []entry {
	c.mu.RLock()
	if c.loaded {
		items := c.items
		c.mu.RUnlock()
		return items
	}
	c.mu.RUnlock()

	// A missing or unreadable root indexes as empty.
	if err := c.Refresh(); err != nil {
		c.mu.Lock()
		c.items = nil
		c.loaded = true
		c.mu.Unlock()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items
}

func (c *Cache) scan() ([]entry, error) {
	infos, err := afero.ReadDir(c.fs, c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read skills root: %w", err)
	}

	var items []entry
	for _, info := range infos {
		if !info.IsDir() {
			continue
		}
		dir := path.Join(c.root, info.Name())
		data, err := afero.ReadFile(c.fs, path.Join(dir, skillFile))
		if err != nil {
			continue
		}
		fm := parseFrontmatter(string(data))
		name := fm.Name
		if name == "" {
			name = info.Name()
		}
		desc := fm.Description
		if desc == "" {
			desc = defaultDescription
		}
		items = append(items, entry{Summary: Summary{Name: name, Description: desc}, dir: dir})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// List returns skill summaries sorted by name.
func (c *Cache) List() []Summary {
	items := c.ensure()
	out := make([]Summary, 0, len(items))
	for _, item := range items {
		out = append(out, item.Summary)
	}
	return out
}

// ManifestText renders the manifest as "- name: description" lines.
func (c *Cache) ManifestText() string {
	list := c.List()
	if len(list) == 0 {
		return "No skills available."
	}
	lines := make([]string, 0, len(list))
	for _, s := range list {
		lines = append(lines, fmt.Sprintf("- %s: %s", s.Name, s.Description))
	}
	return strings.Join(lines, "\n")
}

// Read resolves "name" to the skill's SKILL.md (tier 2) or "name/rel/path"
// to a file inside the skill directory (tier 3).
func (c *Cache) Read(target string) (Document, error) {
	safe := strings.TrimLeft(strings.TrimSpace(target), "/")
	if safe == "" || strings.Contains(safe, "..") {
		return Document{}, ErrInvalidPath
	}
	skillName, rel, nested := strings.Cut(safe, "/")

	var found *entry
	for _, item := range c.ensure() {
		if item.Name == skillName {
			item := item
			found = &item
			break
		}
	}
	if found == nil {
		return Document{}, fmt.Errorf("%w: %s", ErrNotFound, skillName)
	}

	switch {
	case nested && rel == "":
		return Document{}, fmt.Errorf("%w: %s", ErrFileNotFound, safe)
	case rel == "":
		rel = skillFile
	}
	filePath := path.Join(found.dir, rel)
	if filePath != found.dir && !strings.HasPrefix(filePath, found.dir+"/") {
		return Document{}, ErrInvalidPath
	}

	info, err := c.fs.Stat(filePath)
	if err != nil || info.IsDir() {
		return Document{}, fmt.Errorf("%w: %s", ErrFileNotFound, safe)
	}
	data, err := afero.ReadFile(c.fs, filePath)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %s", ErrFileNotFound, safe)
	}

	doc := Document{SkillName: skillName, Tier: 3, Path: skillName + "/" + rel, Content: string(data)}
	if rel == skillFile {
		doc.Tier = 2
		doc.Path = skillName
	}
	return doc, nil
}
