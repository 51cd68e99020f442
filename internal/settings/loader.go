package settings

import (
	"fmt"
	"os"
	"strconv"

	"budget/internal/cache"
)

// Loader reads a template file and keeps the parsed result until the file
// changes on disk.
type Loader struct {
	path   string
	parsed *cache.LRUCache[Template]
}

func NewLoader(path string) *Loader {
	return &Loader{
		path:   path,
		parsed: cache.NewLRUCache[Template](4, 0),
	}
}

// Load returns the template, parsing the file again only when its size or
// modification time changed since the last call.
func (l *Loader) Load() (Template, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return Template{}, fmt.Errorf("read budget template: %w", err)
	}
	key := strconv.FormatInt(info.ModTime().UnixNano(), 10) + ":" + strconv.FormatInt(info.Size(), 10)
	if t, ok := l.parsed.Get(key); ok {
		return t, nil
	}

	t, err := Load(l.path)
	if err != nil {
		return Template{}, err
	}
	l.parsed.Set(key, t)
	return t, nil
}
