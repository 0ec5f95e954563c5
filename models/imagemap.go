package models

// ImageMap is an insertion-ordered mapping from achievement name (or key) to
// image URL. Order matters: the enrichment matcher iterates candidates in the
// order the producing provider emitted them, so matching stays deterministic.
type ImageMap struct {
	keys []string
	m    map[string]string
}

// NewImageMap returns an empty map.
func NewImageMap() *ImageMap {
	return &ImageMap{m: map[string]string{}}
}

// Set inserts or updates an entry. First insertion fixes the key's position.
func (im *ImageMap) Set(key, url string) {
	if key == "" || url == "" {
		return
	}
	if _, ok := im.m[key]; !ok {
		im.keys = append(im.keys, key)
	}
	im.m[key] = url
}

// Get returns the URL for key.
func (im *ImageMap) Get(key string) (string, bool) {
	v, ok := im.m[key]
	return v, ok
}

// Len returns the number of entries.
func (im *ImageMap) Len() int {
	if im == nil {
		return 0
	}
	return len(im.keys)
}

// Keys returns the keys in insertion order. Callers must not modify the
// returned slice.
func (im *ImageMap) Keys() []string {
	return im.keys
}

// Range calls fn for each entry in insertion order until fn returns false.
func (im *ImageMap) Range(fn func(key, url string) bool) {
	if im == nil {
		return
	}
	for _, k := range im.keys {
		if !fn(k, im.m[k]) {
			return
		}
	}
}

// Clone returns an independent copy preserving order.
func (im *ImageMap) Clone() *ImageMap {
	c := NewImageMap()
	im.Range(func(k, u string) bool {
		c.Set(k, u)
		return true
	})
	return c
}
