package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/text/unicode/norm"

	"pdf-translator/internal/logger"
)

var cacheBucket = []byte("translations")

// Cache stores finished translations keyed by scope, target language and
// source text, so a re-run over the same document does not pay for them again.
// The scope names the engine and the options that shaped a translation.
type Cache struct {
	path string
	db   *bolt.DB
}

// OpenCache opens (creating if needed) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open translation cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{path: path, db: db}, nil
}

// Key returns the cache key for text in targetLang under scope. Text is
// NFC-normalised so visually identical input hits the same entry.
func Key(scope, text, targetLang string) []byte {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToUpper(targetLang)))
	h.Write([]byte{0})
	h.Write([]byte(norm.NFC.String(text)))
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

// Get returns the cached translation of text, if any.
func (c *Cache) Get(scope, text, targetLang string) (string, bool, error) {
	var out string
	var found bool
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get(Key(scope, text, targetLang)); v != nil {
			out = string(v)
			found = true
		}
		return nil
	})
	return out, found, err
}

// Put stores a translation.
func (c *Cache) Put(scope, text, targetLang, translation string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put(Key(scope, text, targetLang), []byte(translation))
	})
}

// Len returns the number of cached translations.
func (c *Cache) Len() int {
	n := 0
	c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(cacheBucket).Stats().KeyN
		return nil
	})
	return n
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// CachingTranslator consults a Cache before delegating to another TextTranslator.
type CachingTranslator struct {
	next  TextTranslator
	cache *Cache
	scope string
	hits  int
}

// NewCachingTranslator wraps next with cache lookups. Entries written under
// one scope are never returned under another.
func NewCachingTranslator(next TextTranslator, cache *Cache, scope string) *CachingTranslator {
	return &CachingTranslator{next: next, cache: cache, scope: scope}
}

// CacheScope builds a cache scope from an engine name and the options that
// change its output. Empty options are kept so positions stay distinct.
func CacheScope(engine string, options ...string) string {
	return engine + "|" + strings.Join(options, "|")
}

// Translate returns a cached translation when present, otherwise translates
// and stores the result. Cache failures are logged and never fail the call.
func (c *CachingTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	if cached, ok, err := c.cache.Get(c.scope, text, targetLang); err != nil {
		logger.Warn("translation cache lookup failed", logger.Err(err))
	} else if ok {
		c.hits++
		return cached, nil
	}

	translated, err := c.next.Translate(ctx, text, targetLang)
	if err != nil {
		return "", err
	}

	if err := c.cache.Put(c.scope, text, targetLang, translated); err != nil {
		logger.Warn("translation cache write failed", logger.Err(err))
	}
	return translated, nil
}

// Hits returns how many translations were served from the cache.
func (c *CachingTranslator) Hits() int {
	return c.hits
}
