// Package blacklist tracks cache keys that recently failed to resolve from a
// source. A blacklisted key fails fast instead of re-hitting a broken
// upstream; the list is bounded so entries age out and get retried.
package blacklist

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultSize = 4096

type List struct {
	lru *lru.Cache[string, struct{}]
}

func New(size int) *List {
	if size <= 0 {
		size = defaultSize
	}
	c, _ := lru.New[string, struct{}](size)
	return &List{lru: c}
}

func (l *List) Add(key string) {
	l.lru.Add(key, struct{}{})
}

func (l *List) Contains(key string) bool {
	_, ok := l.lru.Get(key)
	return ok
}

func (l *List) Remove(key string) {
	l.lru.Remove(key)
}

func (l *List) Clear() {
	l.lru.Purge()
}

func (l *List) Len() int {
	return l.lru.Len()
}
