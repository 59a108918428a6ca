package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestRedisStore_Keys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	s := NewRedisStore(client, WithPrefix("test:"), WithTTL(time.Minute))
	defer s.Close()

	if got := s.docKey("abc"); got != "test:doc:abc" {
		t.Errorf("expected %q, got %q", "test:doc:abc", got)
	}
	if got := s.indexKey(); got != "test:docs" {
		t.Errorf("expected %q, got %q", "test:docs", got)
	}
	if s.ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", s.ttl)
	}
}

func TestRedisStore_DefaultPrefix(t *testing.T) {
	s := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:0"}))
	defer s.Close()
	if s.prefix != "bookmarkd:" {
		t.Errorf("expected default prefix, got %q", s.prefix)
	}
}

func TestRedisStore_UnreachableIsUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	s := NewRedisStore(client)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := s.Get(ctx, "doc")
	var unavailable *UnavailableError
	if !errors.As(err, &unavailable) {
		t.Errorf("expected UnavailableError, got %v", err)
	}
	if err := s.Put(ctx, testRecord("", time.Now())); err == nil {
		t.Error("expected error for empty record id")
	}
}
