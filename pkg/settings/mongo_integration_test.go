//go:build integration

package settings

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMongoStore_Integration(t *testing.T) {
	uri := os.Getenv("MODMARKET_MONGO_URI")
	if uri == "" {
		t.Skip("MODMARKET_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := NewMongoStore(ctx, MongoConfig{
		URI:        uri,
		Database:   "modmarket_test",
		Collection: "settings_" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("NewMongoStore() error: %v", err)
	}
	defer func() {
		_ = s.coll.Drop(ctx)
		_ = s.Close(ctx)
	}()

	if _, ok, err := s.Get(ctx, NamespaceProxy, KeyProxyServer); err != nil || ok {
		t.Fatalf("Get(unset) = %v, %v", ok, err)
	}
	if err := s.Set(ctx, NamespaceProxy, KeyProxyServer, "proxy.internal"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := s.Set(ctx, NamespaceProxy, KeyProxyServer, "proxy2.internal"); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}
	v, ok, err := s.Get(ctx, NamespaceProxy, KeyProxyServer)
	if err != nil || !ok || v != "proxy2.internal" {
		t.Errorf("Get() = %q, %v, %v", v, ok, err)
	}

	id, err := InstallationID(ctx, s)
	if err != nil || id == "" {
		t.Errorf("InstallationID() = %q, %v", id, err)
	}
}
