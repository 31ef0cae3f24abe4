package keys

import (
	"errors"
	"strings"
	"testing"
)

const (
	validAssemblyKey = "abcdef0123456789abcdef0123456789"
	validMurfKey     = "ap2_0123456789abcdef0123456789abcd"
)

func TestValidateShapes(t *testing.T) {
	if err := Validate(ServiceAssemblyAI, validAssemblyKey); err != nil {
		t.Fatalf("valid assemblyai key rejected: %v", err)
	}
	if err := Validate(ServiceAssemblyAI, "short"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if err := Validate(ServiceMurf, validMurfKey); err != nil {
		t.Fatalf("valid murf key rejected: %v", err)
	}
	if err := Validate(ServiceMurf, strings.Repeat("x", 40)); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("murf key without ap2_ segment should fail, got %v", err)
	}
	if err := Validate("telegraph", "whatever-key-value-here-ok"); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestResolutionOrder(t *testing.T) {
	envKey := "00000000aaaaaaaabbbbbbbbcccccccc"
	store := NewStore(map[string]string{ServiceAssemblyAI: envKey})

	key, source, ok := store.Resolve("sess-1", ServiceAssemblyAI)
	if !ok || source != "environment" || key != envKey {
		t.Fatalf("expected environment key, got %q from %q", key, source)
	}

	globalKey := "11111111aaaaaaaabbbbbbbbcccccccc"
	if err := store.Set("", ServiceAssemblyAI, globalKey); err != nil {
		t.Fatalf("set global: %v", err)
	}
	key, source, _ = store.Resolve("sess-1", ServiceAssemblyAI)
	if source != "global" || key != globalKey {
		t.Fatalf("expected global key, got %q from %q", key, source)
	}

	sessionKey := "22222222aaaaaaaabbbbbbbbcccccccc"
	if err := store.Set("sess-1", ServiceAssemblyAI, sessionKey); err != nil {
		t.Fatalf("set session: %v", err)
	}
	key, source, _ = store.Resolve("sess-1", ServiceAssemblyAI)
	if source != "session" || key != sessionKey {
		t.Fatalf("expected session key, got %q from %q", key, source)
	}

	// other sessions still see the global override
	key, source, _ = store.Resolve("sess-2", ServiceAssemblyAI)
	if source != "global" || key != globalKey {
		t.Fatalf("expected global key for other session, got %q from %q", key, source)
	}
}

func TestDeleteScopes(t *testing.T) {
	envKey := "00000000aaaaaaaabbbbbbbbcccccccc"
	store := NewStore(map[string]string{ServiceAssemblyAI: envKey})

	if err := store.Set("sess-1", ServiceAssemblyAI, "22222222aaaaaaaabbbbbbbbcccccccc"); err != nil {
		t.Fatal(err)
	}
	store.Delete("sess-1")

	key, source, ok := store.Resolve("sess-1", ServiceAssemblyAI)
	if !ok || source != "environment" || key != envKey {
		t.Fatalf("expected fallback to environment after delete, got %q from %q", key, source)
	}

	// deleting globals never touches environment keys
	store.Delete("")
	if _, source, ok = store.Resolve("sess-1", ServiceAssemblyAI); !ok || source != "environment" {
		t.Fatalf("environment key should survive, got source %q ok=%v", source, ok)
	}
}

func TestSetRejectsInvalidKey(t *testing.T) {
	store := NewStore(nil)
	if err := store.Set("sess-1", ServiceMurf, "nope"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if err := store.Set("sess-1", "bogus", validMurfKey); !errors.Is(err, ErrUnknownService) {
		t.Fatalf("expected ErrUnknownService, got %v", err)
	}
}

func TestStatusMasksKeys(t *testing.T) {
	store := NewStore(map[string]string{ServiceOpenWeather: "abcdefgh0123456789ijklmnopqrst"})

	statuses := store.StatusFor("sess-1")
	if len(statuses) != 4 {
		t.Fatalf("expected 4 services, got %d", len(statuses))
	}

	var ow *Status
	for i := range statuses {
		if statuses[i].Service == ServiceOpenWeather {
			ow = &statuses[i]
		}
	}
	if ow == nil || !ow.Configured {
		t.Fatalf("expected openweather configured, got %+v", statuses)
	}
	if ow.KeyPreview != "abcdefgh...qrst" {
		t.Fatalf("unexpected preview %q", ow.KeyPreview)
	}
	if strings.Contains(ow.KeyPreview, "0123456789ijklmn") {
		t.Fatal("preview must not reveal the key body")
	}
}

func TestPreviewShortKey(t *testing.T) {
	if got := Preview("abc"); got != "***" {
		t.Fatalf("expected full mask, got %q", got)
	}
}
