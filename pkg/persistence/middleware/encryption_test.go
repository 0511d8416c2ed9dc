package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/formtree/pkg/domain"
	"github.com/aretw0/formtree/pkg/persistence/middleware"
	"github.com/aretw0/formtree/pkg/ports"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		t.Fatal(err)
	}
	return k
}

func secretResponse(secret string) *domain.QuestionnaireResponse {
	return &domain.QuestionnaireResponse{
		ResourceType:  domain.ResourceTypeResponse,
		ID:            "r1",
		Questionnaire: "http://example.org/Questionnaire/intake",
		Status:        domain.StatusInProgress,
		Item: []domain.ResponseItem{
			{LinkID: "secret", Answer: []domain.ResponseAnswer{{Value: domain.String(secret)}}},
		},
	}
}

func secretOf(r *domain.QuestionnaireResponse) string {
	if len(r.Item) == 0 || len(r.Item[0].Answer) == 0 {
		return ""
	}
	return r.Item[0].Answer[0].ValueString
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	ports.RunResponseStoreContract(t, mw(NewMockStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	sessionID := "test-session"

	if err := secureStore.Save(ctx, sessionID, secretResponse("my-secret-sauce")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	stored, err := underlyingStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Underlying load failed: %v", err)
	}
	if len(stored.Item) != 0 {
		t.Fatalf("Expected items to be hidden, found: %v", stored.Item)
	}
	if len(stored.Extension) != 1 || stored.Extension[0].URL != middleware.ExtEncrypted {
		t.Fatal("Expected encrypted envelope extension")
	}
	if stored.Questionnaire != "http://example.org/Questionnaire/intake" || stored.Status != domain.StatusInProgress {
		t.Errorf("Expected questionnaire and status in clear, got %q %q", stored.Questionnaire, stored.Status)
	}

	loaded, err := secureStore.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load via middleware failed: %v", err)
	}
	if got := secretOf(loaded); got != "my-secret-sauce" {
		t.Errorf("Expected 'my-secret-sauce', got %v", got)
	}
}

func TestEncryptionMiddleware_RejectsPlainDocuments(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	if err := underlyingStore.Save(ctx, "plain", secretResponse("visible")); err != nil {
		t.Fatal(err)
	}

	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	if _, err := mw(underlyingStore).Load(ctx, "plain"); err == nil {
		t.Error("Expected plain documents to be refused")
	}
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)

	ctx := context.Background()
	sessionID := "rotation-session"

	if err := secureStoreOld.Save(ctx, sessionID, secretResponse("encrypted-with-old-key")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, sessionID)
	if err != nil {
		t.Fatalf("Load with rotated key failed: %v", err)
	}
	if secretOf(loaded) != "encrypted-with-old-key" {
		t.Errorf("Decryption with fallback key failed")
	}

	if err := secureStoreNew.Save(ctx, sessionID, secretResponse("encrypted-with-new-key")); err != nil {
		t.Fatalf("Save with new key failed: %v", err)
	}

	if _, err = secureStoreOld.Load(ctx, sessionID); err == nil {
		t.Error("Expected failure when loading new-key encryption with old-key middleware")
	}
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("Expected panic for invalid key size")
		}
	}()
	middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short-key")})
}
