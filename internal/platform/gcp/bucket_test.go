package gcp

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studyhub-backend/internal/platform/logger"
)

func clearStorageEnv(t *testing.T) {
	for _, k := range []string{
		"OBJECT_STORAGE_MODE", "STORAGE_EMULATOR_HOST", "GCS_BUCKET_NAME",
		"AVATAR_GCS_BUCKET_NAME", "MATERIAL_GCS_BUCKET_NAME", "OBJECT_STORAGE_PUBLIC_BASE_URL",
		"AVATAR_CDN_DOMAIN", "MATERIAL_CDN_DOMAIN",
	} {
		t.Setenv(k, "")
	}
}

func TestStorageConfigFromEnv(t *testing.T) {
	cases := []struct {
		name    string
		env     map[string]string
		mode    ObjectStorageMode
		wantErr bool
	}{
		{"nothing set", nil, ObjectStorageModeDisabled, false},
		{"shared bucket", map[string]string{"GCS_BUCKET_NAME": "b"}, ObjectStorageModeGCS, false},
		{"emulator implied", map[string]string{"GCS_BUCKET_NAME": "b", "STORAGE_EMULATOR_HOST": "http://fake-gcs:4443"}, ObjectStorageModeGCSEmulator, false},
		{"explicit gcs without bucket", map[string]string{"OBJECT_STORAGE_MODE": "gcs"}, ObjectStorageModeGCS, true},
		{"bad mode", map[string]string{"OBJECT_STORAGE_MODE": "s3"}, "", true},
		{"bad emulator host", map[string]string{"OBJECT_STORAGE_MODE": "gcs_emulator", "GCS_BUCKET_NAME": "b", "STORAGE_EMULATOR_HOST": "fake-gcs"}, ObjectStorageModeGCSEmulator, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearStorageEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			cfg, err := ObjectStorageConfigFromEnv()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tc.wantErr)
			}
			if cfg.Mode != tc.mode {
				t.Fatalf("mode=%q want %q", cfg.Mode, tc.mode)
			}
		})
	}
}

func TestDisabledBucketRejectsUploads(t *testing.T) {
	bs, err := NewBucketService(context.Background(), logger.NewNop(), ObjectStorageConfig{Mode: ObjectStorageModeDisabled})
	if err != nil {
		t.Fatalf("NewBucketService: %v", err)
	}
	if bs.Enabled() {
		t.Fatalf("disabled service reports enabled")
	}
	if _, err := bs.UploadFile(context.Background(), BucketCategoryMaterial, "k", "", strings.NewReader("x")); err != ErrStorageDisabled {
		t.Fatalf("expected ErrStorageDisabled, got %v", err)
	}
	if u := bs.GetPublicURL(BucketCategoryMaterial, "k"); u != "" {
		t.Fatalf("disabled storage has no public url, got %q", u)
	}
}

func TestPublicURL(t *testing.T) {
	bs := &bucketService{
		cfg:      ObjectStorageConfig{Mode: ObjectStorageModeGCS},
		avatar:   bucketConfig{name: "avatars", cdnDomain: "cdn.example.com"},
		material: bucketConfig{name: "materials"},
	}
	if got := bs.GetPublicURL(BucketCategoryAvatar, "/u/a.png"); got != "https://cdn.example.com/u/a.png" {
		t.Fatalf("cdn url %q", got)
	}
	if got := bs.GetPublicURL(BucketCategoryMaterial, "u/a.pdf"); got != "https://storage.googleapis.com/materials/u/a.pdf" {
		t.Fatalf("gcs url %q", got)
	}
	bs.cfg.Mode = ObjectStorageModeGCSEmulator
	bs.publicBaseURL = "http://localhost:4443"
	if got := bs.GetPublicURL(BucketCategoryMaterial, "u/a.pdf"); got != "http://localhost:4443/storage/v1/b/materials/o/u%2Fa.pdf?alt=media" {
		t.Fatalf("emulator url %q", got)
	}
}

func TestObjectKeyAndContentType(t *testing.T) {
	owner := uuid.New()
	k := ObjectKey(owner, "Lecture Notes.PDF")
	if !strings.HasPrefix(k, owner.String()+"/") || !strings.HasSuffix(k, ".pdf") {
		t.Fatalf("unexpected key %q", k)
	}
	if ObjectKey(owner, "a") == ObjectKey(owner, "a") {
		t.Fatalf("keys must be unique")
	}
	if ContentTypeForKey(k) != "application/pdf" || ContentTypeForKey("x.bin") != "" {
		t.Fatalf("content type mismatch")
	}
}
