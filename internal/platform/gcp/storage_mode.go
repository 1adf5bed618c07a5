package gcp

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/yungbote/studyhub-backend/internal/platform/envutil"
)

type ObjectStorageMode string

const (
	ObjectStorageModeDisabled    ObjectStorageMode = "disabled"
	ObjectStorageModeGCS         ObjectStorageMode = "gcs"
	ObjectStorageModeGCSEmulator ObjectStorageMode = "gcs_emulator"
)

type ObjectStorageConfig struct {
	Mode           ObjectStorageMode
	EmulatorHost   string
	AvatarBucket   string
	MaterialBucket string
	AvatarCDN      string
	MaterialCDN    string
	PublicBaseURL  string
}

// ObjectStorageConfigFromEnv reads the storage settings. With no mode and no bucket
// configured, storage is disabled and uploads are rejected.
func ObjectStorageConfigFromEnv() (ObjectStorageConfig, error) {
	shared := envutil.String("GCS_BUCKET_NAME", "")
	cfg := ObjectStorageConfig{
		EmulatorHost:   envutil.String("STORAGE_EMULATOR_HOST", ""),
		AvatarBucket:   envutil.String("AVATAR_GCS_BUCKET_NAME", shared),
		MaterialBucket: envutil.String("MATERIAL_GCS_BUCKET_NAME", shared),
		AvatarCDN:      envutil.String("AVATAR_CDN_DOMAIN", ""),
		MaterialCDN:    envutil.String("MATERIAL_CDN_DOMAIN", ""),
		PublicBaseURL:  strings.TrimRight(envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""), "/"),
	}
	raw := strings.ToLower(envutil.String("OBJECT_STORAGE_MODE", ""))
	switch ObjectStorageMode(raw) {
	case "":
		switch {
		case cfg.EmulatorHost != "":
			cfg.Mode = ObjectStorageModeGCSEmulator
		case cfg.MaterialBucket != "" || cfg.AvatarBucket != "":
			cfg.Mode = ObjectStorageModeGCS
		default:
			cfg.Mode = ObjectStorageModeDisabled
		}
	case ObjectStorageModeDisabled, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator:
		cfg.Mode = ObjectStorageMode(raw)
	default:
		return cfg, fmt.Errorf("invalid OBJECT_STORAGE_MODE=%q (allowed: %q, %q, %q)",
			raw, ObjectStorageModeDisabled, ObjectStorageModeGCS, ObjectStorageModeGCSEmulator)
	}
	return cfg, cfg.Validate()
}

func (cfg ObjectStorageConfig) Enabled() bool {
	return cfg.Mode == ObjectStorageModeGCS || cfg.Mode == ObjectStorageModeGCSEmulator
}

func (cfg ObjectStorageConfig) Validate() error {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.AvatarBucket == "" || cfg.MaterialBucket == "" {
		return fmt.Errorf("object storage mode %q needs GCS_BUCKET_NAME or AVATAR_/MATERIAL_GCS_BUCKET_NAME", cfg.Mode)
	}
	if cfg.Mode == ObjectStorageModeGCSEmulator {
		if err := absoluteURL("STORAGE_EMULATOR_HOST", cfg.EmulatorHost); err != nil {
			return err
		}
	}
	if cfg.PublicBaseURL != "" {
		if err := absoluteURL("OBJECT_STORAGE_PUBLIC_BASE_URL", cfg.PublicBaseURL); err != nil {
			return err
		}
	}
	return nil
}

func absoluteURL(name, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid %s=%q; expected absolute URL like http://localhost:4443", name, raw)
	}
	return nil
}
