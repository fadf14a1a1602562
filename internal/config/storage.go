package config

import (
	"os"
	"time"
)

// StorageConfig selects and configures the content-addressed object store
// that receives signed delivery-note PDFs and company logos.
//
// When Bucket is empty the mock store is used; it never leaves the process
// and answers with deterministic gateway locators.
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional S3-compatible endpoint (MinIO, R2, ...)
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignTTL      time.Duration

	// GatewayURL prefixes content ids in mock mode.
	GatewayURL string

	UploadTimeout time.Duration
	MaxLogoBytes  int64
}

func (c StorageConfig) Mock() bool { return c.Bucket == "" }

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Bucket:          os.Getenv("S3_BUCKET"),
		Region:          getenv("S3_REGION", "us-east-1"),
		Endpoint:        os.Getenv("S3_ENDPOINT"),
		AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		UsePathStyle:    envBool("S3_USE_PATH_STYLE", false),
		PresignTTL:      envDur("S3_PRESIGN_TTL", 15*time.Minute),
		GatewayURL:      getenv("STORAGE_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs/"),
		UploadTimeout:   envDur("STORAGE_UPLOAD_TIMEOUT", 15*time.Second),
		MaxLogoBytes:    int64(envInt("LOGO_MAX_BYTES", 1024*1024)),
	}
}
