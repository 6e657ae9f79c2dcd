package storage

import (
	"errors"
	"fmt"
)

const (
	ProviderLocal  = "local"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// Config is the "storage" section. The s3 provider also talks to
// S3-compatible services such as Aliyun OSS.
type Config struct {
	Provider string `mapstructure:"provider" json:"provider" validate:"omitempty,oneof=local s3 memory"`
	// BasePath is the root directory of the local provider.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	Bucket    string `mapstructure:"bucket" json:"bucket"`
	Region    string `mapstructure:"region" json:"region"`
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"secret_key"`
	// ForcePathStyle builds endpoint/bucket/key URLs. OSS only accepts
	// virtual-hosted style.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`
	// PublicBaseURL replaces the derived object URL prefix, e.g. a CDN.
	PublicBaseURL string `mapstructure:"public_base_url" json:"public_base_url"`
}

func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.BasePath == "" {
		c.BasePath = "./data/objects"
	}
	if c.Region == "" {
		c.Region = "cn-beijing"
	}
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMemory:
		return nil
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: local provider needs base_path")
		}
		return nil
	case ProviderS3:
		if c.Bucket == "" || c.Region == "" {
			return fmt.Errorf("storage: s3 provider needs bucket and region (bucket=%q region=%q)", c.Bucket, c.Region)
		}
		return nil
	}
	return fmt.Errorf("storage: unsupported provider %q", c.Provider)
}
