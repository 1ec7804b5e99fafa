package config

import (
	"encoding/json"
	"fmt"
)

// StorageDriver represents kind of storage used by source archive.
type StorageDriver string

const (
	// LocalStorageDriver keeps archived sources in local directory.
	LocalStorageDriver StorageDriver = "local"
	// S3StorageDriver keeps archived sources in S3 compatible bucket.
	S3StorageDriver StorageDriver = "s3"
)

// StorageOptions represents options of source archive storage.
type StorageOptions interface {
	// Driver returns driver that should be used for options.
	Driver() StorageDriver
	// validate checks that options are enough to open archive.
	validate() error
}

// LocalStorageOptions contains options of archive in local directory.
type LocalStorageOptions struct {
	// SourcesDir contains directory of archived sources.
	SourcesDir string `json:"sources_dir"`
}

// Driver returns LocalStorageDriver.
func (o LocalStorageOptions) Driver() StorageDriver {
	return LocalStorageDriver
}

func (o LocalStorageOptions) validate() error {
	if o.SourcesDir == "" {
		return fmt.Errorf("option 'sources_dir' should be specified")
	}
	return nil
}

// S3StorageOptions contains options of archive in S3 bucket.
//
// Endpoint can be left empty for AWS, custom endpoints with
// UsePathStyle are used for MinIO and similar servers.
type S3StorageOptions struct {
	Region      string `json:"region"`
	AccessKeyID string `json:"access_key_id"`
	// SecretAccessKey supports "env:NAME" references.
	SecretAccessKey Secret `json:"secret_access_key"`
	Endpoint        string `json:"endpoint"`
	Bucket          string `json:"bucket"`
	// PathPrefix is prepended to every object key.
	PathPrefix   string `json:"path_prefix,omitempty"`
	UsePathStyle bool   `json:"use_path_style,omitempty"`
}

// Driver returns S3StorageDriver.
func (o S3StorageOptions) Driver() StorageDriver {
	return S3StorageDriver
}

func (o S3StorageOptions) validate() error {
	if o.Bucket == "" {
		return fmt.Errorf("option 'bucket' should be specified")
	}
	return nil
}

// Storage contains config of submitted sources archive.
type Storage struct {
	Options StorageOptions `json:"options"`
}

// MarshalJSON writes options together with name of their driver.
func (c Storage) MarshalJSON() ([]byte, error) {
	if c.Options == nil {
		return nil, fmt.Errorf("storage options are not specified")
	}
	cfg := struct {
		Driver  StorageDriver  `json:"driver"`
		Options StorageOptions `json:"options"`
	}{
		Driver:  c.Options.Driver(),
		Options: c.Options,
	}
	return json.Marshal(cfg)
}

// UnmarshalJSON reads options of type selected by driver name.
func (c *Storage) UnmarshalJSON(bytes []byte) error {
	var cfg struct {
		Driver  StorageDriver   `json:"driver"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return err
	}
	var (
		options StorageOptions
		err     error
	)
	switch cfg.Driver {
	case LocalStorageDriver:
		options, err = decodeStorageOptions[LocalStorageOptions](cfg.Options)
	case S3StorageDriver:
		options, err = decodeStorageOptions[S3StorageOptions](cfg.Options)
	default:
		return fmt.Errorf("driver %q is not supported", cfg.Driver)
	}
	if err != nil {
		return fmt.Errorf("storage %q: %w", cfg.Driver, err)
	}
	c.Options = options
	return nil
}

func decodeStorageOptions[T StorageOptions](data json.RawMessage) (StorageOptions, error) {
	var options T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &options); err != nil {
			return nil, err
		}
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	return options, nil
}
