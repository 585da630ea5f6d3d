package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/lancer-kit/noble"
)

const (
	StorageTypeRedis  = "redis"
	StorageTypeNutsDB = "nutsdb"
	StorageTypeMemory = "memory"
)

// StorageCfg selects the durable backing medium for the client session.
type StorageCfg struct {
	Type   string    `json:"type" yaml:"type"`
	Redis  RedisConf `json:"redis" yaml:"redis"`
	NutsDB NutsDBCfg `json:"nutsdb" yaml:"nutsdb"`
}

func (cfg StorageCfg) Validate() error {
	validators := []*validation.FieldRules{
		validation.Field(&cfg.Type, validation.Required,
			validation.In(StorageTypeRedis, StorageTypeNutsDB, StorageTypeMemory)),
	}

	switch cfg.Type {
	case StorageTypeNutsDB:
		validators = append(validators, validation.Field(&cfg.NutsDB, validation.Required))
	case StorageTypeRedis:
		validators = append(validators, validation.Field(&cfg.Redis, validation.Required))
	}
	return validation.ValidateStruct(&cfg, validators...)
}

type NutsDBCfg struct {
	Path string `json:"path" yaml:"path"`
	// NutsDB will truncate data file if the active file is larger than SegmentSize
	SegmentSize int64 `json:"segment_size" yaml:"segment_size"`
}

func (cfg NutsDBCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Path, validation.Required),
	)
}

type RedisConf struct {
	DevMode       bool         `json:"dev_mode" yaml:"dev_mode"`
	MaxIdleConn   int          `json:"max_idle" yaml:"max_idle"`
	MaxActiveConn int          `json:"max_active" yaml:"max_active"`
	IdleTimeout   int64        `json:"idle_timeout" yaml:"idle_timeout"`
	PingInterval  int64        `json:"ping_interval" yaml:"ping_interval"`
	Password      noble.Secret `json:"auth" yaml:"auth"`
	Host          string       `json:"host" yaml:"host"`
}

func (cfg RedisConf) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.PingInterval, validation.Required),
		validation.Field(&cfg.Host, validation.Required),
	)
}

func (cfg RedisConf) URL() string {
	pass := ""
	if cfg.Password.Get() != "" {
		pass = ":" + cfg.Password.Get() + "@"
	}

	return fmt.Sprintf("redis://%s%s", pass, cfg.Host)
}
