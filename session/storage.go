package session

import (
	"github.com/pkg/errors"

	"github.com/alan14500171/stock/config"
)

// ErrNoValue is returned by Storage.Get when nothing is stored under the key.
var ErrNoValue = errors.New("no value stored under key")

// Storage is the durable backing medium of the client session. The Store is the
// only writer; everything else reads through the Store.
type Storage interface {
	CheckConn() error
	CloseConnection() error
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

func NewStorage(cfg config.StorageCfg) (Storage, error) {
	switch cfg.Type {
	case config.StorageTypeNutsDB:
		nutsdb, err := NewNutsDBStorage(cfg.NutsDB)
		if err != nil {
			return nil, errors.Wrap(err, "nutsdb init storage err")
		}
		return nutsdb, nil
	case config.StorageTypeMemory:
		return NewMemoryStorage(), nil
	default:
		if cfg.Redis.DevMode {
			return NewMemoryStorage(), nil
		}

		redis, err := NewRedisStorage(cfg.Redis)
		if err != nil {
			return nil, errors.Wrap(err, "redis init storage err")
		}
		return redis, nil
	}
}
