package session

import (
	"github.com/pkg/errors"
	"github.com/xujiajun/nutsdb"

	"github.com/alan14500171/stock/config"
)

const nutsDBBucket = "session"

type NutsDBStorage struct {
	cfg  config.NutsDBCfg
	conn *nutsdb.DB
}

func NewNutsDBStorage(cfg config.NutsDBCfg) (*NutsDBStorage, error) {
	options := nutsdb.Options{
		Dir:                  cfg.Path,
		SegmentSize:          cfg.SegmentSize,
		SyncEnable:           true,
		StartFileLoadingMode: 0,
	}
	if options.SegmentSize == 0 {
		options.SegmentSize = nutsdb.DefaultOptions.SegmentSize
	}

	conn, err := nutsdb.Open(options)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to initialize the nutsdb store")
	}

	return &NutsDBStorage{
		conn: conn,
		cfg:  cfg,
	}, nil
}

func (b *NutsDBStorage) CheckConn() error {
	return nil
}

func (b *NutsDBStorage) CloseConnection() error {
	return b.conn.Close()
}

func (b *NutsDBStorage) Get(key string) ([]byte, error) {
	var value []byte

	err := b.conn.View(func(tx *nutsdb.Tx) error {
		entry, err := tx.Get(nutsDBBucket, []byte(key))
		if err != nil {
			return err
		}

		value = entry.Value
		return nil
	})
	if err != nil {
		// nutsdb reports both a missing bucket and a missing key as
		// transaction errors; either way there is nothing stored.
		return nil, errors.Wrap(ErrNoValue, err.Error())
	}

	return value, nil
}

func (b *NutsDBStorage) Set(key string, value []byte) error {
	return b.conn.Update(func(tx *nutsdb.Tx) error {
		return tx.Put(nutsDBBucket, []byte(key), value, nutsdb.Persistent)
	})
}

func (b *NutsDBStorage) Delete(key string) error {
	// deleting a key that was never written must stay a no-op
	_ = b.conn.Update(func(tx *nutsdb.Tx) error {
		return tx.Delete(nutsDBBucket, []byte(key))
	})
	return nil
}
