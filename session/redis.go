package session

import (
	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"

	"github.com/alan14500171/stock/config"
)

const (
	commandGet    = "GET"
	commandSet    = "SET"
	commandDel    = "DEL"
	commandPing   = "PING"
	replyPong     = "PONG"
	redisKeySpace = "stockctl:session:"
)

type RedisStorage struct {
	cfg  config.RedisConf
	pool *redis.Pool
}

// NewRedisStorage returns initialized instance of the `RedisStorage`.
func NewRedisStorage(cfg config.RedisConf) (*RedisStorage, error) {
	pool := NewPool(cfg)
	_, err := pool.Dial()
	if err != nil {
		return nil, errors.Wrap(err, "invalid redis configuration url")
	}

	return &RedisStorage{cfg: cfg, pool: pool}, nil
}

func (s *RedisStorage) CheckConn() error {
	conn := s.pool.Get()
	defer conn.Close()

	reply, err := redis.String(conn.Do(commandPing))
	if err != nil {
		s.pool.Close()
		return errors.Wrap(err, "connection failed")
	}

	if reply != replyPong {
		return errors.New("failed to receive ping response from redis")
	}

	return nil
}

func (s *RedisStorage) CloseConnection() error {
	return s.pool.Close()
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	conn := s.pool.Get()
	defer conn.Close()

	value, err := redis.Bytes(conn.Do(commandGet, redisKeySpace+key))
	if err == redis.ErrNil {
		return nil, ErrNoValue
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to perform %s command, data wasn't retrieved", commandGet)
	}

	return value, nil
}

func (s *RedisStorage) Set(key string, value []byte) error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do(commandSet, redisKeySpace+key, value)
	if err != nil {
		return errors.Wrapf(err, "failed to perform %s command, data wasn't saved", commandSet)
	}

	return nil
}

func (s *RedisStorage) Delete(key string) error {
	conn := s.pool.Get()
	defer conn.Close()

	_, err := conn.Do(commandDel, redisKeySpace+key)
	if err != nil {
		return errors.Wrapf(err, "failed to perform %s command", commandDel)
	}

	return nil
}
