package config

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type StorageConfig interface {
	GetStorageDriver() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type storageSection struct {
	Driver string `yaml:"driver"`
	Redis  struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

type Storage struct {
	file storageSection
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageDriver() string {
	return GetEnv("STORAGE_DRIVER", orDefault(s.file.Driver, StorageMemory))
}

func (s Storage) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", orDefault(s.file.Redis.Addr, "localhost:6379"))
}

func (s Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", s.file.Redis.Password)
}

func (s Storage) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", s.file.Redis.DB)
}

func (s Storage) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", orDefault(s.file.Redis.Prefix, "authserver"))
}
