package config

const defaultDataDir = "data"

type StorageConfig struct {
	Dir string `yaml:"data-dir"`
}

func defaultStorageConfig() StorageConfig {
	return StorageConfig{Dir: defaultDataDir}
}

func (s *StorageConfig) DataDir() string {
	return s.Dir
}
