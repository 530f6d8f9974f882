package config

import "os"

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Config struct {
	ListenAddr     string
	StorageBackend string // local | postgres | remote
	SQLitePath     string
	PostgresURI    string
	APIBaseURL     string
	CronSecret     string
	CronEvery      string
	PDSURL         string
	CardServiceURL string
	ImageProxyURL  string
	RedisURI       string
	R2             R2
}

func LoadConfig() *Config {
	return &Config{
		ListenAddr:     getEnv("LISTEN_ADDR", ":3000"),
		StorageBackend: getEnv("STORAGE_BACKEND", "local"),
		SQLitePath:     getEnv("SQLITE_PATH", "bluesky-later.db"),
		PostgresURI:    getEnv("POSTGRES_URI", ""),
		APIBaseURL:     getEnv("API_BASE_URL", ""),
		CronSecret:     getEnv("CRON_SECRET", ""),
		CronEvery:      getEnv("CRON_EVERY", "@every 1m0s"),
		PDSURL:         getEnv("PDS_URL", "https://bsky.social"),
		CardServiceURL: getEnv("CARD_SERVICE_URL", "https://cardyb.bsky.app/v1/extract"),
		ImageProxyURL:  getEnv("IMAGE_PROXY_URL", ""),
		RedisURI:       getEnv("REDIS_URI", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
