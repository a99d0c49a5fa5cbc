package repository

// CacheRepository is a minimal string cache used for rendered schedules.
type CacheRepository interface {
	Get(key string) (string, bool)
	Set(key string, value string) error
}
