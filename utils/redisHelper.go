package utils

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/woundcare_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

/* Redis */

// cache a wound's trend state snapshot
func StoreTrendCache(woundId string, obj any) error {
	return config.SetRedisObject("WoundTrend:"+woundId, obj, GetCacheLifespan())
}

// read a wound's cached trend state into dest; returns false on miss
func RetrieveTrendCache(woundId string, dest any) (bool, error) {
	return config.GetRedisObject("WoundTrend:"+woundId, dest)
}

func ClearTrendCache(woundId string) error {
	return config.RemoveRedisKey("WoundTrend:" + woundId)
}

func ClearUserCache(username string) error {
	return config.RemoveRedisKey(fmt.Sprintf("User:%s", username))
}
