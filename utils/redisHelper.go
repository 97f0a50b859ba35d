package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/katariastoneworld/stoneworld_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

func listKey[T any](scope string) string {
	if scope == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + scope
}

// store a list under TypeList:$scope
func StoreRedisList[T any](obj []*T, scope string) error {
	return config.SetRedisObject(listKey[T](scope), obj, GetCacheLifespan())
}

// retrieve a list.
// returns nil if it does not exist; scope can be empty
func RetrieveRedisList[T any](scope string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listKey[T](scope), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// clear list, TypeList:$scope
func RemoveRedisList[T any](scope string) error {
	return config.RemoveRedisKey(listKey[T](scope))
}
