package utils

const profilesCachePrefix = "profiles:v1:"

func ProfilesListCacheKey() string {
	return profilesCachePrefix + "list"
}

func ProfileByUserCacheKey(userID string) string {
	return profilesCachePrefix + "user:" + userID
}

// ProfileCacheKeys lists every key a change to userID's profile invalidates.
func ProfileCacheKeys(userID string) []string {
	return []string{ProfilesListCacheKey(), ProfileByUserCacheKey(userID)}
}
