package domain

import "strconv"

// KeyPrefix namespaces every key this service writes to Redis.
const KeyPrefix = "reviewsearch:"

// Key prefixes of the two FT indexes.
const (
	ProductKeyPrefix = KeyPrefix + "product:"
	ReviewKeyPrefix  = KeyPrefix + "review:"
)

// ProductDocKey returns the hash key holding the lexical copy of a product.
func ProductDocKey(asin string) string {
	return ProductKeyPrefix + asin
}

// ReviewDocKey returns the hash key holding the vector of a review.
func ReviewDocKey(vectorID int64) string {
	return ReviewKeyPrefix + strconv.FormatInt(vectorID, 10)
}
