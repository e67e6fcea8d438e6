package cache

import "strconv"

// KeySetting returns the cache key of one configuration value.
func KeySetting(key string) string {
	return "setting:" + key
}

// KeyProductProperties returns the cache key of a product-properties
// record, scoped by variant and tax flag since both change the payload.
func KeyProductProperties(productID, variantID int64, useTax bool) string {
	key := "product:" + strconv.FormatInt(productID, 10) + ":" + strconv.FormatInt(variantID, 10)
	if useTax {
		return key + ":ttc"
	}
	return key + ":ht"
}

// KeyVariants returns the cache key of the variant grid. The grid is
// shared by all products, so a single key suffices.
const KeyVariants = "variants:grid"
