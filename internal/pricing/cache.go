package pricing

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Key is the full tuple of pricing-affecting parameters. Two requests
// with equal keys must produce identical prices within one process
// lifetime, which is what makes the memoisation safe.
type Key struct {
	ProductID         int64
	ShopID            int64
	CurrencyID        int64
	CountryID         int64
	StateID           int64
	Zip               string
	GroupID           int64
	Quantity          int
	VariantID         int64
	IgnoreVariant     bool
	CustomizationID   int64
	CustomerID        int64
	CartID            int64
	RealQuantity      int
	UseTax            bool
	UseReduction      bool
	OnlyReduction     bool
	UseEcotax         bool
	UseGroupReduction bool
	Decimals          int32
}

// Cache memoises computed unit prices per key. It is pure memoisation:
// discarding it at any point only costs recomputation.
type Cache struct {
	mu sync.RWMutex
	m  map[Key]decimal.Decimal
}

// NewCache constructs an empty price cache.
func NewCache() *Cache {
	return &Cache{m: make(map[Key]decimal.Decimal)}
}

// Get returns the cached price for the key, if present.
func (c *Cache) Get(key Key) (decimal.Decimal, bool) {
	if c == nil {
		return decimal.Decimal{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.m[key]
	return price, ok
}

// Set stores a computed price.
func (c *Cache) Set(key Key, price decimal.Decimal) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = price
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

type baseKey struct {
	ProductID int64
	ShopID    int64
}

// BaseCache memoises product base prices per shop, independent of the
// variant since all variants share the base price.
type BaseCache struct {
	mu sync.RWMutex
	m  map[baseKey]BasePrice
}

// NewBaseCache constructs an empty base-price cache.
func NewBaseCache() *BaseCache {
	return &BaseCache{m: make(map[baseKey]BasePrice)}
}

func (c *BaseCache) get(productID, shopID int64) (BasePrice, bool) {
	if c == nil {
		return BasePrice{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	bp, ok := c.m[baseKey{productID, shopID}]
	return bp, ok
}

func (c *BaseCache) set(productID, shopID int64, bp BasePrice) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[baseKey{productID, shopID}] = bp
}
