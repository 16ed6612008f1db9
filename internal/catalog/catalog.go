package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/bookshop-fulfillment/payment-service/internal/cache"
	"github.com/bookshop-fulfillment/payment-service/internal/domain"
)

// Book is the catalog's view of a sellable item. Price and discount are read
// only at order creation to build the immutable item snapshot.
type Book struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Price           float64 `json:"price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// Catalog resolves item ids at order-creation time.
type Catalog interface {
	GetByID(id int64) (*Book, error)
}

type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

func (c *PostgresCatalog) GetByID(id int64) (*Book, error) {
	query := `
		SELECT id, title, price, discount_percent
		FROM books
		WHERE id = $1
	`

	book := &Book{}
	err := c.db.QueryRow(query, id).Scan(
		&book.ID,
		&book.Title,
		&book.Price,
		&book.DiscountPercent,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, &domain.NotFoundError{Resource: "book", ID: strconv.FormatInt(id, 10)}
		}
		return nil, fmt.Errorf("book retrieval error: %v", err)
	}

	return book, nil
}

const bookCacheTTL = 5 * time.Minute

// CachedCatalog fronts a catalog with a redis lookaside cache. Cache failures
// are logged and the lookup falls through to the backing catalog, so pricing
// never depends on redis being up.
type CachedCatalog struct {
	catalog Catalog
	cache   cache.Cache
}

func NewCachedCatalog(catalog Catalog, cache cache.Cache) *CachedCatalog {
	return &CachedCatalog{
		catalog: catalog,
		cache:   cache,
	}
}

func (c *CachedCatalog) GetByID(id int64) (*Book, error) {
	ctx := context.Background()
	key := c.cache.GenerateKey("book", strconv.FormatInt(id, 10))

	if cached, err := c.cache.Get(ctx, key); err != nil {
		log.Printf("Catalog cache read error: %v", err)
	} else if cached != "" {
		book := &Book{}
		if err := json.Unmarshal([]byte(cached), book); err == nil {
			return book, nil
		}
		log.Printf("Catalog cache entry corrupt, falling through: key=%s", key)
	}

	book, err := c.catalog.GetByID(id)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(book); err == nil {
		if err := c.cache.Set(ctx, key, encoded, bookCacheTTL); err != nil {
			log.Printf("Catalog cache write error: %v", err)
		}
	}

	return book, nil
}
