// Package stubshop is an in-memory stand-in for the storefront's user and
// product services. It mirrors their HTTP surface closely enough that the
// startup gate and the load exerciser can run end-to-end without a real
// deployment behind them.
package stubshop

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Products with stock below this count the catalog gauges as low stock.
const lowStockThreshold = 10

var (
	// ErrDuplicateEmail is returned when registering an email twice.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrDuplicateSKU is returned when a product SKU collides with another product.
	ErrDuplicateSKU = errors.New("sku already in use")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
)

// User is a registered account.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsActive     bool
	DateJoined   time.Time
	LastLogin    *time.Time
}

// FullName joins first and last name the way the profile payload expects.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Product is a catalog entry.
type Product struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Price         float64
	StockQuantity int
	Category      string
	SKU           string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	IsActive      bool
}

// ProductFilter narrows catalog listings. Nil pointer fields are not applied.
type ProductFilter struct {
	Query    string
	Category string
	MinPrice *float64
	MaxPrice *float64
	InStock  *bool
}

// Store holds both services' state behind one mutex. Methods copy records in
// and out so callers never share memory with the maps.
type Store struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]User
	usersByEmail map[string]uuid.UUID
	products     map[uuid.UUID]Product
	productSKUs  map[string]uuid.UUID
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:        make(map[uuid.UUID]User),
		usersByEmail: make(map[string]uuid.UUID),
		products:     make(map[uuid.UUID]Product),
		productSKUs:  make(map[string]uuid.UUID),
	}
}

// CreateUser registers a new account. Email comparison is case-insensitive.
func (s *Store) CreateUser(email, passwordHash, firstName, lastName string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(email)
	if _, exists := s.usersByEmail[key]; exists {
		return User{}, ErrDuplicateEmail
	}

	user := User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		IsActive:     true,
		DateJoined:   time.Now().UTC(),
	}
	s.users[user.ID] = user
	s.usersByEmail[key] = user.ID
	return user, nil
}

// UserByEmail looks up an account by email, case-insensitively.
func (s *Store) UserByEmail(email string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(email)]
	if !ok {
		return User{}, false
	}
	user, ok := s.users[id]
	return user, ok
}

// UserByID looks up an account by ID.
func (s *Store) UserByID(id uuid.UUID) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	return user, ok
}

// TouchLogin records a successful login timestamp.
func (s *Store) TouchLogin(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	s.users[id] = user
}

// UpdateUserName updates the name fields of an account. Nil pointers leave the
// current value in place.
func (s *Store) UpdateUserName(id uuid.UUID, firstName, lastName *string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	if firstName != nil {
		user.FirstName = *firstName
	}
	if lastName != nil {
		user.LastName = *lastName
	}
	s.users[id] = user
	return user, nil
}

// UserCount reports the number of registered accounts.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// CreateProduct adds a catalog entry, assigning ID and timestamps. The SKU
// must be unique across all products, active or not.
func (s *Store) CreateProduct(p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.productSKUs[p.SKU]; exists {
		return Product{}, ErrDuplicateSKU
	}

	now := time.Now().UTC()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.products[p.ID] = p
	s.productSKUs[p.SKU] = p.ID
	return p, nil
}

// ProductByID looks up a product by ID, including soft-deleted ones.
func (s *Store) ProductByID(id uuid.UUID) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	return p, ok
}

// SKUTakenByOther reports whether a SKU belongs to a product other than id.
func (s *Store) SKUTakenByOther(sku string, id uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, exists := s.productSKUs[sku]
	return exists && owner != id
}

// ReplaceProduct stores an updated product. The record must already exist and
// the SKU must not collide with another product. UpdatedAt is refreshed.
func (s *Store) ReplaceProduct(p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.products[p.ID]
	if !ok {
		return Product{}, ErrNotFound
	}
	if owner, exists := s.productSKUs[p.SKU]; exists && owner != p.ID {
		return Product{}, ErrDuplicateSKU
	}

	if current.SKU != p.SKU {
		delete(s.productSKUs, current.SKU)
		s.productSKUs[p.SKU] = p.ID
	}
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	s.products[p.ID] = p
	return p, nil
}

// SoftDeleteProduct marks a product inactive. The record stays addressable by
// ID so the detail route keeps working the way the real service does.
func (s *Store) SoftDeleteProduct(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return false
	}
	p.IsActive = false
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return true
}

// Products returns active products matching the filter, ordered by creation
// time so pagination stays stable between requests.
func (s *Store) Products(f ProductFilter) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(f.Query)
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.IsActive {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.Description), query) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.InStock != nil {
			if *f.InStock && p.StockQuantity <= 0 {
				continue
			}
			if !*f.InStock && p.StockQuantity != 0 {
				continue
			}
		}
		matched = append(matched, p)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched
}

// CatalogStats summarizes active products for the metrics gauges.
func (s *Store) CatalogStats() (total int, byCategory map[string]int, lowStock int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byCategory = make(map[string]int)
	for _, p := range s.products {
		if !p.IsActive {
			continue
		}
		total++
		byCategory[p.Category]++
		if p.StockQuantity < lowStockThreshold {
			lowStock++
		}
	}
	return total, byCategory, lowStock
}

// Seed fills the catalog with n sample products spread over a few categories.
// Creation times are staggered so list ordering is deterministic.
func (s *Store) Seed(n int) {
	categories := []string{"Electronics", "Clothing", "Books", "Home"}
	names := []string{"Laptop", "Mouse", "Shirt", "Pants", "Novel", "Cookbook", "Lamp", "Chair"}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := time.Now().UTC().Add(-time.Duration(n) * time.Second)
	for i := 0; i < n; i++ {
		p := Product{
			ID:            uuid.New(),
			Name:          names[i%len(names)],
			Description:   "Seeded catalog item",
			Price:         float64(10+i*7) + 0.99,
			StockQuantity: (i * 3) % 40,
			Category:      categories[i%len(categories)],
			SKU:           "SEED-" + uuid.NewString()[:8],
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
			UpdatedAt:     base.Add(time.Duration(i) * time.Second),
			IsActive:      true,
		}
		s.products[p.ID] = p
		s.productSKUs[p.SKU] = p.ID
	}
}
