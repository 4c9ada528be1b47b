package stubshop

import (
	"encoding/json"
	"errors"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"storegate/metrics"
	"storegate/utils"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ProductHandler implements the catalog half of the API surface.
type ProductHandler struct {
	store *Store
}

// NewProductHandler creates a new product handler.
func NewProductHandler(store *Store) *ProductHandler {
	return &ProductHandler{store: store}
}

// ProductRequest carries a product create or update. Nil fields were absent
// from the request body. Price stays raw because the wire format accepts both
// a bare number and a decimal string.
type ProductRequest struct {
	Name          *string         `json:"name"`
	Description   *string         `json:"description"`
	Price         json.RawMessage `json:"price"`
	StockQuantity *int            `json:"stockQuantity"`
	Category      *string         `json:"category"`
	SKU           *string         `json:"sku"`
	IsActive      *bool           `json:"isActive"`
}

func formatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func parsePriceField(raw json.RawMessage) (float64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	return strconv.ParseFloat(s, 64)
}

func productPayload(p Product) fiber.Map {
	return fiber.Map{
		"id":            p.ID.String(),
		"name":          p.Name,
		"description":   p.Description,
		"price":         formatPrice(p.Price),
		"stockQuantity": p.StockQuantity,
		"category":      p.Category,
		"sku":           p.SKU,
		"createdAt":     p.CreatedAt.UTC().Format(time.RFC3339),
		"updatedAt":     p.UpdatedAt.UTC().Format(time.RFC3339),
		"isActive":      p.IsActive,
	}
}

// listPayload is the trimmed representation used by list and search results.
func listPayload(p Product) fiber.Map {
	return fiber.Map{
		"id":            p.ID.String(),
		"name":          p.Name,
		"price":         formatPrice(p.Price),
		"stockQuantity": p.StockQuantity,
		"category":      p.Category,
		"sku":           p.SKU,
		"isActive":      p.IsActive,
	}
}

// buildProduct applies a request on top of base and validates the result.
// With partial=false every writable field except description and isActive is
// required, matching PUT and create semantics.
func buildProduct(base Product, req ProductRequest, partial bool, skuTaken func(string) bool) (Product, fieldErrors) {
	errs := fieldErrors{}
	p := base

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		switch {
		case name == "":
			errs.add("name", "Product name cannot be empty.")
		case len(name) > 200:
			errs.add("name", "Ensure this field has no more than 200 characters.")
		default:
			p.Name = name
		}
	} else if !partial {
		errs.add("name", "This field is required.")
	}

	if req.Description != nil {
		if len(*req.Description) > 2000 {
			errs.add("description", "Ensure this field has no more than 2000 characters.")
		} else {
			p.Description = *req.Description
		}
	}

	if len(req.Price) > 0 && string(req.Price) != "null" {
		price, err := parsePriceField(req.Price)
		switch {
		case err != nil:
			errs.add("price", "Invalid price format.")
		case price < 0:
			errs.add("price", "Price cannot be negative.")
		default:
			p.Price = price
		}
	} else if !partial {
		errs.add("price", "This field is required.")
	}

	if req.StockQuantity != nil {
		if *req.StockQuantity < 0 {
			errs.add("stockQuantity", "Ensure this value is greater than or equal to 0.")
		} else {
			p.StockQuantity = *req.StockQuantity
		}
	} else if !partial {
		errs.add("stockQuantity", "This field is required.")
	}

	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		switch {
		case category == "":
			errs.add("category", "This field may not be blank.")
		case len(category) > 100:
			errs.add("category", "Ensure this field has no more than 100 characters.")
		default:
			p.Category = category
		}
	} else if !partial {
		errs.add("category", "This field is required.")
	}

	if req.SKU != nil {
		sku := strings.TrimSpace(*req.SKU)
		switch {
		case sku == "":
			errs.add("sku", "This field may not be blank.")
		case len(sku) > 100:
			errs.add("sku", "Ensure this field has no more than 100 characters.")
		case skuTaken(sku):
			errs.add("sku", "A product with this SKU already exists.")
		default:
			p.SKU = sku
		}
	} else if !partial {
		errs.add("sku", "This field is required.")
	}

	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	return p, errs
}

// queryFilter reads the shared list filters from the query string. The second
// return value is a ready-to-send error message, empty when the filters parse.
func queryFilter(c *fiber.Ctx) (ProductFilter, string) {
	f := ProductFilter{Category: c.Query("category")}

	if raw := c.Query("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, "Invalid min_price format"
		}
		f.MinPrice = &v
	}
	if raw := c.Query("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return f, "Invalid max_price format"
		}
		f.MaxPrice = &v
	}
	if c.Request().URI().QueryArgs().Has("in_stock") {
		inStock := strings.EqualFold(c.Query("in_stock"), "true")
		f.InStock = &inStock
	}
	return f, ""
}

// pageURL rebuilds the request URL with a different page number; page one
// drops the parameter entirely, like the paginator of the wrapped services.
func pageURL(c *fiber.Ctx, page int) string {
	u := neturl.URL{
		Scheme: c.Protocol(),
		Host:   string(c.Request().URI().Host()),
		Path:   c.Path(),
	}
	q := neturl.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(key, value []byte) {
		q.Set(string(key), string(value))
	})
	if page <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// paginate wraps results in the count/next/previous/results envelope.
func paginate(c *fiber.Ctx, items []fiber.Map) error {
	page := c.QueryInt("page", 1)
	pageSize := c.QueryInt("page_size", defaultPageSize)
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	count := len(items)
	totalPages := (count + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 || page > totalPages {
		return c.Status(404).JSON(fiber.Map{"detail": "Invalid page."})
	}

	start := (page - 1) * pageSize
	end := utils.Min(start+pageSize, count)

	var next, previous interface{}
	if page < totalPages {
		next = pageURL(c, page+1)
	}
	if page > 1 {
		previous = pageURL(c, page-1)
	}

	return c.JSON(fiber.Map{
		"count":    count,
		"next":     next,
		"previous": previous,
		"results":  items[start:end],
	})
}

// List returns active products with optional filters, paginated.
// GET /api/products/
func (h *ProductHandler) List(c *fiber.Ctx) error {
	filter, errMsg := queryFilter(c)
	if errMsg != "" {
		return c.Status(400).JSON(fiber.Map{"error": errMsg})
	}

	products := h.store.Products(filter)
	results := make([]fiber.Map, 0, len(products))
	for _, p := range products {
		results = append(results, listPayload(p))
	}
	return paginate(c, results)
}

// Search is List plus a case-insensitive substring match on name and
// description.
// GET /api/products/search/
func (h *ProductHandler) Search(c *fiber.Ctx) error {
	filter, errMsg := queryFilter(c)
	if errMsg != "" {
		return c.Status(400).JSON(fiber.Map{"error": errMsg})
	}
	filter.Query = c.Query("q")

	products := h.store.Products(filter)
	results := make([]fiber.Map, 0, len(products))
	for _, p := range products {
		results = append(results, listPayload(p))
	}
	return paginate(c, results)
}

// Create adds a product to the catalog.
// POST /api/products/
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	p, errs := buildProduct(Product{IsActive: true}, req, false, func(sku string) bool {
		return h.store.SKUTakenByOther(sku, uuid.Nil)
	})
	if len(errs) > 0 {
		return c.Status(400).JSON(errs)
	}

	created, err := h.store.CreateProduct(p)
	if err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return c.Status(400).JSON(fieldErrors{"sku": {"A product with this SKU already exists."}})
		}
		return c.Status(500).JSON(fiber.Map{"error": "Failed to create product"})
	}
	metrics.UpdateCatalog(h.store.CatalogStats())

	return c.Status(201).JSON(productPayload(created))
}

// Detail returns one product by ID. Soft-deleted products still resolve here,
// only the list and stock routes hide them; the shapes of the two 404 bodies
// differ the same way they do in the wrapped service.
// GET /api/products/:id/
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	p, ok := h.store.ProductByID(id)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	return c.JSON(productPayload(p))
}

// Update modifies a product. PUT requires the full field set, PATCH applies
// only the provided fields.
// PUT|PATCH /api/products/:id/
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	current, ok := h.store.ProductByID(id)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}

	var req ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}

	partial := c.Method() == fiber.MethodPatch
	p, errs := buildProduct(current, req, partial, func(sku string) bool {
		return h.store.SKUTakenByOther(sku, id)
	})
	if len(errs) > 0 {
		return c.Status(400).JSON(errs)
	}

	updated, err := h.store.ReplaceProduct(p)
	if err != nil {
		if errors.Is(err, ErrDuplicateSKU) {
			return c.Status(400).JSON(fieldErrors{"sku": {"A product with this SKU already exists."}})
		}
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	metrics.UpdateCatalog(h.store.CatalogStats())

	return c.JSON(productPayload(updated))
}

// Delete soft-deletes a product by flipping isActive.
// DELETE /api/products/:id/
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	if !h.store.SoftDeleteProduct(id) {
		return c.Status(404).JSON(fiber.Map{"detail": "Not found."})
	}
	metrics.UpdateCatalog(h.store.CatalogStats())

	return c.SendStatus(fiber.StatusNoContent)
}

// Stock reports availability for one active product.
// GET /api/products/:id/stock/
func (h *ProductHandler) Stock(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "Product not found"})
	}
	p, ok := h.store.ProductByID(id)
	if !ok || !p.IsActive {
		return c.Status(404).JSON(fiber.Map{"error": "Product not found"})
	}

	return c.JSON(fiber.Map{
		"product_id":     p.ID.String(),
		"stock_quantity": p.StockQuantity,
		"in_stock":       p.StockQuantity > 0,
		"available":      p.IsActive && p.StockQuantity > 0,
	})
}
