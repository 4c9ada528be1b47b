package stubshop

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProduct(name, category, sku string, price string, stock int) map[string]interface{} {
	return map[string]interface{}{
		"name":          name,
		"description":   name + " description",
		"price":         price,
		"stockQuantity": stock,
		"category":      category,
		"sku":           sku,
	}
}

func createProduct(t *testing.T, app *App, cookie *http.Cookie, fields map[string]interface{}) map[string]interface{} {
	t.Helper()
	req := jsonRequest("POST", "/api/products/", fields)
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 201, resp.StatusCode)
	return decodeBody(t, resp)
}

func getJSON(t *testing.T, app *App, target string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(jsonRequest("GET", target, nil))
	require.NoError(t, err)
	return resp.StatusCode, decodeBody(t, resp)
}

func TestCreateProductRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest("POST", "/api/products/",
		sampleProduct("Laptop", "Electronics", "SKU-1", "999.99", 10)))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestCreateProduct(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	body := createProduct(t, app, cookie,
		sampleProduct("Gaming Laptop", "Electronics", "LAP-001", "999.99", 10))

	assert.Equal(t, "Gaming Laptop", body["name"])
	assert.Equal(t, "999.99", body["price"], "price must render as a decimal string")
	assert.Equal(t, float64(10), body["stockQuantity"])
	assert.Equal(t, "Electronics", body["category"])
	assert.Equal(t, "LAP-001", body["sku"])
	assert.Equal(t, true, body["isActive"])
	assert.NotEmpty(t, body["id"])
	assert.NotEmpty(t, body["createdAt"])
}

func TestCreateProductAcceptsNumericPrice(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	fields := sampleProduct("Mouse", "Electronics", "MOU-001", "", 5)
	fields["price"] = 29.99

	body := createProduct(t, app, cookie, fields)
	assert.Equal(t, "29.99", body["price"])
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("First", "Books", "DUP-001", "10.00", 1))

	req := jsonRequest("POST", "/api/products/", sampleProduct("Second", "Books", "DUP-001", "12.00", 2))
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	messages := body["sku"].([]interface{})
	assert.Contains(t, messages, "A product with this SKU already exists.")
}

func TestCreateProductNegativePrice(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	req := jsonRequest("POST", "/api/products/", sampleProduct("Bad", "Books", "NEG-001", "-5.00", 1))
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	messages := body["price"].([]interface{})
	assert.Contains(t, messages, "Price cannot be negative.")
}

func TestCreateProductInvalidPrice(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	req := jsonRequest("POST", "/api/products/", sampleProduct("Bad", "Books", "INV-001", "not-a-price", 1))
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	messages := body["price"].([]interface{})
	assert.Contains(t, messages, "Invalid price format.")
}

func TestCreateProductMissingFields(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	req := jsonRequest("POST", "/api/products/", map[string]interface{}{
		"description": "nothing else set",
	})
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	for _, field := range []string{"name", "price", "stockQuantity", "category", "sku"} {
		assert.Contains(t, body, field, "missing %s must be reported", field)
	}
}

func TestCreateProductBlankName(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)

	req := jsonRequest("POST", "/api/products/", sampleProduct("   ", "Books", "BLK-001", "5.00", 1))
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	messages := body["name"].([]interface{})
	assert.Contains(t, messages, "Product name cannot be empty.")
}

func TestListProductsEmpty(t *testing.T) {
	app := newTestApp(t)

	status, body := getJSON(t, app, "/api/products/")
	assert.Equal(t, 200, status)
	assert.Equal(t, float64(0), body["count"])
	assert.Empty(t, body["results"])
	assert.Nil(t, body["next"])
	assert.Nil(t, body["previous"])
}

func TestListProductsPagination(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	for i := 0; i < 25; i++ {
		createProduct(t, app, cookie,
			sampleProduct(fmt.Sprintf("Item %02d", i), "Bulk", fmt.Sprintf("BULK-%03d", i), "10.00", 5))
	}

	status, page1 := getJSON(t, app, "/api/products/")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(25), page1["count"])
	assert.Len(t, page1["results"], 20)
	require.NotNil(t, page1["next"])
	assert.Contains(t, page1["next"], "page=2")
	assert.Nil(t, page1["previous"])

	status, page2 := getJSON(t, app, "/api/products/?page=2")
	require.Equal(t, 200, status)
	assert.Len(t, page2["results"], 5)
	assert.Nil(t, page2["next"])
	require.NotNil(t, page2["previous"])
	assert.NotContains(t, page2["previous"], "page=", "first page link drops the page parameter")

	resp, err := app.Test(jsonRequest("GET", "/api/products/?page=3", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid page.", body["detail"])
}

func TestListProductsPageSize(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	for i := 0; i < 12; i++ {
		createProduct(t, app, cookie,
			sampleProduct(fmt.Sprintf("Sized %02d", i), "Bulk", fmt.Sprintf("SIZE-%03d", i), "10.00", 5))
	}

	status, body := getJSON(t, app, "/api/products/?page_size=10")
	require.Equal(t, 200, status)
	assert.Len(t, body["results"], 10)
}

func TestListProductsPageSizeCap(t *testing.T) {
	app := newTestApp(t)
	app.Store().Seed(105)

	status, body := getJSON(t, app, "/api/products/?page_size=500")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(105), body["count"])
	assert.Len(t, body["results"], 100, "page_size is capped at 100")
}

func TestListProductsListFieldsOnly(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Lamp", "Home", "LMP-001", "35.50", 3))

	status, body := getJSON(t, app, "/api/products/")
	require.Equal(t, 200, status)
	results := body["results"].([]interface{})
	require.Len(t, results, 1)
	item := results[0].(map[string]interface{})
	assert.Contains(t, item, "sku")
	assert.NotContains(t, item, "description", "list payload is the trimmed representation")
	assert.NotContains(t, item, "createdAt")
}

func TestListFilterByCategory(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Shirt", "Clothing", "SH-001", "29.99", 20))
	createProduct(t, app, cookie, sampleProduct("Pants", "Clothing", "PA-001", "49.99", 15))
	createProduct(t, app, cookie, sampleProduct("Phone", "Electronics", "PH-001", "599.99", 5))

	status, body := getJSON(t, app, "/api/products/?category=Clothing")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(2), body["count"])
	for _, raw := range body["results"].([]interface{}) {
		assert.Equal(t, "Clothing", raw.(map[string]interface{})["category"])
	}
}

func TestListFilterByPriceRange(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Cheap", "Misc", "CH-001", "10.00", 10))
	createProduct(t, app, cookie, sampleProduct("Middle", "Misc", "MI-001", "100.00", 10))
	createProduct(t, app, cookie, sampleProduct("Expensive", "Misc", "EX-001", "1000.00", 5))

	status, body := getJSON(t, app, "/api/products/?min_price=50&max_price=500")
	require.Equal(t, 200, status)
	require.Equal(t, float64(1), body["count"])
	item := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Middle", item["name"])
}

func TestListFilterInStock(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Stocked", "Misc", "ST-001", "10.00", 7))
	createProduct(t, app, cookie, sampleProduct("Gone", "Misc", "GO-001", "10.00", 0))

	status, body := getJSON(t, app, "/api/products/?in_stock=true")
	require.Equal(t, 200, status)
	require.Equal(t, float64(1), body["count"])
	assert.Equal(t, "Stocked", body["results"].([]interface{})[0].(map[string]interface{})["name"])

	status, body = getJSON(t, app, "/api/products/?in_stock=false")
	require.Equal(t, 200, status)
	require.Equal(t, float64(1), body["count"])
	assert.Equal(t, "Gone", body["results"].([]interface{})[0].(map[string]interface{})["name"])
}

func TestListInvalidPriceFilter(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest("GET", "/api/products/?min_price=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Invalid min_price format", body["error"])

	resp, err = app.Test(jsonRequest("GET", "/api/products/?max_price=xyz", nil))
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	body = decodeBody(t, resp)
	assert.Equal(t, "Invalid max_price format", body["error"])
}

func TestProductDetail(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	created := createProduct(t, app, cookie, sampleProduct("Novel", "Books", "NOV-001", "15.99", 8))

	status, body := getJSON(t, app, "/api/products/"+created["id"].(string)+"/")
	require.Equal(t, 200, status)
	assert.Equal(t, "Novel", body["name"])
	assert.Equal(t, "Novel description", body["description"])
	assert.Equal(t, "15.99", body["price"])
}

func TestProductDetailNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest("GET", "/api/products/"+uuid.NewString()+"/", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = app.Test(jsonRequest("GET", "/api/products/not-a-uuid/", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestProductPatch(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	created := createProduct(t, app, cookie, sampleProduct("Chair", "Home", "CHA-001", "89.99", 4))

	req := jsonRequest("PATCH", "/api/products/"+created["id"].(string)+"/", map[string]interface{}{
		"price": "79.99",
	})
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "79.99", body["price"])
	assert.Equal(t, "Chair", body["name"], "PATCH must not clobber unrelated fields")
	assert.Equal(t, "CHA-001", body["sku"])
}

func TestProductPutRequiresAllFields(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	created := createProduct(t, app, cookie, sampleProduct("Desk", "Home", "DSK-001", "120.00", 2))

	req := jsonRequest("PUT", "/api/products/"+created["id"].(string)+"/", map[string]interface{}{
		"name": "Standing Desk",
	})
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body, "price")
	assert.Contains(t, body, "sku")
}

func TestProductUpdateSKUConflict(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("One", "Misc", "CON-001", "10.00", 1))
	other := createProduct(t, app, cookie, sampleProduct("Two", "Misc", "CON-002", "10.00", 1))

	req := jsonRequest("PATCH", "/api/products/"+other["id"].(string)+"/", map[string]interface{}{
		"sku": "CON-001",
	})
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	body := decodeBody(t, resp)
	messages := body["sku"].([]interface{})
	assert.Contains(t, messages, "A product with this SKU already exists.")
}

func TestProductUpdateRequiresAuth(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	created := createProduct(t, app, cookie, sampleProduct("Guarded", "Misc", "GRD-001", "10.00", 1))

	resp, err := app.Test(jsonRequest("PATCH", "/api/products/"+created["id"].(string)+"/",
		map[string]interface{}{"price": "1.00"}))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestProductSoftDelete(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	created := createProduct(t, app, cookie, sampleProduct("Doomed", "Misc", "DEL-001", "10.00", 1))
	id := created["id"].(string)

	req := jsonRequest("DELETE", "/api/products/"+id+"/", nil)
	req.AddCookie(cookie)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, 204, resp.StatusCode)

	// Gone from the list,
	status, body := getJSON(t, app, "/api/products/")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(0), body["count"])

	// gone from the stock route,
	stockResp, err := app.Test(jsonRequest("GET", "/api/products/"+id+"/stock/", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, stockResp.StatusCode)

	// but still resolvable by ID with isActive false.
	status, detail := getJSON(t, app, "/api/products/"+id+"/")
	require.Equal(t, 200, status)
	assert.Equal(t, false, detail["isActive"])
}

func TestSearchMatchesNameCaseInsensitive(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Gaming Laptop", "Electronics", "SRCH-001", "999.99", 10))
	createProduct(t, app, cookie, sampleProduct("Wireless Mouse", "Electronics", "SRCH-002", "29.99", 50))

	status, body := getJSON(t, app, "/api/products/search/?q=laptop")
	require.Equal(t, 200, status)
	require.Equal(t, float64(1), body["count"])
	item := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Gaming Laptop", item["name"])
}

func TestSearchMatchesDescription(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	fields := sampleProduct("Tower", "Electronics", "SRCH-003", "1500.00", 2)
	fields["description"] = "Quiet workstation for rendering"
	createProduct(t, app, cookie, fields)

	status, body := getJSON(t, app, "/api/products/search/?q=rendering")
	require.Equal(t, 200, status)
	assert.Equal(t, float64(1), body["count"])
}

func TestSearchAppliesFilters(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	createProduct(t, app, cookie, sampleProduct("Laptop Pro", "Electronics", "SRCH-004", "1999.00", 3))
	createProduct(t, app, cookie, sampleProduct("Laptop Air", "Electronics", "SRCH-005", "899.00", 0))

	status, body := getJSON(t, app, "/api/products/search/?q=laptop&in_stock=true")
	require.Equal(t, 200, status)
	require.Equal(t, float64(1), body["count"])
	item := body["results"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "Laptop Pro", item["name"])
}

func TestStockEndpoint(t *testing.T) {
	app := newTestApp(t)
	cookie := testAuthCookie(t, app)
	stocked := createProduct(t, app, cookie, sampleProduct("Stocked", "Misc", "STK-001", "10.00", 12))
	empty := createProduct(t, app, cookie, sampleProduct("Empty", "Misc", "STK-002", "10.00", 0))

	status, body := getJSON(t, app, "/api/products/"+stocked["id"].(string)+"/stock/")
	require.Equal(t, 200, status)
	assert.Equal(t, stocked["id"], body["product_id"])
	assert.Equal(t, float64(12), body["stock_quantity"])
	assert.Equal(t, true, body["in_stock"])
	assert.Equal(t, true, body["available"])

	status, body = getJSON(t, app, "/api/products/"+empty["id"].(string)+"/stock/")
	require.Equal(t, 200, status)
	assert.Equal(t, false, body["in_stock"])
	assert.Equal(t, false, body["available"])
}

func TestStockNotFound(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(jsonRequest("GET", "/api/products/"+uuid.NewString()+"/stock/", nil))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "Product not found", body["error"])
}

func TestHealthEndpoint(t *testing.T) {
	app := newTestApp(t)
	app.Store().Seed(3)

	status, body := getJSON(t, app, "/health")
	require.Equal(t, 200, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "stubshop", body["service"])
	assert.Equal(t, float64(3), body["products"])
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t)

	// Generate at least one request so the counters exist.
	_, _ = getJSON(t, app, "/health")

	resp, err := app.Test(jsonRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "stubshop_http_requests_total"),
		"metrics exposition should include the request counter")
}
