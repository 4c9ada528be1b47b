package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/google/uuid"
)

// workerPassword satisfies the services' password validators; accounts created
// under load are throwaway.
const workerPassword = "load-exercise-pw-1"

var searchTerms = []string{"laptop", "mouse", "shirt", "novel", "lamp", "chair"}

// worker runs weighted-random scenarios until its context expires. Each worker
// keeps one cookie-jar client, so the account journey behaves like a browser
// session, and one bearer token for cross-service authenticated calls.
type worker struct {
	id       int
	users    string
	products string
	client   *http.Client
	rand     *rand.Rand
	weights  map[string]int
	samples  chan<- Sample

	// scenario names the journey currently running so samples carry it.
	scenario string
	token    string
}

func newWorker(id int, plan *Plan, seed int64, samples chan<- Sample) *worker {
	jar, _ := cookiejar.New(nil)
	return &worker{
		id:       id,
		users:    plan.UserServiceURL,
		products: plan.ProductServiceURL,
		client: &http.Client{
			Jar:     jar,
			Timeout: 10 * time.Second,
		},
		rand:    rand.New(rand.NewSource(seed)),
		weights: plan.Scenarios,
		samples: samples,
	}
}

func (w *worker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.client.CloseIdleConnections()
			return
		default:
		}
		w.runScenario(ctx, w.pickScenario())
	}
}

// pickScenario draws a scenario name proportionally to the plan weights.
func (w *worker) pickScenario() string {
	total := 0
	for _, weight := range w.weights {
		total += weight
	}
	// Iterate names in a fixed order so the draw is stable for a given seed.
	draw := w.rand.Intn(total)
	for _, name := range []string{ScenarioBrowse, ScenarioSearch, ScenarioAccount, ScenarioRestock} {
		draw -= w.weights[name]
		if draw < 0 {
			return name
		}
	}
	return ScenarioBrowse
}

func (w *worker) runScenario(ctx context.Context, name string) {
	w.scenario = name
	switch name {
	case ScenarioBrowse:
		w.browse(ctx)
	case ScenarioSearch:
		w.search(ctx)
	case ScenarioAccount:
		w.account(ctx)
	case ScenarioRestock:
		w.restock(ctx)
	}
}

// browse lists the catalog and opens one product detail page.
func (w *worker) browse(ctx context.Context) {
	list := w.getJSON(ctx, w.products+"/api/products/", "GET /api/products/")
	if id := w.randomResultID(list); id != "" {
		w.getJSON(ctx, w.products+"/api/products/"+id+"/", "GET /api/products/{id}/")
	}
}

// search queries the catalog and checks stock on one hit.
func (w *worker) search(ctx context.Context) {
	term := searchTerms[w.rand.Intn(len(searchTerms))]
	list := w.getJSON(ctx, w.products+"/api/products/search/?q="+term, "GET /api/products/search/")
	if id := w.randomResultID(list); id != "" {
		w.getJSON(ctx, w.products+"/api/products/"+id+"/stock/", "GET /api/products/{id}/stock/")
	}
}

// account walks the full account lifecycle with cookie auth.
func (w *worker) account(ctx context.Context) {
	email := fmt.Sprintf("load-%s@example.com", uuid.NewString()[:12])

	w.postJSON(ctx, w.users+"/api/users/register/", map[string]string{
		"email":      email,
		"password":   workerPassword,
		"password2":  workerPassword,
		"first_name": "Load",
		"last_name":  fmt.Sprintf("Worker%d", w.id),
	}, "POST /api/users/register/")

	w.postJSON(ctx, w.users+"/api/users/login/", map[string]string{
		"email":    email,
		"password": workerPassword,
	}, "POST /api/users/login/")

	w.getJSON(ctx, w.users+"/api/users/profile/", "GET /api/users/profile/")

	w.postJSON(ctx, w.users+"/api/users/logout/", nil, "POST /api/users/logout/")
}

// restock creates a product and adjusts its stock, authenticating with a
// bearer token because the product service is a different host than the one
// the cookies belong to.
func (w *worker) restock(ctx context.Context) {
	if w.ensureToken(ctx) == "" {
		return
	}

	sku := "LOAD-" + uuid.NewString()[:8]
	created := w.do(ctx, http.MethodPost, w.products+"/api/products/", map[string]interface{}{
		"name":          "Load Item " + sku,
		"description":   "Created by the load exerciser",
		"price":         fmt.Sprintf("%d.99", 10+w.rand.Intn(90)),
		"stockQuantity": w.rand.Intn(50),
		"category":      "Load",
		"sku":           sku,
	}, "POST /api/products/", true)

	id, _ := created["id"].(string)
	if id == "" {
		return
	}
	w.do(ctx, http.MethodPatch, w.products+"/api/products/"+id+"/", map[string]interface{}{
		"stockQuantity": w.rand.Intn(100),
	}, "PATCH /api/products/{id}/", true)
}

// ensureToken registers a worker-scoped account once and keeps its access
// token for bearer auth.
func (w *worker) ensureToken(ctx context.Context) string {
	if w.token != "" {
		return w.token
	}

	email := fmt.Sprintf("restock-%d-%s@example.com", w.id, uuid.NewString()[:8])
	resp := w.send(ctx, http.MethodPost, w.users+"/api/users/register/", map[string]string{
		"email":     email,
		"password":  workerPassword,
		"password2": workerPassword,
	}, "POST /api/users/register/", false)
	if resp == nil {
		return ""
	}
	defer drain(resp)

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "access_token" {
			w.token = cookie.Value
		}
	}
	return w.token
}

func (w *worker) getJSON(ctx context.Context, url, endpoint string) map[string]interface{} {
	return w.do(ctx, http.MethodGet, url, nil, endpoint, false)
}

func (w *worker) postJSON(ctx context.Context, url string, body interface{}, endpoint string) map[string]interface{} {
	return w.do(ctx, http.MethodPost, url, body, endpoint, false)
}

// do sends one request, records a sample, and returns the decoded JSON body
// (nil on any failure). Requests cut short by context cancellation are not
// recorded, so a stage deadline does not show up as errors in the report.
func (w *worker) do(ctx context.Context, method, url string, body interface{}, endpoint string, bearer bool) map[string]interface{} {
	resp := w.send(ctx, method, url, body, endpoint, bearer)
	if resp == nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return nil
	}
	return decoded
}

func (w *worker) send(ctx context.Context, method, url string, body interface{}, endpoint string, bearer bool) *http.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer && w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	started := time.Now()
	resp, err := w.client.Do(req)
	elapsed := time.Since(started)
	if err != nil {
		if ctx.Err() == nil {
			w.samples <- Sample{Scenario: w.scenario, Endpoint: endpoint, Latency: elapsed, Failed: true}
		}
		return nil
	}

	w.samples <- Sample{
		Scenario: w.scenario,
		Endpoint: endpoint,
		Status:   resp.StatusCode,
		Latency:  elapsed,
		Failed:   resp.StatusCode >= 400,
	}
	return resp
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}

// randomResultID picks one id out of a paginated list body.
func (w *worker) randomResultID(list map[string]interface{}) string {
	if list == nil {
		return ""
	}
	results, ok := list["results"].([]interface{})
	if !ok || len(results) == 0 {
		return ""
	}
	item, ok := results[w.rand.Intn(len(results))].(map[string]interface{})
	if !ok {
		return ""
	}
	id, _ := item["id"].(string)
	return id
}
