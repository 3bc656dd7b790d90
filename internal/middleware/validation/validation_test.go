package validation

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/courier-http/courier/internal/config"
	"github.com/courier-http/courier/internal/middleware"
)

func testValidator() *Validator {
	return New(config.ValidationConfig{
		Enabled:         true,
		MaxRequestBytes: 1 << 20,
		MaxParamDepth:   4,
		MaxParamKeys:    16,
		MaxArrayLength:  8,
		MaxKeyLength:    32,
		MaxValueLength:  256,
		DeniedTypes:     []string{"application/x-sh"},
	})
}

func serve(t *testing.T, v *Validator, r *http.Request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var params map[string]interface{}
	h := v.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		params = middleware.ParamsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec, params
}

func TestOversizedRequestRejected413(t *testing.T) {
	v := testValidator()
	r := httptest.NewRequest("POST", "/", strings.NewReader("x"))
	r.ContentLength = 2 << 20

	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestDeniedContentTypeRejected(t *testing.T) {
	v := testValidator()
	r := httptest.NewRequest("POST", "/", strings.NewReader("echo hi"))
	r.Header.Set("Content-Type", "application/x-sh")

	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

// Depth 4 is the configured maximum: a[b][c][d] nests four levels.
func TestDepthCeilingBoundary(t *testing.T) {
	v := testValidator()

	atMax := httptest.NewRequest("GET", "/?a[b][c][d]=1", nil)
	rec, params := serve(t, v, atMax)
	if rec.Code != http.StatusOK {
		t.Fatalf("depth at ceiling must be accepted, status = %d", rec.Code)
	}
	if params == nil {
		t.Fatal("params missing from context")
	}

	overMax := httptest.NewRequest("GET", "/?a[b][c][d][e]=1", nil)
	rec, _ = serve(t, v, overMax)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("depth over ceiling must be rejected, status = %d", rec.Code)
	}
}

func TestKeyCountCeiling(t *testing.T) {
	v := testValidator()

	q := url.Values{}
	for i := 0; i < 17; i++ {
		q.Set("k"+strings.Repeat("x", i), "1")
	}
	r := httptest.NewRequest("GET", "/?"+q.Encode(), nil)
	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestArrayLengthCeiling(t *testing.T) {
	v := testValidator()

	q := ""
	for i := 0; i < 9; i++ {
		q += "tags[]=a&"
	}
	r := httptest.NewRequest("GET", "/?"+strings.TrimSuffix(q, "&"), nil)
	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLongKeyRejected(t *testing.T) {
	v := testValidator()
	r := httptest.NewRequest("GET", "/?"+strings.Repeat("k", 33)+"=1", nil)
	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestInjectionHeuristics(t *testing.T) {
	v := testValidator()

	rejected := []string{
		"<script>alert(1)</script>",
		"<IMG src=x onerror=alert(1)>",
		"javascript:alert(1)",
		"' OR '1'='1",
		"1 UNION SELECT password FROM users",
		"x; DROP TABLE users; --",
		"1 AND sleep(5)",
	}
	for _, val := range rejected {
		r := httptest.NewRequest("GET", "/?q="+url.QueryEscape(val), nil)
		rec, _ := serve(t, v, r)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("value %q must be rejected, status = %d", val, rec.Code)
		}
	}

	accepted := []string{
		"alice",
		"O'Brien",
		"selection criteria",
		"price between 10 and 20",
	}
	for _, val := range accepted {
		r := httptest.NewRequest("GET", "/?q="+url.QueryEscape(val), nil)
		rec, _ := serve(t, v, r)
		if rec.Code != http.StatusOK {
			t.Errorf("value %q must be accepted, status = %d", val, rec.Code)
		}
	}
}

func TestSanitizationStripsWithoutRejecting(t *testing.T) {
	v := testValidator()
	val := "hello<!-- hidden -->world\x01"
	r := httptest.NewRequest("GET", "/?q="+url.QueryEscape(val), nil)

	rec, params := serve(t, v, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := params["q"]; got != "helloworld" {
		t.Errorf("sanitized value = %q, want %q", got, "helloworld")
	}
}

func TestJSONBodyParamsValidated(t *testing.T) {
	v := testValidator()
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"user":{"name":"<script>x</script>"}}`))
	r.Header.Set("Content-Type", "application/json")

	rec, _ := serve(t, v, r)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFormBodyMergedWithQuery(t *testing.T) {
	v := testValidator()
	r := httptest.NewRequest("POST", "/?page=2", strings.NewReader("user[name]=alice"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec, params := serve(t, v, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if params["page"] != "2" {
		t.Errorf("query param lost: %v", params["page"])
	}
	user, ok := params["user"].(map[string]interface{})
	if !ok || user["name"] != "alice" {
		t.Errorf("nested form param lost: %v", params["user"])
	}
}
