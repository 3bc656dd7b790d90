package routes

import (
	"reflect"
	"strings"
	"testing"
)

const sampleManifest = `
# core routes
GET /users/:id UsersController#show response=json auth=session,apikey
GET /admin AdminController#show auth=role:admin
POST /submit Handler#create csrf=exempt
GET /files/* Assets.serve
GET / HomeController#index
GET /404 Errors.notFound
`

func TestParseManifest(t *testing.T) {
	routes, loadErrs, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if len(loadErrs) != 0 {
		t.Fatalf("unexpected load errors: %v", loadErrs)
	}
	if len(routes) != 6 {
		t.Fatalf("got %d routes, want 6", len(routes))
	}

	r := routes[0]
	if r.Verb != "GET" || r.Path != "/users/:id" {
		t.Errorf("unexpected route %s %s", r.Verb, r.Path)
	}
	if r.Target.Kind != InstanceMethod || r.Target.Name != "UsersController" || r.Target.Method != "show" {
		t.Errorf("unexpected target %+v", r.Target)
	}
	if r.ResponseMode() != "json" {
		t.Errorf("response option = %q", r.ResponseMode())
	}
	if got := r.AuthRequirements(); !reflect.DeepEqual(got, []string{"session", "apikey"}) {
		t.Errorf("auth requirements = %v", got)
	}

	if !routes[2].CSRFExempt() {
		t.Error("csrf=exempt not honored")
	}
	if routes[3].Target.Kind != ClassMethod {
		t.Errorf("Assets.serve should be a class method, got %v", routes[3].Target.Kind)
	}
}

func TestCommentAndBlankLinesIgnored(t *testing.T) {
	in := "# comment\n\n  indented prose\n-- separator\nGET / Home.index\n"
	routes, loadErrs, err := ParseManifest(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(loadErrs) != 0 || len(routes) != 1 {
		t.Fatalf("got %d routes, %d errors", len(routes), len(loadErrs))
	}
}

func TestMalformedLinesSkippedNotFatal(t *testing.T) {
	in := "GET /only-two\nFLY /x Home.index\nGET /x Home.index badopt\nGET /ok Home.index\n"
	routes, loadErrs, err := ParseManifest(strings.NewReader(in))
	if err != nil {
		t.Fatalf("load errors must not be fatal: %v", err)
	}
	if len(loadErrs) != 3 {
		t.Fatalf("got %d load errors, want 3: %v", len(loadErrs), loadErrs)
	}
	if len(routes) != 1 || routes[0].Path != "/ok" {
		t.Fatalf("surviving routes wrong: %+v", routes)
	}
}

func TestUnsafeTargetIsFatal(t *testing.T) {
	cases := []string{
		"GET /x Process.spawn",
		"GET /x Kernel#eval",
		"GET /x File.read",
		"GET /x lowercase#show",
		"GET /x Admin::GC.run",
	}
	for _, line := range cases {
		_, _, err := ParseManifest(strings.NewReader(line + "\n"))
		if err == nil {
			t.Errorf("%q: expected fatal target error", line)
			continue
		}
		if _, ok := err.(*TargetError); !ok {
			t.Errorf("%q: got %T, want *TargetError", line, err)
		}
	}
}

func TestNamespacedTargetAllowed(t *testing.T) {
	routes, _, err := ParseManifest(strings.NewReader("GET /x Admin::UsersController#show\n"))
	if err != nil {
		t.Fatal(err)
	}
	if routes[0].Target.Name != "Admin::UsersController" {
		t.Errorf("namespaced name lost: %q", routes[0].Target.Name)
	}
}

func TestPathMatching(t *testing.T) {
	routes, _, err := ParseManifest(strings.NewReader("GET /users/:id/posts/:post_id Posts.show\n"))
	if err != nil {
		t.Fatal(err)
	}
	r := routes[0]

	params, ok := r.Match("/users/42/posts/7")
	if !ok {
		t.Fatal("expected match")
	}
	if params["id"] != "42" || params["post_id"] != "7" {
		t.Errorf("params = %v", params)
	}

	// Anchored: no partial matches.
	if _, ok := r.Match("/users/42/posts/7/extra"); ok {
		t.Error("partial match must not succeed")
	}
	if _, ok := r.Match("/prefix/users/42/posts/7"); ok {
		t.Error("suffix match must not succeed")
	}

	// Single-segment captures never span slashes.
	if _, ok := r.Match("/users/4/2/posts/7"); ok {
		t.Error(":id must not span segments")
	}
}

func TestSplat(t *testing.T) {
	routes, _, err := ParseManifest(strings.NewReader("GET /files/* Assets.serve\n"))
	if err != nil {
		t.Fatal(err)
	}
	params, ok := routes[0].Match("/files/css/deep/site.css")
	if !ok {
		t.Fatal("expected splat match")
	}
	if params["splat"] != "css/deep/site.css" {
		t.Errorf("splat = %q", params["splat"])
	}

	// A second splat is a load error, not a panic.
	_, loadErrs, err := ParseManifest(strings.NewReader("GET /a/*/b/* X.y\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(loadErrs) != 1 {
		t.Fatalf("expected one load error for double splat, got %v", loadErrs)
	}
}

func TestLiteralEscaping(t *testing.T) {
	routes, _, err := ParseManifest(strings.NewReader("GET /v1.0/items/:id Items.show\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := routes[0].Match("/v1x0/items/3"); ok {
		t.Error("dot in literal segment must be escaped")
	}
	if _, ok := routes[0].Match("/v1.0/items/3"); !ok {
		t.Error("literal segment should match itself")
	}
}

func TestLoadDeterminism(t *testing.T) {
	a, _, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := ParseManifest(strings.NewReader(sampleManifest))
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("route counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Pattern() != b[i].Pattern() {
			t.Errorf("route %d: patterns differ: %q vs %q", i, a[i].Pattern(), b[i].Pattern())
		}
		if !reflect.DeepEqual(a[i].ParamNames(), b[i].ParamNames()) {
			t.Errorf("route %d: param order differs: %v vs %v", i, a[i].ParamNames(), b[i].ParamNames())
		}
	}
}
