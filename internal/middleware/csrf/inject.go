package csrf

import (
	"bytes"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var formTagRe = regexp.MustCompile(`(?i)<form\b[^>]*>`)

// injector buffers an HTML response so the token can be spliced in
// before the closing head tag and into each form, with Content-Length
// recomputed for the final body.
type injector struct {
	http.ResponseWriter
	token     string
	paramName string
	status    int
	buf       bytes.Buffer
	html      bool
	decided   bool
}

func newInjector(w http.ResponseWriter, token, paramName string) *injector {
	return &injector{ResponseWriter: w, token: token, paramName: paramName, status: http.StatusOK}
}

func (i *injector) WriteHeader(status int) {
	i.status = status
	i.decide()
}

func (i *injector) Write(b []byte) (int, error) {
	i.decide()
	if !i.html {
		return i.ResponseWriter.Write(b)
	}
	return i.buf.Write(b)
}

// decide inspects the Content-Type once writing begins. Non-HTML
// responses stream through untouched.
func (i *injector) decide() {
	if i.decided {
		return
	}
	i.decided = true
	ct := i.Header().Get("Content-Type")
	i.html = strings.HasPrefix(ct, "text/html")
	if !i.html {
		i.ResponseWriter.WriteHeader(i.status)
	}
}

func (i *injector) flush() {
	if !i.decided {
		// Handler wrote nothing.
		i.ResponseWriter.WriteHeader(i.status)
		return
	}
	if !i.html {
		return
	}

	body := i.buf.Bytes()
	meta := `<meta name="csrf-token" content="` + i.token + `">`
	if idx := bytes.Index(bytes.ToLower(body), []byte("</head>")); idx >= 0 {
		body = append(body[:idx:idx], append([]byte(meta), body[idx:]...)...)
	}
	hidden := `<input type="hidden" name="` + i.paramName + `" value="` + i.token + `">`
	body = formTagRe.ReplaceAllFunc(body, func(tag []byte) []byte {
		return append(tag, []byte(hidden)...)
	})

	i.Header().Set("Content-Length", strconv.Itoa(len(body)))
	i.ResponseWriter.WriteHeader(i.status)
	i.ResponseWriter.Write(body)
}
