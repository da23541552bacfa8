package security

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORS answers preflight requests and sets Access-Control headers for the
// configured origins. "*" allows any origin without credentials.
type CORS struct {
	origins   []string
	anyOrigin bool
	methods   string
	headers   string
	maxAge    string
}

func NewCORS(origins []string) *CORS {
	c := &CORS{
		methods: "GET, POST, PUT, DELETE, OPTIONS",
		headers: "Authorization, Content-Type, X-Request-ID",
		maxAge:  strconv.Itoa(600),
	}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			c.anyOrigin = true
		default:
			c.origins = append(c.origins, strings.TrimSuffix(o, "/"))
		}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	return c.anyOrigin || slices.Contains(c.origins, origin)
}

func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && c.allowed(origin) {
			h := w.Header()
			if c.anyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			h.Set("Access-Control-Expose-Headers", "X-Request-ID")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", c.methods)
				h.Set("Access-Control-Allow-Headers", c.headers)
				h.Set("Access-Control-Max-Age", c.maxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
