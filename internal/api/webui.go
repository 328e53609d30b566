package api

import (
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/eddygk/dns-bench-sub000/webui"
)

// The compiled benchmark UI ships inside the binary. Everything that is not
// an API route falls through to it; extension-less misses rewrite to
// index.html so client-side routes survive a page reload.
func registerEmbeddedWebUI(mux *http.ServeMux) {
	dist, err := webui.DistFS()
	if err != nil {
		log.Printf("[api] web UI disabled: %v", err)
		return
	}
	mux.Handle("/", spaHandler(dist))
}

func spaHandler(dist fs.FS) http.Handler {
	assets := http.FileServerFS(dist)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || name == "." {
			name = "index.html"
		}

		switch info, err := fs.Stat(dist, name); {
		case err == nil && !info.IsDir():
			assets.ServeHTTP(w, r)
		case path.Ext(name) != "":
			// A miss that looks like a file stays a 404.
			http.NotFound(w, r)
		default:
			http.ServeFileFS(w, r, dist, "index.html")
		}
	})
}
