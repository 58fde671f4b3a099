package middleware

import (
	"net/http"
	"os"
	"path/filepath"
)

const giftSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 200 200"><rect width="200" height="200" fill="#f6f1ea"/><rect x="50" y="85" width="100" height="70" rx="6" fill="#d96c6c"/><rect x="42" y="68" width="116" height="24" rx="5" fill="#e98b8b"/><rect x="93" y="68" width="14" height="87" fill="#f4d35e"/><path d="M100 68c-10-22-38-22-34-6 3 10 24 8 34 6zm0 0c10-22 38-22 34-6-3 10-24 8-34 6z" fill="#f4d35e"/><text x="100" y="185" text-anchor="middle" font-family="Arial" font-size="14" fill="#8a7f74">GIFT</text></svg>`

// ItemImageServer serves uploaded item images from dir and falls back to a
// gift placeholder when the file is missing.
func ItemImageServer(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))

		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			w.Header().Set("Cache-Control", "public, max-age=2592000")
			http.ServeFile(w, r, path)
			return
		}

		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write([]byte(giftSVG))
	})
}
