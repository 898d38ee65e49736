/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

func servePhotos(cfg *Config, photos fs.FS) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		fname := strings.TrimPrefix(path.Clean(p.ByName("filepath")), "/")
		if !fs.ValidPath(fname) || fname == "." {
			securityHeaders(cfg, w)
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=86400")
		securityHeaders(cfg, w)

		http.ServeFileFS(w, r, photos, fname)

		logf(cfg, "SERVE: Photo %s to %s in %s",
			fname,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerPhotos(cfg *Config, mux *httprouter.Router) {
	mux.GET(cfg.prefix+"/photos/*filepath", servePhotos(cfg, os.DirFS(cfg.photos)))
}
