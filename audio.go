/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
)

// audioTrack is the one background track shared by every session. It is
// read from disk on first request and served from memory afterwards.
type audioTrack struct {
	path string

	once        sync.Once
	data        []byte
	contentType string
	err         error
}

func newAudioTrack(path string) *audioTrack {
	return &audioTrack{path: path}
}

func (a *audioTrack) load() ([]byte, string, error) {
	a.once.Do(func() {
		if a.path == "" {
			a.err = os.ErrNotExist
			return
		}

		a.data, a.err = os.ReadFile(a.path)

		switch strings.ToLower(filepath.Ext(a.path)) {
		case ".mp3":
			a.contentType = "audio/mpeg"
		case ".ogg", ".oga":
			a.contentType = "audio/ogg"
		case ".wav":
			a.contentType = "audio/wav"
		case ".m4a":
			a.contentType = "audio/mp4"
		default:
			a.contentType = http.DetectContentType(a.data)
		}
	})

	return a.data, a.contentType, a.err
}

func serveMusic(cfg *Config, track *audioTrack, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		data, contentType, err := track.load()
		if err != nil {
			securityHeaders(cfg, w)
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		written, err := w.Write(data)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Music (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
