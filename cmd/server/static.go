package main

import (
	"net/http"
	"os"

	"github.com/rs/zerolog/log"
)

// staticHandler serves the client bundle from dir. The bundle ships
// separately, so a missing dir only warns and every asset 404s.
func staticHandler(dir string) http.Handler {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		log.Warn().Str("dir", dir).Msg("static dir missing: pages load without the client bundle")
		return http.NotFoundHandler()
	}
	return http.FileServer(http.Dir(dir))
}
