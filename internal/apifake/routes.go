package apifake

import (
	"net/http"

	"github.com/dignilife/faceauth-client/api"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("POST "+api.LoginPath, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+api.RegisterPath, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+api.RefreshPath, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("GET "+api.MePath, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))
	s.RegisterRouteFunc("/", ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	}, s.APIMiddleware()...))
}
