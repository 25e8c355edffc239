package http

import (
	"net/http"
	"time"

	"liveroom/auth"
	"liveroom/room"

	"github.com/gorilla/mux"
)

type Server struct {
	router   *mux.Router
	handlers *Handlers
}

func NewServer(authService *auth.Service, rooms *room.Service) *Server {
	router := mux.NewRouter()
	handlers := NewHandlers(authService, rooms)

	server := &Server{
		router:   router,
		handlers: handlers,
	}

	server.setupRoutes(authService)
	return server
}

func (s *Server) setupRoutes(authService *auth.Service) {
	s.router.Use(LoggingMiddleware)
	s.router.Use(SecurityHeadersMiddleware)
	s.router.Use(CORSMiddleware)

	// Registration is the only unauthenticated write, so it gets a per-IP
	// rate limit.
	createLimiter := NewIPRateLimiter(10, 5)
	s.router.Handle("/user/create", createLimiter.Middleware(http.HandlerFunc(s.handlers.CreateUser))).Methods("POST")

	// Listing and results carry no credential in the original contract.
	s.router.HandleFunc("/room/list", s.handlers.ListRooms).Methods("POST")
	s.router.HandleFunc("/room/result", s.handlers.RoomResults).Methods("POST")

	// The user endpoints resolve the token themselves: an unknown token
	// means "no such user", a 404, where the room endpoints answer 401.
	s.router.HandleFunc("/user/me", s.handlers.Me).Methods("GET")
	s.router.HandleFunc("/user/update", s.handlers.UpdateUser).Methods("POST")

	// The room endpoints require a bearer token.
	authed := AuthMiddleware(authService)
	s.router.Handle("/room/create", authed(http.HandlerFunc(s.handlers.CreateRoom))).Methods("POST")
	s.router.Handle("/room/join", authed(http.HandlerFunc(s.handlers.JoinRoom))).Methods("POST")
	s.router.Handle("/room/wait", authed(http.HandlerFunc(s.handlers.WaitRoom))).Methods("POST")
	s.router.Handle("/room/start", authed(http.HandlerFunc(s.handlers.StartRoom))).Methods("POST")
	s.router.Handle("/room/end", authed(http.HandlerFunc(s.handlers.EndRoom))).Methods("POST")
	s.router.Handle("/room/leave", authed(http.HandlerFunc(s.handlers.LeaveRoom))).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) GetHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
