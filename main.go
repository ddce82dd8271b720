package main

import (
	"codecollab/handlers/api/execute"
	"codecollab/handlers/api/snippets"
	"codecollab/handlers/auth"
	"codecollab/handlers/websocket"
	authMiddleware "codecollab/middleware"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"codecollab/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// pageRoutes maps client-side routes to the html pages that back them.
var pageRoutes = map[string]string{
	"/":          "landing.html",
	"/editor":    "index.html",
	"/login":     "login.html",
	"/signup":    "signup.html",
	"/dashboard": "dashboard.html",
}

func handleUI(frontendPath string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(frontendPath))

	return func(w http.ResponseWriter, r *http.Request) {
		if page, ok := pageRoutes[r.URL.Path]; ok {
			http.ServeFile(w, r, filepath.Join(frontendPath, page))
			return
		}
		if strings.Contains(r.URL.Path, "..") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}

func setupRouter(store stores.Store, reg *websocket.Registry) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Origin", "Host", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Post("/signup", auth.HandleSignup(store))
	r.Post("/login", auth.HandleLogin(store))
	r.Route("/auth", func(r chi.Router) {
		r.Get("/login", auth.HandleGitHubLogin)
		r.Get("/callback", auth.HandleGitHubCallback(store))
	})

	r.Post("/run", execute.HandleRun())

	// Snippet routes, protected by JWT auth.
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.AuthJWT)
		r.Route("/snippets", func(r chi.Router) {
			r.Post("/", snippets.HandleCreateSnippet(store))
			r.Get("/", snippets.HandleListSnippets(store))
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", snippets.HandleGetSnippet(store))
				r.Put("/", snippets.HandleUpdateSnippet(store))
				r.Delete("/", snippets.HandleDeleteSnippet(store))
			})
		})
		r.Get("/files", snippets.HandleListFiles(store))
		r.Post("/folders", snippets.HandleCreateFolder(store))
	})

	r.Get("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, reg.ActiveRooms())
	})

	return r
}

func waitForShutdown(ioo *socketio.Server) {
	exit := make(chan struct{})
	signalC := make(chan os.Signal, 1)

	signal.Notify(signalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range signalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	os.Exit(0)
}

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":3000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	auth.InitAuth()
	store := stores.GetStore()
	reg := websocket.NewRegistry()

	r := setupRouter(store, reg)

	ioo := websocket.SetupSocketIO(reg)
	r.Mount("/socket.io/", ioo.ServeHandler(nil))

	frontendPath := os.Getenv("FRONTEND_PATH")
	if frontendPath == "" {
		frontendPath = "./frontend"
	}
	r.NotFound(handleUI(frontendPath))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo)
}
