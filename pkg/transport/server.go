package transport

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tbelfort/falcon-ai-sub003/pkg/broadcast"
	"github.com/tbelfort/falcon-ai-sub003/pkg/outputbus"
)

// Config tunes one Server. Zero values fall back to DefaultConfig's.
type Config struct {
	Token            string
	AllowedOrigins   []string
	MaxConnsPerAddr  int
	MaxSubscriptions int
	IdleTimeout      time.Duration
	Limiter          ConnLimiter
}

// DefaultConfig returns a Config matching spec.md §5's defaults: 20
// connections per source address, 100 subscriptions per connection.
func DefaultConfig(token string) Config {
	return Config{
		Token:            token,
		MaxConnsPerAddr:  20,
		MaxSubscriptions: 100,
		IdleTimeout:      60 * time.Second,
	}
}

// Server hosts the single `/ws` upgrade route, multiplexing the Output Bus
// (C7) and Broadcast Bus (C11) to authenticated clients.
type Server struct {
	output  *outputbus.Bus
	bus     *broadcast.Bus
	cfg     Config
	limiter ConnLimiter
	log     *zap.SugaredLogger

	mu     sync.Mutex
	nextID uint64
}

// NewServer wires output and bus into a Server. A nil cfg.Limiter falls
// back to an in-process ConnLimiter.
func NewServer(output *outputbus.Bus, bus *broadcast.Bus, cfg Config, log *zap.SugaredLogger) *Server {
	limiter := cfg.Limiter
	if limiter == nil {
		limiter = NewMemLimiter(cfg.MaxConnsPerAddr)
	}
	return &Server{output: output, bus: bus, cfg: cfg, limiter: limiter, log: log}
}

// Router builds the chi router: CORS against the configured origin
// allow-list, a liveness route, and the `/ws` upgrade route. Mirrors the
// teacher's chi.NewRouter + router.Use(cors.Handler(...)) gateway idiom.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins(),
		AllowedMethods:   []string{http.MethodGet},
		AllowCredentials: true,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) corsOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is policed explicitly in handleWS (so a rejection can close
	// with spec.md's named forbidden-origin code) rather than left to
	// gorilla's own bare-403 CheckOrigin rejection.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	addr := remoteAddr(r)
	allowed := s.originAllowed(r.Header.Get("Origin"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("websocket upgrade failed", "err", err, "addr", addr)
		return
	}

	if !allowed {
		closeWithCode(conn, CloseForbiddenOrigin, "origin not allowed")
		return
	}

	ok, release, err := s.limiter.Acquire(r.Context(), addr)
	if err != nil {
		s.log.Warnw("connection limiter error", "err", err, "addr", addr)
	}
	if !ok {
		closeWithCode(conn, CloseRateLimited, "connection limit exceeded for this address")
		return
	}
	defer release()

	s.serveConn(conn)
}

func (s *Server) serveConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.mu.Unlock()

	c := newClient(clientID(id), conn, s)
	c.trySend(ServerMessage{Type: ServerConnected, ClientID: c.id})
	go c.writePump()
	c.readPump()
	c.close()
}

func (s *Server) authorized(r *http.Request) bool {
	token := bearerToken(r)
	if token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.Token)) == 1
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func remoteAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func closeWithCode(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(5*time.Second))
	_ = conn.Close()
}

func clientID(n uint64) string {
	return "c-" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
