package http

import (
	"container/list"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"cuotas/internal/amqp"
	"cuotas/internal/services"
	"cuotas/internal/storage"
)

// LRU cache with TTL and size-based eviction
type lruCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

func newLRUCache[T any](maxSize int, ttl time.Duration) *lruCache[T] {
	return &lruCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
	}
}

func (c *lruCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])

	if time.Now().After(item.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return item.data, true
}

func (c *lruCache[T]) Set(key string, data T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	if c.lru.Len() > c.maxSize {
		oldest := c.lru.Back()
		if oldest != nil {
			c.removeElement(oldest)
		}
	}
}

func (c *lruCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

func (c *lruCache[T]) removeElement(elem *list.Element) {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
}

// CleanExpired removes all expired entries
func (c *lruCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}

	for _, elem := range toRemove {
		c.removeElement(elem)
	}

	return len(toRemove)
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 mutations per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// Deps carries everything the API server needs.
type Deps struct {
	Repo      *storage.SQLiteRepository
	Dues      *services.DuesService
	Water     *services.WaterService
	Budgets   *services.BudgetService
	Polls     *services.PollService
	Rates     *services.RatesService
	AMQP      *amqp.Client
	APITokens []string
}

type Server struct {
	http.Server
	repo        *storage.SQLiteRepository
	dues        *services.DuesService
	water       *services.WaterService
	budgets     *services.BudgetService
	polls       *services.PollService
	rates       *services.RatesService
	amqpClient  *amqp.Client
	tokens      map[string]struct{}
	rateLimiter *rateLimiter

	// LRU caches for the two read-heavy views
	yearViewCache *lruCache[duesYearView]
	reportCache   *lruCache[services.BudgetReport]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		repo:             deps.Repo,
		dues:             deps.Dues,
		water:            deps.Water,
		budgets:          deps.Budgets,
		polls:            deps.Polls,
		rates:            deps.Rates,
		amqpClient:       deps.AMQP,
		tokens:           make(map[string]struct{}, len(deps.APITokens)),
		rateLimiter:      newRateLimiter(),
		yearViewCache:    newLRUCache[duesYearView](100, 5*time.Minute),
		reportCache:      newLRUCache[services.BudgetReport](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}
	for _, tok := range deps.APITokens {
		if tok = strings.TrimSpace(tok); tok != "" {
			s.tokens[tok] = struct{}{}
		}
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /clients", s.guard(s.handleListClients))
	mux.HandleFunc("POST /clients", s.guard(s.handleCreateClient))
	mux.HandleFunc("GET /clients/{id}", s.guard(s.handleGetClient))
	mux.HandleFunc("GET /clients/{id}/config", s.guard(s.handleGetClientConfig))
	mux.HandleFunc("PUT /clients/{id}/config", s.guard(s.handleUpdateClientConfig))

	mux.HandleFunc("GET /clients/{id}/units", s.guard(s.handleListUnits))
	mux.HandleFunc("POST /clients/{id}/units", s.guard(s.handleCreateUnit))

	mux.HandleFunc("GET /clients/{id}/dues/{year}", s.guard(s.handleDuesYear))
	mux.HandleFunc("POST /clients/{id}/dues/{unitID}/{year}/payments", s.guard(s.handleRecordPayment))
	mux.HandleFunc("PUT /clients/{id}/dues/{unitID}/credit", s.guard(s.handleSetCredit))
	mux.HandleFunc("GET /clients/{id}/dues/{unitID}/credit/history", s.guard(s.handleCreditHistory))

	mux.HandleFunc("GET /clients/{id}/transactions", s.guard(s.handleListTransactions))
	mux.HandleFunc("POST /clients/{id}/transactions", s.guard(s.handleCreateTransaction))
	mux.HandleFunc("GET /clients/{id}/transactions/categories", s.guard(s.handleListCategories))

	mux.HandleFunc("GET /clients/{id}/water/readings", s.guard(s.handleListReadings))
	mux.HandleFunc("POST /clients/{id}/water/readings", s.guard(s.handleCreateReading))
	mux.HandleFunc("GET /clients/{id}/water/bills", s.guard(s.handleListBills))
	mux.HandleFunc("POST /clients/{id}/water/bills", s.guard(s.handleGenerateBill))
	mux.HandleFunc("POST /clients/{id}/water/bills/{unitID}/{year}/{month}/pay", s.guard(s.handlePayBill))
	mux.HandleFunc("POST /clients/{id}/water/penalties", s.guard(s.handleApplyPenalties))

	mux.HandleFunc("GET /clients/{id}/budgets", s.guard(s.handleListBudget))
	mux.HandleFunc("POST /clients/{id}/budgets", s.guard(s.handleSetBudgetLine))
	mux.HandleFunc("GET /clients/{id}/budgets/{year}/report", s.guard(s.handleBudgetReport))

	mux.HandleFunc("POST /clients/{id}/polls", s.guard(s.handleCreatePoll))
	mux.HandleFunc("GET /clients/{id}/polls", s.guard(s.handleListPolls))
	mux.HandleFunc("GET /polls/{pollID}", s.guard(s.handlePollResults))
	mux.HandleFunc("POST /polls/{pollID}/votes", s.guard(s.handleCastVote))
	mux.HandleFunc("POST /polls/{pollID}/close", s.guard(s.handleClosePoll))

	mux.HandleFunc("GET /rates", s.guard(s.handleLatestRate))
	mux.HandleFunc("GET /rates/{date}", s.guard(s.handleRateByDate))

	mux.HandleFunc("GET /comm/email/config/templates/{clientID}", s.guard(s.handleListTemplates))
	mux.HandleFunc("PUT /comm/email/config/templates/{clientID}", s.guard(s.handleUpsertTemplate))

	mux.HandleFunc("POST /clients/{id}/receipts/{txnID}/send", s.guard(s.handleSendReceipt))

	return s
}

// startCacheCleanup runs periodic cleanup for both caches
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			yearCleaned := s.yearViewCache.CleanExpired()
			reportCleaned := s.reportCache.CleanExpired()
			if yearCleaned > 0 || reportCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"year_entries_removed", yearCleaned,
					"report_entries_removed", reportCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// guard adds request logging, bearer auth, rate limiting, and security
// headers to an API handler.
func (s *Server) guard(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if !s.authorized(r) {
			slog.WarnContext(ctx, "Unauthorized request", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("WWW-Authenticate", "Bearer")
			ErrorResponse(w, http.StatusUnauthorized, "missing or invalid API token")
			return
		}

		// Rate limit mutations only; reads are cached anyway.
		if isMutation(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			ErrorResponse(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// authorized checks the bearer token. A server configured with no tokens
// accepts everything, which is only sane in local development.
func (s *Server) authorized(r *http.Request) bool {
	if len(s.tokens) == 0 {
		return true
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	_, ok := s.tokens[strings.TrimSpace(auth[len(prefix):])]
	return ok
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) yearViewKey(clientID string, year int) string {
	return clientID + "-" + strconv.Itoa(year)
}

func (s *Server) invalidateYearViews(clientID string) {
	// Payments can touch any cached year for the client; a full sweep of
	// plausible keys is cheaper than tracking them.
	now := time.Now().Year()
	for y := now - 10; y <= now+2; y++ {
		s.yearViewCache.Delete(s.yearViewKey(clientID, y))
	}
}

func (s *Server) invalidateReports(clientID string) {
	now := time.Now().Year()
	for y := now - 10; y <= now+2; y++ {
		s.reportCache.Delete(s.yearViewKey(clientID, y))
	}
}
