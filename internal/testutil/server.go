// Package testutil provides an in-process replica of the remote command
// center authority: the same routes, auth scheme and event stream the
// production server exposes, minus the actual process execution. The test
// suite runs the client core against it end to end; it also serves as a
// local development stand-in.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/command-center/client-core/internal/models"
)

const (
	// DefaultUsername and DefaultPassword are the seeded credential.
	DefaultUsername = "admin"
	DefaultPassword = "admin123"

	sessionTTL = 24 * time.Hour
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server is the replica. All exported methods are safe for concurrent use.
type Server struct {
	httpServer *httptest.Server

	mu           sync.Mutex
	passwordHash []byte
	tokens       map[string]time.Time
	commands     map[string]models.CommandDefinition
	history      []models.ExecutionLog
	failHistory  bool
	autoComplete bool

	connsMu sync.Mutex
	conns   map[*websocket.Conn]*sync.Mutex

	requests atomic.Int64
}

// NewServer starts a replica listening on a local port with the default
// admin credential and an empty catalog.
func NewServer() *Server {
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s := &Server{
		passwordHash: hash,
		tokens:       make(map[string]time.Time),
		commands:     make(map[string]models.CommandDefinition),
		conns:        make(map[*websocket.Conn]*sync.Mutex),
	}

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		s.requests.Add(1)
		c.Next()
	})

	engine.POST("/api/auth/login", s.handleLogin)
	engine.GET("/api/events", s.handleEvents)

	authed := engine.Group("/api", s.requireToken)
	authed.GET("/commands", s.handleListCommands)
	authed.POST("/commands", s.handleSaveCommand)
	authed.POST("/commands/:id", s.handleSaveCommand)
	authed.DELETE("/commands/:id", s.handleDeleteCommand)
	authed.POST("/commands/:id/execute", s.handleExecute)
	authed.GET("/history", s.handleHistory)

	s.httpServer = httptest.NewServer(engine)
	return s
}

// URL returns the base address of the replica.
func (s *Server) URL() string {
	return s.httpServer.URL
}

// Close shuts down the replica and drops all stream connections.
func (s *Server) Close() {
	s.DropConnections()
	s.httpServer.Close()
}

// RequestCount returns the number of HTTP requests observed, websocket
// upgrades included.
func (s *Server) RequestCount() int64 {
	return s.requests.Load()
}

// SeedCommand installs a definition directly, bypassing the API.
func (s *Server) SeedCommand(def models.CommandDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands[def.ID] = def
}

// RemoveCommand drops a definition directly, without broadcasting the
// delete to connected clients.
func (s *Server) RemoveCommand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.commands, id)
}

// SeedHistory installs a log entry directly, bypassing the API.
func (s *Server) SeedHistory(entry models.ExecutionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append([]models.ExecutionLog{entry}, s.history...)
}

// SetFailHistory makes GET /api/history answer 500 until reset. Used to
// exercise partial snapshot failure.
func (s *Server) SetFailHistory(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHistory = fail
}

// SetAutoComplete makes execute requests progress to a successful finish
// on their own, emitting the full started/updated/finished sequence.
func (s *Server) SetAutoComplete(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoComplete = enabled
}

// RevokeTokens invalidates every issued token; subsequent calls and
// stream dials answer 401.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]time.Time)
}

// ClientCount returns the number of live stream connections.
func (s *Server) ClientCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// Emit broadcasts an event to every stream connection.
func (s *Server) Emit(ev models.Event) error {
	data, err := models.EncodeEvent(ev)
	if err != nil {
		return err
	}
	s.broadcast(data)
	return nil
}

// EmitRaw broadcasts an arbitrary frame, well-formed or not.
func (s *Server) EmitRaw(data []byte) {
	s.broadcast(data)
}

// DropConnections severs every stream connection without notice,
// simulating a socket drop.
func (s *Server) DropConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
		delete(s.conns, conn)
	}
}

func (s *Server) broadcast(data []byte) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn, writeMu := range s.conns {
		writeMu.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		writeMu.Unlock()
		if err != nil {
			_ = conn.Close()
			delete(s.conns, conn)
		}
	}
}

func (s *Server) handleLogin(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed login request"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Username != DefaultUsername || bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token := uuid.New().String()
	expiresAt := time.Now().Add(sessionTTL)
	s.tokens[token] = expiresAt

	c.JSON(http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *Server) requireToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || !s.validToken(token) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) validToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.tokens[token]
	return ok && time.Now().Before(expiry)
}

func (s *Server) handleListCommands(c *gin.Context) {
	s.mu.Lock()
	list := make([]models.CommandDefinition, 0, len(s.commands))
	for _, def := range s.commands {
		list = append(list, def)
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return strings.ToLower(list[i].Name) < strings.ToLower(list[j].Name)
	})
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleSaveCommand(c *gin.Context) {
	var mutation models.CommandMutation
	if err := c.ShouldBindJSON(&mutation); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed command payload"})
		return
	}
	if strings.TrimSpace(mutation.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command name is required"})
		return
	}
	if strings.TrimSpace(mutation.Executable) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "executable path is required"})
		return
	}

	id := mutation.ID
	if pathID := c.Param("id"); pathID != "" {
		id = pathID
	}

	now := time.Now().UTC()
	s.mu.Lock()
	existing, found := s.commands[id]
	def := models.CommandDefinition{
		ID:             id,
		Name:           mutation.Name,
		Executable:     mutation.Executable,
		Description:    mutation.Description,
		Args:           mutation.Args,
		Tags:           mutation.Tags,
		AllowArguments: mutation.AllowArguments,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if found {
		def.CreatedAt = existing.CreatedAt
	}
	s.commands[def.ID] = def
	s.mu.Unlock()

	eventType := models.EventCommandCreated
	if found {
		eventType = models.EventCommandUpdated
	}
	_ = s.Emit(models.Event{Type: eventType, Command: &def})

	c.JSON(http.StatusOK, def)
}

func (s *Server) handleDeleteCommand(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	_, found := s.commands[id]
	delete(s.commands, id)
	s.mu.Unlock()

	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
		return
	}

	_ = s.Emit(models.Event{Type: models.EventCommandDeleted, DeletedID: id})
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExecute(c *gin.Context) {
	id := c.Param("id")

	var req models.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed execute payload"})
		return
	}

	s.mu.Lock()
	command, found := s.commands[id]
	if !found {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
		return
	}
	if len(req.Parameters) > 0 && !command.AllowArguments {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"error": "command does not allow runtime parameters"})
		return
	}

	parameters := req.Parameters
	if len(parameters) == 0 {
		parameters = command.Args
	}
	entry := models.ExecutionLog{
		ID:          uuid.New().String(),
		CommandID:   command.ID,
		CommandName: command.Name,
		RequestedBy: DefaultUsername,
		Status:      models.StatusPending,
		Parameters:  parameters,
		StartedAt:   time.Now().UTC(),
	}
	s.history = append([]models.ExecutionLog{entry}, s.history...)
	autoComplete := s.autoComplete
	s.mu.Unlock()

	_ = s.Emit(models.Event{Type: models.EventExecutionStarted, Execution: &entry})

	if autoComplete {
		go s.completeExecution(entry)
	}

	c.JSON(http.StatusOK, entry)
}

// completeExecution mimics the authority's executor: running, then a
// successful finish.
func (s *Server) completeExecution(entry models.ExecutionLog) {
	entry.Status = models.StatusRunning
	s.updateHistory(entry)
	_ = s.Emit(models.Event{Type: models.EventExecutionUpdated, Execution: &entry})

	finished := time.Now().UTC()
	entry.Status = models.StatusSuccess
	entry.Output = "done\n"
	entry.FinishedAt = &finished
	s.updateHistory(entry)
	_ = s.Emit(models.Event{Type: models.EventExecutionFinished, Execution: &entry})
}

func (s *Server) updateHistory(entry models.ExecutionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == entry.ID {
			s.history[i] = entry
			return
		}
	}
	s.history = append([]models.ExecutionLog{entry}, s.history...)
}

func (s *Server) handleHistory(c *gin.Context) {
	s.mu.Lock()
	if s.failHistory {
		s.mu.Unlock()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history unavailable"})
		return
	}
	list := make([]models.ExecutionLog, len(s.history))
	copy(list, s.history)
	s.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].StartedAt.After(list[j].StartedAt)
	})
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleEvents(c *gin.Context) {
	if !s.validToken(c.Query("token")) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	s.connsMu.Lock()
	s.conns[conn] = &sync.Mutex{}
	s.connsMu.Unlock()

	// Consume control frames and detect the close.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
		_ = conn.Close()
	}()
}
