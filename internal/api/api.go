// Package api exposes the compiled results table over a small read-only
// JSON API. Writes only ever happen through the pipeline commands; the API
// is a window onto the snapshot database.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rvfranca/loteria-db/pkg/catalog"
	"github.com/rvfranca/loteria-db/pkg/lottodb"
)

const (
	defaultLimit = 5
	maxLimit     = 50
)

// Server holds the handler dependencies.
type Server struct {
	db    *lottodb.DB
	games *catalog.Catalog
	log   zerolog.Logger
}

// New creates a server over an open results database.
func New(db *lottodb.DB, games *catalog.Catalog, log zerolog.Logger) *Server {
	return &Server{db: db, games: games, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.Health)
	router.GET("/api/games", s.ListGames)
	router.GET("/api/draws", s.ListDraws)
	router.GET("/api/games/:game/numbers", s.GameNumbers)
	return router
}

// Health reports whether the results database is readable.
func (s *Server) Health(c *gin.Context) {
	rows, err := s.db.Count()
	if err != nil {
		s.log.Error().Err(err).Msg("health check query failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "rows": rows})
}

// ListGames returns the catalog games that have at least one compiled draw,
// by display name.
func (s *Server) ListGames(c *gin.Context) {
	keys, err := s.db.AvailableGames(s.games.Keys())
	if err != nil {
		s.log.Error().Err(err).Msg("list games query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		if display, ok := s.games.DisplayName(key); ok {
			names = append(names, display)
		}
	}
	c.JSON(http.StatusOK, gin.H{"games": names})
}

// ListDraws returns recent draws, newest first. The optional game query
// parameter narrows to one game; latest=true returns the single newest draw
// of every game instead.
func (s *Server) ListDraws(c *gin.Context) {
	limit, ok := s.limitParam(c)
	if !ok {
		return
	}

	query := lottodb.LatestQuery{
		Games: s.games.Keys(),
		Limit: limit,
	}
	if name := c.Query("game"); name != "" {
		key, ok := s.gameKey(c, name)
		if !ok {
			return
		}
		query.Game = key
	}
	if latest := c.Query("latest"); latest == "true" {
		query.DistinctGames = true
	}

	draws, err := s.db.LatestDraws(query)
	if err != nil {
		s.log.Error().Err(err).Msg("list draws query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draws": s.withDisplayNames(draws)})
}

// GameNumbers returns the recent winning numbers for one game, without the
// prize tier breakdown.
func (s *Server) GameNumbers(c *gin.Context) {
	key, ok := s.gameKey(c, c.Param("game"))
	if !ok {
		return
	}
	limit, ok := s.limitParam(c)
	if !ok {
		return
	}

	draws, err := s.db.WinningNumbers(key, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("winning numbers query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"draws": s.withDisplayNames(draws)})
}

// gameKey resolves a game from its display name or storage key. A miss
// writes the 404 response and returns false.
func (s *Server) gameKey(c *gin.Context, name string) (string, bool) {
	if key, ok := s.games.Key(name); ok {
		return key, true
	}
	if s.games.HasKey(name) {
		return name, true
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown game", "game": name})
	return "", false
}

// limitParam parses the limit query parameter, applying the default and the
// cap. An unparseable value writes the 400 response and returns false.
func (s *Server) limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}

func (s *Server) withDisplayNames(draws []lottodb.DrawSummary) []lottodb.DrawSummary {
	for i := range draws {
		if display, ok := s.games.DisplayName(draws[i].GameName); ok {
			draws[i].GameName = display
		}
	}
	if draws == nil {
		draws = []lottodb.DrawSummary{}
	}
	return draws
}
