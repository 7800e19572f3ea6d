// Package dashboard exposes the collected intelligence over a small
// JSON API: latest record with lookback fallback, date listing,
// per-date lookup, the aggregated window analysis and per-exchange
// history.
package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appconfig "cexintel/config"
	"cexintel/internal/intel"
	"cexintel/internal/score"
	"cexintel/internal/store"
	"cexintel/logger"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const maxSignificantAlerts = 10

// Server hosts the Gin-powered intelligence API.
type Server struct {
	cfg        appconfig.DashboardConfig
	store      *store.Store
	log        *logger.Entry
	httpServer *http.Server
	now        func() time.Time
}

// NewServer constructs a dashboard server when the dashboard feature is
// enabled. When the dashboard is disabled the returned server is nil.
func NewServer(cfg appconfig.DashboardConfig, st *store.Store) *Server {
	if !cfg.Enabled {
		return nil
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 30
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}

	return &Server{
		cfg:   cfg,
		store: st,
		log:   logger.GetLogger().WithComponent("dashboard"),
		now:   time.Now,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled
// or the server exits with an error.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}

	s.httpServer = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.router(),
	}
	s.log.WithFields(logger.Fields{"address": s.cfg.Address}).Info("dashboard listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// Address reports the network address the server listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	_ = router.SetTrustedProxies(nil)

	api := router.Group("/api")
	api.GET("/latest", s.handleLatest)
	api.GET("/dates", s.handleDates)
	api.GET("/intel/:date", s.handleDate)
	api.GET("/dashboard", s.handleDashboard)
	api.GET("/exchange/:name", s.handleExchange)

	return router
}

// handleLatest serves today's record, or the most recent one within the
// configured lookback when today has not been collected yet.
func (s *Server) handleLatest(c *gin.Context) {
	today := s.now().Format("2006-01-02")
	rec, ok, err := s.store.Latest(today, s.cfg.LookbackDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "No data available"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleDates(c *gin.Context) {
	dates, err := s.store.ListDates(s.cfg.WindowDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if dates == nil {
		dates = []string{}
	}
	c.JSON(http.StatusOK, dates)
}

func (s *Server) handleDate(c *gin.Context) {
	date := c.Param("date")
	if !datePattern.MatchString(date) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}
	rec, ok, err := s.store.Get(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Date not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type datedAlert struct {
	intel.Alert
	Date string `json:"date"`
}

type analysis struct {
	SignificantAlerts []datedAlert           `json:"significant_alerts"`
	ExchangeScores    map[string]score.Stats `json:"exchange_scores"`
	TotalDays         int                    `json:"total_days"`
	TotalAlerts       int                    `json:"total_alerts"`
}

// handleDashboard aggregates the trailing window: exchange scores over
// every record plus the historical seed, and the top critical/high
// alerts sorted by severity then date.
func (s *Server) handleDashboard(c *gin.Context) {
	result, err := s.analyzeWindow()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) analyzeWindow() (analysis, error) {
	records, err := s.store.Window(s.cfg.WindowDays)
	if err != nil {
		return analysis{}, err
	}
	seed, err := s.store.Seed()
	if err != nil {
		return analysis{}, err
	}

	result := analysis{
		SignificantAlerts: []datedAlert{},
		ExchangeScores:    score.Window(records, seed, nil),
		TotalDays:         len(records),
	}

	var significant []datedAlert
	for _, rec := range records {
		result.TotalAlerts += len(rec.Alerts)
		for _, a := range rec.Alerts {
			if a.Severity == intel.SeverityCritical || a.Severity == intel.SeverityHigh {
				significant = append(significant, datedAlert{Alert: a, Date: rec.Date})
			}
		}
	}
	sort.SliceStable(significant, func(i, j int) bool {
		ri, rj := significant[i].Severity.Rank(), significant[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return significant[i].Date < significant[j].Date
	})
	if len(significant) > maxSignificantAlerts {
		significant = significant[:maxSignificantAlerts]
	}
	result.SignificantAlerts = append(result.SignificantAlerts, significant...)
	return result, nil
}

type exchangeDay struct {
	Date   string        `json:"date"`
	Alerts []intel.Alert `json:"alerts"`
}

// handleExchange serves one exchange's alert history across the window
// together with its current score, matched case-insensitively, newest
// date first.
func (s *Server) handleExchange(c *gin.Context) {
	name := c.Param("name")
	records, err := s.store.Window(s.cfg.WindowDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	seed, err := s.store.Seed()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history := []exchangeDay{}
	total := 0
	for _, rec := range records {
		alerts := rec.AlertsFor(name)
		if len(alerts) == 0 {
			continue
		}
		history = append(history, exchangeDay{Date: rec.Date, Alerts: alerts})
		total += len(alerts)
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date > history[j].Date })

	stats, ok := lookupStats(score.Window(records, seed, nil), name)
	if !ok {
		stats = score.Compute(name, nil)
	}

	c.JSON(http.StatusOK, gin.H{
		"exchange":     name,
		"total_alerts": total,
		"score":        stats,
		"history":      history,
	})
}

func lookupStats(stats map[string]score.Stats, name string) (score.Stats, bool) {
	for ex, s := range stats {
		if strings.EqualFold(ex, name) {
			return s, true
		}
	}
	return score.Stats{}, false
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "0.0.0.0:8080"
	}
	if strings.HasPrefix(addr, ":") {
		return "0.0.0.0" + addr
	}
	if host, port, err := net.SplitHostPort(addr); err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(addr, "8080")
}
