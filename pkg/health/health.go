package health

import (
	"net/http"
	"sync"
	"time"

	"chat-companion/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Status represents the health status of a component
type Status string

const (
	// StatusUp indicates a component is working correctly
	StatusUp Status = "up"
	// StatusDown indicates a component is not working
	StatusDown Status = "down"
)

// Component represents a system component that can be health-checked
type Component struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	LastChecked time.Time `json:"last_checked"`
}

// Check represents a health check function
type Check func() error

// Checker manages health checks for the system
type Checker struct {
	checks map[string]Check
	mu     sync.RWMutex
	log    *logger.Logger
}

// NewChecker creates a new health checker
func NewChecker(log *logger.Logger) *Checker {
	return &Checker{
		checks: make(map[string]Check),
		log:    log,
	}
}

// Register adds a named health check
func (c *Checker) Register(name string, check Check) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Run executes all registered checks and reports per-component status
func (c *Checker) Run() (bool, []Component) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	healthy := true
	components := make([]Component, 0, len(c.checks))
	for name, check := range c.checks {
		comp := Component{Name: name, Status: StatusUp, LastChecked: time.Now()}
		if err := check(); err != nil {
			comp.Status = StatusDown
			comp.Error = err.Error()
			healthy = false
			c.log.Warn("health check failed", "component", name, "error", err.Error())
		}
		components = append(components, comp)
	}
	return healthy, components
}

// Handler returns a gin handler serving the health report
func (c *Checker) Handler() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		healthy, components := c.Run()
		status := http.StatusOK
		overall := StatusUp
		if !healthy {
			status = http.StatusServiceUnavailable
			overall = StatusDown
		}
		ctx.JSON(status, gin.H{"status": overall, "components": components})
	}
}
