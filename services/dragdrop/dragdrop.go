package dragdrop

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"epgbridge/models"
)

// MaxDropDistance is the cap, in CSS pixels, on the nearest-card heuristic.
// Drops farther than this from every card centroid resolve to no target.
const MaxDropDistance = 200

// Point is a drop location reported by the dashboard.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CardRect is the layout rectangle of a channel card at drop time.
type CardRect struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (c CardRect) centroid() (float64, float64) {
	return c.X + c.Width/2, c.Y + c.Height/2
}

// ResolveDropTarget resolves a drop location to the nearest card by
// Euclidean centroid distance. Exact pixel-accurate targeting is unreliable
// on touch layouts, so a near miss within MaxDropDistance still counts.
func ResolveDropTarget(p Point, cards []CardRect) (string, bool) {
	bestID := ""
	bestDist := math.Inf(1)

	for _, card := range cards {
		cx, cy := card.centroid()
		dist := math.Hypot(p.X-cx, p.Y-cy)
		if dist < bestDist {
			bestDist = dist
			bestID = card.ID
		}
	}

	if bestID == "" || bestDist > MaxDropDistance {
		return "", false
	}
	return bestID, true
}

// Controller holds the drag transaction state: the EPG channel the admin
// picked up, captured at drag start and cleared unconditionally at drag end
// regardless of outcome. At most one transaction exists at a time.
type Controller struct {
	mu      sync.Mutex
	pending *models.PendingMapping
}

// NewController creates an idle controller.
func NewController() *Controller {
	return &Controller{}
}

// Begin starts a drag transaction for an EPG channel, replacing any previous
// one.
func (c *Controller) Begin(epgID, displayName, techName string) models.PendingMapping {
	c.mu.Lock()
	defer c.mu.Unlock()

	pm := models.PendingMapping{
		Token:          uuid.NewString(),
		EPGID:          epgID,
		EPGDisplayName: displayName,
		EPGTechName:    techName,
		StartedAt:      time.Now().UTC(),
	}
	c.pending = &pm
	return pm
}

// Pending returns the active drag transaction, if any.
func (c *Controller) Pending() (models.PendingMapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return models.PendingMapping{}, false
	}
	return *c.pending, true
}

// Cancel clears the drag transaction. Calling it with nothing pending is a
// no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
}

// Drop resolves a drop location against the reported card layout. A drop
// with no active transaction is a no-op; a drop with no nearby card logs a
// warning and resolves to nothing.
func (c *Controller) Drop(p Point, cards []CardRect) (string, bool) {
	if _, ok := c.Pending(); !ok {
		return "", false
	}

	target, ok := ResolveDropTarget(p, cards)
	if !ok {
		log.Printf("[dragdrop] drop at (%.0f, %.0f) resolved to no target within %dpx", p.X, p.Y, MaxDropDistance)
		return "", false
	}
	return target, true
}
