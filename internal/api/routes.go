package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/experiment"
	"github.com/dialtone-ai/greenroom/internal/repair"
	"github.com/dialtone-ai/greenroom/internal/revision"
	"github.com/dialtone-ai/greenroom/internal/suggestion"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	db := opts.DB

	router.GET("/api/agents", handleAgentList(db))
	router.POST("/api/agents", handleAgentCreate(opts))
	router.GET("/api/agents/:id", handleAgentShow(db))

	router.GET("/api/agents/:id/versions", handleVersionHistory(db))
	router.GET("/api/versions/:id", handleVersionShow(db))
	router.POST("/api/agents/:id/rollback", handleRollback(opts))

	router.POST("/api/agents/:id/feedback", handleFeedback(opts))
	router.PUT("/api/agents/:id/script", handleScriptEdit(opts))

	router.GET("/api/agents/:id/suggestions", handleSuggestionList(db))
	router.POST("/api/agents/:id/suggestions", handleSuggestionCreate(db))
	router.POST("/api/agents/:id/suggestions/:sid/accept", handleSuggestionAccept(opts))
	router.POST("/api/agents/:id/suggestions/:sid/reject", handleSuggestionReject(db))
	router.POST("/api/agents/:id/suggestions/reject-all", handleSuggestionRejectAll(db))

	router.POST("/api/agents/:id/outcomes", handleOutcomeAdd(db))
	router.GET("/api/agents/:id/experiments", handleExperimentList(db))
	router.POST("/api/agents/:id/experiments", handleExperimentStart(db))
	router.GET("/api/experiments/:id", handleExperimentShow(db))
	router.POST("/api/experiments/:id/evaluate", handleExperimentEvaluate(opts))

	router.GET("/api/agents/:id/repair", handleRepairInspect(db))
	router.POST("/api/agents/:id/repair", handleRepairRun(opts))

	router.GET("/api/events", handleSSE(db))
}

func handleAgentList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		agents, err := agent.List(db)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"agents": agents})
	}
}

func handleAgentCreate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name          string `json:"name" binding:"required"`
			Business      string `json:"business"`
			RuntimeHandle string `json:"runtime_handle"`
			Bootstrap     bool   `json:"bootstrap"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		a, err := agent.Create(opts.DB, agent.CreateOpts{
			Name:          req.Name,
			Business:      req.Business,
			RuntimeHandle: req.RuntimeHandle,
		})
		if err != nil {
			fail(c, err)
			return
		}
		if req.Bootstrap {
			if opts.Generator == nil {
				c.JSON(http.StatusCreated, gin.H{
					"agent":   a,
					"warning": "no generator configured; agent created without a script",
				})
				return
			}
			v, err := revision.Bootstrap(c.Request.Context(), opts.DB, opts.Generator, a.ID)
			if err != nil {
				fail(c, err)
				return
			}
			c.JSON(http.StatusCreated, gin.H{"agent": a, "version": v})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"agent": a})
	}
}

func handleAgentShow(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := agent.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		resp := gin.H{"agent": a}
		if a.CurrentVersionID != nil {
			if v, err := version.Get(db, *a.CurrentVersionID); err == nil {
				resp["current_version"] = v
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleVersionHistory(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := agent.Get(db, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		vs, err := version.History(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"versions": vs})
	}
}

func handleVersionShow(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := version.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

func handleRollback(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			VersionID string `json:"version_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := version.Rollback(opts.DB, c.Param("id"), req.VersionID)
		if err != nil {
			fail(c, err)
			return
		}
		syncCurrent(c, opts, c.Param("id"), v.CompiledText)
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

func handleFeedback(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.Generator == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no generator configured"})
			return
		}
		var req struct {
			Feedback string `json:"feedback" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := revision.Apply(c.Request.Context(), opts.DB, opts.Generator,
			c.Param("id"), req.Feedback, revision.ApplyOpts{Syncer: opts.Syncer})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

func handleScriptEdit(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
			Note string `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		v, err := revision.ApplyManual(opts.DB, c.Param("id"), req.Text, req.Note, opts.Syncer)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

func handleSuggestionList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := agent.Get(db, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		ss, err := suggestion.List(db, c.Param("id"), c.Query("status"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": ss})
	}
}

func handleSuggestionCreate(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Changes   []suggestion.Change `json:"changes" binding:"required"`
			Source    string              `json:"source"`
			Rationale string              `json:"rationale"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		s, err := suggestion.Create(db, c.Param("id"), req.Changes, suggestion.CreateOpts{
			Source:    req.Source,
			Rationale: req.Rationale,
		})
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"suggestion": s})
	}
}

func handleSuggestionAccept(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := suggestion.Accept(c.Request.Context(), opts.DB, opts.Syncer,
			c.Param("id"), c.Param("sid"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	}
}

func handleSuggestionReject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := suggestion.Reject(db, c.Param("id"), c.Param("sid")); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "rejected"})
	}
}

func handleSuggestionRejectAll(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := agent.Get(db, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		n, err := suggestion.RejectAll(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rejected": n})
	}
}

func handleOutcomeAdd(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			VersionID   string  `json:"version_id" binding:"required"`
			Sentiment   float64 `json:"sentiment"`
			Converted   bool    `json:"converted"`
			DurationSec float64 `json:"duration_sec"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if err := experiment.RecordOutcome(db, c.Param("id"), req.VersionID,
			req.Sentiment, req.Converted, req.DurationSec); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
	}
}

func handleExperimentList(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := agent.Get(db, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		es, err := experiment.List(db, c.Param("id"), c.Query("status"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"experiments": es})
	}
}

func handleExperimentStart(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			ChallengerVersionID string `json:"challenger_version_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		e, err := experiment.Start(db, c.Param("id"), req.ChallengerVersionID)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"experiment": e})
	}
}

func handleExperimentShow(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := experiment.Get(db, c.Param("id"))
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"experiment": e})
	}
}

func handleExperimentEvaluate(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := experiment.Evaluate(opts.DB, c.Param("id"),
			experiment.EvaluateOpts{MinSamples: opts.Experiment.MinSamples})
		if err != nil {
			fail(c, err)
			return
		}
		// The challenger's script goes live on promotion.
		if e.PromotedVersionID != nil {
			if v, err := version.Get(opts.DB, *e.PromotedVersionID); err == nil {
				syncCurrent(c, opts, e.AgentID, v.CompiledText)
			}
		}
		c.JSON(http.StatusOK, gin.H{"experiment": e})
	}
}

func handleRepairInspect(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := agent.Get(db, c.Param("id")); err != nil {
			fail(c, err)
			return
		}
		reports, err := repair.Inspect(db, c.Param("id"), nil)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reports": reports})
	}
}

func handleRepairRun(opts StartOpts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DryRun bool `json:"dry_run"`
		}
		// Body optional; default is a live run.
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err)
				return
			}
		}
		res, err := repair.Run(opts.DB, c.Param("id"), repair.RunOpts{DryRun: req.DryRun})
		if err != nil {
			fail(c, err)
			return
		}
		if !req.DryRun {
			if v, err := version.Get(opts.DB, res.CurrentVersionID); err == nil {
				syncCurrent(c, opts, c.Param("id"), v.CompiledText)
			}
		}
		c.JSON(http.StatusOK, gin.H{"result": res})
	}
}

// syncCurrent pushes compiled text to the runtime best-effort. Failures
// are logged; the persisted version is the source of truth.
func syncCurrent(c *gin.Context, opts StartOpts, agentID, compiledText string) {
	a, err := agent.Get(opts.DB, agentID)
	if err != nil || a.RuntimeHandle == "" {
		return
	}
	if err := opts.Syncer.PushScript(c.Request.Context(), a.RuntimeHandle, compiledText); err != nil {
		log.Printf("api: runtime sync for %s: %v", agentID, err)
	}
}
