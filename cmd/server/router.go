package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Skufu/DiabetView/internal/aiclient"
	"github.com/Skufu/DiabetView/internal/observability"
	"github.com/Skufu/DiabetView/internal/orchestrator"
	"github.com/Skufu/DiabetView/internal/projection"
	"github.com/Skufu/DiabetView/internal/vision"
)

type routerDeps struct {
	logger    *zap.Logger
	metrics   *observability.Metrics
	projector aiclient.Projector
	sessions  *orchestrator.Registry
	checks    map[string]HealthChecker
}

type projectionRequest struct {
	Profile      projection.PatientProfile `json:"profile"`
	Intervention projection.Intervention   `json:"intervention"`
}

func (r projectionRequest) inputs() orchestrator.Inputs {
	return orchestrator.Inputs{Profile: r.Profile, Intervention: r.Intervention}
}

type projectionResponse struct {
	projection.Projection
	Summary          projection.Summary `json:"summary"`
	BMI              float64            `json:"bmi"`
	TargetBMI        float64            `json:"targetBmi"`
	ImprovementScore float64            `json:"improvementScore"`
	Beneficial       bool               `json:"beneficial"`
}

type visionRequest struct {
	Profile      projection.PatientProfile `json:"profile"`
	Intervention projection.Intervention   `json:"intervention"`
	Mode         vision.Mode               `json:"mode" binding:"required,oneof=current counterfactual"`
}

type sessionResponse struct {
	ID string `json:"id"`
	orchestrator.Snapshot
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fieldLabels = map[string]string{
	"age":                   "age",
	"weight":                "weight",
	"height":                "height",
	"fastingGlucose":        "fasting glucose",
	"hba1c":                 "HbA1c",
	"systolicBP":            "systolic blood pressure",
	"diabetesDurationYears": "diabetes duration",
	"gender":                "gender",
	"targetWeight":          "target weight",
	"targetGlucose":         "target glucose",
	"mode":                  "mode",
}

var registerFieldNames sync.Once

// useJSONFieldNames makes validation errors name fields the way clients
// send them.
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func setupRouter(deps routerDeps, staticRoot string) *gin.Engine {
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}
	useJSONFieldNames()

	router := gin.New()
	router.Use(
		requestLogger(deps.logger),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
		deps.metrics.Middleware(),
	)

	router.Static("/static", staticRoot)
	router.StaticFile("/", filepath.Join(staticRoot, "index.html"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", readyHandler(deps.checks))
	router.GET("/metrics", gin.WrapH(deps.metrics.Handler()))

	api := router.Group("/api")

	api.POST("/projections", func(c *gin.Context) {
		var req projectionRequest
		if !bindInputs(c, &req) {
			return
		}
		if deps.projector == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "projector unavailable"})
			return
		}
		p := deps.projector.Project(c.Request.Context(), req.Profile, req.Intervention)
		c.JSON(http.StatusOK, newProjectionResponse(p, req))
	})

	api.POST("/projections/heuristic", func(c *gin.Context) {
		var req projectionRequest
		if !bindInputs(c, &req) {
			return
		}
		p := projection.Projection{
			SimulationResult: projection.Project(req.Profile, req.Intervention),
			Source:           projection.SourceHeuristic,
		}
		deps.metrics.Projection(string(projection.SourceHeuristic), "direct")
		c.JSON(http.StatusOK, newProjectionResponse(p, req))
	})

	api.POST("/vision", func(c *gin.Context) {
		var req visionRequest
		if !bindInputs(c, &req) {
			return
		}
		c.JSON(http.StatusOK, vision.Simulate(req.Mode, req.Profile, req.Intervention))
	})

	sessions := api.Group("/sessions")
	sessions.Use(func(c *gin.Context) {
		if deps.sessions == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "sessions unavailable"})
			return
		}
		c.Next()
	})

	sessions.POST("", func(c *gin.Context) {
		var req projectionRequest
		hasInputs := true
		if err := c.ShouldBindJSON(&req); errors.Is(err, io.EOF) {
			hasInputs = false
		} else if err != nil {
			respondBindError(c, err)
			return
		}

		s := deps.sessions.Create()
		snap := s.Snapshot()
		if hasInputs {
			snap = s.Edit(req.inputs())
		}
		c.JSON(http.StatusCreated, sessionResponse{ID: s.ID(), Snapshot: snap})
	})

	sessions.GET("/:id", withSession(deps.sessions, func(c *gin.Context, s *orchestrator.Session) {
		c.JSON(http.StatusOK, sessionResponse{ID: s.ID(), Snapshot: s.Snapshot()})
	}))

	sessions.PUT("/:id/inputs", withSession(deps.sessions, func(c *gin.Context, s *orchestrator.Session) {
		var req projectionRequest
		if !bindInputs(c, &req) {
			return
		}
		c.JSON(http.StatusAccepted, sessionResponse{ID: s.ID(), Snapshot: s.Edit(req.inputs())})
	}))

	sessions.GET("/:id/events", withSession(deps.sessions, func(c *gin.Context, s *orchestrator.Session) {
		updates, cancel := s.Subscribe()
		defer cancel()

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.Stream(func(w io.Writer) bool {
			select {
			case snap, ok := <-updates:
				if !ok {
					return false
				}
				c.SSEvent("snapshot", sessionResponse{ID: s.ID(), Snapshot: snap})
				return !snap.Closed
			case <-c.Request.Context().Done():
				return false
			}
		})
	}))

	sessions.DELETE("/:id", func(c *gin.Context) {
		if err := deps.sessions.Delete(c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})

	return router
}

func newProjectionResponse(p projection.Projection, req projectionRequest) projectionResponse {
	return projectionResponse{
		Projection:       p,
		Summary:          projection.Summarize(p.SimulationResult),
		BMI:              projection.BMI(req.Profile.Weight, req.Profile.Height),
		TargetBMI:        projection.BMI(req.Intervention.TargetWeight, req.Profile.Height),
		ImprovementScore: projection.ImprovementScore(req.Profile, req.Intervention),
		Beneficial:       projection.Beneficial(req.Profile, req.Intervention),
	}
}

func withSession(registry *orchestrator.Registry, next func(*gin.Context, *orchestrator.Session)) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := registry.Get(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		next(c, s)
	}
}

func readyHandler(checks map[string]HealthChecker) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if len(names) == 0 {
			body["db"] = "disabled"
			c.JSON(http.StatusOK, body)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		for _, name := range names {
			if err := checks[name].Ping(ctx); err != nil {
				body[name] = fmt.Sprintf("unhealthy: %v", err)
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			body[name] = "ok"
		}
		c.JSON(status, body)
	}
}

// bindInputs writes the error response itself and reports whether the
// handler should continue.
func bindInputs(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}
	respondBindError(c, err)
	return false
}

func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	var invalid validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "payload too large"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "validation_failed",
			"fields": describeValidation(invalid),
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	}
}

func describeValidation(errs validator.ValidationErrors) []fieldError {
	out := make([]fieldError, 0, len(errs))
	for _, fe := range errs {
		label, ok := fieldLabels[fe.Field()]
		if !ok {
			label = fe.Field()
		}

		var msg string
		switch fe.Tag() {
		case "gt":
			msg = fmt.Sprintf("%s must be greater than %s", label, fe.Param())
		case "gte":
			msg = fmt.Sprintf("%s must be at least %s", label, fe.Param())
		case "lte":
			msg = fmt.Sprintf("%s must be at most %s", label, fe.Param())
		case "oneof":
			msg = fmt.Sprintf("%s must be one of %s", label, fe.Param())
		case "required":
			msg = fmt.Sprintf("%s is required", label)
		default:
			msg = fmt.Sprintf("%s is invalid", label)
		}
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		out = append(out, fieldError{Field: field, Message: msg})
	}
	return out
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
