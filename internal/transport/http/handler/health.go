package handler

import (
	"context"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type ModelStatus interface {
	Loaded() bool
}

// DependencyCheck returns nil when the dependency is reachable.
type DependencyCheck func(ctx context.Context) error

type HealthHandler struct {
	appName   string
	env       string
	startedAt time.Time
	model     ModelStatus
	modelPath string
	checks    map[string]DependencyCheck
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type modelHealth struct {
	Loaded      bool   `json:"loaded"`
	Path        string `json:"path"`
	FilePresent bool   `json:"file_present"`
}

func NewHealthHandler(appName, env string, startedAt time.Time, model ModelStatus, modelPath string, checks map[string]DependencyCheck) *HealthHandler {
	return &HealthHandler{
		appName:   appName,
		env:       env,
		startedAt: startedAt,
		model:     model,
		modelPath: modelPath,
		checks:    checks,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mh := modelHealth{Path: h.modelPath}
	if h.model != nil {
		mh.Loaded = h.model.Loaded()
	}
	if info, err := os.Stat(h.modelPath); err == nil && !info.IsDir() {
		mh.FilePresent = true
	}
	allOK := mh.Loaded || mh.FilePresent

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make(map[string]dependencyStatus, len(names))
	for _, name := range names {
		status := dependencyStatus{OK: true}
		if err := h.checks[name](ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		deps[name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.appName,
		"env":          h.env,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"model":        mh,
		"dependencies": deps,
	})
}
