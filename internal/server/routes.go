package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/theirongolddev/snapdash/internal/chart"
	"github.com/theirongolddev/snapdash/internal/metrics"
	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/pipeline"
	"github.com/theirongolddev/snapdash/internal/session"
	"github.com/theirongolddev/snapdash/internal/source"
	"github.com/theirongolddev/snapdash/internal/store"
)

var (
	errEmptyBody = errors.New("empty payload")
	errTooLarge  = errors.New("payload too large")
)

func (s *Service) initRouter() {
	s.router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok\n") })
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	s.router.GET("/v1/status", func(c *gin.Context) { c.JSON(http.StatusOK, s.status()) })
	s.router.GET("/v1/events", func(c *gin.Context) { c.JSON(http.StatusOK, s.recentEvents("")) })

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	v1 := s.router.Group("/v1/sessions")
	v1.POST("", s.handleCreateSession)
	v1.GET("/:id", s.handleGetSession)
	v1.DELETE("/:id", s.handleDeleteSession)
	v1.PUT("/:id/payload", s.handlePutPayload)
	v1.PUT("/:id/params", s.handlePutParams)
	v1.GET("/:id/dashboard", s.handleDashboard)
	v1.GET("/:id/chart/:file", s.handleChart)
	v1.GET("/:id/events", s.handleEvents)
	v1.GET("/:id/stream", s.handleStream)
}

// writeError maps domain errors onto status codes with a {"error"} body.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidID):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chart.ErrUnknownColumn):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, source.ErrNotJSON), errors.Is(err, errEmptyBody):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

type sessionView struct {
	ID         string            `json:"id"`
	Params     model.TrendParams `json:"params"`
	HasPayload bool              `json:"has_payload"`
	Source     string            `json:"source,omitempty"`
	Snapshots  int               `json:"snapshots"`
	Dropped    int               `json:"dropped"`
	Months     int               `json:"months"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	UploadedAt *time.Time        `json:"uploaded_at,omitempty"`
}

func (s *Service) handleCreateSession(c *gin.Context) {
	sess := session.New(s.cfg.DefaultParams)
	if err := s.sessions.Put(c.Request.Context(), sess); err != nil {
		writeError(c, err)
		return
	}
	s.metrics.SessionsCreatedTotal.Inc()
	s.mu.Lock()
	s.sessionsCreated++
	s.mu.Unlock()

	log.Debug().Str("session", sess.ID).Msg("session created")
	c.JSON(http.StatusCreated, gin.H{"id": sess.ID, "params": sess.Params})
}

func (s *Service) loadSession(c *gin.Context) (session.Session, bool) {
	sess, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return session.Session{}, false
	}
	return sess, true
}

func (s *Service) handleGetSession(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	view := sessionView{
		ID:         sess.ID,
		Params:     sess.Params,
		HasPayload: sess.HasPayload(),
		Source:     sess.Source,
		CreatedAt:  sess.CreatedAt,
		UpdatedAt:  sess.UpdatedAt,
	}
	if sess.HasPayload() {
		d := s.dashboard(sess)
		view.Snapshots = d.Total
		view.Dropped = d.Dropped
		view.Months = len(d.Records)
		uploaded := sess.UploadedAt
		view.UploadedAt = &uploaded
	}
	c.JSON(http.StatusOK, view)
}

func (s *Service) handleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := session.ValidateID(id); err != nil {
		writeError(c, err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	s.publishEvent(Event{Type: EventDeleted, SessionID: id})
	c.Status(http.StatusNoContent)
}

func (s *Service) handlePutPayload(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	raw, name, err := s.readUpload(c)
	if err != nil {
		reason := metrics.ReasonBadBody
		if errors.Is(err, errTooLarge) {
			reason = metrics.ReasonTooLarge
		}
		s.recordUploadError(reason, err)
		writeError(c, err)
		return
	}

	doc, err := source.Decode(raw)
	if err != nil {
		s.recordUploadError(metrics.ReasonBadBody, err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	loaded := pipeline.LoadBytes(doc)
	if loaded.NotJSON > 0 {
		s.recordUploadError(metrics.ReasonNotJSON, source.ErrNotJSON)
		writeError(c, fmt.Errorf("no data: %w", source.ErrNotJSON))
		return
	}

	uploadedAt := time.Now().UTC()
	sess, err = s.sessions.Update(c.Request.Context(), sess.ID, func(cur *session.Session) error {
		cur.Payload = doc
		cur.Source = name
		cur.UploadedAt = uploadedAt
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	start := time.Now()
	d := loaded.Build(s.cfg.Tracked, sess.Params)
	s.metrics.ObserveRecompute(start)

	s.metrics.UploadsTotal.Inc()
	s.metrics.DroppedSnapshotsTotal.Add(float64(loaded.Dropped))
	s.mu.Lock()
	s.uploads++
	s.lastUploadAt = sess.UploadedAt
	s.mu.Unlock()

	if s.history != nil {
		fp := pipeline.ReductionKey(loaded.Fingerprint, s.cfg.Tracked)
		u := store.UploadFromRecords(name, fp, d.Records, d.Total, d.Dropped)
		if err := s.history.RecordUpload(u); err != nil {
			log.Warn().Err(err).Msg("recording upload history")
		}
	}

	log.Info().Str("session", sess.ID).Str("source", name).
		Int("snapshots", loaded.Total).Int("dropped", loaded.Dropped).Int("months", len(d.Records)).
		Msg("payload uploaded")
	s.publishEvent(Event{Type: EventPayload, SessionID: sess.ID, Months: len(d.Records), Dropped: d.Dropped})
	respondDashboard(c, d)
}

// readUpload returns the request body, or the "file" field of a multipart form.
func (s *Service) readUpload(c *gin.Context) ([]byte, string, error) {
	limit := s.cfg.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	name := c.DefaultQuery("name", "upload")
	var data []byte
	var err error

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		fh, ferr := c.FormFile("file")
		if ferr != nil {
			return nil, "", classifyReadError(ferr)
		}
		if fh.Size > limit {
			return nil, "", errTooLarge
		}
		f, ferr := fh.Open()
		if ferr != nil {
			return nil, "", ferr
		}
		defer func() { _ = f.Close() }()
		data, err = io.ReadAll(f)
		name = fh.Filename
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		return nil, "", classifyReadError(err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", errEmptyBody
	}
	return data, name, nil
}

func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errTooLarge
	}
	return fmt.Errorf("reading upload: %w", err)
}

type paramsRequest struct {
	FuturePeriods *int  `json:"num_future_periods"`
	Degree        *int  `json:"trendline_degree"`
	Enabled       *bool `json:"show_trendline"`
}

func (s *Service) handlePutParams(c *gin.Context) {
	if _, ok := s.loadSession(c); !ok {
		return
	}

	var req paramsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid params: " + err.Error()})
		return
	}

	sess, err := s.sessions.Update(c.Request.Context(), c.Param("id"), func(cur *session.Session) error {
		if req.FuturePeriods != nil {
			cur.Params.FuturePeriods = *req.FuturePeriods
		}
		if req.Degree != nil {
			cur.Params.Degree = *req.Degree
		}
		if req.Enabled != nil {
			cur.Params.Enabled = *req.Enabled
		}
		cur.Params = cur.Params.Normalize()
		return nil
	})
	if err != nil {
		writeError(c, err)
		return
	}

	d := s.dashboard(sess)
	s.publishEvent(Event{Type: EventParams, SessionID: sess.ID, Months: len(d.Records), Dropped: d.Dropped})
	respondDashboard(c, d)
}

func (s *Service) handleDashboard(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}
	respondDashboard(c, s.dashboard(sess))
}

func (s *Service) handleChart(c *gin.Context) {
	file := c.Param("file")
	column, isPNG := strings.CutSuffix(file, ".png")
	if !isPNG {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "charts are served as <column>.png"})
		return
	}
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	d := s.dashboard(sess)
	opts := chart.DefaultOptions()
	if w, h := queryInt(c, "width"), queryInt(c, "height"); w > 0 && h > 0 {
		opts = chart.Options{Width: min(w, 4096), Height: min(h, 4096)}
	}

	var buf bytes.Buffer
	err := chart.Render(&buf, d, column, opts)
	switch {
	case errors.Is(err, chart.ErrNoData):
		c.Status(http.StatusNoContent)
	case err != nil:
		writeError(c, err)
	default:
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

func (s *Service) handleEvents(c *gin.Context) {
	id := c.Param("id")
	if err := session.ValidateID(id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.recentEvents(id))
}

// handleStream pushes the session's events as server-sent events.
func (s *Service) handleStream(c *gin.Context) {
	sess, ok := s.loadSession(c)
	if !ok {
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ch := make(chan Event, 16)
	subID := s.addSubscriber(sess.ID, ch)
	defer s.removeSubscriber(subID)

	d := s.dashboard(sess)
	writeSSE(c.Writer, Event{Type: "snapshot", SessionID: sess.ID, Timestamp: time.Now(), Months: len(d.Records), Dropped: d.Dropped})
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			writeSSE(c.Writer, ev)
			c.Writer.Flush()
		}
	}
}

// dashboard recomputes the session's view from its payload and params.
func (s *Service) dashboard(sess session.Session) model.Dashboard {
	start := time.Now()
	defer s.metrics.ObserveRecompute(start)

	if !sess.HasPayload() {
		return pipeline.BuildFromRecords(nil, s.cfg.Tracked, sess.Params)
	}
	return pipeline.LoadBytes(sess.Payload).Build(s.cfg.Tracked, sess.Params)
}

func respondDashboard(c *gin.Context, d model.Dashboard) {
	if d.Records == nil {
		d.Records = []model.MonthlyRecord{}
	}
	if d.Series == nil {
		d.Series = []model.ProjectedSeries{}
	}
	c.JSON(http.StatusOK, d)
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
