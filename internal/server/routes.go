package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mgpai22/letra/internal/audio"
	"github.com/mgpai22/letra/internal/subtitle"
	"github.com/mgpai22/letra/internal/synchronize"
	"github.com/mgpai22/letra/internal/transcribe"
	"github.com/mgpai22/letra/internal/workflow"
)

const srtContentType = "application/x-subrip; charset=utf-8"

type fileView struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
}

type sessionView struct {
	ID      string           `json:"id"`
	State   workflow.Phase   `json:"state"`
	File    *fileView        `json:"file,omitempty"`
	Lines   []string         `json:"lines,omitempty"`
	Blocks  []subtitle.Block `json:"blocks,omitempty"`
	SRT     string           `json:"srt,omitempty"`
	Error   string           `json:"error,omitempty"`
	Created time.Time        `json:"createdAt"`
}

func viewOf(sess *session) sessionView {
	st := sess.machine.Snapshot()
	view := sessionView{
		ID:      sess.id,
		State:   st.Phase(),
		Lines:   workflow.LinesOf(st),
		Created: sess.created,
	}
	if asset := workflow.AssetOf(st); asset != nil {
		view.File = &fileView{Name: asset.Name, MIMEType: asset.MIMEType, Size: asset.Size()}
	}
	if err := workflow.ErrOf(st); err != nil {
		view.Error = workflow.Describe(err)
	}
	if done, ok := st.(workflow.Done); ok {
		view.Blocks = done.Blocks
		view.SRT = done.SRT
	}
	return view
}

func (s *Server) registerRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)

		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)

		api.PUT("/sessions/:id/audio", s.handleReplaceAudio)
		api.GET("/sessions/:id/audio", s.handleServeAudio)
		api.POST("/sessions/:id/transcribe", s.handleTranscribe)
		api.PUT("/sessions/:id/lines", s.handleEditLines)
		api.POST("/sessions/:id/sync", s.handleSync)
		api.GET("/sessions/:id/srt", s.handleDownloadSRT)
		api.POST("/sessions/:id/reset", s.handleReset)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "sessions": s.sessions.len()})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	asset, ok := s.readUpload(c)
	if !ok {
		return
	}

	m := s.opts.NewMachine()
	if err := m.SelectAsset(asset); err != nil {
		_ = asset.Close()
		respondError(c, err)
		return
	}

	sess := s.sessions.create(m)
	m.OnTransition(s.transitionLogger(sess.id))
	s.logger.Infow("Session created",
		"session", sess.id,
		"file", asset.Name,
		"size_bytes", asset.Size(),
	)
	c.JSON(http.StatusCreated, viewOf(sess))
}

func (s *Server) transitionLogger(id string) func(from, to workflow.State) {
	log := s.logger.With("session", id)
	return func(from, to workflow.State) {
		log.Debugw("session state changed", "from", from.Phase(), "to", to.Phase())
	}
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	if !s.sessions.remove(c.Param("id")) {
		respondMessage(c, http.StatusNotFound, "session not found")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReplaceAudio(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	asset, ok := s.readUpload(c)
	if !ok {
		return
	}
	if err := sess.machine.SelectAsset(asset); err != nil {
		_ = asset.Close()
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleServeAudio(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	asset := workflow.AssetOf(sess.machine.Snapshot())
	if asset == nil {
		respondMessage(c, http.StatusNotFound, "no audio selected")
		return
	}
	c.Header("Content-Type", asset.MIMEType)
	http.ServeContent(c.Writer, c.Request, asset.Name, sess.created, bytes.NewReader(asset.Data))
}

func (s *Server) handleTranscribe(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if _, err := sess.machine.StartTranscription(ctx); err != nil {
		respondStateError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleEditLines(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	var payload struct {
		Lines *[]string `json:"lines"`
		Text  *string   `json:"text"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondMessage(c, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	var err error
	switch {
	case payload.Lines != nil && payload.Text != nil:
		respondMessage(c, http.StatusBadRequest, `provide either "lines" or "text", not both`)
		return
	case payload.Lines != nil:
		err = s.applyLines(sess.machine, *payload.Lines)
	case payload.Text != nil:
		err = s.applyLines(sess.machine, workflow.SplitText(*payload.Text))
	default:
		respondMessage(c, http.StatusBadRequest, `body must contain "lines" or "text"`)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

// applyLines edits the lines, or imports them when the session has not been
// transcribed.
func (s *Server) applyLines(m *workflow.Machine, lines []string) error {
	if _, idle := m.Snapshot().(workflow.Idle); idle {
		return m.ImportLines(lines)
	}
	return m.EditLines(lines)
}

func (s *Server) handleSync(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	ctx, cancel := s.requestContext(c)
	defer cancel()

	if _, err := sess.machine.StartSync(ctx); err != nil {
		respondStateError(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) handleDownloadSRT(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}

	done, ok := sess.machine.Snapshot().(workflow.Done)
	if !ok {
		respondMessage(c, http.StatusConflict, "subtitles are not ready")
		return
	}

	name := subtitle.OutputName(done.Asset.Name, subtitle.FormatSRT)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, srtContentType, []byte(done.SRT))
}

func (s *Server) handleReset(c *gin.Context) {
	sess, ok := s.lookup(c)
	if !ok {
		return
	}
	if err := sess.machine.StartOver(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, viewOf(sess))
}

func (s *Server) lookup(c *gin.Context) (*session, bool) {
	sess, ok := s.sessions.get(c.Param("id"))
	if !ok {
		respondMessage(c, http.StatusNotFound, "session not found")
		return nil, false
	}
	return sess, true
}

// readUpload reads the multipart "audio" field into an asset.
func (s *Server) readUpload(c *gin.Context) (*audio.Asset, bool) {
	header, err := c.FormFile("audio")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondMessage(c, http.StatusRequestEntityTooLarge, "audio file is too large")
			return nil, false
		}
		respondMessage(c, http.StatusBadRequest, `multipart field "audio" is required`)
		return nil, false
	}

	file, err := header.Open()
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "failed to read upload")
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "failed to read upload")
		return nil, false
	}

	asset, err := audio.FromBytes(c.Request.Context(), header.Filename, data, s.opts.LoadOptions(header.Filename))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return asset, true
}

func (s *Server) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), s.opts.RequestTimeout)
}

// statusFor maps machine and AI errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, workflow.ErrNoAsset), errors.Is(err, workflow.ErrNoLyrics):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrGuardViolation):
		return http.StatusConflict
	case errors.Is(err, audio.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, audio.ErrEmpty):
		return http.StatusBadRequest
	case errors.Is(err, transcribe.ErrEmpty), errors.Is(err, synchronize.ErrEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, transcribe.ErrFailed), errors.Is(err, synchronize.ErrFailed),
		errors.Is(err, transcribe.ErrFormatInvalid), errors.Is(err, synchronize.ErrFormatInvalid):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	respondMessage(c, statusFor(err), workflow.Describe(err))
}

// respondStateError reports a failed request along with the state the
// machine settled in, so clients can keep their lines.
func respondStateError(c *gin.Context, sess *session, err error) {
	view := viewOf(sess)
	if view.Error == "" {
		view.Error = workflow.Describe(err)
	}
	c.JSON(statusFor(err), view)
}

func respondMessage(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": strings.TrimSpace(message)})
}
