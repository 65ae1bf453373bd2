package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ujjwalredd/Axiomeer/pkg/catalog"
	"github.com/ujjwalredd/Axiomeer/pkg/history"
	"github.com/ujjwalredd/Axiomeer/pkg/marketplace"
	"github.com/ujjwalredd/Axiomeer/pkg/ratelimit"
)

// appBody is the flat listing form accepted by POST and PUT /apps.
type appBody struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	Capabilities       []string       `json:"capabilities"`
	Freshness          string         `json:"freshness"`
	CitationsSupported *bool          `json:"citations_supported"`
	LatencyEstMs       *int           `json:"latency_est_ms"`
	CostEstUSD         *float64       `json:"cost_est_usd"`
	ExecutorType       string         `json:"executor_type"`
	ExecutorURL        string         `json:"executor_url"`
	HTTPMethod         string         `json:"http_method"`
	InputSchema        map[string]any `json:"input_schema"`
}

func (b appBody) entry() (catalog.Entry, error) {
	return catalog.Manifest{
		ID:                 b.ID,
		Name:               b.Name,
		Description:        b.Description,
		Capabilities:       b.Capabilities,
		Freshness:          b.Freshness,
		CitationsSupported: b.CitationsSupported,
		LatencyEstMs:       b.LatencyEstMs,
		CostEstUSD:         b.CostEstUSD,
		ExecutorType:       b.ExecutorType,
		ExecutorURL:        b.ExecutorURL,
		HTTPMethod:         b.HTTPMethod,
		InputSchema:        b.InputSchema,
	}.Entry()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listApps(c *gin.Context) {
	apps, err := s.svc.Apps(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if apps == nil {
		apps = []catalog.Entry{}
	}
	c.JSON(http.StatusOK, apps)
}

func (s *Server) getApp(c *gin.Context) {
	app, err := s.svc.App(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) createApp(c *gin.Context) {
	entry, ok := bindApp(c)
	if !ok {
		return
	}
	app, err := s.svc.CreateApp(c.Request.Context(), entry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (s *Server) upsertApp(c *gin.Context) {
	entry, ok := bindApp(c)
	if !ok {
		return
	}
	if entry.ID != c.Param("id") {
		badRequest(c, "Path app_id must match body id")
		return
	}
	app, err := s.svc.UpsertApp(c.Request.Context(), c.Param("id"), entry)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func bindApp(c *gin.Context) (catalog.Entry, bool) {
	var body appBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return catalog.Entry{}, false
	}
	entry, err := body.entry()
	if err != nil {
		badRequest(c, err.Error())
		return catalog.Entry{}, false
	}
	return entry, true
}

func (s *Server) shop(c *gin.Context) {
	var req marketplace.ShopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	if req.ClientID == "" {
		req.ClientID = c.GetHeader(ratelimit.ClientHeader)
	}
	resp, err := s.svc.Shop(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) execute(c *gin.Context) {
	var req marketplace.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	if req.ClientID == "" {
		req.ClientID = c.GetHeader(ratelimit.ClientHeader)
	}
	resp, err := s.svc.Execute(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listRuns(c *gin.Context) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	runs, err := s.svc.Runs(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "run id must be a positive integer")
		return
	}
	run, err := s.svc.Run(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) listTrust(c *gin.Context) {
	snaps, err := s.svc.Trust(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snaps)
}

func (s *Server) appTrust(c *gin.Context) {
	snap, err := s.svc.AppTrust(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type messageBody struct {
	ClientID string       `json:"client_id"`
	Role     history.Role `json:"role"`
	Content  string       `json:"content"`
}

func (s *Server) postMessage(c *gin.Context) {
	var body messageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body: "+err.Error())
		return
	}
	msg, err := s.svc.PostMessage(c.Request.Context(), history.Message{
		ClientID: body.ClientID,
		Role:     body.Role,
		Content:  body.Content,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// history serves both /history/:client_id and /history?client_id=.
func (s *Server) history(c *gin.Context) {
	clientID := strings.TrimSpace(c.Param("client_id"))
	if clientID == "" {
		clientID = strings.TrimSpace(c.Query("client_id"))
	}
	limit, ok := intQuery(c, "limit")
	if !ok {
		return
	}
	msgs, err := s.svc.History(c.Request.Context(), clientID, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// intQuery parses an optional non-negative integer query parameter. Zero
// means unset.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
