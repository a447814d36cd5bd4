package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"polyterm/news"
	"polyterm/polymarket"
)

// upstreamError maps outbound client failures: missing resources stay 404,
// timeouts become 504, everything else 502.
func upstreamError(c *gin.Context, err error, upstream string) {
	if errors.Is(err, polymarket.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusBadGateway
	if errors.Is(err, context.DeadlineExceeded) {
		status = http.StatusGatewayTimeout
	}
	var ue *news.UpstreamError
	if errors.As(err, &ue) && (ue.StatusCode == http.StatusUnauthorized || ue.StatusCode == http.StatusTooManyRequests) {
		status = ue.StatusCode
	}
	c.JSON(status, gin.H{"error": upstream + " request failed", "details": err.Error()})
}

func boolQuery(c *gin.Context, name string) *bool {
	v := c.Query(name)
	if v == "" {
		return nil
	}
	b := v == "true" || v == "1"
	return &b
}

func (s *Server) handleProxyMarkets(c *gin.Context) {
	if s.deps.Gamma == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gamma client is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	q := polymarket.MarketQuery{
		Limit:  limit,
		Offset: offset,
		Active: boolQuery(c, "active"),
		Closed: boolQuery(c, "closed"),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
		Order:  c.DefaultQuery("order", "volume24hr"),
	}
	markets, err := s.deps.Gamma.ListMarkets(c.Request.Context(), q)
	if err != nil {
		upstreamError(c, err, "Gamma")
		return
	}
	c.JSON(http.StatusOK, markets)
}

func (s *Server) handleProxyMarket(c *gin.Context) {
	slug := c.Param("slug")

	// warm path: the market pool already holds trending + watched markets
	var m *polymarket.Market
	if s.deps.Markets != nil {
		m = s.deps.Markets.Market(slug)
	}
	if m == nil {
		if s.deps.Gamma == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gamma client is not configured"})
			return
		}
		fetched, err := s.deps.Gamma.GetMarketBySlug(c.Request.Context(), slug)
		if err != nil {
			upstreamError(c, err, "Gamma")
			return
		}
		m = fetched
	}

	// closed markets are gone from the terminal's perspective when the
	// client insists on live ones
	if m.Closed && c.Query("active_only") == "true" {
		c.JSON(http.StatusGone, gin.H{"error": "Market is closed"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) handleProxyEvents(c *gin.Context) {
	if s.deps.Gamma == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gamma client is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	q := polymarket.MarketQuery{
		Limit:  limit,
		Offset: offset,
		Active: boolQuery(c, "active"),
		Closed: boolQuery(c, "closed"),
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
	}
	events, err := s.deps.Gamma.ListEvents(c.Request.Context(), q)
	if err != nil {
		upstreamError(c, err, "Gamma")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) handleProxyEvent(c *gin.Context) {
	if s.deps.Gamma == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Gamma client is not configured"})
		return
	}
	ev, err := s.deps.Gamma.GetEvent(c.Request.Context(), c.Param("slug"))
	if err != nil {
		upstreamError(c, err, "Gamma")
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (s *Server) handleProxyBook(c *gin.Context) {
	if s.deps.CLOB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLOB client is not configured"})
		return
	}
	book, err := s.deps.CLOB.GetBook(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		upstreamError(c, err, "CLOB")
		return
	}
	c.JSON(http.StatusOK, book)
}

func (s *Server) handleProxyPrice(c *gin.Context) {
	if s.deps.CLOB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLOB client is not configured"})
		return
	}
	tokenID := c.Param("tokenId")

	mid, err := s.deps.CLOB.GetMidpoint(c.Request.Context(), tokenID)
	if err != nil {
		upstreamError(c, err, "CLOB")
		return
	}
	spread, err := s.deps.CLOB.GetSpread(c.Request.Context(), tokenID)
	if err != nil {
		upstreamError(c, err, "CLOB")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "mid": mid, "spread": spread})
}

func (s *Server) handleProxyMidpoint(c *gin.Context) {
	if s.deps.CLOB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLOB client is not configured"})
		return
	}
	tokenID := c.Param("tokenId")
	mid, err := s.deps.CLOB.GetMidpoint(c.Request.Context(), tokenID)
	if err != nil {
		upstreamError(c, err, "CLOB")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "mid": mid})
}

func (s *Server) handleProxySpread(c *gin.Context) {
	if s.deps.CLOB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "CLOB client is not configured"})
		return
	}
	tokenID := c.Param("tokenId")
	spread, err := s.deps.CLOB.GetSpread(c.Request.Context(), tokenID)
	if err != nil {
		upstreamError(c, err, "CLOB")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token_id": tokenID, "spread": spread})
}

func (s *Server) handleProxyTrades(c *gin.Context) {
	if s.deps.Data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Data API client is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	trades, err := s.deps.Data.Trades(c.Request.Context(), c.Query("condition_id"), c.Query("user"), limit)
	if err != nil {
		upstreamError(c, err, "Data API")
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) handleProxyPositions(c *gin.Context) {
	if s.deps.Data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Data API client is not configured"})
		return
	}
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user query parameter is required"})
		return
	}
	threshold, _ := strconv.ParseFloat(c.DefaultQuery("size_threshold", "1"), 64)
	positions, err := s.deps.Data.Positions(c.Request.Context(), user, threshold)
	if err != nil {
		upstreamError(c, err, "Data API")
		return
	}
	c.JSON(http.StatusOK, positions)
}

func (s *Server) handleProxyHolders(c *gin.Context) {
	if s.deps.Data == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Data API client is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	holders, err := s.deps.Data.Holders(c.Request.Context(), c.Param("conditionId"), limit)
	if err != nil {
		upstreamError(c, err, "Data API")
		return
	}
	c.JSON(http.StatusOK, holders)
}

// --- news proxies ---

func (s *Server) handleNewsSearch(c *gin.Context) {
	if s.deps.News == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "News client is not configured"})
		return
	}
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword query parameter is required"})
		return
	}
	lang := c.DefaultQuery("lang", "eng")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	count, _ := strconv.Atoi(c.DefaultQuery("count", "20"))

	articles, err := s.deps.News.SearchArticles(c.Request.Context(), keyword, lang, page, count)
	if err != nil {
		upstreamError(c, err, "NewsAPI.ai")
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (s *Server) handleAdjacentNews(c *gin.Context) {
	if s.deps.Adjacent == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Adjacent News client is not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if q := c.Query("q"); q != "" {
		markets, err := s.deps.Adjacent.SearchMarkets(c.Request.Context(), q, limit)
		if err != nil {
			upstreamError(c, err, "Adjacent News")
			return
		}
		c.JSON(http.StatusOK, markets)
		return
	}

	question := c.Query("question")
	if question == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q or question query parameter is required"})
		return
	}
	articles, err := s.deps.Adjacent.NewsForMarket(c.Request.Context(), question, limit)
	if err != nil {
		upstreamError(c, err, "Adjacent News")
		return
	}
	c.JSON(http.StatusOK, articles)
}
