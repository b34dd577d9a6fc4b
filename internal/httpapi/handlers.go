package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/retorded/chordkv/internal/peer"
)

// handleGetStorage serves GET /storage/:key, forwarding to the owning
// peer over HTTP when this peer does not hold the key.
func (s *Server) handleGetStorage(c *gin.Context) {
	key := c.Param("key")

	value, ok, err := s.peer.Lookup(key)
	if err != nil {
		s.log.Warn("storage get failed", zap.String("key", key), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", value)
}

// handlePutStorage serves PUT /storage/:key, forwarding to the owning
// peer over HTTP when this peer does not hold the key.
func (s *Server) handlePutStorage(c *gin.Context) {
	key := c.Param("key")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusInternalServerError, "failed to read body")
		return
	}

	if err := s.peer.Put(key, body); err != nil {
		s.log.Warn("storage put failed", zap.String("key", key), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

// handleNodeInfo serves GET /node-info.
func (s *Server) handleNodeInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.peer.Info())
}

// handleJoin serves GET /join?nprime=<http_addr>, splicing this peer
// into the ring nprime already belongs to. nprime is an HTTP address,
// not the RPC control-plane address Join needs, so it is resolved by
// fetching nprime's own /node-info first and joining against the
// chord_address it reports.
func (s *Server) handleJoin(c *gin.Context) {
	nprime := c.Query("nprime")
	if nprime == "" {
		c.String(http.StatusBadRequest, "missing nprime query parameter")
		return
	}

	info, err := s.fetchNodeInfo(nprime)
	if err != nil {
		s.log.Warn("join: failed to fetch node-info from nprime", zap.String("nprime", nprime), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.peer.Join(info.ChordAddress); err != nil {
		s.log.Warn("join failed", zap.String("nprime", nprime), zap.String("chord_address", info.ChordAddress), zap.Error(err))
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Status(http.StatusOK)
}

// fetchNodeInfo retrieves and decodes the /node-info payload served by
// the peer at httpAddr.
func (s *Server) fetchNodeInfo(httpAddr string) (peer.NodeInfo, error) {
	url := fmt.Sprintf("http://%s/node-info", httpAddr)
	resp, err := s.ringClient.Get(url)
	if err != nil {
		return peer.NodeInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return peer.NodeInfo{}, fmt.Errorf("httpapi: node-info request to %s returned status %d", httpAddr, resp.StatusCode)
	}

	var info peer.NodeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return peer.NodeInfo{}, fmt.Errorf("httpapi: decoding node-info from %s: %w", httpAddr, err)
	}
	return info, nil
}

// handleLeave serves GET /leave, splicing this peer back out of the
// ring and returning immediately — the neighbor notifications happen
// in the background.
func (s *Server) handleLeave(c *gin.Context) {
	s.peer.Leave()
	c.Status(http.StatusOK)
}

// handleSimCrash serves GET /sim-crash.
func (s *Server) handleSimCrash(c *gin.Context) {
	s.peer.SimCrash()
	c.Status(http.StatusOK)
}

// handleSimRecover serves GET /sim-recover. Reachable even while
// crashed — it is the only route crashMiddleware lets through.
func (s *Server) handleSimRecover(c *gin.Context) {
	s.peer.SimRecover()
	c.Status(http.StatusOK)
}

// handleRing serves GET /ring: a recursive HTTP traversal around the
// successor chain, supplementing node-info with a full membership
// listing. origin anchors the traversal so it stops after one full
// trip around the ring instead of looping forever.
func (s *Server) handleRing(c *gin.Context) {
	self := s.peer.Self()
	origin := c.Query("origin")
	if origin == "" {
		origin = self.HTTPAddr
	}

	nodes := []string{self.HTTPAddr}

	succ := s.peer.Successor()
	if succ.HTTPAddr != origin && succ.HTTPAddr != self.HTTPAddr {
		forwardURL := fmt.Sprintf("http://%s/ring?origin=%s", succ.HTTPAddr, origin)
		resp, err := s.ringClient.Get(forwardURL)
		if err != nil {
			s.log.Warn("ring: failed to contact successor", zap.String("successor", succ.HTTPAddr), zap.Error(err))
		} else {
			defer resp.Body.Close()
			var rest []string
			if err := json.NewDecoder(resp.Body).Decode(&rest); err == nil {
				nodes = append(nodes, rest...)
			}
		}
	}

	c.JSON(http.StatusOK, nodes)
}
