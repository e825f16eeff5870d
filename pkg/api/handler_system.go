package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/supportbot/dispatcher/pkg/agentrunner"
)

// AgentInfo describes one registered agent for introspection.
type AgentInfo struct {
	AgentID      string   `json:"agent_id"`
	Capabilities []string `json:"capabilities"`
	ModelID      string   `json:"model_id"`
	Circuit      string   `json:"circuit"`
}

// DefaultToolsResponse is returned by GET /api/v1/system/default-tools: the
// pool of registered agents and their bound model/capabilities, for
// operator introspection (no tool descriptors are exposed here — those are
// internal to each agent's bound tool set).
type DefaultToolsResponse struct {
	Agents []AgentInfo `json:"agents"`
}

// systemDefaultToolsHandler handles GET /api/v1/system/default-tools.
func (s *Server) systemDefaultToolsHandler(c *gin.Context) {
	response := DefaultToolsResponse{Agents: []AgentInfo{}}

	for _, id := range s.agentRegistry.IDs() {
		info := AgentInfo{AgentID: id, Circuit: string(s.breakers.State(id).Status)}
		if runner, ok := s.runnerFor(id); ok {
			d := runner.Describe()
			info.Capabilities = d.Capabilities
			info.ModelID = d.ModelID
		}
		response.Agents = append(response.Agents, info)
	}

	c.JSON(http.StatusOK, response)
}

// runnerFor looks up a registered runner for introspection purposes. The
// supervisor owns the authoritative runner map; the server keeps its own
// reference solely so /system/default-tools can describe the pool without
// going through a turn.
func (s *Server) runnerFor(agentID string) (agentrunner.Runner, bool) {
	r, ok := s.runners[agentID]
	return r, ok
}
