package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fweiler/OpenSupplyCore/internal/api/websocket"
	"github.com/fweiler/OpenSupplyCore/internal/storage"
	"github.com/fweiler/OpenSupplyCore/internal/vds"
	"github.com/fweiler/OpenSupplyCore/internal/vme"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ReadParameterRequest struct {
	Parameter string  `json:"parameter" binding:"required"`
	Channel   int     `json:"channel"`
	Mask      *uint32 `json:"mask"`
}

type WriteParameterRequest struct {
	Parameter string  `json:"parameter" binding:"required"`
	Channel   int     `json:"channel"`
	Value     float64 `json:"value"`
	Mask      *uint32 `json:"mask"`
}

// GET /api/v1/modules
func (s *Server) listModules(c *gin.Context) {
	modules := s.lm.ModuleManager().ListModules()

	response := make([]gin.H, 0, len(modules))
	for _, module := range modules {
		response = append(response, gin.H{
			"id":           module.ID,
			"name":         module.Name,
			"base_address": fmt.Sprintf("0x%04x", module.Base),
			"channels":     vds.NumChannels,
			"connected":    s.lm.ModuleManager().Connected(module.ID),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"modules": response,
		"count":   len(response),
	})
}

// GET /api/v1/modules/parameters
func (s *Server) listParameters(c *gin.Context) {
	params := vds.Params()

	response := make([]gin.H, 0, len(params))
	for _, p := range params {
		info := p.Info()

		scope := "module"
		if p.ChannelScoped() {
			scope = "channel"
		}

		kind := "digital"
		if info.Kind == vds.KindAnalog {
			kind = "analog"
		}

		entry := gin.H{
			"name":      info.Name,
			"kind":      kind,
			"scope":     scope,
			"read_only": p.ReadOnly(),
		}
		if info.Unit != "" {
			entry["unit"] = info.Unit
		}

		response = append(response, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"parameters": response,
		"count":      len(response),
	})
}

// GET /api/v1/modules/:name
func (s *Server) getModule(c *gin.Context) {
	module, exists := s.lm.ModuleManager().GetModuleByName(c.Param("name"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           module.ID,
		"name":         module.Name,
		"base_address": fmt.Sprintf("0x%04x", module.Base),
		"channels":     vds.NumChannels,
		"connected":    s.lm.ModuleManager().Connected(module.ID),
	})
}

// POST /api/v1/modules/:name/read
func (s *Server) readParameter(c *gin.Context) {
	module, exists := s.lm.ModuleManager().GetModuleByName(c.Param("name"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}

	var req ReadParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	param, ok := vds.ParamByName(req.Parameter)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown parameter", "parameter": req.Parameter})
		return
	}

	mask := uint32(0xffffffff)
	if req.Mask != nil {
		mask = *req.Mask
	}

	if param.Kind() == vds.KindDigital {
		value, at, err := module.ReadDigital(c.Request.Context(), param, req.Channel, mask)
		if err != nil {
			s.transactionError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"parameter": req.Parameter,
			"channel":   req.Channel,
			"value":     value,
			"mask":      fmt.Sprintf("0x%08x", mask),
			"timestamp": at,
		})
		return
	}

	value, at, err := module.ReadAnalog(c.Request.Context(), param, req.Channel)
	if err != nil {
		s.transactionError(c, err)
		return
	}

	resp := gin.H{
		"parameter": req.Parameter,
		"channel":   req.Channel,
		"value":     value,
		"timestamp": at,
	}
	if unit := param.Info().Unit; unit != "" {
		resp["unit"] = unit
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/v1/modules/:name/write
func (s *Server) writeParameter(c *gin.Context) {
	module, exists := s.lm.ModuleManager().GetModuleByName(c.Param("name"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}

	var req WriteParameterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	param, ok := vds.ParamByName(req.Parameter)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown parameter", "parameter": req.Parameter})
		return
	}

	if param.Kind() == vds.KindDigital {
		mask := uint32(0xffffffff)
		if req.Mask != nil {
			mask = *req.Mask
		}
		if err := module.WriteDigital(c.Request.Context(), param, req.Channel, uint32(req.Value), mask); err != nil {
			s.transactionError(c, err)
			return
		}
	} else {
		if err := module.WriteAnalog(c.Request.Context(), param, req.Channel, req.Value); err != nil {
			s.transactionError(c, err)
			return
		}
	}

	s.recordWriteEvent(c, module.Name, req)

	c.JSON(http.StatusOK, gin.H{
		"parameter": req.Parameter,
		"channel":   req.Channel,
		"value":     req.Value,
	})
}

// recordWriteEvent keeps an audit trail of operator writes and pushes the
// event to WebSocket subscribers. Failures are logged, not surfaced; the
// write itself already succeeded.
func (s *Server) recordWriteEvent(c *gin.Context, moduleName string, req WriteParameterRequest) {
	username, _ := c.Get("username")
	detail := fmt.Sprintf("value=%v by %v", req.Value, username)

	event := storage.ModuleEvent{
		Module:    moduleName,
		Kind:      "parameter_write",
		Parameter: req.Parameter,
		Channel:   req.Channel,
		Detail:    detail,
	}

	if err := s.lm.Storage().InsertEvent(c.Request.Context(), event); err != nil {
		s.logger.Error("Failed to record write event",
			zap.String("module", moduleName),
			zap.String("parameter", req.Parameter),
			zap.Error(err))
	}

	s.wsHub.Broadcast(websocket.NewModuleEventMessage(moduleName, "parameter_write", detail))
}

// GET /api/v1/modules/:name/snapshot
func (s *Server) getSnapshot(c *gin.Context) {
	module, exists := s.lm.ModuleManager().GetModuleByName(c.Param("name"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "module not found"})
		return
	}

	entries := make([]gin.H, 0)
	for _, p := range vds.Params() {
		channels := 1
		if p.ChannelScoped() {
			channels = vds.NumChannels
		}

		for ch := 0; ch < channels; ch++ {
			var entry gin.H
			if p.Kind() == vds.KindDigital {
				value, at, ok := module.LastDigital(p, ch, 0xffffffff)
				if !ok {
					continue
				}
				entry = gin.H{"parameter": p.String(), "channel": ch, "value": value, "timestamp": at}
			} else {
				value, at, ok := module.LastAnalog(p, ch)
				if !ok {
					continue
				}
				entry = gin.H{"parameter": p.String(), "channel": ch, "value": value, "timestamp": at}
			}
			entries = append(entries, entry)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"module":  module.Name,
		"entries": entries,
		"count":   len(entries),
	})
}

// GET /api/v1/modules/:name/readings?parameter=&channel=&limit=
func (s *Server) getReadings(c *gin.Context) {
	name := c.Param("name")

	parameter := c.Query("parameter")
	if parameter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "parameter query is required"})
		return
	}
	if _, ok := vds.ParamByName(parameter); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown parameter", "parameter": parameter})
		return
	}

	channel, _ := strconv.Atoi(c.DefaultQuery("channel", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	readings, err := s.lm.Storage().RecentReadings(c.Request.Context(), name, parameter, channel, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query readings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"module":    name,
		"parameter": parameter,
		"channel":   channel,
		"readings":  readings,
		"count":     len(readings),
	})
}

// GET /api/v1/modules/:name/events?limit=
func (s *Server) getEvents(c *gin.Context) {
	name := c.Param("name")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	events, err := s.lm.Storage().RecentEvents(c.Request.Context(), name, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"module": name,
		"events": events,
		"count":  len(events),
	})
}

// transactionError maps a failed register transaction to a status code. An
// unknown (parameter, channel) pair is a client error; a bus fault is a bad
// gateway since the bridge sits between us and the crate.
func (s *Server) transactionError(c *gin.Context, err error) {
	var busErr *vme.BusError

	switch {
	case errors.Is(err, vds.ErrUnknownParameter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &busErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
