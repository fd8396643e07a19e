package handlers

import (
	"io"
	"net/http"

	"cdi-tracker/internal/api/ipc"
	"cdi-tracker/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const maxPayloadBytes = 4 << 20

// IPCHandler exposes the channel bus over HTTP.
type IPCHandler struct {
	bus *ipc.Bus
}

func NewIPCHandler(bus *ipc.Bus) *IPCHandler {
	return &IPCHandler{bus: bus}
}

// Invoke handles POST /api/v1/ipc/:channel. The body is the channel
// payload and the reply is always the envelope.
func (h *IPCHandler) Invoke(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPayloadBytes))
	if err != nil {
		fail := apperr.Transport(err)
		c.JSON(http.StatusBadRequest, ipc.Fail(fail))
		return
	}

	resp, err := h.bus.Invoke(c.Request.Context(), c.Param("channel"), payload)
	c.JSON(apperr.HTTPStatus(err), resp)
}

// Channels handles GET /api/v1/ipc
func (h *IPCHandler) Channels(c *gin.Context) {
	c.JSON(http.StatusOK, ipc.OK(ipc.NewList(h.bus.Channels())))
}
