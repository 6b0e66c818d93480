package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vela-games/lfsserver/services"
)

// TransferHandler streams objects of backends that are served by this
// server itself.
type TransferHandler struct {
	transfer        services.ObjectTransfer
	requestIDHeader string
}

func NewTransferHandler(transfer services.ObjectTransfer, requestIDHeader string) *TransferHandler {
	return &TransferHandler{
		transfer:        transfer,
		requestIDHeader: requestIDHeader,
	}
}

func (t TransferHandler) Get(c *gin.Context) {
	r, size, err := t.transfer.Download(c.Request.Context(), c.Param("oid"))
	if err != nil {
		AbortWithError(c, RequestID(c, t.requestIDHeader), err)
		return
	}
	defer r.Close()

	c.DataFromReader(http.StatusOK, size, "application/octet-stream", r, nil)
}

func (t TransferHandler) Put(c *gin.Context) {
	if err := t.transfer.Upload(c.Request.Context(), c.Param("oid"), c.Request.Body); err != nil {
		AbortWithError(c, RequestID(c, t.requestIDHeader), err)
		return
	}

	c.Status(http.StatusAccepted)
}
