package handler

import (
	"errors"
	"io"

	"pdfqa/internal/catalog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// fail writes a catalog error response. The catalog logs the entry and cause.
func fail(c *gin.Context, logger *zap.Logger, status int, key catalog.Key, cause error) {
	e := catalog.Report(logger, key, cause)
	c.JSON(status, e.Body())
}

func success(c *gin.Context, status int, message string, data gin.H) {
	body := gin.H{"message": message}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(status, body)
}

// bindKey maps a JSON binding error to the catalog: a missing body and a
// body that does not validate are reported differently.
func bindKey(err error) catalog.Key {
	if errors.Is(err, io.EOF) {
		return catalog.BadRequestBodyNotFound
	}
	return catalog.BadRequestBodyNotValid
}
