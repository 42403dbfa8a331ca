package routes

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/doc"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"

	"github.com/labstack/echo/v4"
)

const maxUploadSize = 20 << 20

// SummarizeUploadHandler summarizes an uploaded .txt, .md or .docx file
// sent as multipart/form-data in the "file" field. The other request
// fields are read from the form.
func SummarizeUploadHandler(c echo.Context) error {
	data := new(summarizeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: "Invalid request body",
		})
	}

	upload, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: "Missing file",
		})
	}
	if upload.Size > maxUploadSize {
		return c.JSON(http.StatusRequestEntityTooLarge, summarizeResponse{
			Message: "File too large",
		})
	}

	f, err := upload.Open()
	if err != nil {
		logger.Error("Failed to open upload", "file", upload.Filename, "err", err)
		return c.JSON(http.StatusInternalServerError, summarizeResponse{
			Message: "Internal server error",
		})
	}
	defer f.Close()

	var content []byte
	switch strings.ToLower(filepath.Ext(upload.Filename)) {
	case ".docx":
		content, err = doc.TextFromReader(f)
	case ".txt", ".md", "":
		content, err = io.ReadAll(io.LimitReader(f, maxUploadSize))
	default:
		return c.JSON(http.StatusUnsupportedMediaType, summarizeResponse{
			Message: "Unsupported file type",
		})
	}
	if err != nil {
		logger.Error("Failed to read upload", "file", upload.Filename, "err", err)
		return c.JSON(http.StatusUnprocessableEntity, summarizeResponse{
			Message: "Failed to read file",
		})
	}

	text := util.CleanText(string(content))
	if text == "" {
		return c.JSON(http.StatusUnprocessableEntity, summarizeResponse{
			Message: "File contains no text",
		})
	}
	return summarize(c, data.message(""), text, data.IncludeGraph)
}
