package rest

import (
	"fmt"
	"path/filepath"
	"strings"

	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

var allowedMediaExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true,
	".mp4": true, ".3gp": true,
	".mp3": true, ".ogg": true, ".opus": true, ".m4a": true, ".aac": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".txt": true, ".csv": true, ".zip": true,
}

// Media stores uploads under the statics tree so broadcasts can reference them
// by public URL.
type Media struct {
	BaseURL    string
	BasePath   string
	StaticsDir string
	MediaDir   string
	MaxBytes   int64
}

type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

func InitRestMedia(app fiber.Router, media Media) Media {
	app.Post("/media", media.Upload)
	return media
}

func (handler Media) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		utils.PanicIfNeeded(pkgError.ValidationError("file: is required"))
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedMediaExtensions[ext] {
		utils.PanicIfNeeded(pkgError.ValidationError(fmt.Sprintf("file: extension %q is not allowed", ext)))
	}
	if handler.MaxBytes > 0 && file.Size > handler.MaxBytes {
		utils.PanicIfNeeded(pkgError.ValidationError(fmt.Sprintf("file: %s exceeds the %s limit",
			humanize.Bytes(uint64(file.Size)), humanize.Bytes(uint64(handler.MaxBytes)))))
	}

	utils.PanicIfNeeded(utils.CreateFolder(handler.MediaDir))
	dest := filepath.Join(handler.MediaDir, uuid.NewString()+ext)
	if err := fasthttp.SaveMultipartFile(file, dest); err != nil {
		utils.PanicIfNeeded(pkgError.InternalServerError("failed to store upload: " + err.Error()))
	}

	url, err := utils.PublicURLForStatic(handler.BaseURL, handler.BasePath, handler.StaticsDir, dest)
	utils.PanicIfNeeded(err)

	logrus.WithFields(logrus.Fields{"file": dest, "size": file.Size}).Info("[MEDIA] Upload stored")

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Media uploaded",
		Results: UploadResponse{
			URL:      url,
			FileName: file.Filename,
			MimeType: file.Header.Get("Content-Type"),
			Size:     file.Size,
		},
	})
}
