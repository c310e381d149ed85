package bridge

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"mime"
	"os"
	"path/filepath"
	"strings"

	domainBroadcast "github.com/AzielCF/az-relay/domains/broadcast"
	pkgError "github.com/AzielCF/az-relay/pkg/error"
	"github.com/AzielCF/az-relay/pkg/utils"
	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

type mediaSource struct {
	data     string // public URL or raw base64
	mimeType string
	fileName string
}

// mediaSource passes foreign URLs through and inlines files served from our
// own /statics, which the bridge usually cannot reach.
func (c *Client) mediaSource(media domainBroadcast.MediaRef) (mediaSource, error) {
	localPath, ok := utils.LocalPathForPublicURL(media.URL, c.opts.AppBaseURL, c.opts.BasePath, c.opts.StaticsDir)
	if !ok {
		return mediaSource{data: media.URL}, nil
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return mediaSource{}, pkgError.ValidationError(fmt.Sprintf("media file not found: %s", filepath.Base(localPath)))
	}
	if info.Size() > c.opts.InlineMaxBytes {
		return mediaSource{}, pkgError.ValidationError(fmt.Sprintf("media file %s is larger than %d bytes", filepath.Base(localPath), c.opts.InlineMaxBytes))
	}

	raw, err := os.ReadFile(localPath)
	if err != nil {
		return mediaSource{}, fmt.Errorf("failed to read media file: %w", err)
	}

	src := mediaSource{
		mimeType: mime.TypeByExtension(strings.ToLower(filepath.Ext(localPath))),
		fileName: filepath.Base(localPath),
	}

	if media.Kind == domainBroadcast.MediaImage && c.opts.InlineMaxEdge > 0 {
		if resized, ok := downscale(raw, c.opts.InlineMaxEdge); ok {
			raw = resized
			src.mimeType = "image/jpeg"
			src.fileName = strings.TrimSuffix(src.fileName, filepath.Ext(src.fileName)) + ".jpg"
		}
	}

	src.data = base64.StdEncoding.EncodeToString(raw)
	return src, nil
}

// downscale re-encodes images whose longest edge exceeds maxEdge as JPEG.
// ok is false when the image is already small enough or cannot be decoded.
func downscale(raw []byte, maxEdge int) ([]byte, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil || (cfg.Width <= maxEdge && cfg.Height <= maxEdge) {
		return nil, false
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		logrus.WithError(err).Debug("[BRIDGE] Could not decode image for downscaling")
		return nil, false
	}
	img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}
