package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/sirupsen/logrus"
)

const (
	maxUploadSizeBytes int64 = 5 * 1024 * 1024
	imageMaxSide             = 1600
	thumbnailMaxSide         = 400
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type uploadSignRequest struct {
	FileName string `json:"fileName" binding:"required"`
	MimeType string `json:"mimeType" binding:"required"`
	Size     int64  `json:"size" binding:"required,gt=0"`
	Entity   string `json:"entity"`
}

type uploadCompleteRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

type uploadImageResponse struct {
	ObjectKey          string `json:"objectKey"`
	ImageURL           string `json:"imageUrl"`
	ThumbnailObjectKey string `json:"thumbnailObjectKey"`
	ThumbnailURL       string `json:"thumbnailUrl"`
}

// processedImage holds the resized original and its thumbnail, encoded like the source.
type processedImage struct {
	Full        []byte
	Thumbnail   []byte
	ContentType string
}

// processImage fits the image into imageMaxSide and renders a thumbnailMaxSide thumbnail.
func processImage(data []byte, mimeType string) (*processedImage, error) {
	if !imageMimeTypes[mimeType] {
		return nil, utils.ValidationError("unsupported image type %q: use jpeg or png", mimeType)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, utils.ValidationError("file is not a readable image")
	}
	format := imaging.JPEG
	if mimeType == "image/png" {
		format = imaging.PNG
	}
	full, err := encodeImage(imaging.Fit(img, imageMaxSide, imageMaxSide, imaging.Lanczos), format)
	if err != nil {
		return nil, err
	}
	thumb, err := encodeImage(imaging.Fit(img, thumbnailMaxSide, thumbnailMaxSide, imaging.Lanczos), format)
	if err != nil {
		return nil, err
	}
	return &processedImage{Full: full, Thumbnail: thumb, ContentType: mimeType}, nil
}

func encodeImage(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(85)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// uploadImageHandler accepts a multipart "image" field, resizes it and stores both renditions.
func uploadImageHandler(c *gin.Context) {
	logger := config.GetLogger()
	requestID := requestIDFromHeaders(c)
	if !utils.GCSEnabled() {
		respondError(c, utils.ValidationError("image storage is not configured"))
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, utils.ValidationError("image file is required"))
		return
	}
	if file.Size > maxUploadSizeBytes {
		respondError(c, utils.ValidationError("file size exceeds 5MB limit"))
		return
	}
	src, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadSizeBytes+1))
	if err != nil {
		respondError(c, err)
		return
	}
	if int64(len(data)) > maxUploadSizeBytes {
		respondError(c, utils.ValidationError("file size exceeds 5MB limit"))
		return
	}

	mimeType := http.DetectContentType(data)
	processed, err := processImage(data, mimeType)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	objectKey := newObjectKey(ctx, c.PostForm("entity"), file.Filename, mimeType)
	thumbKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, objectKey, processed.Full, processed.ContentType); err != nil {
		logUploadError(logger, err, requestID)
		respondError(c, err)
		return
	}
	if err := utils.UploadBytesToGCS(ctx, thumbKey, processed.Thumbnail, processed.ContentType); err != nil {
		logUploadError(logger, err, requestID)
		if delErr := utils.DeleteObjectFromGCS(ctx, objectKey); delErr != nil {
			logUploadError(logger, delErr, requestID)
		}
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"object_key": objectKey,
		"mime_type":  mimeType,
		"size":       len(data),
		"request_id": requestID,
	}).Info("[upload.image]")

	c.JSON(http.StatusCreated, uploadImageResponse{
		ObjectKey:          objectKey,
		ImageURL:           utils.BuildObjectAccessURL(objectKey),
		ThumbnailObjectKey: thumbKey,
		ThumbnailURL:       utils.BuildObjectAccessURL(thumbKey),
	})
}

// signUploadHandler issues a V4 PUT URL so the browser uploads the original directly.
func signUploadHandler(c *gin.Context) {
	logger := config.GetLogger()
	requestID := requestIDFromHeaders(c)

	var req uploadSignRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Size > maxUploadSizeBytes {
		respondError(c, utils.ValidationError("file size exceeds 5MB limit"))
		return
	}
	if !imageMimeTypes[req.MimeType] {
		respondError(c, utils.ValidationError("unsupported image type %q: use jpeg or png", req.MimeType))
		return
	}

	objectKey := newObjectKey(c.Request.Context(), req.Entity, req.FileName, req.MimeType)
	signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
	if err != nil {
		logUploadError(logger, err, requestID)
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"mime_type":  req.MimeType,
		"size":       req.Size,
		"object_key": objectKey,
	}).Info("[upload.sign]")
	c.JSON(http.StatusOK, signed)
}

// completeUploadHandler thumbnails an object the browser finished uploading.
func completeUploadHandler(c *gin.Context) {
	logger := config.GetLogger()
	requestID := requestIDFromHeaders(c)

	var req uploadCompleteRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if !ownsObjectKey(ctx, req.ObjectKey) {
		respondError(c, utils.ValidationError("invalid object key"))
		return
	}

	thumbKey, err := createThumbnail(ctx, req.ObjectKey)
	if err != nil {
		logUploadError(logger, err, requestID)
		respondError(c, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"object_key": req.ObjectKey,
		"status":     "completed",
	}).Info("[upload.complete]")

	c.JSON(http.StatusOK, uploadImageResponse{
		ObjectKey:          req.ObjectKey,
		ImageURL:           utils.BuildObjectAccessURL(req.ObjectKey),
		ThumbnailObjectKey: thumbKey,
		ThumbnailURL:       utils.BuildObjectAccessURL(thumbKey),
	})
}

// uploadObjectHandler streams a stored object for buckets that are not public.
func uploadObjectHandler(c *gin.Context) {
	objectKey := strings.TrimSpace(c.Query("key"))
	if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
		respondError(c, utils.ValidationError("invalid key"))
		return
	}
	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		respondError(c, utils.NotFoundError("object not found"))
		return
	}

	client, err := utils.GCSClient(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	defer client.Close()

	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(c.Request.Context())
	if err != nil {
		respondError(c, utils.NotFoundError("object not found"))
		return
	}
	defer reader.Close()

	contentType := reader.Attrs.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, reader.Attrs.Size, contentType, reader, nil)
}

func createThumbnail(ctx context.Context, objectKey string) (string, error) {
	client, err := utils.GCSClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	reader, err := client.Bucket(bucket).Object(objectKey).NewReader(ctx)
	if err != nil {
		return "", utils.NotFoundError("object %s not found", objectKey)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxUploadSizeBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > maxUploadSizeBytes {
		return "", utils.ValidationError("file size exceeds 5MB limit")
	}
	processed, err := processImage(data, http.DetectContentType(data))
	if err != nil {
		return "", err
	}

	thumbKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbKey, processed.Thumbnail, processed.ContentType); err != nil {
		return "", err
	}
	return thumbKey, nil
}

// newObjectKey builds <location>/<entity>/<uuid><ext>.
func newObjectKey(ctx context.Context, entity, fileName, mimeType string) string {
	location, _ := utils.GetLocationFromContext(ctx)
	entity = sanitizeSegment(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(entity)), " ", "_"))
	if entity == "" {
		entity = "products"
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		ext = extensionFromMimeType(mimeType)
	}
	return path.Join(locationSegment(location), entity, uuid.New().String()+ext)
}

func ownsObjectKey(ctx context.Context, objectKey string) bool {
	location, _ := utils.GetLocationFromContext(ctx)
	return !strings.Contains(objectKey, "..") && strings.HasPrefix(objectKey, locationSegment(location)+"/")
}

func locationSegment(location string) string {
	if seg := sanitizeSegment(strings.ToLower(location)); seg != "" {
		return seg
	}
	return "shared"
}

func thumbnailObjectKey(objectKey string) string {
	return path.Join(path.Dir(objectKey), "thumbnails", path.Base(objectKey))
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func extensionFromMimeType(mimeType string) string {
	if mimeType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

func logUploadError(logger *logrus.Logger, err error, requestID string) {
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok && id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}
