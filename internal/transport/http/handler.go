package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Africahassucceed/celebsbridgenew/internal/blob"
	"github.com/Africahassucceed/celebsbridgenew/internal/errs"
	"github.com/Africahassucceed/celebsbridgenew/internal/model"
	"github.com/Africahassucceed/celebsbridgenew/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CelebrityLister backs the request form's celebrity picker.
type CelebrityLister interface {
	ListActive(ctx context.Context) ([]model.Celebrity, error)
}

// BlobStore is the part of the blob store the handlers touch directly.
type BlobStore interface {
	Upload(ctx context.Context, prefix, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, ref string) error
	Open(ref string) (string, error)
	VerifyHandle(token string) (string, error)
}

type Handler struct {
	svc       *service.ShoutoutService
	catalog   CelebrityLister
	blobs     BlobStore
	maxUpload int64
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewHandler(svc *service.ShoutoutService, cat CelebrityLister, blobs BlobStore, maxUpload int64, log *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, catalog: cat, blobs: blobs, maxUpload: maxUpload, log: log, now: time.Now}
}

// RegisterHandlers mounts the authenticated API on v1.
func (h *Handler) RegisterHandlers(v1 *gin.RouterGroup) {
	v1.GET("/celebrities", h.listCelebrities)

	v1.POST("/requests", h.createRequest)
	v1.GET("/requests", h.listRequests)
	v1.GET("/requests/:id", h.getRequest)
	v1.POST("/requests/:id/transition", h.transition)
	v1.POST("/requests/:id/video", h.attachVideo)
	v1.GET("/requests/:id/download", h.download)

	v1.POST("/blobs", h.uploadBlob)

	v1.GET("/stats", RequireAdmin(), h.globalStats)
	v1.GET("/me/stats", h.myStats)
}

func (h *Handler) listCelebrities(c *gin.Context) {
	celebs, err := h.catalog.ListActive(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, celebs)
}

type createReq struct {
	CelebrityID   string  `json:"celebrity_id"`
	Message       string  `json:"message"`
	Occasion      string  `json:"occasion"`
	DeliveryDate  string  `json:"delivery_date"`
	ReferenceFile *string `json:"reference_file"`
}

func (h *Handler) createRequest(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", err.Error())
		return
	}
	draft := model.Draft{
		CelebrityID:   req.CelebrityID,
		Message:       req.Message,
		Occasion:      req.Occasion,
		ReferenceFile: req.ReferenceFile,
	}
	if req.DeliveryDate != "" {
		d, err := time.Parse(time.DateOnly, req.DeliveryDate)
		if err != nil {
			badRequest(c, "delivery_date", "must be formatted as YYYY-MM-DD")
			return
		}
		draft.DeliveryDate = d
	}
	p, _ := principalFrom(c)
	id, err := h.svc.CreateRequest(c.Request.Context(), p, draft)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) listRequests(c *gin.Context) {
	var f service.ListFilter
	if raw := c.Query("status"); raw != "" {
		st, ok := model.ParseStatus(raw)
		if !ok {
			badRequest(c, "status", "unknown status "+raw)
			return
		}
		f.Status = &st
	}
	p, _ := principalFrom(c)
	reqs, err := h.svc.ListRequests(c.Request.Context(), p, f)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reqs)
}

func (h *Handler) getRequest(c *gin.Context) {
	p, _ := principalFrom(c)
	req, err := h.svc.GetRequest(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type transitionReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status", "is required")
		return
	}
	target, ok := model.ParseStatus(req.Status)
	if !ok {
		badRequest(c, "status", "unknown status "+req.Status)
		return
	}
	p, _ := principalFrom(c)
	updated, err := h.svc.TransitionWithRetry(c.Request.Context(), c.Param("id"), target, p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type attachReq struct {
	VideoRef string `json:"video_ref"`
}

// attachVideo accepts either a multipart "file" upload or a JSON body naming an already stored ref.
func (h *Handler) attachVideo(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	p, _ := principalFrom(c)

	var ref string
	uploaded := false
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if !p.IsAdmin() {
			// reject before storing anything
			abortWithError(c, errs.Forbidden("only an admin may deliver a video"))
			return
		}
		file, ok := h.formFile(c)
		if !ok {
			return
		}
		var err error
		ref, err = h.store(ctx, "videos/"+id, file)
		if err != nil {
			abortWithError(c, err)
			return
		}
		uploaded = true
	} else {
		var req attachReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "video_ref", "is required")
			return
		}
		ref = req.VideoRef
	}

	video, err := h.svc.AttachAndComplete(ctx, id, ref, p)
	if err != nil {
		if uploaded {
			if derr := h.blobs.Delete(context.WithoutCancel(ctx), ref); derr != nil {
				h.log.Warnw("orphaned video blob", "ref", ref, "request_id", id, "error", derr)
			}
		}
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, video)
}

func (h *Handler) download(c *gin.Context) {
	p, _ := principalFrom(c)
	handle, err := h.svc.ResolveDownload(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, handle)
}

// uploadBlob stores a reference file under the caller's own prefix.
func (h *Handler) uploadBlob(c *gin.Context) {
	p, _ := principalFrom(c)
	file, ok := h.formFile(c)
	if !ok {
		return
	}
	ref, err := h.store(c.Request.Context(), p.ID, file)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"ref": ref})
}

// serveBlob is unauthenticated: the signed token is the credential.
func (h *Handler) serveBlob(c *gin.Context) {
	ref, err := h.blobs.VerifyHandle(c.Query("token"))
	switch {
	case errors.Is(err, blob.ErrExpiredHandle):
		abortWithStatus(c, http.StatusGone, err, "download link expired")
		return
	case err != nil:
		abortWithStatus(c, http.StatusForbidden, err, "invalid download link")
		return
	}
	full, err := h.blobs.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			abortWithError(c, errs.NotFound("blob", ref))
			return
		}
		abortWithError(c, errs.Storage("open blob", err))
		return
	}
	c.FileAttachment(full, fmt.Sprintf("shoutout-%d%s", h.now().UnixMilli(), path.Ext(ref)))
}

func (h *Handler) globalStats(c *gin.Context) {
	stats, err := h.svc.GlobalStats(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) myStats(c *gin.Context) {
	p, _ := principalFrom(c)
	stats, err := h.svc.RequesterStats(c.Request.Context(), p.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) formFile(c *gin.Context) (*multipart.FileHeader, bool) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			abortWithStatus(c, http.StatusRequestEntityTooLarge, err, "file too large")
			return nil, false
		}
		badRequest(c, "file", "is required")
		return nil, false
	}
	return file, true
}

func (h *Handler) store(ctx context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	ref, err := h.blobs.Upload(ctx, prefix, fh.Filename, f)
	if err != nil {
		h.log.Errorw("blob upload failed", "prefix", prefix, "name", fh.Filename, "error", err)
		return "", err
	}
	return ref, nil
}
