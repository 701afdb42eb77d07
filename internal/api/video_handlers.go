package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vidstream/internal/auth"
	"vidstream/internal/video"
)

// multipart overhead allowed on top of the file itself
const formOverhead = 1 << 20

type uploadForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"max=2000"`
	Privacy     string `form:"privacy" binding:"omitempty,oneof=public subscriber_only"`
	Tags        string `form:"tags" binding:"max=500"`
}

func (s *Server) handleListVideos(c *gin.Context) {
	page, err := s.videos.ListPublic(c.Request.Context(), auth.ViewerID(c), video.ListParams{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", video.DefaultLimit),
		Search: c.Query("search"),
	})
	if err != nil {
		respondError(c, "list videos", err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleMyVideos(c *gin.Context) {
	list, err := s.videos.ListByCreator(c.Request.Context(), auth.ViewerID(c))
	if err != nil {
		respondError(c, "my videos", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"videos": list})
}

func (s *Server) handleGetVideo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := s.videos.Get(c.Request.Context(), auth.ViewerID(c), id)
	if err != nil {
		respondError(c, "get video", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": v})
}

func (s *Server) handleStreamVideo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	v, err := s.videos.ForStream(c.Request.Context(), auth.ViewerID(c), id)
	if err != nil {
		respondError(c, "stream video", err)
		return
	}
	path, err := s.files.Path(v.Filename)
	if err != nil {
		respondError(c, "stream video", err)
		return
	}
	if v.MimeType != "" {
		c.Header("Content-Type", v.MimeType)
	}
	c.File(path)
}

func (s *Server) handleUploadVideo(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload+formOverhead)

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		if isTooLarge(err) {
			respondInvalid(c, "video file is too large")
			return
		}
		respondBindError(c, err)
		return
	}
	form.Title = strings.TrimSpace(form.Title)
	if form.Title == "" {
		respondInvalid(c, "title is required")
		return
	}

	fh, err := c.FormFile("video")
	if err != nil {
		if isTooLarge(err) {
			respondInvalid(c, "video file is too large")
			return
		}
		respondInvalid(c, "video file is required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, "upload: open part", err)
		return
	}
	defer f.Close()

	saved, err := s.files.Save(f)
	if err != nil {
		respondError(c, "upload: save file", err)
		return
	}

	creator, _ := auth.CurrentUser(c)
	v, err := s.videos.Create(c.Request.Context(), video.NewVideo{
		CreatorID:   creator.ID,
		Title:       form.Title,
		Description: strings.TrimSpace(form.Description),
		Filename:    saved.Filename,
		FileSize:    saved.Size,
		MimeType:    saved.MimeType,
		Checksum:    saved.Checksum,
		Privacy:     form.Privacy,
		Tags:        strings.TrimSpace(form.Tags),
	})
	if err != nil {
		if rmErr := s.files.Remove(saved.Filename); rmErr != nil {
			log.Printf("upload: cleanup %s: %v", saved.Filename, rmErr)
		}
		respondError(c, "upload: insert video", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Video uploaded successfully", "videoId": v.ID, "video": v})
}

func (s *Server) handleDeleteVideo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	filename, err := s.videos.Delete(c.Request.Context(), auth.ViewerID(c), id)
	if err != nil {
		respondError(c, "delete video", err)
		return
	}
	if err := s.files.Remove(filename); err != nil {
		log.Printf("delete video %d: remove file: %v", id, err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Video deleted successfully"})
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}
