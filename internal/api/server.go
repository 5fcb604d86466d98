// Package api exposes the post intake HTTP API and a client for it.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/post-speech-service/internal/core"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Response messages.
const (
	msgSaveFailed    = "There was an error saving your post, please try again"
	msgInvalidBody   = "request body must be a JSON object with a text field"
	msgTextRequired  = "text is required"
	msgVoiceRejected = "voice is not allowed"
	msgListFailed    = "There was an error listing posts, please try again"
	msgAudioMissing  = "audio not found"
	statusHealthy    = "ok"
)

var (
	// ErrRecordsNil indicates that no record store was supplied.
	ErrRecordsNil = errors.New("record store cannot be nil")
	// ErrNotifierNil indicates that no notifier was supplied.
	ErrNotifierNil = errors.New("notifier cannot be nil")
)

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// MessageResponse carries a human-readable error message.
type MessageResponse struct {
	Message string `json:"message"`
}

// Deps are the collaborators of the intake API.
type Deps struct {
	Records      core.RecordStore
	Notifier     core.Notifier
	Audio        core.BlobStore
	ContentType  string
	DefaultVoice string
	VoiceAllowed func(voice string) bool
	Log          *logger.Logger
}

// objectDescriber is implemented by blob stores that keep per-object metadata.
type objectDescriber interface {
	Info(ctx context.Context, key string) (string, core.AccessPolicy, error)
}

// Server serves the intake API.
type Server struct {
	app  *fiber.App
	deps Deps
}

// NewServer builds the routes. Audio may be nil, in which case /audio is not served.
func NewServer(deps Deps) (*Server, error) {
	if deps.Records == nil {
		return nil, ErrRecordsNil
	}

	if deps.Notifier == nil {
		return nil, ErrNotifierNil
	}

	if deps.VoiceAllowed == nil {
		deps.VoiceAllowed = func(string) bool { return true }
	}

	app := fiber.New(fiber.Config{
		AppName:               "post-speech-service",
		DisableStartupMessage: true,
	})

	server := &Server{app: app, deps: deps}

	app.Get("/health", server.health)
	app.Get("/posts", server.listPosts)
	app.Get("/posts/:id", server.getPost)
	app.Post("/posts", server.createPost)

	if deps.Audio != nil {
		app.Get("/audio/:key", server.getAudio)
	}

	return server, nil
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting for in-flight requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": statusHealthy})
}

func (s *Server) listPosts(c *fiber.Ctx) error {
	posts, err := s.deps.Records.List(c.UserContext())
	if err != nil {
		s.deps.Log.Error("Could not list posts: %v", err)

		return c.Status(fiber.StatusInternalServerError).JSON(MessageResponse{Message: msgListFailed})
	}

	return c.JSON(posts)
}

func (s *Server) getPost(c *fiber.Ctx) error {
	id := c.Params("id")

	post, err := s.deps.Records.Get(c.UserContext(), id)
	if err != nil {
		s.deps.Log.Warn("Could not fetch post #%s: %v", id, err)

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

		return c.Status(fiber.StatusNotFound).SendString("null")
	}

	return c.JSON(post)
}

func (s *Server) createPost(c *fiber.Ctx) error {
	var req CreatePostRequest

	err := c.BodyParser(&req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: msgInvalidBody})
	}

	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: msgTextRequired})
	}

	voice := req.Voice
	if voice == "" {
		voice = s.deps.DefaultVoice
	}

	if !s.deps.VoiceAllowed(voice) {
		return c.Status(fiber.StatusBadRequest).JSON(MessageResponse{Message: msgVoiceRejected})
	}

	now := time.Now().UTC()
	post := &core.Post{
		ID:        uuid.NewString(),
		Status:    core.StatusProcessing,
		Text:      req.Text,
		Voice:     voice,
		URL:       "",
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.deps.Records.Put(c.UserContext(), post)
	if err == nil {
		err = s.deps.Notifier.PostCreated(c.UserContext(), post.ID)
	}

	if err != nil {
		s.deps.Log.Error("Could not save post: %v", err)

		return c.Status(fiber.StatusInternalServerError).JSON(MessageResponse{Message: msgSaveFailed})
	}

	s.deps.Log.Info("Created post %s (%d characters, voice %s)", post.ID, len(post.Text), post.Voice)

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (s *Server) getAudio(c *fiber.Ctx) error {
	key := c.Params("key")
	contentType := s.deps.ContentType

	if describer, ok := s.deps.Audio.(objectDescriber); ok {
		storedType, access, infoErr := describer.Info(c.UserContext(), key)
		if infoErr != nil || access != core.AccessPublicRead {
			return c.Status(fiber.StatusNotFound).JSON(MessageResponse{Message: msgAudioMissing})
		}

		if storedType != "" {
			contentType = storedType
		}
	}

	data, err := s.deps.Audio.Download(c.UserContext(), key)
	if err != nil {
		s.deps.Log.Warn("Could not fetch audio %s: %v", key, err)

		return c.Status(fiber.StatusNotFound).JSON(MessageResponse{Message: msgAudioMissing})
	}

	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}

	return c.Send(data)
}
