package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/local/quizforge/api/config"
	"github.com/local/quizforge/api/db"
	"github.com/local/quizforge/api/handlers"
	"github.com/local/quizforge/api/services"
	"github.com/local/quizforge/api/vectordb"
)

func main() {
	// Setup logger
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load config; missing credentials are fatal before anything else runs
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	database, err := db.Init(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	log.Info().Str("db_path", cfg.DBPath).Msg("Database initialized")

	// Gemini client, shared by the embedding and quiz generation services
	var opts []option.ClientOption
	if cfg.GeminiAPIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.GeminiAPIKey))
	} else {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Gemini client")
	}
	defer client.Close()

	embedder := services.NewGeminiEmbedding(client, cfg.EmbeddingModel, cfg.RequestTimeout)
	generator := services.NewGeminiQuizGenerator(client, cfg.CompletionModel, cfg.MaxQuestions, cfg.RequestTimeout)

	store, err := vectordb.NewStore(cfg.VectorDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize vector store")
	}

	// Create Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Cookie-backed session identity for the browser front end
	router.Use(sessions.Sessions("quizforge_session", cookie.NewStore([]byte(cfg.SessionSecret))))

	// Initialize handlers
	h := handlers.New(database, cfg, embedder, generator, store)

	// Health check
	router.GET("/api/health", h.Health)

	// API routes
	api := router.Group("/api")
	{
		api.POST("/upload", h.UploadPDF)
		api.POST("/quiz/parameters", h.SetParameters)
		api.POST("/quiz/generate", h.GenerateQuiz)
		api.GET("/quiz/question", h.CurrentQuestion)
		api.POST("/quiz/answer", h.Answer)
		api.POST("/quiz/next", h.NextQuestion)
		api.POST("/quiz/previous", h.PreviousQuestion)
		api.GET("/quiz/results", h.Results)
		api.POST("/session/restart", h.Restart)
		api.GET("/quizzes", h.ListQuizzes)
		api.GET("/quizzes/:quizId", h.GetQuiz)
	}

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().
		Str("port", cfg.Port).
		Str("embedding_model", cfg.EmbeddingModel).
		Str("completion_model", cfg.CompletionModel).
		Msg("Starting QuizForge API server")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}
