// Package server exposes the reconciliation pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rezonia/nf-reconciler/internal/cnpj"
	"github.com/rezonia/nf-reconciler/internal/config"
	"github.com/rezonia/nf-reconciler/internal/fiscalkey"
	"github.com/rezonia/nf-reconciler/internal/ingest"
	"github.com/rezonia/nf-reconciler/internal/model"
	"github.com/rezonia/nf-reconciler/internal/pipeline"
	xmlparser "github.com/rezonia/nf-reconciler/internal/parser/xml"
	"github.com/rezonia/nf-reconciler/internal/store"
)

// Config holds server configuration
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool
}

// Server is the HTTP API over the document store and pipeline
type Server struct {
	config    *Config
	router    *gin.Engine
	store     *store.Store
	ingestor  *ingest.Ingestor
	processor *pipeline.Processor
	registry  *xmlparser.Registry
	log       *zap.Logger
}

// NewServer creates the API server over existing components
func NewServer(cfg *Config, st *store.Store, ingestor *ingest.Ingestor, processor *pipeline.Processor, log *zap.Logger) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	s := &Server{
		config:    cfg,
		router:    router,
		store:     st,
		ingestor:  ingestor,
		processor: processor,
		registry:  xmlparser.NewRegistry(),
		log:       log,
	}

	s.setupRoutes()
	return s
}

// DefaultConfig builds a server config from application configuration
func DefaultConfig(cfg *config.Config) *Config {
	return &Config{
		Address:      cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", s.handleHealth)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Ingestion endpoints
		v1.POST("/ingest/xml", s.handleIngestXML)
		v1.POST("/ingest/pdf", s.handleIngestPDF)
		v1.POST("/ingest/feed", s.handleIngestFeed)

		// Document endpoints
		v1.GET("/documents", s.handleListDocuments)
		v1.GET("/documents/:id", s.handleGetDocument)
		v1.POST("/documents/:id/process", s.handleProcessDocument)
		v1.POST("/documents/:id/cancel", s.handleCancelDocument)

		// Stateless parse endpoint
		v1.POST("/parse", s.handleParse)

		// Access key endpoints
		v1.POST("/keys/validate", s.handleValidateKey)
		v1.POST("/keys/decode", s.handleDecodeKey)
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	srv := &http.Server{
		Addr:         s.config.Address,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return srv.ListenAndServe()
}

// Handler returns the http.Handler for use with custom servers
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleIngestXML(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	rec, err := s.ingestor.IngestXML(ctx, body, ingest.SourceManual, "")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, IngestResponse{Record: rec})
}

func (s *Server) handleIngestPDF(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	rec, err := s.ingestor.IngestPDF(ctx, body, ingest.SourceManual, "")
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, IngestResponse{Record: rec})
}

func (s *Server) handleIngestFeed(c *gin.Context) {
	var req FeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Documents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no documents in feed"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	resp := FeedResponse{}
	for _, raw := range req.Documents {
		rec, err := s.ingestor.IngestFeed(ctx, raw)
		if err != nil {
			resp.Failed = append(resp.Failed, FeedFailure{NSU: raw.NSU, Error: err.Error()})
			continue
		}
		resp.Ingested = append(resp.Ingested, rec.ID)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListDocuments(c *gin.Context) {
	filter := store.RecordFilter{
		Status: model.ProcessingStatus(c.Query("status")),
		Type:   model.DocumentType(c.Query("type")),
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = n
	}

	records, err := s.store.Records.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ListResponse{Records: records, Count: len(records)})
}

func (s *Server) handleGetDocument(c *gin.Context) {
	rec, err := s.store.Records.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleProcessDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	rec, err := s.processor.Process(ctx, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		case errors.Is(err, model.ErrRecordCancelled):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			// The record carries the stage error; return both
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  err.Error(),
				"record": rec,
			})
		}
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleCancelDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Minute)
	defer cancel()

	rec, err := s.processor.Cancel(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleParse(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	doc, err := s.registry.Parse(ctx, body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	sig := xmlparser.ExtractSignatureInfo(body)
	c.JSON(http.StatusOK, ParseResponse{Document: doc, Signature: sig})
}

func (s *Server) handleValidateKey(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	clean := fiscalkey.Clean(req.Key)
	resp := KeyValidationResponse{
		Key:   clean,
		Valid: fiscalkey.Validate(req.Key),
	}
	if req.IssuerCNPJ != "" {
		resp.CNPJValid = cnpj.IsValid(req.IssuerCNPJ)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDecodeKey(c *gin.Context) {
	var req KeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	key := fiscalkey.Parse(req.Key)
	if key == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "key is not a 44 digit access key"})
		return
	}

	c.JSON(http.StatusOK, KeyDecodeResponse{
		Key:          fiscalkey.Clean(req.Key),
		Valid:        fiscalkey.Validate(req.Key),
		State:        fiscalkey.UFName(key.UF),
		YearMonth:    key.YearMonth,
		CNPJ:         cnpj.Format(key.CNPJ),
		Model:        key.Model,
		DocumentType: string(fiscalkey.DocumentTypeFromModel(key.Model)),
		Series:       key.Series,
		Number:       key.Number,
		EmissionType: key.EmissionType,
		Formatted:    fiscalkey.Format(req.Key),
	})
}
