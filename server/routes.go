package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/jmorganca/seqprep/api"
	"github.com/jmorganca/seqprep/batch"
	"github.com/jmorganca/seqprep/envconfig"
	"github.com/jmorganca/seqprep/sequence"
	"github.com/jmorganca/seqprep/version"
	"github.com/jmorganca/seqprep/vocab"
)

var errUnknownSide = errors.New("side must be \"source\" or \"target\"")

// Server answers encode and decode requests against one vocabulary pair.
// The vocabularies are read only, so handlers share them without locking.
type Server struct {
	Source *vocab.Vocabulary
	Target *vocab.Vocabulary
}

func (s *Server) vocabulary(side api.Side) (*vocab.Vocabulary, error) {
	switch side {
	case api.SideSource, "":
		return s.Source, nil
	case api.SideTarget:
		return s.Target, nil
	default:
		return nil, fmt.Errorf("%w, got %q", errUnknownSide, side)
	}
}

func (s *Server) EncodeHandler(c *gin.Context) {
	var req api.EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := s.vocabulary(req.Side)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ids []int32
	if req.Side == api.SideTarget {
		ids = sequence.EncodeTarget(req.Text, v)
	} else {
		ids = sequence.EncodeSource(req.Text, v)
	}

	c.JSON(http.StatusOK, api.EncodeResponse{IDs: ids})
}

func (s *Server) DecodeHandler(c *gin.Context) {
	var req api.DecodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	v, err := s.vocabulary(req.Side)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokens, err := sequence.Decode(req.IDs, v)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, api.DecodeResponse{Tokens: tokens, Text: strings.Join(tokens, " ")})
}

func (s *Server) BatchesHandler(c *gin.Context) {
	var req api.BatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := batch.Options{
		Size:      req.BatchSize,
		SourcePad: s.Source.Special(vocab.SpecialPAD),
		TargetPad: s.Target.Special(vocab.SpecialPAD),
	}

	if req.KeepRemainder {
		opts.Remainder = batch.RemainderKeep
	}

	if req.TrueLengths {
		opts.Lengths = batch.LengthsTrue
	}

	it, err := batch.New(
		sequence.EncodeTargets(req.Targets, s.Target),
		sequence.EncodeSources(req.Sources, s.Source),
		opts,
	)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batches, err := batch.Collect(c.Request.Context(), it, envconfig.Workers)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	goID := s.Target.Special(vocab.SpecialGO)
	resp := api.BatchesResponse{Batches: make([]api.Batch, len(batches))}
	for i, b := range batches {
		resp.Batches[i] = api.Batch{
			Source:        b.Source,
			Target:        b.Target,
			DecoderInput:  batch.ShiftForTraining(b.Target, goID),
			SourceLengths: b.SourceLengths,
			TargetLengths: b.TargetLengths,
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) VocabHandler(c *gin.Context) {
	side := api.Side(c.Query("side"))
	v, err := s.vocabulary(side)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if side == "" {
		side = api.SideSource
	}

	c.JSON(http.StatusOK, api.VocabResponse{Side: side, Size: v.Size(), Specials: vocab.Specials()})
}

func (s *Server) GenerateRoutes() http.Handler {
	config := cors.DefaultConfig()
	config.AllowWildcard = true
	config.AllowBrowserExtensions = true
	config.AllowOrigins = envconfig.AllowOrigins

	r := gin.Default()
	r.Use(cors.New(config))

	r.POST("/api/encode", s.EncodeHandler)
	r.POST("/api/decode", s.DecodeHandler)
	r.POST("/api/batches", s.BatchesHandler)
	r.GET("/api/vocab", s.VocabHandler)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		r.Handle(method, "/", func(c *gin.Context) {
			c.String(http.StatusOK, "seqprep is running")
		})

		r.Handle(method, "/api/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, api.VersionResponse{Version: version.Version})
		})
	}

	return r
}

func Serve(ln net.Listener, s *Server) error {
	slog.Info("Listening on", "addr", ln.Addr(), "version", version.Version,
		"source_vocab", s.Source.Size(), "target_vocab", s.Target.Size())

	srvr := &http.Server{
		Handler: s.GenerateRoutes(),
	}

	return srvr.Serve(ln)
}
