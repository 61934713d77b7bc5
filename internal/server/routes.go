package server

import (
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/optwire/internal/observability"
	"github.com/danmuck/optwire/internal/protocol/options"
	"github.com/danmuck/optwire/internal/protocol/view"
	"github.com/danmuck/optwire/internal/report"
)

var (
	ErrFamilyNotFound = errors.New("family not found")
	ErrBadHex         = errors.New("body is not a hex string")
)

type DecodeResponse struct {
	Family  string          `json:"family"`
	Records []report.Record `json:"records"`
}

type EncodeRequest struct {
	Records []report.Record `json:"records"`
}

type EncodeResponse struct {
	Family string `json:"family"`
	Hex    string `json:"hex"`
	Length int    `json:"length"`
}

type ErrorResponse struct {
	Error string        `json:"error"`
	Fault *report.Fault `json:"fault,omitempty"`
}

func (s *Server) RegisterRoutes() {
	r := s.router
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ready", func(c *gin.Context) {
		ready := s.Registry != nil && s.Registry.Sealed()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	v1 := r.Group("/v1")
	v1.GET("/families", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"families": report.Families(s.Registry)})
	})
	v1.GET("/families/:family/codes", func(c *gin.Context) {
		fam, ok := s.family(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"family": fam.ID, "codes": report.Codes(s.Registry, fam)})
	})
	v1.POST("/decode/:family", s.handleDecode)
	v1.POST("/encode/:family", s.handleEncode)
}

func (s *Server) handleDecode(c *gin.Context) {
	fam, ok := s.family(c)
	if !ok {
		return
	}
	region, err := readHex(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	records, err := s.Decoder.Decode(fam, view.New(region))
	observability.RecordDecode(fam.ID, len(region), records, err)
	if err != nil {
		resp := ErrorResponse{Error: err.Error()}
		if f, ok := report.FaultOf(err); ok {
			resp.Fault = &f
			c.Set(observability.ContextFault, f.Kind)
		}
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	c.JSON(http.StatusOK, DecodeResponse{Family: fam.ID, Records: report.FromRecords(records)})
}

func (s *Server) handleEncode(c *gin.Context) {
	fam, ok := s.family(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
	var req EncodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	records, err := report.ToRecords(fam, req.Records)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	out, err := options.Encode(fam, records)
	if err != nil {
		log.Debug().Str("family", fam.ID).Err(err).Msg("server.encode rejected")
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, EncodeResponse{Family: fam.ID, Hex: hex.EncodeToString(out), Length: len(out)})
}

func (s *Server) family(c *gin.Context) (options.Family, bool) {
	id := strings.ToLower(c.Param("family"))
	fam, ok := s.Registry.Family(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: ErrFamilyNotFound.Error() + ": " + id})
		return options.Family{}, false
	}
	return fam, true
}

// readHex reads the request body as hex, ignoring whitespace.
func readHex(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
	if err != nil {
		return nil, err
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, string(body))
	out, err := hex.DecodeString(compact)
	if err != nil {
		return nil, errors.Join(ErrBadHex, err)
	}
	return out, nil
}
