package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/loykin/catalogdb/internal/catalog"
	"github.com/loykin/catalogdb/internal/common"
	"github.com/loykin/catalogdb/internal/database"
	"github.com/loykin/catalogdb/internal/dbconfig"
	"github.com/loykin/catalogdb/internal/migration"
)

func (s *Server) health(c *gin.Context) {
	h := s.db.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if !h.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, h)
}

// installRequest is either a connection string or discrete fields.
type installRequest struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	FilePath string `json:"file_path"`
	PoolSize int    `json:"pool_size"`
	SSL      bool   `json:"ssl"`
	Charset  string `json:"charset"`
	Timezone string `json:"timezone"`
}

func (r installRequest) config(cwd string) (dbconfig.Config, error) {
	if r.URL != "" {
		return dbconfig.ParseURL(r.URL, cwd)
	}
	kind, err := dbconfig.ParseKind(r.Kind)
	if err != nil {
		return dbconfig.Config{}, err
	}
	cfg := dbconfig.Config{
		Kind:     kind,
		Host:     r.Host,
		Port:     r.Port,
		User:     r.User,
		Password: r.Password,
		Database: r.Database,
		PoolSize: r.PoolSize,
		TLS:      r.SSL,
		Charset:  r.Charset,
		Timezone: r.Timezone,
	}
	if kind == dbconfig.KindSQLite {
		cfg.FilePath = dbconfig.ResolveFilePath(r.FilePath, cwd)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// errInstallLocked refuses reconfiguration of a connected database when no
// installer secret guards the endpoint.
var errInstallLocked = errors.New("database already installed; configure an installer secret to reconfigure it")

func (s *Server) installDatabase(c *gin.Context) {
	if s.jwt == nil && s.db.State() == database.StateReady {
		abort(c, http.StatusConflict, errInstallLocked)
		return
	}
	var req installRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	cfg, err := req.config(s.cwd)
	if err != nil {
		abort(c, http.StatusBadRequest, errors.New(common.MaskError(err, req.Password)))
		return
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid database configuration", "violations": problems})
		return
	}

	if err := s.db.InitializeStrict(c.Request.Context(), &cfg); err != nil {
		s.logger.Warn("database installation failed", "config", cfg, "error", common.MaskError(err, cfg.Password))
		status := http.StatusBadGateway
		var verr *dbconfig.ValidationError
		if errors.As(err, &verr) || errors.Is(err, dbconfig.ErrUnsupportedKind) {
			status = http.StatusBadRequest
		}
		abort(c, status, errors.New(common.MaskError(err, cfg.Password)))
		return
	}
	s.logger.Info("database installed", "config", cfg, "subject", subject(c))
	c.JSON(http.StatusOK, s.db.HealthCheck(c.Request.Context()))
}

// subject names the token holder, or "anonymous" when the installer is open.
func subject(c *gin.Context) string {
	if claims := ClaimsFromContext(c); claims != nil {
		if sub, err := claims.GetSubject(); err == nil && sub != "" {
			return sub
		}
	}
	return "anonymous"
}

func (s *Server) migrations(c *gin.Context) {
	runner, list, err := s.db.Migrations()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, database.ErrNotInitialized) {
			status = http.StatusServiceUnavailable
		}
		abort(c, status, err)
		return
	}
	ctx := c.Request.Context()
	applied, err := runner.Applied(ctx)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	pending, err := runner.Pending(ctx, list)
	if err != nil {
		abort(c, http.StatusInternalServerError, err)
		return
	}
	if applied == nil {
		applied = []migration.Record{}
	}
	if pending == nil {
		pending = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"table": runner.Table(), "applied": applied, "pending": pending})
}

func productError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		abort(c, http.StatusNotFound, err)
	case errors.Is(err, catalog.ErrInvalidProduct):
		abort(c, http.StatusBadRequest, err)
	default:
		abort(c, http.StatusInternalServerError, err)
	}
}

func (s *Server) listProducts(c *gin.Context) {
	f := catalog.Filter{
		StoreID: c.Query("store_id"),
		Search:  c.Query("q"),
	}
	if st := c.Query("status"); st != "" {
		status, err := catalog.ParseStatus(st)
		if err != nil {
			productError(c, err)
			return
		}
		f.Status = status
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	products, err := s.productRepo().List(c.Request.Context(), f)
	if err != nil {
		productError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "persistent": s.db.IsConnected()})
}

func (s *Server) createProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	created, err := s.productRepo().Create(c.Request.Context(), p)
	if err != nil {
		productError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) getProduct(c *gin.Context) {
	p, err := s.productRepo().Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		productError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) updateProduct(c *gin.Context) {
	var p catalog.Product
	if err := c.ShouldBindJSON(&p); err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	p.ID = c.Param("id")
	updated, err := s.productRepo().Update(c.Request.Context(), p)
	if err != nil {
		productError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.productRepo().Delete(c.Request.Context(), c.Param("id")); err != nil {
		productError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
